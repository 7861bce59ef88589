package downloader

import (
	"context"
	"errors"
	"time"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/imagepipe"
	"github.com/brogergvhs/noveld/internal/providers"
)

// ErrPaused is returned by Scheduler.Run when the run was cancelled. The
// progress so far is in the cache; running the same job again resumes.
var ErrPaused = errors.New("download paused")

const (
	MinConcurrency     = 1
	MaxConcurrency     = 10
	DefaultConcurrency = 3
)

// Config holds the per-run settings. Zero fields take the defaults.
type Config struct {
	Concurrency   int
	ImagesEnabled bool

	Attempts     int
	Backoff      time.Duration
	PageTimeout  time.Duration
	StaggerMin   time.Duration
	StaggerMax   time.Duration
	FlushEvery   int
	RepairPause  time.Duration
	CoverTimeout time.Duration
	CoverMinSize int
}

// ClampConcurrency bounds n to [MinConcurrency, MaxConcurrency]; zero means
// the default.
func ClampConcurrency(n int) int {
	switch {
	case n == 0:
		return DefaultConcurrency
	case n < MinConcurrency:
		return MinConcurrency
	case n > MaxConcurrency:
		return MaxConcurrency
	}
	return n
}

func (c Config) withDefaults() Config {
	c.Concurrency = ClampConcurrency(c.Concurrency)

	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 300 * time.Millisecond
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 15 * time.Second
	}
	if c.StaggerMin <= 0 {
		c.StaggerMin = 100 * time.Millisecond
	}
	if c.StaggerMax < c.StaggerMin {
		c.StaggerMax = c.StaggerMin + 200*time.Millisecond
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 5
	}
	if c.RepairPause <= 0 {
		c.RepairPause = 300 * time.Millisecond
	}
	if c.CoverTimeout <= 0 {
		c.CoverTimeout = 15 * time.Second
	}
	if c.CoverMinSize <= 0 {
		c.CoverMinSize = 1000
	}

	return c
}

// Reporter is the UI side of a run.
type Reporter interface {
	SetProgress(done, total int, status string)
	Log(format string, args ...any)
	BundleReady(b *book.Bundle)
}

// CacheStore persists a run's chapter map between attempts.
type CacheStore interface {
	Load(ctx context.Context, bookID string) (int, *book.ChapterMap)
	Save(ctx context.Context, bookID string, entries []book.Entry)
	Clear(ctx context.Context, bookID string)
}

// Site is the part of providers.Site the engine needs.
type Site interface {
	IsChapterURL(url string) bool
	ParseChapter(html, fallbackTitle string) providers.Chapter
}

// ImageProcessor downloads and inlines the images of one chapter.
type ImageProcessor interface {
	Process(ctx context.Context, markup string, chapterIndex int, baseURL string) imagepipe.Result
}

type nopReporter struct{}

func (nopReporter) SetProgress(int, int, string) {}
func (nopReporter) Log(string, ...any)           {}
func (nopReporter) BundleReady(*book.Bundle)     {}

type nopCache struct{}

func (nopCache) Load(context.Context, string) (int, *book.ChapterMap) { return 0, nil }
func (nopCache) Save(context.Context, string, []book.Entry)          {}
func (nopCache) Clear(context.Context, string)                      {}
