package downloader

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/brogergvhs/noveld/internal/abort"
	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/imagepipe"
)

// Outcome is the terminal state of one task.
type Outcome int

const (
	Cancelled Outcome = iota
	CacheHit
	NonScrapable
	Stored
	Failed
)

func (o Outcome) String() string {
	switch o {
	case CacheHit:
		return "cache-hit"
	case NonScrapable:
		return "non-scrapable"
	case Stored:
		return "stored"
	case Failed:
		return "failed"
	default:
		return "cancelled"
	}
}

// Processor acquires single chapters into the run's chapter map.
type Processor struct {
	site     Site
	fetcher  fetch.Fetcher
	images   ImageProcessor
	chapters *book.ChapterMap
	rep      Reporter
	cfg      Config
	total    int

	// onCheckpoint receives a snapshot of the map whenever the main pass
	// completes a multiple of FlushEvery tasks with a stored record. It is
	// called with mu held, so snapshots arrive in completion order.
	onCheckpoint func([]book.Entry)

	mu      sync.Mutex
	counted map[int]bool
}

func newProcessor(site Site, f fetch.Fetcher, images ImageProcessor, chapters *book.ChapterMap, rep Reporter, cfg Config, total int) *Processor {
	return &Processor{
		site:     site,
		fetcher:  f,
		images:   images,
		chapters: chapters,
		rep:      rep,
		cfg:      cfg,
		total:    total,
		counted:  make(map[int]bool, total),
	}
}

// Process runs one task to a terminal outcome. force skips the cache-hit
// shortcut and is used by the repair sweep.
func (p *Processor) Process(ctx context.Context, task book.Task, force bool) Outcome {
	if ctx.Err() != nil {
		return Cancelled
	}

	if !force && p.chapters.HasComplete(task.Index, p.cfg.ImagesEnabled) {
		p.commit(task.Index, nil, false)
		return CacheHit
	}

	if !p.site.IsChapterURL(task.URL) {
		msg := task.URL + " {non-site link}"
		n := p.commit(task.Index, &book.Record{
			Title:       task.Title,
			Content:     msg,
			TextSegment: task.Title + "\n" + msg + "\n\n",
			URL:         task.URL,
			NonSite:     true,
		}, !force)
		p.rep.Log("skipped (%d/%d): %s (non-site link)", n, p.total, task.Title)
		p.stagger(ctx)

		return NonScrapable
	}

	rec, err := p.acquire(ctx, task)
	if err != nil {
		if ctx.Err() != nil || fetch.IsAborted(err) {
			return Cancelled
		}

		p.commit(task.Index, nil, false)
		p.rep.Log("fetch failed (%s): %v", task.Title, err)
		p.stagger(ctx)

		return Failed
	}

	n := p.commit(task.Index, &rec, !force)
	if rec.ImageFailures > 0 {
		p.rep.Log("fetched (%d/%d): %s, %d image(s) failed\nURL: %s", n, p.total, rec.Title, rec.ImageFailures, task.URL)
	} else {
		p.rep.Log("fetched (%d/%d): %s\nURL: %s", n, p.total, rec.Title, task.URL)
	}
	p.stagger(ctx)

	return Stored
}

func (p *Processor) acquire(ctx context.Context, task book.Task) (book.Record, error) {
	var resp *fetch.Response

	err := retry.Do(
		func() error {
			r, err := p.fetcher.Fetch(ctx, task.URL, fetch.Options{Timeout: p.cfg.PageTimeout})
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.cfg.Attempts)),
		// n is the number of the attempt that follows the wait
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n) * p.cfg.Backoff
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !fetch.IsAborted(err) }),
		retry.OnRetry(func(n uint, err error) {
			p.rep.Log("attempt %d/%d for %s failed: %v", n+1, p.cfg.Attempts, task.Title, err)
		}),
	)
	if err != nil {
		return book.Record{}, err
	}

	ch := p.site.ParseChapter(string(resp.Body), task.Title)

	var (
		content  string
		images   []book.Image
		failures int
	)

	if p.cfg.ImagesEnabled {
		res := p.images.Process(ctx, ch.Markup, task.Index, resp.URL)
		if res.Cancelled {
			return book.Record{}, fetch.ErrUserAborted
		}
		content, images, failures = res.Markup, res.Images, res.Failures
	} else {
		content = imagepipe.StripImages(ch.Markup)
	}

	return book.Record{
		Title:         ch.Title,
		Content:       content,
		TextSegment:   fmt.Sprintf("%s\n\n%s\n\n%s\n\n", ch.Title, ch.Author, ch.Text),
		Images:        images,
		ImageFailures: failures,
		URL:           task.URL,
	}, nil
}

// commit stores rec (when set), counts index once and publishes the
// progress. It returns the number of tasks that reached a terminal outcome
// so far. With checkpoint set, every multiple of FlushEvery hands one
// snapshot to onCheckpoint.
func (p *Processor) commit(index int, rec *book.Record, checkpoint bool) int {
	p.mu.Lock()
	if rec != nil {
		p.chapters.Set(index, *rec)
	}
	p.counted[index] = true
	n := len(p.counted)
	if checkpoint && p.onCheckpoint != nil && n%p.cfg.FlushEvery == 0 {
		p.onCheckpoint(p.chapters.Snapshot())
	}
	p.mu.Unlock()

	p.rep.SetProgress(n, p.total, fmt.Sprintf("Full download (%d/%d)", n, p.total))
	return n
}

func (p *Processor) doneCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.counted)
}

func (p *Processor) stagger(ctx context.Context) {
	d := p.cfg.StaggerMin
	if span := p.cfg.StaggerMax - p.cfg.StaggerMin; span > 0 {
		d += rand.N(span + 1)
	}
	abort.Sleep(ctx, d)
}
