// Package downloader is the batch acquisition engine: a bounded worker pool
// over a book's chapter tasks with resumable caching, a serial repair sweep
// and ordered assembly of the final bundle.
package downloader

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/brogergvhs/noveld/internal/abort"
	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/imagepipe"
)

// Job describes one book to acquire.
type Job struct {
	BookID   string
	Tasks    []book.Task
	Intro    string
	CoverURL string
	Title    string
	RawTitle string
	Author   string
}

// Deps are the collaborators of a Scheduler. Cache and Reporter may be nil.
type Deps struct {
	Site     Site
	Fetcher  fetch.Fetcher
	Images   ImageProcessor
	Cache    CacheStore
	Reporter Reporter
}

type Scheduler struct {
	deps Deps
	cfg  Config
}

func New(deps Deps, cfg Config) *Scheduler {
	if deps.Cache == nil {
		deps.Cache = nopCache{}
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.Images == nil {
		deps.Images = imagepipe.New(deps.Fetcher, imagepipe.Options{}, nil)
	}

	return &Scheduler{deps: deps, cfg: cfg.withDefaults()}
}

// run is the state of one Run call.
type run struct {
	*Scheduler
	job      Job
	chapters *book.ChapterMap
	proc     *Processor

	// snapshots are saved in order by a single writer
	snapshots chan []book.Entry
	written   chan struct{}
	drainOnce sync.Once
}

// Run acquires every task of job and returns the assembled bundle. When ctx
// is cancelled the progress is saved and ErrPaused is returned.
func (s *Scheduler) Run(ctx context.Context, job Job) (*book.Bundle, error) {
	r := &run{
		Scheduler: s,
		job:       job,
		chapters:  book.NewChapterMap(),
	}
	rep := s.deps.Reporter

	if n, cached := s.deps.Cache.Load(ctx, job.BookID); cached != nil {
		r.chapters.Replace(cached)
		if n > 0 {
			rep.Log("restored %d chapter(s) from cache", n)
		}
	}

	cover := make(chan *book.Cover, 1)
	go func() {
		cover <- r.fetchCover(ctx)
	}()

	total := len(job.Tasks)

	// at most one checkpoint per completed task plus one per repair
	r.snapshots = make(chan []book.Entry, 2*total+1)
	r.written = make(chan struct{})
	go r.writeSnapshots(ctx)

	r.proc = newProcessor(s.deps.Site, s.deps.Fetcher, s.deps.Images, r.chapters, rep, s.cfg, total)
	r.proc.onCheckpoint = r.enqueue

	rep.Log("starting %d worker(s)...", min(s.cfg.Concurrency, max(total, 1)))
	runPool(ctx, job.Tasks, s.cfg.Concurrency, func(t book.Task) {
		r.proc.Process(ctx, t, false)
	})

	if ctx.Err() != nil {
		return nil, r.pause()
	}

	if err := r.sweep(ctx); err != nil {
		return nil, err
	}

	var c *book.Cover
	select {
	case c = <-cover:
	case <-ctx.Done():
		return nil, r.pause()
	}

	rep.Log("all tasks finished")
	bundle := r.assemble(c)

	r.drain()
	s.deps.Cache.Clear(context.WithoutCancel(ctx), job.BookID)

	rep.BundleReady(bundle)
	return bundle, nil
}

// sweep retries missing and image-incomplete tasks one at a time.
func (r *run) sweep(ctx context.Context) error {
	rep := r.deps.Reporter
	rep.Log("checking chapter integrity...")

	var pending []book.Task
	for _, t := range r.job.Tasks {
		if !r.chapters.HasComplete(t.Index, r.cfg.ImagesEnabled) {
			pending = append(pending, t)
		}
	}

	if len(pending) == 0 {
		rep.Log("integrity check passed")
		return nil
	}

	rep.Log("%d chapter(s) missing or incomplete, repairing...", len(pending))
	for i, t := range pending {
		if ctx.Err() != nil {
			return r.pause()
		}

		rep.Log("repair [%d/%d] chapter %d...", i+1, len(pending), t.Index+1)
		if r.proc.Process(ctx, t, true) == Cancelled {
			return r.pause()
		}
		r.enqueue(r.chapters.Snapshot())

		if !abort.Sleep(ctx, r.cfg.RepairPause) {
			return r.pause()
		}
	}

	return nil
}

// pause persists the map synchronously and reports the run as paused.
func (r *run) pause() error {
	r.drain()

	rep := r.deps.Reporter
	rep.Log("saving progress...")
	r.deps.Cache.Save(context.Background(), r.job.BookID, r.chapters.Snapshot())
	rep.Log("download cancelled, progress saved")

	return ErrPaused
}

// enqueue hands a snapshot to the writer. It never blocks: the channel
// holds every snapshot a run can produce.
func (r *run) enqueue(snap []book.Entry) {
	r.snapshots <- snap
}

func (r *run) writeSnapshots(ctx context.Context) {
	defer close(r.written)
	for snap := range r.snapshots {
		r.deps.Cache.Save(context.WithoutCancel(ctx), r.job.BookID, snap)
	}
}

// drain waits until every queued snapshot is saved. No snapshot may be
// queued afterwards.
func (r *run) drain() {
	r.drainOnce.Do(func() { close(r.snapshots) })
	<-r.written
}

func (r *run) fetchCover(ctx context.Context) *book.Cover {
	if r.job.CoverURL == "" {
		return nil
	}

	rep := r.deps.Reporter
	rep.Log("fetching cover...")

	resp, err := r.deps.Fetcher.Fetch(ctx, r.job.CoverURL, fetch.Options{
		Timeout:   r.cfg.CoverTimeout,
		Anonymous: true,
		Accept:    "image/*",
	})
	if err != nil {
		rep.Log("cover skipped: %v", err)
		return nil
	}

	if len(resp.Body) < r.cfg.CoverMinSize {
		rep.Log("cover too small (%d bytes), ignored", len(resp.Body))
		return nil
	}

	ct := resp.ContentType
	if ct == "" {
		ct = http.DetectContentType(resp.Body)
	}

	c := &book.Cover{Data: resp.Body, Ext: "jpg", MediaType: "image/jpeg"}
	if strings.Contains(ct, "png") {
		c.Ext, c.MediaType = "png", "image/png"
	}

	rep.Log("cover downloaded")
	return c
}

// assemble builds the bundle in task index order, one entry per task.
func (r *run) assemble(cover *book.Cover) *book.Bundle {
	tasks := append([]book.Task(nil), r.job.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Index < tasks[j].Index })

	var text strings.Builder
	text.WriteString(r.job.Intro)

	chapters := make([]book.BundleChapter, 0, len(tasks))
	for _, t := range tasks {
		rec, ok := r.chapters.Get(t.Index)
		if !ok {
			fmt.Fprintf(&text, "Chapter %d failed to download\n\n", t.Index+1)
			chapters = append(chapters, book.BundleChapter{
				Index:   t.Index,
				Title:   fmt.Sprintf("Chapter %d (missing)", t.Index+1),
				Content: "Content could not be downloaded.",
				Missing: true,
			})
			continue
		}

		text.WriteString(rec.TextSegment)
		chapters = append(chapters, book.BundleChapter{
			Index:   t.Index,
			Title:   rec.Title,
			Content: rec.Content,
			Images:  rec.Images,
		})
	}

	return &book.Bundle{
		Text:     text.String(),
		Chapters: chapters,
		Meta: book.Metadata{
			Title:    r.job.Title,
			RawTitle: r.job.RawTitle,
			Author:   r.job.Author,
			Cover:    cover,
		},
	}
}
