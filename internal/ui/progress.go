package ui

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/util"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// BookProgress renders one download run as a progress bar and receives the
// engine's log lines and final bundle.
type BookProgress struct {
	p   *mpb.Progress
	bar *mpb.Bar
	log *Logger

	prevOut io.Writer

	status atomic.Value
	total  atomic.Int64
	bytes  atomic.Int64

	start   time.Time
	elapsed atomic.Int64
	final   atomic.Bool

	mu     sync.Mutex
	bundle *book.Bundle
}

// NewBookProgress starts a bar on out for total chapters. While the bar is
// running, log lines are printed above it.
func NewBookProgress(log *Logger, out io.Writer, title string, total int) *BookProgress {
	p := mpb.New(
		mpb.WithWidth(40),
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120*time.Millisecond),
	)

	h := &BookProgress{p: p, log: log, start: time.Now()}
	h.status.Store(title)
	h.total.Store(int64(total))

	h.bar = p.New(
		int64(total),
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(_ decor.Statistics) string {
				return h.status.Load().(string) + "  "
			}),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d chapters", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return " | " + util.Human(h.bytes.Load())
			}),
			decor.Any(func(_ decor.Statistics) string {
				if h.final.Load() {
					return fmt.Sprintf(" | %ds", h.elapsed.Load())
				}
				return fmt.Sprintf(" | %ds", int(time.Since(h.start).Seconds()))
			}),
		),
	)

	if log != nil {
		h.prevOut = log.SetOutput(p)
	}

	return h
}

func (h *BookProgress) SetProgress(done, total int, status string) {
	if h.final.Load() {
		return
	}

	if status != "" {
		h.status.Store(status)
	}
	if total > 0 && int64(total) != h.total.Load() {
		h.total.Store(int64(total))
		h.bar.SetTotal(int64(total), false)
	}
	h.bar.SetCurrent(int64(done))
}

func (h *BookProgress) Log(format string, args ...any) {
	if h.log != nil {
		h.log.Logf(format, args...)
	}
}

// BundleReady keeps b and completes the bar.
func (h *BookProgress) BundleReady(b *book.Bundle) {
	h.mu.Lock()
	h.bundle = b
	h.mu.Unlock()

	h.markDone()
}

// Bundle returns the bundle handed over by the engine, or nil.
func (h *BookProgress) Bundle() *book.Bundle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bundle
}

// AddBytes is the byte counter fed by the HTTP client.
func (h *BookProgress) AddBytes(n int64) {
	h.bytes.Add(n)
}

func (h *BookProgress) markDone() {
	if h.final.Swap(true) {
		return
	}

	h.elapsed.Store(int64(time.Since(h.start).Seconds()))
	total := h.total.Load()
	h.bar.SetCurrent(total)
	h.bar.SetTotal(total, true)
}

// Close stops the bar, leaving it in place when the run did not finish,
// and restores the logger output.
func (h *BookProgress) Close() {
	if !h.final.Swap(true) {
		h.elapsed.Store(int64(time.Since(h.start).Seconds()))
		h.bar.Abort(false)
	}

	h.p.Wait()

	if h.log != nil && h.prevOut != nil {
		h.log.SetOutput(h.prevOut)
	}
}
