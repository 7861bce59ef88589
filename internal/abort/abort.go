// Package abort implements the run-wide cancellation signal shared by every
// suspended operation of a download.
package abort

import (
	"context"
	"sync"
	"time"

	"github.com/brogergvhs/noveld/internal/book"
)

// Controller owns the cancellation signal of the current run. Aborting is
// idempotent and safe from any goroutine.
type Controller struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool
}

func NewController() *Controller {
	c := &Controller{}
	c.Reset(context.Background())
	return c
}

// Reset starts a fresh signal derived from parent and clears the abort flag.
// The previous signal, if any, is released.
func (c *Controller) Reset(parent context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.aborted = false

	return ctx
}

// Abort requests cancellation of the current run.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.aborted = true
	c.cancel()
}

// Aborted reports whether Abort was called since the last Reset.
func (c *Controller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.aborted
}

// Sleep waits for d or until ctx is done. It returns false when the wait was
// cut short by cancellation.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunState is the process-wide state of the downloader.
type RunState struct {
	Controller *Controller

	mu            sync.Mutex
	originalTitle string
	lastBundle    *book.Bundle
}

func NewRunState(title string) *RunState {
	return &RunState{
		Controller:    NewController(),
		originalTitle: title,
	}
}

func (s *RunState) OriginalTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.originalTitle
}

func (s *RunState) SetOriginalTitle(t string) {
	s.mu.Lock()
	s.originalTitle = t
	s.mu.Unlock()
}

// LastBundle returns the result of the last successful run.
func (s *RunState) LastBundle() *book.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastBundle
}

func (s *RunState) SetLastBundle(b *book.Bundle) {
	s.mu.Lock()
	s.lastBundle = b
	s.mu.Unlock()
}

// ClearLastBundle drops the result once it has been exported.
func (s *RunState) ClearLastBundle() {
	s.SetLastBundle(nil)
}
