package downloader

import (
	"context"
	"sync/atomic"

	"github.com/brogergvhs/noveld/internal/book"
	"golang.org/x/sync/errgroup"
)

// runPool starts workers that pull tasks from a shared cursor until the
// queue is drained or ctx is cancelled. A worker finishes its current task
// before checking ctx again.
func runPool(ctx context.Context, tasks []book.Task, workers int, fn func(book.Task)) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var next atomic.Int64
	var g errgroup.Group

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				i := int(next.Add(1) - 1)
				if i >= len(tasks) {
					return nil
				}
				fn(tasks[i])
			}
			return nil
		})
	}

	_ = g.Wait()
}
