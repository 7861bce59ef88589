package ui

import (
	"fmt"
	"sync/atomic"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/util"
)

type Stats struct {
	TotalChapters   atomic.Int64
	MissingChapters atomic.Int64
	TotalImages     atomic.Int64
	TotalBytes      atomic.Int64
}

// Record adds the chapters and images of b.
func (s *Stats) Record(b *book.Bundle) {
	s.TotalChapters.Add(int64(len(b.Chapters)))
	s.MissingChapters.Add(int64(b.MissingCount()))

	for _, ch := range b.Chapters {
		s.TotalImages.Add(int64(len(ch.Images)))
		for _, img := range ch.Images {
			s.TotalBytes.Add(int64(len(img.Data)))
		}
	}
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d chapters (%d missing), %d images, %s of images",
		s.TotalChapters.Load(),
		s.MissingChapters.Load(),
		s.TotalImages.Load(),
		util.Human(s.TotalBytes.Load()),
	)
}
