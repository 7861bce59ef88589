// Package book holds the data shared by the acquisition engine and the
// exporters: chapter tasks, acquired records and the assembled bundle.
package book

// Task identifies one chapter to acquire. Index is the chapter's position in
// the original listing and is unique within a run.
type Task struct {
	Index int
	URL   string
	Title string
}

// Image is a downloaded payload referenced from chapter markup by ID.
type Image struct {
	ID        string `json:"id"`
	Data      []byte `json:"data"`
	MediaType string `json:"mediaType"`
}

// Record is the stored result of acquiring one chapter.
type Record struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	TextSegment   string  `json:"txtSegment"`
	Images        []Image `json:"images,omitempty"`
	ImageFailures int     `json:"imageErrors,omitempty"`
	URL           string  `json:"url,omitempty"`
	NonSite       bool    `json:"nonSite,omitempty"`
}

// Complete reports whether the record needs no further repair.
func (r Record) Complete(imagesEnabled bool) bool {
	return r.ImageFailures == 0 || !imagesEnabled
}

// Cover is the book cover image.
type Cover struct {
	Data      []byte
	Ext       string
	MediaType string
}

// Metadata describes the book being exported.
type Metadata struct {
	Title    string // sanitized for file names
	RawTitle string
	Author   string
	Cover    *Cover
}

// BundleChapter is one positional entry of the final book.
type BundleChapter struct {
	Index   int
	Title   string
	Content string
	Images  []Image
	Missing bool
}

// Bundle is the export-ready representation of a whole book.
type Bundle struct {
	Text     string
	Chapters []BundleChapter
	Meta     Metadata
}

// MissingCount returns the number of placeholder chapters.
func (b *Bundle) MissingCount() int {
	n := 0
	for _, c := range b.Chapters {
		if c.Missing {
			n++
		}
	}
	return n
}
