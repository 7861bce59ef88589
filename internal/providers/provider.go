// Package providers defines the page-specific collaborators of the engine:
// chapter extraction, book metadata and task listing for one site.
package providers

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/noveld/internal/book"
)

// Chapter is the extracted content of one chapter page. Missing fields are
// empty strings.
type Chapter struct {
	Title  string
	Author string
	Markup string
	Text   string
}

// Metadata is the extracted description of a book.
type Metadata struct {
	BookName    string // sanitized for file names
	RawBookName string
	Author      string
	CoverURL    string
	Intro       string
}

// Extractor turns a chapter page into structured fields. It never fails.
type Extractor interface {
	ParseChapter(html, fallbackTitle string) Chapter
}

// Site bundles everything the downloader needs to know about one website.
type Site interface {
	Extractor

	Name() string
	// IsChapterURL reports whether u is an in-site chapter page.
	IsChapterURL(u string) bool
	// BookID derives the cache key of a book from its page URL.
	BookID(pageURL string) string
	ParseBook(doc *goquery.Document, pageURL string) Metadata
	ListTasks(doc *goquery.Document, pageURL string) []book.Task
	// BookPageURL finds the book page linked from a chapter page.
	BookPageURL(doc *goquery.Document, pageURL string) (string, bool)
	// ForumListURL returns the listing endpoint for forum-style books.
	ForumListURL(doc *goquery.Document, pageURL string) (string, bool)
	ParseForumList(body []byte, pageURL string) ([]book.Task, error)
}
