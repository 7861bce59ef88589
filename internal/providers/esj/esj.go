// Package esj implements providers.Site for ESJ Zone book and forum pages.
package esj

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/providers"
)

var (
	reChapterPath = regexp.MustCompile(`/forum/\d+/\d+\.html`)
	reDetailID    = regexp.MustCompile(`/detail/(\d+)`)
	reForumID     = regexp.MustCompile(`/forum/(\d+)`)
	reAddLink     = regexp.MustCompile(`/forum/(\d+)/add\.html`)
	reDigits      = regexp.MustCompile(`^\d+$`)
	reSpaces      = regexp.MustCompile(`[ \t]+`)
	reAuthorLabel = regexp.MustCompile(`作者[:：]`)
	reBlankRuns   = regexp.MustCompile(`(\n\s*){3,}`)
)

const (
	unnamedBook   = "未命名小说"
	unknownAuthor = "未知作者"
)

// Site is the ESJ Zone implementation.
type Site struct{}

func New() *Site {
	return &Site{}
}

var _ providers.Site = (*Site)(nil)

func (s *Site) Name() string { return "esjzone" }

func (s *Site) IsChapterURL(u string) bool {
	return strings.Contains(u, "esjzone") && reChapterPath.MatchString(u)
}

func (s *Site) BookID(pageURL string) string {
	if m := reDetailID.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	if m := reForumID.FindStringSubmatch(pageURL); m != nil {
		return "forum_" + m[1]
	}

	return "unknown"
}

// ParseChapter extracts title, author and body of a chapter page.
func (s *Site) ParseChapter(html, fallbackTitle string) providers.Chapter {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return providers.Chapter{Title: fallbackTitle}
	}

	title := strings.TrimSpace(doc.Find("h2").First().Text())
	if title == "" {
		title = fallbackTitle
	}

	out := providers.Chapter{
		Title:  title,
		Author: strings.TrimSpace(doc.Find(".single-post-meta div").First().Text()),
	}

	content := doc.Find(".forum-content").First()
	if content.Length() == 0 {
		return out
	}

	out.Markup, _ = content.Html()
	out.Markup = strings.TrimSpace(out.Markup)
	out.Text = stripLeadingTitle(InnerText(content), title)

	return out
}

// ParseBook extracts the book description from a detail page.
func (s *Site) ParseBook(doc *goquery.Document, pageURL string) providers.Metadata {
	name := strings.TrimSpace(doc.Find(".book-detail h2.text-normal").First().Text())
	if name == "" {
		name = strings.TrimSpace(strings.Split(doc.Find("title").First().Text(), " - ")[0])
	}
	if name == "" {
		name = unnamedBook
	}

	author := unknownAuthor
	var info strings.Builder

	doc.Find(".book-detail ul.book-detail li").Each(func(_ int, li *goquery.Selection) {
		if li.HasClass("hidden-md-up") || li.Find(".rating-stars").Length() > 0 {
			return
		}

		text := strings.TrimSpace(reSpaces.ReplaceAllString(li.Text(), " "))
		if text == "" {
			return
		}

		if strings.Contains(text, "作者") {
			if a := li.Find("a").First(); a.Length() > 0 {
				author = strings.TrimSpace(a.Text())
			} else {
				author = strings.TrimSpace(reAuthorLabel.ReplaceAllString(text, ""))
			}
		}

		info.WriteString(text)
		info.WriteString("\n")
	})

	var links strings.Builder
	doc.Find(".out-link a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		fmt.Fprintf(&links, "%s：\n%s\n", strings.TrimSpace(a.Text()), resolve(pageURL, href))
	})

	var coverURL string
	if src, ok := doc.Find(".product-gallery img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		coverURL = resolve(pageURL, strings.TrimSpace(src))
	}

	desc := description(doc.Find("#details .description").First())

	intro := fmt.Sprintf("書名: %s\nURL: %s\n%s\n", name, pageURL, strings.TrimSpace(info.String()))
	if links.Len() > 0 {
		intro += "\n" + links.String()
	}
	intro += "\n" + desc + "\n\n"

	return providers.Metadata{
		BookName:    SanitizeFileName(name),
		RawBookName: name,
		Author:      author,
		CoverURL:    coverURL,
		Intro:       intro,
	}
}

func description(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	var text string
	if ps := sel.Find("p"); ps.Length() > 0 {
		lines := make([]string, 0, ps.Length())
		ps.Each(func(_ int, p *goquery.Selection) {
			lines = append(lines, strings.TrimSpace(p.Text()))
		})
		text = strings.Join(lines, "\n")
	} else {
		text = InnerText(sel)
	}

	return strings.TrimSpace(reBlankRuns.ReplaceAllString(text, "\n\n"))
}

// ListTasks reads the chapter list of a detail page.
func (s *Site) ListTasks(doc *goquery.Document, pageURL string) []book.Task {
	var out []book.Task

	doc.Find("#chapterList a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title, ok := a.Attr("data-title")
		if !ok || strings.TrimSpace(title) == "" {
			title = a.Text()
		}

		out = append(out, book.Task{
			Index: len(out),
			URL:   resolve(pageURL, strings.TrimSpace(href)),
			Title: strings.TrimSpace(title),
		})
	})

	return out
}

// BookPageURL returns the "view all" link of a chapter page.
func (s *Site) BookPageURL(doc *goquery.Document, pageURL string) (string, bool) {
	href, ok := doc.Find(".entry-navigation .view-all").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return resolve(pageURL, strings.TrimSpace(href)), true
}

// ForumListURL builds the JSON listing endpoint of a forum board.
func (s *Site) ForumListURL(doc *goquery.Document, pageURL string) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return "", false
	}

	var bid string
	if href, ok := doc.Find(`a[href*="/add.html"]`).First().Attr("href"); ok {
		if m := reAddLink.FindStringSubmatch(href); m != nil {
			bid = m[1]
		}
	}

	if bid == "" {
		parts := strings.FieldsFunc(base.Path, func(r rune) bool { return r == '/' })
		for i := len(parts) - 1; i >= 0; i-- {
			p := strings.TrimSuffix(parts[i], ".html")
			if reDigits.MatchString(p) {
				bid = p
				break
			}
		}
	}

	if bid == "" {
		return "", false
	}

	q := url.Values{}
	q.Set("bid", bid)
	q.Set("limit", "9999")
	q.Set("offset", "0")
	q.Set("sort", "cdate")
	q.Set("order", "asc")

	return fmt.Sprintf("%s://%s/inc/forum_list_data.php?%s", base.Scheme, base.Host, q.Encode()), true
}

type forumResponse struct {
	Total int `json:"total"`
	Rows  []struct {
		Subject string `json:"subject"`
	} `json:"rows"`
}

// ParseForumList turns the listing endpoint's JSON into tasks.
func (s *Site) ParseForumList(body []byte, pageURL string) ([]book.Task, error) {
	var resp forumResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("forum list: %w", err)
	}

	var out []book.Task
	for _, row := range resp.Rows {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(row.Subject))
		if err != nil {
			continue
		}

		a := doc.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}

		out = append(out, book.Task{
			Index: len(out),
			URL:   resolve(pageURL, strings.TrimSpace(href)),
			Title: strings.TrimSpace(a.Text()),
		})
	}

	return out, nil
}

func resolve(pageURL, raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return raw
	}

	if u.IsAbs() {
		return u.String()
	}

	base, err := url.Parse(pageURL)
	if err != nil || base == nil {
		return raw
	}

	return base.ResolveReference(u).String()
}
