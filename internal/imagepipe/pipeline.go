// Package imagepipe downloads the images embedded in a chapter's markup and
// rewrites the markup to reference the stored payloads.
package imagepipe

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"
	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/fetch"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultAttempts  = 3
	DefaultBackoff   = 500 * time.Millisecond
	DefaultThreshold = 100 * 1024
	DefaultMaxWidth  = 800
	DefaultQuality   = 70
	DefaultMaxPixels = 50_000_000

	failureHint = " (image download failed, using remote link)"
)

// ErrURLFormat marks an image reference that cannot be turned into an
// absolute http(s) URL.
var ErrURLFormat = errors.New("URL format error")

// Options tunes a Pipeline. Zero fields take the defaults above.
type Options struct {
	Timeout   time.Duration
	Attempts  uint
	Backoff   time.Duration
	Threshold int
	MaxWidth  int
	Quality   int
	// MaxPixels bounds the declared size of an image that is decoded for
	// recompression.
	MaxPixels int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Attempts == 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Result is the outcome of processing one chapter.
type Result struct {
	Markup   string
	Images   []book.Image
	Failures int
	// Cancelled is set when the run was aborted before every image was
	// visited. Markup and Images are then partial.
	Cancelled bool
}

type Pipeline struct {
	fetcher fetch.Fetcher
	opts    Options
	log     Logger
}

func New(f fetch.Fetcher, opts Options, log Logger) *Pipeline {
	if log == nil {
		log = nopLogger{}
	}
	return &Pipeline{fetcher: f, opts: opts.withDefaults(), log: log}
}

// Process visits every <img> of markup in document order. Per-image errors
// are counted in Result.Failures and never abort the chapter; a markup
// parse error returns the markup untouched.
func (p *Pipeline) Process(ctx context.Context, markup string, chapterIndex int, baseURL string) Result {
	root, err := parseFragment(markup)
	if err != nil {
		return Result{Markup: markup}
	}

	var res Result
	imgs := root.Find("img")
	p.log.Debugf("chapter %d: %d image(s)\n", chapterIndex, imgs.Length())

	imgs.EachWithBreak(func(i int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}

		abs, err := absoluteURL(baseURL, src)
		if err != nil {
			p.log.Debugf("chapter %d image %d: %v: %s\n", chapterIndex, i, err, src)
			res.Failures++
			markFailed(img, "")
			return true
		}

		resp, err := p.download(ctx, abs)
		if err != nil {
			if ctx.Err() != nil || fetch.IsAborted(err) {
				res.Cancelled = true
				return false
			}
			p.log.Debugf("chapter %d image %d failed: %v\n", chapterIndex, i, err)
			res.Failures++
			markFailed(img, abs)
			return true
		}

		data, mediaType := resp.Body, mediaTypeOf(resp)
		if len(data) > p.opts.Threshold {
			if small, ok := Compress(data, p.opts.MaxWidth, p.opts.Quality, p.opts.MaxPixels); ok {
				data, mediaType = small, "image/jpeg"
			}
		}

		id := fmt.Sprintf("img_%d_%d.%s", chapterIndex, i, extOf(mediaType))
		res.Images = append(res.Images, book.Image{ID: id, Data: data, MediaType: mediaType})

		img.SetAttr("src", id)
		img.RemoveAttr("srcset")
		img.RemoveAttr("loading")
		img.SetAttr("style", "max-width:100%")

		return true
	})

	res.Markup, err = root.Html()
	if err != nil {
		res.Markup = markup
	}

	return res
}

func (p *Pipeline) download(ctx context.Context, u string) (*fetch.Response, error) {
	var resp *fetch.Response

	err := retry.Do(
		func() error {
			r, err := p.fetcher.Fetch(ctx, u, fetch.Options{
				Timeout:   p.opts.Timeout,
				Anonymous: true,
				Accept:    "image/*",
			})
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.opts.Attempts),
		retry.Delay(p.opts.Backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !fetch.IsAborted(err) }),
	)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func markFailed(img *goquery.Selection, abs string) {
	img.RemoveAttr("srcset")
	img.RemoveAttr("loading")
	img.SetAttr("style", "max-width:100%")
	if abs != "" {
		img.SetAttr("src", abs)
	}
	img.SetAttr("alt", img.AttrOr("alt", "")+failureHint)
}

// StripImages removes every <img> from markup. It never fails: unparsable
// markup is returned as is.
func StripImages(markup string) string {
	root, err := parseFragment(markup)
	if err != nil {
		return markup
	}

	root.Find("img").Remove()

	out, err := root.Html()
	if err != nil {
		return markup
	}
	return out
}

func parseFragment(markup string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="noveld-fragment">` + markup + `</div>`))
	if err != nil {
		return nil, err
	}

	root := doc.Find("#noveld-fragment").First()
	if root.Length() == 0 {
		return nil, errors.New("fragment root lost")
	}

	return root, nil
}

func absoluteURL(baseURL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", ErrURLFormat
	}

	if !u.IsAbs() {
		base, err := url.Parse(baseURL)
		if err != nil || !base.IsAbs() {
			return "", ErrURLFormat
		}
		u = base.ResolveReference(u)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrURLFormat
	}

	return u.String(), nil
}

func mediaTypeOf(resp *fetch.Response) string {
	if mt, _, err := mime.ParseMediaType(resp.ContentType); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	return http.DetectContentType(resp.Body)
}

func extOf(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}
