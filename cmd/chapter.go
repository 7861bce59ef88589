package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/brogergvhs/noveld/internal/abort"
	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/export"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/imagepipe"
	"github.com/brogergvhs/noveld/internal/providers"
	"github.com/brogergvhs/noveld/internal/providers/esj"
	"github.com/brogergvhs/noveld/internal/ui"
	"github.com/brogergvhs/noveld/internal/util"

	"github.com/spf13/cobra"
)

var chapterFormat string

func init() {
	chapterCmd := &cobra.Command{
		Use:   "chapter <url>",
		Short: "Download a single chapter page without the batch engine",
		Args:  cobra.ExactArgs(1),
		RunE:  runChapter,
	}

	chapterCmd.Flags().StringVar(&chapterFormat, "format", "txt", "output formats: txt, epub, html, md or all")
	chapterCmd.Flags().StringVar(&flagOutput, "output", "", "output folder")
	chapterCmd.Flags().BoolVar(&flagNoImages, "no-images", false, "strip images instead of embedding them")
	chapterCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string")
	chapterCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies")
	chapterCmd.Flags().BoolVar(&flagCloudflare, "cloudflare", false, "enable the Cloudflare bypass transport")

	rootCmd.AddCommand(chapterCmd)
}

func runChapter(cmd *cobra.Command, args []string) error {
	formats, err := export.ParseFormats(chapterFormat)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logSvc := ui.NewLogger(cfg.Debug)

	ctrl := abort.NewController()
	ctx := ctrl.Reset(cmd.Context())
	stop := util.SetupInterruptHandler(cfg.Output, ctrl.Abort)
	defer stop()

	client, err := newFetcher(cfg, logSvc, nil)
	if err != nil {
		return err
	}

	var images chapterImages
	if cfg.DownloadImages {
		images = newImagePipeline(cfg, client, logSvc)
	}

	b, err := fetchSingleChapter(ctx, client, esj.New(), args[0], images)
	if err != nil {
		if ctrl.Aborted() {
			fmt.Println("Cancelled.")
			return nil
		}
		return err
	}

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	for _, f := range formats {
		path, err := export.WriteFile(cfg.Output, b, f)
		if err != nil {
			return err
		}
		fmt.Println("Saved:", path)
	}
	return nil
}

type chapterImages interface {
	Process(ctx context.Context, markup string, chapterIndex int, baseURL string) imagepipe.Result
}

// fetchSingleChapter turns one chapter page into a one-chapter bundle. A nil
// images processor strips the pictures.
func fetchSingleChapter(ctx context.Context, f fetch.Fetcher, ext providers.Extractor, pageURL string, images chapterImages) (*book.Bundle, error) {
	resp, err := f.Fetch(ctx, pageURL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	ch := ext.ParseChapter(string(resp.Body), "")
	if ch.Title == "" {
		ch.Title = "chapter"
	}

	bc := book.BundleChapter{Title: ch.Title}
	if images != nil {
		res := images.Process(ctx, ch.Markup, 0, resp.URL)
		if res.Cancelled {
			return nil, fetch.ErrUserAborted
		}
		bc.Content, bc.Images = res.Markup, res.Images
	} else {
		bc.Content = imagepipe.StripImages(ch.Markup)
	}

	return &book.Bundle{
		Text:     fmt.Sprintf("%s\n\n%s\n\n%s\n\n", ch.Title, ch.Author, ch.Text),
		Chapters: []book.BundleChapter{bc},
		Meta: book.Metadata{
			Title:    esj.SanitizeFileName(ch.Title),
			RawTitle: ch.Title,
			Author:   ch.Author,
		},
	}, nil
}
