package cmd

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/noveld/internal/abort"
	"github.com/brogergvhs/noveld/internal/cache"
	"github.com/brogergvhs/noveld/internal/config"
	"github.com/brogergvhs/noveld/internal/downloader"
	"github.com/brogergvhs/noveld/internal/export"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/imagepipe"
	"github.com/brogergvhs/noveld/internal/providers"
	"github.com/brogergvhs/noveld/internal/providers/esj"
	"github.com/brogergvhs/noveld/internal/ui"
	"github.com/brogergvhs/noveld/internal/util"

	"github.com/spf13/cobra"
)

var (
	// selection
	flagURL   string
	flagRange string
	flagList  string

	// runtime
	flagOutput      string
	flagConcurrency int
	flagNoImages    bool
	flagFormat      string
	flagCachePath   string
	flagDryRun      bool
	flagFresh       bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
	flagCloudflare bool
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download a whole book. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "book detail, forum or chapter page URL")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of chapters by position (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter positions (e.g. 1,3,5)")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder")
	downloadCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "parallel chapter downloads (1-10)")
	downloadCmd.Flags().BoolVar(&flagNoImages, "no-images", false, "strip images instead of embedding them")
	downloadCmd.Flags().StringVar(&flagFormat, "format", "", "output formats: txt, epub, html, md or all (comma separated)")
	downloadCmd.Flags().StringVar(&flagCachePath, "cache", "", "path of the resume cache database")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "list the chapters that would be downloaded")
	downloadCmd.Flags().BoolVar(&flagFresh, "fresh", false, "discard saved progress for this book first")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	downloadCmd.Flags().BoolVar(&flagCloudflare, "cloudflare", false, "enable the Cloudflare bypass transport")

	rootCmd.AddCommand(downloadCmd)
}

func loadConfig() (*config.Config, string, error) {
	return config.LoadMerged(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Output:       flagOutput,
		Concurrency:  flagConcurrency,
		NoImages:     flagNoImages,
		Formats:      flagFormat,
		CachePath:    flagCachePath,
		DefaultURL:   flagURL,
		DefaultRange: flagRange,
		DefaultList:  flagList,
		Cookie:       flagCookie,
		CookieFile:   flagCookieFile,
		UserAgent:    flagUserAgent,
		Cloudflare:   flagCloudflare,
	})
}

func newFetcher(cfg *config.Config, log *ui.Logger, onBytes func(int64)) (*fetch.Client, error) {
	hc, err := fetch.NewHTTPClient(fetch.ClientOptions{
		UserAgent:        cfg.UserAgent,
		Cookie:           cfg.Cookie,
		CookieFile:       cfg.CookieFile,
		CloudflareBypass: cfg.CloudflareBypass,
		DebugLogger:      log,
	})
	if err != nil {
		return nil, err
	}
	return fetch.NewClient(hc, onBytes), nil
}

func newImagePipeline(cfg *config.Config, f fetch.Fetcher, log *ui.Logger) *imagepipe.Pipeline {
	return imagepipe.New(f, cfg.ImageOptions(), log)
}

func openCache(cfg *config.Config, log *ui.Logger) (*cache.Store, error) {
	opts := []cache.Option{cache.WithLogger(log)}
	if cfg.Tuning.CacheExpiry > 0 {
		opts = append(opts, cache.WithExpiry(cfg.Tuning.CacheExpiry))
	}
	return cache.Open(cfg.CachePath, opts...)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, usedPath, err := loadConfig()
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}
	if cfg.Debug {
		fmt.Println("Full config:")
		cfg.Print()
		fmt.Println()
	}

	if cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	var formats []export.Format
	if cfg.Formats != "" {
		if formats, err = export.ParseFormats(cfg.Formats); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	site := esj.New()
	state := abort.NewRunState(site.Name())
	ctx := state.Controller.Reset(cmd.Context())

	stop := util.SetupInterruptHandler(cfg.Output, state.Controller.Abort)
	defer stop()

	var bar atomic.Pointer[ui.BookProgress]
	client, err := newFetcher(cfg, logSvc, func(n int64) {
		if p := bar.Load(); p != nil {
			p.AddBytes(n)
		}
	})
	if err != nil {
		return err
	}

	job, err := resolveJob(ctx, client, site, cfg.DefaultURL)
	if err != nil {
		if state.Controller.Aborted() {
			fmt.Println("Cancelled.")
			return nil
		}
		return err
	}
	state.SetOriginalTitle(job.RawTitle)

	if cfg.DefaultRange == "" && cfg.DefaultList == "" {
		fmt.Printf("Found %d chapters of %q.\n\n", len(job.Tasks), job.RawTitle)
	}

	job.Tasks = providers.Filter(job.Tasks, cfg.DefaultRange, cfg.DefaultList)
	if len(job.Tasks) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Printf("Dry-run: %d chapters selected.\n\n", len(job.Tasks))
		for _, t := range job.Tasks {
			fmt.Printf("%3d) %s\n    %s\n", t.Index+1, t.Title, t.URL)
		}
		return nil
	}

	store, err := openCache(cfg, logSvc)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	if flagFresh {
		store.Clear(ctx, job.BookID)
	}

	progress := ui.NewBookProgress(logSvc, os.Stdout, job.RawTitle, len(job.Tasks))
	bar.Store(progress)

	sched := downloader.New(downloader.Deps{
		Site:     site,
		Fetcher:  client,
		Images:   newImagePipeline(cfg, client, logSvc),
		Cache:    store,
		Reporter: progress,
	}, cfg.DownloaderConfig())

	start := time.Now()
	_, err = sched.Run(ctx, job)
	progress.Close()
	bar.Store(nil)

	if errors.Is(err, downloader.ErrPaused) {
		fmt.Printf("\n%s: download paused. Run the same command again to resume.\n", state.OriginalTitle())
		return nil
	}
	if err != nil {
		return err
	}
	// the engine hands the finished book to the progress view
	bundle := progress.Bundle()
	if bundle == nil {
		return fmt.Errorf("download finished without a book")
	}
	state.SetLastBundle(bundle)

	if formats == nil {
		if formats, err = chooseFormats(); err != nil {
			return err
		}
	}

	for _, f := range formats {
		path, err := export.WriteFile(cfg.Output, state.LastBundle(), f)
		if err != nil {
			logSvc.Errorf("%s export failed: %v\n", f, err)
			continue
		}
		fmt.Println("Saved:", path)
	}
	state.ClearLastBundle()

	stats := &ui.Stats{}
	stats.Record(bundle)

	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Book:     %s\n", state.OriginalTitle())
	fmt.Printf("Content:  %s\n", stats)
	fmt.Printf("Time:     %s\n", time.Since(start).Round(time.Second))
	fmt.Println("\nAll done.")

	return nil
}
