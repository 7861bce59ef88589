package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brogergvhs/noveld/internal/downloader"
	"github.com/brogergvhs/noveld/internal/export"
	"github.com/brogergvhs/noveld/internal/imagepipe"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output         string `yaml:"output"`
	Concurrency    int    `yaml:"concurrency"`
	DownloadImages bool   `yaml:"download_images"`
	Formats        string `yaml:"formats"`
	CachePath      string `yaml:"cache_path"`
	Debug          bool   `yaml:"debug"`

	DefaultURL   string `yaml:"default_url"`
	DefaultRange string `yaml:"default_range"`
	DefaultList  string `yaml:"default_list"`

	Cookie           string `yaml:"cookie"`
	CookieFile       string `yaml:"cookie_file"`
	UserAgent        string `yaml:"user_agent"`
	CloudflareBypass bool   `yaml:"cloudflare_bypass"`

	Tuning Tuning `yaml:"tuning"`
}

// Tuning overrides the engine's timing constants. Zero values keep the
// built-in defaults.
type Tuning struct {
	Attempts      int           `yaml:"attempts,omitempty"`
	Backoff       time.Duration `yaml:"backoff,omitempty"`
	PageTimeout   time.Duration `yaml:"page_timeout,omitempty"`
	ImageTimeout  time.Duration `yaml:"image_timeout,omitempty"`
	ImageAttempts int           `yaml:"image_attempts,omitempty"`
	FlushEvery    int           `yaml:"flush_every,omitempty"`
	RepairPause   time.Duration `yaml:"repair_pause,omitempty"`
	CacheExpiry   time.Duration `yaml:"cache_expiry,omitempty"`

	StaggerMin   time.Duration `yaml:"stagger_min,omitempty"`
	StaggerMax   time.Duration `yaml:"stagger_max,omitempty"`
	CoverTimeout time.Duration `yaml:"cover_timeout,omitempty"`
	CoverMinSize int           `yaml:"cover_min_size,omitempty"`

	ImageBackoff   time.Duration `yaml:"image_backoff,omitempty"`
	ImageThreshold int           `yaml:"image_threshold,omitempty"`
	ImageMaxWidth  int           `yaml:"image_max_width,omitempty"`
	ImageQuality   int           `yaml:"image_quality,omitempty"`
	ImageMaxPixels int           `yaml:"image_max_pixels,omitempty"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool
	Output       string
	Concurrency  int
	NoImages     bool
	Formats      string
	CachePath    string
	DefaultURL   string
	DefaultRange string
	DefaultList  string
	Cookie       string
	CookieFile   string
	UserAgent    string
	Cloudflare   bool
}

func DefaultConfig() *Config {
	return &Config{
		Output:         ".",
		Concurrency:    downloader.DefaultConcurrency,
		DownloadImages: true,
		Formats:        "",
		CachePath:      "",
		Debug:          false,
	}
}

// DownloaderConfig maps c onto the engine settings.
func (c *Config) DownloaderConfig() downloader.Config {
	return downloader.Config{
		Concurrency:   c.Concurrency,
		ImagesEnabled: c.DownloadImages,
		Attempts:      c.Tuning.Attempts,
		Backoff:       c.Tuning.Backoff,
		PageTimeout:   c.Tuning.PageTimeout,
		StaggerMin:    c.Tuning.StaggerMin,
		StaggerMax:    c.Tuning.StaggerMax,
		FlushEvery:    c.Tuning.FlushEvery,
		RepairPause:   c.Tuning.RepairPause,
		CoverTimeout:  c.Tuning.CoverTimeout,
		CoverMinSize:  c.Tuning.CoverMinSize,
	}
}

// ImageOptions maps c onto the image pipeline settings.
func (c *Config) ImageOptions() imagepipe.Options {
	t := c.Tuning
	return imagepipe.Options{
		Timeout:   t.ImageTimeout,
		Attempts:  uint(max(t.ImageAttempts, 0)),
		Backoff:   t.ImageBackoff,
		Threshold: t.ImageThreshold,
		MaxWidth:  t.ImageMaxWidth,
		Quality:   t.ImageQuality,
		MaxPixels: t.ImageMaxPixels,
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `noveld config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Concurrency != 0 {
		c.Concurrency = o.Concurrency
	}
	if o.NoImages {
		c.DownloadImages = false
	}
	if o.Formats != "" {
		c.Formats = o.Formats
	}
	if o.CachePath != "" {
		c.CachePath = o.CachePath
	}
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultURL != "" {
		c.DefaultURL = o.DefaultURL
	}
	if o.DefaultRange != "" {
		c.DefaultRange = o.DefaultRange
	}
	if o.DefaultList != "" {
		c.DefaultList = o.DefaultList
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.Cloudflare {
		c.CloudflareBypass = true
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	c.Concurrency = downloader.ClampConcurrency(c.Concurrency)
	if c.CachePath == "" {
		c.CachePath = filepath.Join(ConfigRoot(), "cache.db")
	}
}

// Set assigns one key of c from its string form, as used by `config set`.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)

	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s expects true or false, got %q", key, value)
		}
		return b, nil
	}

	var err error
	switch key {
	case "output":
		c.Output = value
	case "concurrency":
		n, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("concurrency expects a number, got %q", value)
		}
		c.Concurrency = downloader.ClampConcurrency(n)
	case "download_images":
		c.DownloadImages, err = parseBool()
	case "formats":
		if value != "" {
			if _, ferr := export.ParseFormats(value); ferr != nil {
				return ferr
			}
		}
		c.Formats = value
	case "cache_path":
		c.CachePath = value
	case "debug":
		c.Debug, err = parseBool()
	case "default_url":
		c.DefaultURL = value
	case "default_range":
		c.DefaultRange = value
	case "default_list":
		c.DefaultList = value
	case "cookie":
		c.Cookie = value
	case "cookie_file":
		c.CookieFile = value
	case "user_agent":
		c.UserAgent = value
	case "cloudflare_bypass":
		c.CloudflareBypass, err = parseBool()
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	return err
}

func (c *Config) Print() {
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	fmt.Printf(" -concurrency: %d\n", c.Concurrency)
	fmt.Printf(" -download_images: %t\n", c.DownloadImages)
	if c.Formats != "" {
		fmt.Printf(" -formats: %s\n", c.Formats)
	}
	if c.CachePath != "" {
		fmt.Printf(" -cache_path: %s\n", c.CachePath)
	}
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.DefaultURL != "" {
		fmt.Printf(" -url: %s\n", c.DefaultURL)
	}
	if c.DefaultRange != "" {
		fmt.Printf(" -range: %s\n", c.DefaultRange)
	}
	if c.DefaultList != "" {
		fmt.Printf(" -list: %s\n", c.DefaultList)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.CloudflareBypass {
		fmt.Printf(" -cloudflare_bypass: %t\n", c.CloudflareBypass)
	}
}
