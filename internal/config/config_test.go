package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "noveld")
}

func TestLoadMerged_NoProfile(t *testing.T) {
	root := isolate(t)

	cfg, src, err := LoadMerged(Options{Concurrency: 42, NoImages: true})
	require.NoError(t, err)

	assert.Contains(t, src, "default config in memory")
	assert.Equal(t, 10, cfg.Concurrency)
	assert.False(t, cfg.DownloadImages)
	assert.Equal(t, ".", cfg.Output)
	assert.Equal(t, filepath.Join(root, "cache.db"), cfg.CachePath)
}

func TestLoadMerged_ProfileAndOverrides(t *testing.T) {
	isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)

	yml := "output: books\nconcurrency: 0\nformats: epub\ntuning:\n  backoff: 500ms\n  attempts: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, src, err := LoadMerged(Options{Output: "elsewhere", Cloudflare: true})
	require.NoError(t, err)

	assert.Equal(t, path, src)
	assert.Equal(t, "elsewhere", cfg.Output)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.True(t, cfg.DownloadImages)
	assert.True(t, cfg.CloudflareBypass)
	assert.Equal(t, "epub", cfg.Formats)

	dc := cfg.DownloaderConfig()
	assert.Equal(t, 500*time.Millisecond, dc.Backoff)
	assert.Equal(t, 5, dc.Attempts)
	assert.True(t, dc.ImagesEnabled)
}

func TestLoadMerged_TuningReachesEngine(t *testing.T) {
	isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)

	yml := `tuning:
  stagger_min: 20ms
  stagger_max: 80ms
  cover_timeout: 5s
  cover_min_size: 512
  image_backoff: 1s
  image_threshold: 204800
  image_max_width: 1200
  image_quality: 85
  image_max_pixels: 1000000
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, _, err := LoadMerged(Options{})
	require.NoError(t, err)

	dc := cfg.DownloaderConfig()
	assert.Equal(t, 20*time.Millisecond, dc.StaggerMin)
	assert.Equal(t, 80*time.Millisecond, dc.StaggerMax)
	assert.Equal(t, 5*time.Second, dc.CoverTimeout)
	assert.Equal(t, 512, dc.CoverMinSize)

	ic := cfg.ImageOptions()
	assert.Equal(t, time.Second, ic.Backoff)
	assert.Equal(t, 204800, ic.Threshold)
	assert.Equal(t, 1200, ic.MaxWidth)
	assert.Equal(t, 85, ic.Quality)
	assert.Equal(t, 1000000, ic.MaxPixels)
	assert.Zero(t, ic.Timeout)
}

func TestLoadMerged_IgnoreConfig(t *testing.T) {
	isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("output: profile\n"), 0o644))

	cfg, src, err := LoadMerged(Options{IgnoreConfig: true})
	require.NoError(t, err)
	assert.Equal(t, "(ignored config)", src)
	assert.Equal(t, ".", cfg.Output)
}

func TestSet(t *testing.T) {
	c := DefaultConfig()

	require.NoError(t, c.Set("concurrency", "0"))
	assert.Equal(t, 3, c.Concurrency)
	require.NoError(t, c.Set("concurrency", "-4"))
	assert.Equal(t, 1, c.Concurrency)
	require.NoError(t, c.Set("download_images", "false"))
	assert.False(t, c.DownloadImages)
	require.NoError(t, c.Set("formats", "txt,md"))
	assert.Equal(t, "txt,md", c.Formats)

	assert.Error(t, c.Set("formats", "pdf"))
	assert.Error(t, c.Set("debug", "maybe"))
	assert.Error(t, c.Set("concurrency", "many"))
	assert.Error(t, c.Set("nope", "1"))
}

func TestProfiles(t *testing.T) {
	isolate(t)

	_, err := ActiveConfigPath()
	assert.ErrorIs(t, err, ErrNoConfig)

	_, err = InitDefaultConfig()
	require.NoError(t, err)
	_, err = InitDefaultConfig()
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = CreateConfig("fast")
	require.NoError(t, err)
	_, err = CreateConfig("fast")
	assert.Error(t, err)
	_, err = CreateConfig("../x")
	assert.Error(t, err)

	require.NoError(t, SwitchConfig("fast"))
	assert.Error(t, SwitchConfig("missing"))

	path, err := SetValue("concurrency", "7")
	require.NoError(t, err)
	assert.Equal(t, profilePath("fast"), path)

	cfg, err := loadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Concurrency)

	list, err := ListConfigs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Label)
	assert.False(t, list[0].Active)
	assert.True(t, list[1].Active)

	_, err = ResetConfig("fast")
	require.NoError(t, err)
	cfg, err = loadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Concurrency)

	assert.Error(t, RemoveConfig("Default"))
	require.NoError(t, RemoveConfig("fast"))
	label, err := CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, "Default", label)
}
