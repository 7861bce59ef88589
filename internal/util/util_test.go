package util

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuman(t *testing.T) {
	assert.Equal(t, "0 B", Human(0))
	assert.Equal(t, "1023 B", Human(1023))
	assert.Equal(t, "1.00 KB", Human(1024))
	assert.Equal(t, "1.50 MB", Human(3*1024*1024/2))
	assert.Equal(t, "2.00 GB", Human(2<<30))
	assert.Equal(t, "1024.00 TB", Human(1<<50))
}

func TestWatchInterrupts(t *testing.T) {
	sig := make(chan os.Signal, 2)
	done := make(chan struct{})
	aborted := make(chan struct{}, 2)
	exited := make(chan struct{})

	go watchInterrupts(sig, done,
		func() { aborted <- struct{}{} },
		func() { close(exited) },
	)

	sig <- syscall.SIGINT
	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("first interrupt did not abort")
	}

	sig <- syscall.SIGTERM
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("second interrupt did not exit")
	}
	assert.Len(t, aborted, 0)
}

func TestWatchInterrupts_Stop(t *testing.T) {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		watchInterrupts(sig, done, func() {}, func() { t.Error("unexpected exit") })
		close(finished)
	}()

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestCleanupUnfinishedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.epub.part"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.txt"), []byte("x"), 0o644))

	CleanupUnfinishedFiles(dir)

	assert.NoFileExists(t, filepath.Join(dir, "book.epub.part"))
	assert.FileExists(t, filepath.Join(dir, "book.txt"))
}

func TestRemoveIfEmpty(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "empty")
	full := filepath.Join(root, "full")
	require.NoError(t, os.Mkdir(empty, 0o755))
	require.NoError(t, os.Mkdir(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, "a"), nil, 0o644))

	RemoveIfEmpty(empty)
	RemoveIfEmpty(full)

	assert.NoDirExists(t, empty)
	assert.DirExists(t, full)
}
