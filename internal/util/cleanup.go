package util

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// PartSuffix marks an output file that is still being written.
const PartSuffix = ".part"

// SetupInterruptHandler makes the first SIGINT/SIGTERM call abort and a
// second one exit the process after removing unfinished files from
// outputDir. The returned func stops the handler.
func SetupInterruptHandler(outputDir string, abort func()) (stop func()) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go watchInterrupts(sig, done, abort, func() {
		CleanupUnfinishedFiles(outputDir)
		RemoveIfEmpty(outputDir)
		fmt.Println("\nExiting due to interrupt.")
		os.Exit(130)
	})

	return func() {
		signal.Stop(sig)
		close(done)
	}
}

func watchInterrupts(sig <-chan os.Signal, done <-chan struct{}, abort, exit func()) {
	count := 0
	for {
		select {
		case <-done:
			return
		case <-sig:
			count++
			if count == 1 {
				fmt.Println("\nInterrupt received, saving progress... (press Ctrl+C again to quit)")
				abort()
				continue
			}
			exit()
			return
		}
	}
}

// CleanupUnfinishedFiles removes partially written exports from outputDir.
func CleanupUnfinishedFiles(outputDir string) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(name, PartSuffix) {
			full := filepath.Join(outputDir, name)

			if err := os.Remove(full); err != nil {
				fmt.Printf("Error cleaning up %s: %v\n", full, err)
			} else {
				fmt.Printf("Removed %s\n", full)
			}
		}
	}
}

func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}
