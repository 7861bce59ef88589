package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
)

var rootCmd = &cobra.Command{
	Use:   "noveld",
	Short: "Web novel downloader with TXT, EPUB, HTML and Markdown output",
	Long: `noveld downloads every chapter of a book into one file.

Interrupted downloads are resumable: press Ctrl+C once to pause (progress is
kept in the cache), run the same command again to continue.`,
	Example: `  noveld download --url https://www.esjzone.cc/detail/1546.html --format epub
  noveld download --url https://www.esjzone.cc/forum/88/ --range 1-20
  noveld chapter https://www.esjzone.cc/forum/1546/100.html`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
