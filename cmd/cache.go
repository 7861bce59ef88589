package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/brogergvhs/noveld/internal/ui"
	"github.com/brogergvhs/noveld/internal/util"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean the resume cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List books with saved progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openCache(cfg, ui.NewLogger(cfg.Debug))
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()

		list, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "BOOK\tCHAPTERS\tSIZE\tSAVED\tEXPIRED")
		for _, e := range list {
			expired := ""
			if e.Expired {
				expired = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				e.BookID, e.Chapters, util.Human(e.Bytes), e.SavedAt.Format("2006-01-02 15:04"), expired)
		}
		return w.Flush()
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openCache(cfg, ui.NewLogger(cfg.Debug))
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()

		n, err := store.Prune(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Removed %d expired entries\n", n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <book-id>",
	Short: "Forget the saved progress of one book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openCache(cfg, ui.NewLogger(cfg.Debug))
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()

		store.Clear(cmd.Context(), args[0])
		fmt.Printf("Cleared %s\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&flagCachePath, "cache", "", "path of the resume cache database")
	cacheCmd.AddCommand(cacheListCmd, cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
