package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/cache"
	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/feeds"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the feed cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached feeds",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:       "clear [news|phones]",
	Short:     "Clear one cached feed, or all of them",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"news", "phones"},
	RunE:      runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache() (*cache.Cache, error) {
	path, err := config.GetCachePath()
	if err != nil {
		return nil, err
	}
	return cache.Open(path)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.Entries(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSIZE\tUPDATED")
	_, _ = fmt.Fprintln(w, "---\t----\t-------")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", e.Key, e.Size, e.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		if err := c.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Feed cache cleared.")
		return nil
	}

	kind, err := feeds.ParseKind(args[0])
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, string(kind)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s.\n", kind)
	return nil
}
