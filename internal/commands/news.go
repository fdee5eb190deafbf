package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/models"
)

var (
	newsStreamFlag  bool
	newsRefreshFlag bool
	newsJSONFlag    bool
	newsDetailsFlag bool
)

var itemTitleStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show the latest AI news",
	Long: `Show the latest AI news. Lists are cached for feed_ttl_minutes
(6 hours by default); --refresh regenerates them.

With --stream items are printed as the model writes them.`,
	Args: cobra.NoArgs,
	RunE: runNews,
}

var phonesCmd = &cobra.Command{
	Use:   "phones",
	Short: "Show the latest phone releases",
	Args:  cobra.NoArgs,
	RunE:  runPhones,
}

func init() {
	newsCmd.Flags().BoolVarP(&newsStreamFlag, "stream", "s", false, "Print items as they are generated")
	newsCmd.Flags().BoolVarP(&newsRefreshFlag, "refresh", "r", false, "Ignore the cache")
	newsCmd.Flags().BoolVar(&newsJSONFlag, "json", false, "Print JSON")
	newsCmd.Flags().BoolVarP(&newsDetailsFlag, "details", "d", false, "Include the details of every item")

	phonesCmd.Flags().BoolVarP(&newsRefreshFlag, "refresh", "r", false, "Ignore the cache")
	phonesCmd.Flags().BoolVar(&newsJSONFlag, "json", false, "Print JSON")
}

func runNews(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if newsStreamFlag {
		n := 0
		return a.feeds.StreamAINews(ctx, func(item models.NewsItem) error {
			n++
			if newsJSONFlag {
				return json.NewEncoder(out).Encode(item)
			}
			printNewsItem(out, n, item)
			return nil
		})
	}

	var items []models.NewsItem
	err = withSpinner(cmd, "Fetching AI news", func() error {
		items, err = a.feeds.AINews(ctx, newsRefreshFlag)
		return err
	})
	if err != nil {
		return err
	}

	if newsJSONFlag {
		return writeJSON(out, items)
	}
	for i, item := range items {
		printNewsItem(out, i+1, item)
	}
	return nil
}

func runPhones(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var items []models.PhoneNewsItem
	err = withSpinner(cmd, "Fetching phone news", func() error {
		items, err = a.feeds.PhoneNews(ctx, newsRefreshFlag)
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if newsJSONFlag {
		return writeJSON(out, items)
	}
	for i, item := range items {
		fmt.Fprintf(out, "%s\n", itemTitleStyle.Render(fmt.Sprintf("%d. %s", i+1, item.ModelName)))
		fmt.Fprintf(out, "   %s\n", item.Summary)
		for _, spec := range item.Specs {
			fmt.Fprintf(out, "   • %s\n", spec)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printNewsItem(w io.Writer, n int, item models.NewsItem) {
	fmt.Fprintf(w, "%s\n", itemTitleStyle.Render(fmt.Sprintf("%d. %s", n, item.Title)))
	fmt.Fprintf(w, "   %s\n", item.Summary)
	if newsDetailsFlag && item.Details != "" {
		for _, line := range strings.Split(strings.TrimSpace(item.Details), "\n") {
			fmt.Fprintf(w, "   %s\n", dimStyle.Render(line))
		}
	}
	if item.Link != "" {
		fmt.Fprintf(w, "   %s\n", dimStyle.Render(item.Link))
	}
	fmt.Fprintln(w)
}

// withSpinner runs fn behind a spinner when stdout is a terminal
func withSpinner(cmd *cobra.Command, message string, fn func() error) error {
	if !isStdoutTTY() {
		return fn()
	}
	spin := newSpinner(cmd.ErrOrStderr(), message)
	spin.start()
	if err := fn(); err != nil {
		spin.stopWithError()
		return err
	}
	spin.stopWithSuccess("Done")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
