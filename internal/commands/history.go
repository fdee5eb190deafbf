package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
)

var (
	historyKindFlag    string
	historyFormatFlag  string
	historyOutputFlag  string
	historySystemFlag  bool
	historyContentFlag bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage conversation history",
	Long: `View and manage your local conversation history.

` + history.ListAliases(),
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <ref> <title>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runHistoryRename,
}

var historyFavoriteCmd = &cobra.Command{
	Use:   "favorite <ref>",
	Short: "Toggle the favorite mark of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryFavorite,
}

var historyMoveCmd = &cobra.Command{
	Use:   "move <ref> <position>",
	Short: "Move a conversation to a list position (1-based)",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistoryMove,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <ref>",
	Short: "Export a conversation as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search conversation titles and, with --content, messages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

func init() {
	historyListCmd.Flags().StringVarP(&historyKindFlag, "kind", "k", "", "Only list chat or info conversations")
	historyExportCmd.Flags().StringVarP(&historyFormatFlag, "format", "F", "markdown", "Export format: markdown or json")
	historyExportCmd.Flags().StringVarP(&historyOutputFlag, "output", "o", "", "Write to file instead of stdout")
	historyExportCmd.Flags().BoolVar(&historySystemFlag, "system", false, "Include status messages")
	historySearchCmd.Flags().BoolVar(&historyContentFlag, "content", false, "Search message text too")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyRenameCmd)
	historyCmd.AddCommand(historyFavoriteCmd)
	historyCmd.AddCommand(historyMoveCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historySearchCmd)
}

func openHistory() (*history.Store, error) {
	store, err := history.DefaultStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// resolveRef opens the store and resolves a user reference to a conversation ID
func resolveRef(ref string) (*history.Store, string, error) {
	store, err := openHistory()
	if err != nil {
		return nil, "", err
	}
	id, err := history.NewResolver(store).Resolve(ref)
	if err != nil {
		return nil, "", err
	}
	return store, id, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}

	conversations, err := store.ListConversations()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tKIND\tTITLE\tMESSAGES\tUPDATED")
	_, _ = fmt.Fprintln(w, "-\t--\t----\t-----\t--------\t-------")

	shown := 0
	for i, conv := range conversations {
		if historyKindFlag != "" && string(conv.Kind) != historyKindFlag {
			continue
		}
		shown++
		title := truncate(conv.Title, 40)
		if conv.Favorite {
			title = "★ " + title
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1, conv.ID, conv.Kind, title, len(conv.Messages), conv.UpdatedAt.Format("2006-01-02 15:04"))
	}

	if shown == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, id, err := resolveRef(args[0])
	if err != nil {
		return err
	}
	conv, err := store.GetConversation(id)
	if err != nil {
		return fmt.Errorf("conversation not found: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID: %s\n", conv.ID)
	fmt.Fprintf(out, "Title: %s\n", conv.Title)
	fmt.Fprintf(out, "Kind: %s\n", conv.Kind)
	fmt.Fprintf(out, "Model: %s\n", conv.Model)
	fmt.Fprintf(out, "Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated: %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Messages: %d\n\n", len(conv.Messages))

	for i, msg := range conv.Messages {
		role := "You"
		switch msg.Sender {
		case models.SenderAI:
			role = "TechTouch"
		case models.SenderSystem:
			role = "System"
		}
		fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, role, msg.CreatedAt.Format("15:04"))
		if msg.FileInfo != nil {
			fmt.Fprintf(out, "  📎 %s\n", msg.FileInfo.Name)
		}
		fmt.Fprintf(out, "  %s\n", truncate(msg.Text, 500))
		if msg.DownloadLink != nil {
			fmt.Fprintf(out, "  ⬇ %s\n", msg.DownloadLink.URL)
		}
		fmt.Fprintln(out)
	}

	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, id, err := resolveRef(args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteConversation(id); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation: %s\n", id)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "All conversations deleted.")
	return nil
}

func runHistoryRename(cmd *cobra.Command, args []string) error {
	store, id, err := resolveRef(args[0])
	if err != nil {
		return err
	}
	title := strings.Join(args[1:], " ")
	if err := store.UpdateTitle(id, title); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, title)
	return nil
}

func runHistoryFavorite(cmd *cobra.Command, args []string) error {
	store, id, err := resolveRef(args[0])
	if err != nil {
		return err
	}
	fav, err := store.ToggleFavorite(id)
	if err != nil {
		return err
	}
	if fav {
		fmt.Fprintf(cmd.OutOrStdout(), "★ %s added to favorites\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "☆ %s removed from favorites\n", id)
	}
	return nil
}

func runHistoryMove(cmd *cobra.Command, args []string) error {
	pos, err := strconv.Atoi(args[1])
	if err != nil || pos < 1 {
		return fmt.Errorf("position must be a positive number")
	}
	store, id, err := resolveRef(args[0])
	if err != nil {
		return err
	}
	if err := store.MoveConversation(id, pos-1); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to position %d\n", id, pos)
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, err := history.ParseExportFormat(historyFormatFlag)
	if err != nil {
		return err
	}
	store, id, err := resolveRef(args[0])
	if err != nil {
		return err
	}

	data, err := store.Export(id, history.ExportOptions{Format: format, IncludeSystem: historySystemFlag})
	if err != nil {
		return err
	}

	if historyOutputFlag == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(historyOutputFlag, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", id, historyOutputFlag)
	return nil
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	results, err := store.SearchConversations(strings.Join(args, " "), historyContentFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(out, "%s  %s\n", r.Conversation.ID, r.Conversation.Title)
		if r.MatchField == "content" {
			fmt.Fprintf(out, "    %s\n", dimStyle.Render(r.MatchSnippet))
		}
	}
	return nil
}

// truncate shortens s to n runes, adding an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
