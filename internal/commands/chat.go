package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/tui"
)

var (
	chatTabFlag      string
	chatPickFlag     bool
	chatContinueFlag bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive app",
	Long: `Start the interactive app with its Home, Chat, AI News, Phones and Info tabs.

The chat keeps conversation context across messages and stores every
conversation in the local history. Inside the chat:
  /attach <path>   Attach an image or document to the next message
  /copy            Copy the last reply to the clipboard
  /new             Start a new conversation

Use --pick to choose a stored conversation, or --continue to resume the
most recent one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatTabFlag, "tab", "t", "", "Initial tab: home, chat, news, phones or info")
	chatCmd.Flags().BoolVar(&chatPickFlag, "pick", false, "Choose a stored conversation to resume")
	chatCmd.Flags().BoolVarP(&chatContinueFlag, "continue", "c", false, "Resume the most recent conversation")
}

func runChat(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d := tui.Deps{
		Chat:      a.chat,
		Feeds:     a.feeds,
		Personal:  a.personal,
		ModelName: a.model.Label,
		Lang:      a.cfg.Language,
		Render:    a.renderOptions(0),
		StartTab:  chatTabFlag,
	}

	switch {
	case chatPickFlag:
		result, err := deps.TUI.RunHistorySelector(a.history, history.KindChat, a.cfg.Language)
		if err != nil {
			return fmt.Errorf("history selector failed: %w", err)
		}
		if !result.Confirmed {
			return nil
		}
		d.Conversation = result.Conversation
		d.StartTab = "chat"

	case chatContinueFlag:
		conv, err := a.history.Latest(history.KindChat)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if conv == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("No previous conversation, starting a new one"))
		}
		d.Conversation = conv
		d.StartTab = "chat"
	}

	return deps.TUI.Run(ctx, d)
}
