package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/chat"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
	"github.com/diogo/techtouch/internal/render"
)

var translatePrintFlag bool

var infoCmd = &cobra.Command{
	Use:   "info <question>",
	Short: "Ask about the TechTouch channels and links",
	Long: `Ask a question about the TechTouch channels, groups and social links.
Matching links are listed under the answer.

Example:
  techtouch info "ما هي قناة التليجرام؟"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

var editImageCmd = &cobra.Command{
	Use:   "edit-image <image> <prompt>",
	Short: "Edit an image with the image model",
	Long: `Send an image and an instruction to the image model and save the
edited pictures into the download directory.

Example:
  techtouch edit-image photo.jpg "make the background white"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEditImage,
}

var translateCmd = &cobra.Command{
	Use:   "translate <file>",
	Short: "Translate a document to Arabic",
	Long: `Translate a PDF, DOCX or text document to Arabic. The translation is
written as a .docx file into the download directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	translateCmd.Flags().BoolVar(&translatePrintFlag, "print", false, "Also print the translated text")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := a.chat.NewConversation(history.KindInfo)
	if err != nil {
		return err
	}

	var msg models.ChatMessage
	err = withSpinner(cmd, "Searching", func() error {
		msg, err = a.chat.AskPersonal(ctx, conv.ID, strings.Join(args, " "), nil)
		return err
	})
	if err != nil {
		return err
	}

	out, err := render.Message(msg, a.cfg.Language, a.renderOptions(getTerminalWidth()-4))
	if err != nil {
		out = msg.Text
	}
	fmt.Fprintln(cmd.OutOrStdout(), assistantLabelStyle.Render("✦ TechTouch"))
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
	return nil
}

func runEditImage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *chat.ImageEdit
	err = withSpinner(cmd, "Editing image", func() error {
		result, err = a.chat.EditImage(ctx, strings.Join(args[1:], " "), args[0])
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Text != "" {
		fmt.Fprintln(out, result.Text)
	}
	for _, p := range result.Paths {
		fmt.Fprintln(out, successStyle.Render("✓ Saved "+p))
	}
	return nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *chat.Translation
	err = withSpinner(cmd, "Translating", func() error {
		result, err = a.chat.TranslateFile(ctx, args[0])
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if translatePrintFlag {
		fmt.Fprintln(out, result.Text)
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, successStyle.Render("✓ Translation saved to "+result.Path))
	return nil
}
