// Package commands provides CLI commands for techtouch.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	modelFlag   string
	personaFlag string
	verboseFlag bool

	// Single query flags
	outputFlag string
	fileFlag   string
	imageFlag  string
	rawFlag    bool
	searchFlag bool

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "techtouch [prompt]",
	Short: "TechTouch assistant for the Gemini API",
	Long: `techtouch is a technology assistant backed by the Gemini API. It answers
questions, compares devices, summarizes links, translates documents, edits
images and keeps AI and phone news feeds.

Examples:
  techtouch login                       Store your Gemini API key
  techtouch chat                        Start the interactive app
  techtouch "What is Go?"               Send a single query
  techtouch "iPhone 16 vs Pixel 9"      Comparison table with search grounding
  techtouch -f prompt.md                Read prompt from file
  cat prompt.md | techtouch             Read prompt from stdin
  techtouch "Hello" -o response.md      Save response to file
  techtouch news                        Show the AI news feed
  techtouch serve                       Start the HTTP API`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "techtouch %s (built %s)\n", Version, BuildTime)
			return nil
		}

		if fileFlag != "" {
			data, err := os.ReadFile(fileFlag)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			return runQuery(cmd, string(data))
		}

		if len(args) > 0 {
			return runQuery(cmd, args[0])
		}

		if hasStdin() {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return runQuery(cmd, string(data))
		}

		return cmd.Help()
	},
}

// hasStdin reports whether stdin is piped
var hasStdin = func() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (flash, pro, lite, image or a full model name)")
	rootCmd.PersistentFlags().StringVarP(&personaFlag, "persona", "p", "", "Persona to use for the system prompt")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Log debug output to stderr")

	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save response to file")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Path to an image or document to include")
	rootCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print only the response text as it streams")
	rootCmd.Flags().BoolVar(&searchFlag, "search", false, "Ground the answer with Google Search")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(phonesCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(editImageCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(serveCmd)
}
