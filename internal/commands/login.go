package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/diogo/techtouch/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store your Gemini API key",
	Long: `Store a Gemini API key in the configuration directory.

The key is read without echo when stdin is a terminal, or from the first
line of stdin otherwise:
  echo "$KEY" | techtouch login

GEMINI_API_KEY and a .env file in the working directory take precedence
over the stored key.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.DeleteAPIKey(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stored API key removed.")
		return nil
	},
}

// readSecret reads the key from the terminal without echo
var readSecret = func(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Gemini API key: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return string(data), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	key, err := readSecret(cmd)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := config.SaveAPIKey(key); err != nil {
		return err
	}

	path, _ := config.GetCredentialsPath()
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ API key %s saved to %s", config.MaskKey(key), path)))
	if os.Getenv(config.EnvAPIKey) != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(config.EnvAPIKey+" is set and takes precedence over the stored key"))
	}
	return nil
}
