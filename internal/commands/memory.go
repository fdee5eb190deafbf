package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show or clear what the assistant remembers about you",
	Long: `The chat remembers short statements about you, such as "my name is ..."
or "I use Android", and adds the last ten to every conversation.`,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List remembered statements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		lines := store.Lines()
		if len(lines) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing remembered yet.")
			return nil
		}
		for i, l := range lines {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, l)
		}
		return nil
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every remembered statement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Memory cleared.")
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}

func openMemory() (*memory.Store, error) {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return nil, err
	}
	return memory.NewStore(dir)
}
