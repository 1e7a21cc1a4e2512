package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the stored session",
	Long: `Remove the stored session id for the bot. The next chat or send
starts a new conversation. Stored rows on the backend are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadBase()
		if err != nil {
			return showConfigError(cmd.OutOrStdout(), err)
		}
		defer a.Close()

		id, ok := a.sessions.Lookup(a.botID)
		a.sessions.Reset(a.botID)
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot session %s\n", id)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored session")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
