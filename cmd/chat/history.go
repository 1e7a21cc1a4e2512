package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chat-widget/internal/render"
)

var (
	historyFormat string
	historyOut    string
	historySessID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored conversation",
	Long: `Print the rows of the stored session (or --session) as text, html,
json or yaml. Needs a configured backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := render.NewExporter(historyFormat)
		if err != nil {
			return err
		}

		a, err := loadBase()
		if err != nil {
			return showConfigError(cmd.OutOrStdout(), err)
		}
		defer a.Close()

		if a.store == nil {
			return fmt.Errorf("history needs SUPABASE_URL")
		}
		id := historySessID
		if id == "" {
			var ok bool
			if id, ok = a.sessions.Lookup(a.botID); !ok {
				return fmt.Errorf("no stored session for bot %s", a.botID)
			}
		}

		rows, err := a.store.History(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		out := cmd.OutOrStdout()
		if historyOut != "" {
			f, err := os.Create(historyOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", historyOut, err)
			}
			defer f.Close()
			out = f
		}
		return exporter.Export(rows, out)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format: text, html, json or yaml")
	historyCmd.Flags().StringVarP(&historyOut, "output", "o", "", "Write to a file instead of stdout")
	historyCmd.Flags().StringVar(&historySessID, "session", "", "Session id (default: the stored one)")
	rootCmd.AddCommand(historyCmd)
}
