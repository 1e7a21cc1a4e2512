package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chat-widget/internal/logger"
)

var (
	verbose     bool
	botID       string
	scriptURL   string
	envFile     string
	configPath  string
	remote      bool
	webhookURL  string
	storageKind string
	storagePath string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to an n8n chat workflow from the terminal",
	Long: `A terminal front end for n8n chat bots.

Messages go to the bot's webhook. When a Supabase backend is configured
(SUPABASE_URL and SUPABASE_ANON_KEY in the environment or an .env file),
the conversation is stored, replayed on the next run, and live agent
replies are pushed into the session.

Quick Start:
  chat chat --bot-id demo --webhook http://localhost:8000/webhook/echo
  chat send --bot-id demo "where is my order?"
  chat history --bot-id demo --format html`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&botID, "bot-id", "", "Bot identity")
	flags.StringVar(&scriptURL, "script-url", "", "Widget script URL carrying ?botId=")
	flags.StringVar(&envFile, "env-file", ".env", "File with SUPABASE_URL and SUPABASE_ANON_KEY")
	flags.StringVar(&configPath, "config", "", "YAML or JSON file with configuration overrides")
	flags.BoolVar(&remote, "remote", false, "Load the bot configuration from the backend")
	flags.StringVar(&webhookURL, "webhook", "", "Webhook URL, overriding the configured one")
	flags.StringVar(&storageKind, "storage", "file", "Session storage: file, sqlite or memory")
	flags.StringVar(&storagePath, "storage-path", "", "Session storage location (default in the user config directory)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
