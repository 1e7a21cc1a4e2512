package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
	"chat-widget/internal/logger"
	"chat-widget/internal/render"
	"chat-widget/internal/widget"
)

// lineReader is the part of a readline instance the loop uses.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

// newLineReader is swapped in tests.
var newLineReader = func(prompt string) (lineReader, error) {
	dir := defaultStorageDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return readline.NewFromConfig(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(dir, "history"),
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Open the widget in the terminal.

A stored session is resumed with its history; otherwise a new
conversation starts with the welcome message.

Commands inside the conversation:
  /reset   start a new conversation
  /quit    leave (the session is kept for next time)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out := cmd.OutOrStdout()

		a, err := loadApp(ctx)
		if err != nil {
			return showConfigError(out, err)
		}
		defer a.Close()

		term := a.terminal(out)
		w, err := a.newWidget(term, widget.DefaultPacing())
		if err != nil {
			return err
		}
		defer w.Close()

		term.Header()
		term.Footer()
		if err := openConversation(ctx, w); err != nil {
			return err
		}

		placeholder := a.cfg.Branding.PlaceholderText
		if placeholder == "" {
			placeholder = "Type a message..."
		}
		fmt.Fprintln(out, strings.TrimSpace(placeholder)+" (/reset, /quit)")

		rl, err := newLineReader("> ")
		if err != nil {
			return fmt.Errorf("failed to start prompt: %w", err)
		}
		defer rl.Close()

		return runLoop(ctx, rl, w)
	},
}

// openConversation resumes the stored session or starts a new one.
func openConversation(ctx context.Context, w *widget.Widget) error {
	if err := w.Open(ctx); err != nil {
		return err
	}
	if w.Phase() == widget.PhaseIdle {
		return w.StartConversation(ctx)
	}
	return nil
}

func runLoop(ctx context.Context, rl lineReader, w *widget.Widget) error {
	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := w.Reset(ctx); err != nil {
				return err
			}
			continue
		}

		out, err := w.Send(ctx, line)
		if err != nil {
			if errors.Is(err, widget.ErrEmptyMessage) {
				continue
			}
			return err
		}
		logger.DebugCF("cli", "Send finished", map[string]interface{}{"status": out.Status.String()})
	}
}

// showConfigError draws the configuration error panel and returns err so
// the process still exits non-zero.
func showConfigError(out io.Writer, err error) error {
	var cfgErr *chat.ConfigError
	if !errors.As(err, &cfgErr) {
		return err
	}
	defaults := config.Default()
	msg := defaults.Messages.ErrorConfig
	if errors.Is(err, config.ErrNoBotID) {
		msg = config.ErrNoBotID.Error()
	}
	render.NewTerminal(out, &defaults).ShowError(msg)
	logger.ErrorCF("cli", "Configuration failed", map[string]interface{}{"error": err.Error()})
	return err
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
