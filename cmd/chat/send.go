package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chat-widget/internal/chat"
	"chat-widget/internal/widget"
)

var quiet bool

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the reply",
	Long: `Send a single message on the stored session (or a new one) and
print the bot's reply. The exit status is non-zero when the webhook
call fails or the message limit is reached.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		a, err := loadApp(ctx)
		if err != nil {
			return showConfigError(out, err)
		}
		defer a.Close()

		pacing := widget.DefaultPacing()
		var view widget.View = a.terminal(out)
		if quiet {
			view = discardView{}
			pacing.TypingDelay, pacing.ReplyDelay = 0, 0
		}
		w, err := a.newWidget(view, pacing)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := openConversation(ctx, w); err != nil {
			return err
		}
		res, err := w.Send(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		switch res.Status {
		case widget.StatusDelivered:
			if quiet {
				fmt.Fprintln(out, res.Reply)
			}
			return nil
		case widget.StatusLimited:
			return fmt.Errorf("message limit reached")
		default:
			return fmt.Errorf("send failed: %w", res.Err)
		}
	},
}

// discardView draws nothing; --quiet prints only the reply.
type discardView struct{}

func (discardView) Append(chat.Entry) {}
func (discardView) ShowTyping()       {}
func (discardView) HideTyping()       {}
func (discardView) Clear()            {}
func (discardView) ShowError(string)  {}

func init() {
	sendCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the reply text")
	rootCmd.AddCommand(sendCmd)
}
