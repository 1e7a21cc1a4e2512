package widget

import "chat-widget/internal/chat"

// PushRule decides whether a pushed row is rendered. Empty Sender or Flag
// matches anything.
type PushRule struct {
	Sender chat.Sender
	Flag   string
	Render bool
}

// PushRules is evaluated top to bottom and the first matching rule wins.
// Rows this client already drew synchronously carry a flag and are skipped.
var PushRules = []PushRule{
	{Sender: chat.SenderUser, Render: false},
	{Sender: chat.SenderAgent, Render: true},
	{Sender: chat.SenderBot, Flag: chat.MetaWebhookResponse, Render: false},
	{Sender: chat.SenderBot, Flag: chat.MetaWelcome, Render: false},
	{Sender: chat.SenderBot, Render: true},
	{Render: false},
}

func (r PushRule) matches(m chat.Message) bool {
	if r.Sender != "" && r.Sender != m.Sender {
		return false
	}
	if r.Flag != "" && !m.Metadata.Flag(r.Flag) {
		return false
	}
	return true
}

// ShouldRender applies PushRules to a pushed row.
func ShouldRender(m chat.Message) bool {
	for _, r := range PushRules {
		if r.matches(m) {
			return r.Render
		}
	}
	return false
}
