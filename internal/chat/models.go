package chat

import "time"

type Sender string

const (
	SenderUser  Sender = "user"
	SenderBot   Sender = "bot"
	SenderAgent Sender = "agent"
)

// Metadata keys used to mark rows the client already rendered.
const (
	MetaWebhookResponse = "is_webhook_response"
	MetaWelcome         = "is_welcome"
)

type Metadata map[string]interface{}

// Flag reports whether key is set to true.
func (m Metadata) Flag(key string) bool {
	if m == nil {
		return false
	}
	v, ok := m[key].(bool)
	return ok && v
}

// Message is one chat_messages row.
type Message struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	BotID     string    `json:"bot_id" yaml:"bot_id"`
	Content   string    `json:"content" yaml:"content"`
	Sender    Sender    `json:"sender_type" yaml:"sender_type"`
	Metadata  Metadata  `json:"metadata" yaml:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Origin records which delivery path produced a rendered message.
type Origin string

const (
	OriginLocal       Origin = "local"
	OriginSynchronous Origin = "synchronous"
	OriginHistory     Origin = "history"
	OriginPushed      Origin = "pushed"
)

// Kind distinguishes ordinary messages from notices the view may style differently.
type Kind string

const (
	KindMessage Kind = "message"
	KindError   Kind = "error"
	KindLimit   Kind = "limit"
)

// Entry is what the widget hands to a view.
type Entry struct {
	Sender  Sender
	Content string
	Origin  Origin
	Kind    Kind
	Animate bool
}
