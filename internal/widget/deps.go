package widget

import (
	"context"

	"chat-widget/internal/chat"
	"chat-widget/internal/dispatch"
	"chat-widget/internal/realtime"
)

// View is the presentation surface a widget draws on.
type View interface {
	Append(entry chat.Entry)
	ShowTyping()
	HideTyping()
	Clear()
	ShowError(msg string)
}

// Dispatcher delivers user input to the webhook.
type Dispatcher interface {
	CheckQuota(ctx context.Context) error
	Post(ctx context.Context, sessionID, text string) (*dispatch.Reply, error)
	LoadPreviousSession(ctx context.Context, sessionID string) (*dispatch.Reply, error)
}

// MessageStore persists and replays session rows.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg chat.Message) (*chat.Message, error)
	History(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Subscription is a live push channel. Unsubscribe releases it.
type Subscription interface {
	Unsubscribe() error
}

// Subscriber opens a push channel scoped to one session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string, handle func(chat.Message)) (Subscription, error)
}

type realtimeSubscriber struct {
	s *realtime.Subscriber
}

// FromRealtime adapts a realtime subscriber to the widget's Subscriber.
func FromRealtime(s *realtime.Subscriber) Subscriber {
	return realtimeSubscriber{s: s}
}

func (r realtimeSubscriber) Subscribe(ctx context.Context, sessionID string, handle func(chat.Message)) (Subscription, error) {
	sub, err := r.s.Subscribe(ctx, sessionID, handle)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
