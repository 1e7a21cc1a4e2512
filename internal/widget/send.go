package widget

import (
	"context"
	"errors"
	"strings"

	"chat-widget/internal/chat"
	"chat-widget/internal/logger"
)

type Status int

const (
	// StatusDelivered means the reply was rendered.
	StatusDelivered Status = iota
	// StatusFailed means the webhook call failed and a fallback was rendered.
	StatusFailed
	// StatusLimited means the quota check refused the send.
	StatusLimited
	// StatusDiscarded means the session changed before the reply arrived.
	StatusDiscarded
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	case StatusLimited:
		return "limited"
	default:
		return "discarded"
	}
}

// Outcome describes what became of one send.
type Outcome struct {
	Status Status
	Reply  string
	Err    error
}

// Send delivers text on the current session. Delivery failures are rendered
// and reported in the Outcome; the returned error is only for calls the
// widget cannot accept.
func (w *Widget) Send(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}
	if max := w.cfg.Input.MaxLength; max > 0 {
		if runes := []rune(text); len(runes) > max {
			text = string(runes[:max])
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if w.phase != PhaseActive {
		w.mu.Unlock()
		return Outcome{}, ErrNotStarted
	}
	id, gen := w.sessionID, w.generation
	w.mu.Unlock()

	if err := w.dispatcher.CheckQuota(ctx); err != nil {
		var quota *chat.QuotaExceeded
		if errors.As(err, &quota) {
			w.show(func(v View) {
				v.Append(chat.Entry{Sender: chat.SenderBot, Content: quota.Message, Origin: chat.OriginSynchronous, Kind: chat.KindLimit})
			})
			return Outcome{Status: StatusLimited, Err: err}, nil
		}
		logger.WarnCF("widget", "Quota check failed", map[string]interface{}{"error": err.Error()})
	}

	w.show(func(v View) {
		v.Append(chat.Entry{Sender: chat.SenderUser, Content: text, Origin: chat.OriginLocal, Kind: chat.KindMessage})
	})
	w.persist(ctx, chat.Message{
		SessionID: id,
		BotID:     w.botID(),
		Content:   text,
		Sender:    chat.SenderUser,
		Metadata:  chat.Metadata{},
	})

	if err := w.pacing.Sleep(ctx, w.pacing.TypingDelay); err != nil {
		return Outcome{Status: StatusDiscarded, Err: err}, nil
	}
	typing := w.cfg.UI.EnableTypingAnimation
	if typing && w.current(gen) {
		w.show(func(v View) { v.ShowTyping() })
	}

	reply, sendErr := w.dispatcher.Post(ctx, id, text)

	// Only a reply is held back; failures clear the indicator at once.
	if sendErr == nil {
		if err := w.pacing.Sleep(ctx, w.pacing.ReplyDelay); err != nil {
			if typing {
				w.show(func(v View) { v.HideTyping() })
			}
			return Outcome{Status: StatusDiscarded, Err: err}, nil
		}
	}
	if typing {
		w.show(func(v View) { v.HideTyping() })
	}

	if !w.current(gen) {
		logger.InfoCF("widget", "Dropping reply for a replaced session", map[string]interface{}{"session_id": id})
		return Outcome{Status: StatusDiscarded, Err: sendErr}, nil
	}

	if sendErr != nil {
		fallback := w.cfg.Messages.ErrorSend
		var de *chat.DispatchError
		if errors.As(sendErr, &de) && de.Empty() && w.cfg.Messages.NoResponse != "" {
			fallback = w.cfg.Messages.NoResponse
		}
		if fallback == "" {
			fallback = "Unable to send message. Please try again."
		}
		logger.WarnCF("widget", "Send failed", map[string]interface{}{
			"session_id": id,
			"error":      sendErr.Error(),
		})
		w.show(func(v View) {
			v.Append(chat.Entry{Sender: chat.SenderBot, Content: fallback, Origin: chat.OriginSynchronous, Kind: chat.KindError})
		})
		return Outcome{Status: StatusFailed, Err: sendErr}, nil
	}

	w.show(func(v View) {
		v.Append(w.botEntry(chat.SenderBot, reply.Output, chat.OriginSynchronous))
	})
	w.persist(ctx, chat.Message{
		SessionID: id,
		BotID:     w.botID(),
		Content:   reply.Output,
		Sender:    chat.SenderBot,
		Metadata:  chat.Metadata{chat.MetaWebhookResponse: true},
	})
	return Outcome{Status: StatusDelivered, Reply: reply.Output}, nil
}
