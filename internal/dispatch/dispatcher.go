package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
	"chat-widget/internal/logger"
	"chat-widget/internal/store"
)

const (
	ActionSendMessage         = "sendMessage"
	ActionLoadPreviousSession = "loadPreviousSession"
)

// Envelope is the JSON body posted to the webhook.
type Envelope struct {
	Action    string   `json:"action"`
	SessionID string   `json:"sessionId"`
	BotID     string   `json:"botId,omitempty"`
	Route     string   `json:"route"`
	ChatInput string   `json:"chatInput,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

type Metadata struct {
	UserID string `json:"userId"`
}

// Reply is a parsed webhook answer.
type Reply struct {
	Output string
}

// QuotaChecker runs the rate-limit procedure for a bot.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, botID string) (store.Quota, error)
}

type Options struct {
	URL     string
	Route   string
	BotID   string
	Timeout time.Duration
	// LimitMessage is shown when the quota check disallows a send without a message of its own.
	LimitMessage string
	// Quota is optional. Without it every send goes straight to the webhook.
	Quota QuotaChecker
}

// OptionsFromConfig builds dispatcher options from a resolved configuration.
func OptionsFromConfig(cfg *config.Config, quota QuotaChecker) Options {
	return Options{
		URL:          cfg.Webhook.URL,
		Route:        cfg.Webhook.Route,
		BotID:        cfg.BotID(),
		Timeout:      time.Duration(cfg.Webhook.TimeoutMs) * time.Millisecond,
		LimitMessage: cfg.Messages.LimitReached,
		Quota:        quota,
	}
}

// Dispatcher posts user input to the webhook. It never retries.
type Dispatcher struct {
	opts Options
	http *resty.Client
}

func New(opts Options) *Dispatcher {
	if opts.Route == "" {
		opts.Route = "general"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.LimitMessage == "" {
		opts.LimitMessage = config.Default().Messages.LimitReached
	}
	http := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Dispatcher{opts: opts, http: http}
}

// CheckQuota returns *chat.QuotaExceeded when the procedure disallows the send.
// Failures of the check itself are logged and let the send through.
func (d *Dispatcher) CheckQuota(ctx context.Context) error {
	if d.opts.Quota == nil {
		return nil
	}
	q, err := d.opts.Quota.CheckQuota(ctx, d.opts.BotID)
	if err != nil {
		logger.WarnCF("dispatch", "Rate limit check failed", map[string]interface{}{
			"bot_id": d.opts.BotID,
			"error":  err.Error(),
		})
		return nil
	}
	if q.Allowed {
		return nil
	}
	msg := q.Message
	if msg == "" {
		msg = d.opts.LimitMessage
	}
	return &chat.QuotaExceeded{BotID: d.opts.BotID, Message: msg}
}

// Post sends text without the quota check.
func (d *Dispatcher) Post(ctx context.Context, sessionID, text string) (*Reply, error) {
	return d.post(ctx, d.envelope(ActionSendMessage, sessionID, text))
}

// Send runs the quota check and then posts text.
func (d *Dispatcher) Send(ctx context.Context, sessionID, text string) (*Reply, error) {
	if err := d.CheckQuota(ctx); err != nil {
		return nil, err
	}
	return d.Post(ctx, sessionID, text)
}

// LoadPreviousSession asks the webhook for the opening message of a session.
// The envelope is wrapped in an array.
func (d *Dispatcher) LoadPreviousSession(ctx context.Context, sessionID string) (*Reply, error) {
	return d.post(ctx, []Envelope{d.envelope(ActionLoadPreviousSession, sessionID, "")})
}

func (d *Dispatcher) envelope(action, sessionID, text string) Envelope {
	return Envelope{
		Action:    action,
		SessionID: sessionID,
		BotID:     d.opts.BotID,
		Route:     d.opts.Route,
		ChatInput: text,
		Metadata:  Metadata{UserID: ""},
	}
}

func (d *Dispatcher) post(ctx context.Context, body interface{}) (*Reply, error) {
	start := time.Now()
	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(d.opts.URL)
	if err != nil {
		return nil, &chat.DispatchError{Op: "post", URL: d.opts.URL, Err: err}
	}

	logger.DebugCF("dispatch", "Webhook replied", map[string]interface{}{
		"status":      resp.StatusCode(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	out, err := ParseOutput(resp.Body())
	if err != nil {
		var de *chat.DispatchError
		if errors.As(err, &de) {
			de.URL = d.opts.URL
		}
		return nil, err
	}
	return &Reply{Output: out}, nil
}
