package config

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"chat-widget/internal/chat"
)

// ErrNoBotID is returned when the invocation URL carries no botId parameter.
var ErrNoBotID = errors.New("Bot ID not provided. Please include ?botId=YOUR_BOT_ID in the script URL")

// Source produces an unvalidated configuration.
type Source interface {
	Load(ctx context.Context) (*Config, error)
}

// Static merges caller overrides over the defaults.
type Static struct {
	BotID     string
	Overrides map[string]interface{}
}

func (s Static) Load(ctx context.Context) (*Config, error) {
	cfg, err := Merge(Default(), s.Overrides)
	if err != nil {
		return nil, err
	}
	if s.BotID != "" {
		cfg.Branding.BotID = s.BotID
	}
	return cfg, nil
}

// RecordFetcher returns the active bot_configurations row for a bot.
type RecordFetcher interface {
	BotConfiguration(ctx context.Context, botID string) (map[string]interface{}, error)
}

// Remote maps a stored bot record into a configuration.
type Remote struct {
	BotID   string
	Fetcher RecordFetcher
}

func (r Remote) Load(ctx context.Context) (*Config, error) {
	if r.BotID == "" {
		return nil, ErrNoBotID
	}
	rec, err := r.Fetcher.BotConfiguration(ctx, r.BotID)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch configuration for %s", r.BotID)
	}
	cfg := FromRecord(rec)
	cfg.Branding.BotID = r.BotID
	return &cfg, nil
}

// Resolve loads and validates a configuration. Every failure is a *chat.ConfigError.
func Resolve(ctx context.Context, src Source) (*Config, error) {
	botID := ""
	switch s := src.(type) {
	case Static:
		botID = s.BotID
	case Remote:
		botID = s.BotID
	}

	cfg, err := src.Load(ctx)
	if err != nil {
		return nil, &chat.ConfigError{BotID: botID, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &chat.ConfigError{BotID: cfg.BotID(), Err: err}
	}
	return cfg, nil
}

// Validate checks the fields a conversation cannot run without.
func (c *Config) Validate() error {
	if c.Webhook.URL == "" {
		return errors.New("webhook url is required")
	}
	u, err := url.Parse(c.Webhook.URL)
	if err != nil || u.Host == "" {
		return errors.Errorf("invalid webhook url %q", c.Webhook.URL)
	}
	if c.Webhook.TimeoutMs <= 0 {
		return errors.Errorf("webhook timeout must be positive, got %d", c.Webhook.TimeoutMs)
	}
	return nil
}

// BotIDFromURL extracts the botId query parameter from the widget's script URL.
func BotIDFromURL(scriptURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(scriptURL))
	if err != nil {
		return "", &chat.ConfigError{Err: errors.Wrap(err, "parse script url")}
	}
	id := u.Query().Get("botId")
	if id == "" {
		return "", &chat.ConfigError{Err: ErrNoBotID}
	}
	return id, nil
}
