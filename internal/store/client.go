package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
)

// ErrBotNotFound is returned when no active configuration row exists for a bot.
var ErrBotNotFound = errors.New("bot configuration not found")

const defaultTimeout = 15 * time.Second

// Client talks to the PostgREST surface of the message store.
type Client struct {
	http    *resty.Client
	baseURL string
	anonKey string
}

func New(backend config.Backend) *Client {
	c := resty.New().
		SetBaseURL(backend.URL).
		SetTimeout(defaultTimeout).
		SetHeader("apikey", backend.AnonKey).
		SetHeader("Accept", "application/json")
	if backend.AnonKey != "" {
		c.SetAuthToken(backend.AnonKey)
	}
	return &Client{http: c, baseURL: backend.URL, anonKey: backend.AnonKey}
}

type insertRow struct {
	SessionID string        `json:"session_id"`
	BotID     string        `json:"bot_id"`
	Content   string        `json:"content"`
	Sender    chat.Sender   `json:"sender_type"`
	Metadata  chat.Metadata `json:"metadata,omitempty"`
}

// InsertMessage stores one row and returns it as the store saw it.
func (c *Client) InsertMessage(ctx context.Context, msg chat.Message) (*chat.Message, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(insertRow{
			SessionID: msg.SessionID,
			BotID:     msg.BotID,
			Content:   msg.Content,
			Sender:    msg.Sender,
			Metadata:  msg.Metadata,
		}).
		Post("/rest/v1/chat_messages")
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := statusError("insert message", resp); err != nil {
		return nil, err
	}
	created, err := chat.DecodeRows(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if len(created) == 0 {
		return &msg, nil
	}
	return &created[0], nil
}

// History returns the rows of a session ordered by creation time.
func (c *Client) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"session_id": "eq." + sessionID,
			"order":      "created_at.asc",
			"select":     "*",
		}).
		Get("/rest/v1/chat_messages")
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if err := statusError("load history", resp); err != nil {
		return nil, err
	}
	rows, err := chat.DecodeRows(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return rows, nil
}

// BotConfiguration fetches the active configuration row for botID.
func (c *Client) BotConfiguration(ctx context.Context, botID string) (map[string]interface{}, error) {
	var rows []map[string]interface{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"bot_id":    "eq." + botID,
			"is_active": "eq.true",
			"select":    "*",
		}).
		SetResult(&rows).
		Get("/rest/v1/bot_configurations")
	if err != nil {
		return nil, fmt.Errorf("load bot configuration: %w", err)
	}
	if err := statusError("load bot configuration", resp); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrBotNotFound
	}
	return rows[0], nil
}

// Quota is the answer of the rate-limit procedure.
type Quota struct {
	Allowed bool
	Message string
}

// CheckQuota counts one message against the bot's allowance.
func (c *Client) CheckQuota(ctx context.Context, botID string) (Quota, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"p_bot_id": botID}).
		Post("/rest/v1/rpc/increment_message_count")
	if err != nil {
		return Quota{}, fmt.Errorf("check quota: %w", err)
	}
	if err := statusError("check quota", resp); err != nil {
		return Quota{}, err
	}
	return parseQuota(resp.Body())
}

func parseQuota(body []byte) (Quota, error) {
	if !gjson.ValidBytes(body) {
		return Quota{}, fmt.Errorf("check quota: invalid JSON response")
	}
	result := gjson.ParseBytes(body)
	if result.IsArray() {
		result = result.Get("0")
	}
	allowed := result.Get("allowed")
	if !allowed.Exists() {
		return Quota{}, fmt.Errorf("check quota: response has no allowed field")
	}
	return Quota{Allowed: allowed.Bool(), Message: result.Get("message").String()}, nil
}

// RealtimeURL is the websocket endpoint of the realtime service.
func (c *Client) RealtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", c.anonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func statusError(op string, resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), strings.TrimSpace(resp.String()))
}
