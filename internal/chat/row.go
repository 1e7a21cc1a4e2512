package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// row is a chat_messages record as PostgREST and realtime send it. Ids may be
// numeric and timestamps may lack an offset.
type row struct {
	ID        interface{} `json:"id"`
	SessionID string      `json:"session_id"`
	BotID     string      `json:"bot_id"`
	Content   string      `json:"content"`
	Sender    Sender      `json:"sender_type"`
	Metadata  Metadata    `json:"metadata"`
	CreatedAt string      `json:"created_at"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts the timestamp spellings Postgres and its REST and
// realtime layers produce. Values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// DecodeRow converts one stored record into a message.
func DecodeRow(raw json.RawMessage) (Message, error) {
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return Message{}, fmt.Errorf("decode row: %w", err)
	}
	msg := Message{
		SessionID: r.SessionID,
		BotID:     r.BotID,
		Content:   r.Content,
		Sender:    r.Sender,
		Metadata:  r.Metadata,
	}
	if r.ID != nil {
		msg.ID = fmt.Sprint(r.ID)
	}
	if r.CreatedAt != "" {
		ts, err := ParseTimestamp(r.CreatedAt)
		if err != nil {
			return Message{}, err
		}
		msg.CreatedAt = ts
	}
	return msg, nil
}

// DecodeRows converts a JSON array of records. An empty body is no rows.
func DecodeRows(body []byte) ([]Message, error) {
	if len(body) == 0 {
		return []Message{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	msgs := make([]Message, 0, len(raws))
	for i, raw := range raws {
		msg, err := DecodeRow(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
