package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phoenix channel events.
const (
	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventError     = "phx_error"
	EventClose     = "phx_close"
	EventHeartbeat = "heartbeat"
	EventSystem    = "system"
	EventChanges   = "postgres_changes"

	TopicPhoenix = "phoenix"
)

// The table chat rows are inserted into.
const (
	SchemaPublic  = "public"
	TableMessages = "chat_messages"
)

// IncomingMessage is a frame as read off the socket.
type IncomingMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

func (m IncomingMessage) RefString() string {
	if m.Ref == nil {
		return ""
	}
	return *m.Ref
}

// OutgoingMessage is a frame written to the socket.
type OutgoingMessage struct {
	Topic   string      `json:"topic"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Ref     string      `json:"ref,omitempty"`
}

// ChangeFilter selects the row changes a channel receives.
type ChangeFilter struct {
	ID     int    `json:"id,omitempty"`
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// Matches reports whether an insert into schema.table with the given record
// passes the filter. Only equality filters are understood.
func (f ChangeFilter) Matches(event, schema, table string, record map[string]interface{}) bool {
	if f.Event != "*" && !strings.EqualFold(f.Event, event) {
		return false
	}
	if f.Schema != schema || f.Table != table {
		return false
	}
	if f.Filter == "" {
		return true
	}
	column, cond, ok := strings.Cut(f.Filter, "=")
	if !ok {
		return false
	}
	want, ok := strings.CutPrefix(cond, "eq.")
	if !ok {
		return false
	}
	v, present := record[column]
	return present && fmt.Sprint(v) == want
}

type JoinConfig struct {
	Broadcast       map[string]interface{} `json:"broadcast,omitempty"`
	Presence        map[string]interface{} `json:"presence,omitempty"`
	PostgresChanges []ChangeFilter         `json:"postgres_changes"`
}

type JoinPayload struct {
	Config      JoinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type ReplyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// ChangeData is the body of a postgres_changes event.
type ChangeData struct {
	Schema          string                 `json:"schema"`
	Table           string                 `json:"table"`
	CommitTimestamp string                 `json:"commit_timestamp"`
	Type            string                 `json:"type"`
	Record          json.RawMessage        `json:"record"`
	Old             map[string]interface{} `json:"old"`
	Columns         []Column               `json:"columns,omitempty"`
	Errors          interface{}            `json:"errors"`
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ChangePayload struct {
	Data ChangeData `json:"data"`
	IDs  []int      `json:"ids"`
}

// SessionTopic is the channel topic for one conversation.
func SessionTopic(sessionID string) string {
	return "realtime:session:" + sessionID
}

// SessionFilter selects inserted chat_messages rows of one session.
func SessionFilter(sessionID string) ChangeFilter {
	return ChangeFilter{
		Event:  "INSERT",
		Schema: SchemaPublic,
		Table:  TableMessages,
		Filter: "session_id=eq." + sessionID,
	}
}
