package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chat-widget/internal/chat"
	"chat-widget/internal/logger"
)

const (
	// DefaultHeartbeat is how often the client proves liveness to the server.
	DefaultHeartbeat = 25 * time.Second

	joinTimeout = 10 * time.Second
)

// MessageHandler receives rows inserted into a subscribed session. It runs on
// the subscription's read goroutine.
type MessageHandler func(chat.Message)

// Subscriber opens session channels on a realtime endpoint.
type Subscriber struct {
	URL       string
	Heartbeat time.Duration
	Dialer    *websocket.Dialer
}

func NewSubscriber(url string) *Subscriber {
	return &Subscriber{URL: url, Heartbeat: DefaultHeartbeat, Dialer: websocket.DefaultDialer}
}

// Subscription is a joined session channel. Release it with Unsubscribe.
type Subscription struct {
	topic   string
	conn    *websocket.Conn
	handle  MessageHandler
	writeMu sync.Mutex
	ref     atomic.Int64
	done    chan struct{}
	closed  chan struct{} // closed when the read loop stops
	once    sync.Once
}

// Subscribe joins the channel of sessionID and delivers inserted rows to handle.
func (s *Subscriber) Subscribe(ctx context.Context, sessionID string, handle MessageHandler) (*Subscription, error) {
	topic := SessionTopic(sessionID)
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return nil, &chat.SubscriptionError{Topic: topic, Err: err}
	}

	sub := &Subscription{
		topic:  topic,
		conn:   conn,
		handle: handle,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}

	ref := sub.nextRef()
	join := OutgoingMessage{
		Topic: topic,
		Event: EventJoin,
		Ref:   ref,
		Payload: JoinPayload{
			Config: JoinConfig{
				Broadcast:       map[string]interface{}{"self": false},
				Presence:        map[string]interface{}{"key": ""},
				PostgresChanges: []ChangeFilter{SessionFilter(sessionID)},
			},
		},
	}
	if err := sub.write(join); err != nil {
		conn.Close()
		return nil, &chat.SubscriptionError{Topic: topic, Err: err}
	}
	if err := sub.awaitJoin(ctx, ref); err != nil {
		conn.Close()
		return nil, &chat.SubscriptionError{Topic: topic, Err: err}
	}

	interval := s.Heartbeat
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	go sub.readLoop()
	go sub.heartbeat(interval)

	logger.DebugCF("realtime", "Subscribed", map[string]interface{}{"topic": topic})
	return sub, nil
}

// Unsubscribe leaves the channel and closes the connection. Rows that arrive
// afterwards are not delivered. It is safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.write(OutgoingMessage{Topic: s.topic, Event: EventLeave, Payload: map[string]string{}, Ref: s.nextRef()})

		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()

		err = s.conn.Close()
		logger.DebugCF("realtime", "Unsubscribed", map[string]interface{}{"topic": s.topic})
	})
	return err
}

func (s *Subscription) nextRef() string {
	return strconv.FormatInt(s.ref.Add(1), 10)
}

func (s *Subscription) write(msg OutgoingMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Subscription) awaitJoin(ctx context.Context, ref string) error {
	deadline := time.Now().Add(joinTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await join reply: %w", err)
		}
		var msg IncomingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Topic != s.topic {
			continue
		}
		if msg.Event == EventChanges {
			s.dispatch(msg)
			continue
		}
		if msg.Event != EventReply || msg.RefString() != ref {
			continue
		}
		var reply ReplyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("decode join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("join rejected: %s %s", reply.Status, string(reply.Response))
		}
		return nil
	}
}

func (s *Subscription) readLoop() {
	defer close(s.closed)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				logger.WarnCF("realtime", "Subscription dropped", map[string]interface{}{
					"topic": s.topic,
					"error": err.Error(),
				})
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.DebugCF("realtime", "Ignoring malformed frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		if msg.Topic != s.topic {
			continue
		}
		switch msg.Event {
		case EventChanges:
			s.dispatch(msg)
		case EventError:
			logger.WarnCF("realtime", "Channel error", map[string]interface{}{
				"topic":   s.topic,
				"payload": string(msg.Payload),
			})
		}
	}
}

func (s *Subscription) dispatch(msg IncomingMessage) {
	select {
	case <-s.done:
		return
	default:
	}

	var change ChangePayload
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		logger.WarnCF("realtime", "Undecodable change", map[string]interface{}{"error": err.Error()})
		return
	}
	if change.Data.Type != "INSERT" || len(change.Data.Record) == 0 {
		return
	}
	row, err := chat.DecodeRow(change.Data.Record)
	if err != nil {
		logger.WarnCF("realtime", "Undecodable record", map[string]interface{}{"error": err.Error()})
		return
	}
	if s.handle != nil {
		s.handle(row)
	}
}

func (s *Subscription) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-s.closed:
			return
		case <-ticker.C:
			err := s.write(OutgoingMessage{Topic: TopicPhoenix, Event: EventHeartbeat, Payload: map[string]string{}, Ref: s.nextRef()})
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				logger.DebugCF("realtime", "Heartbeat failed", map[string]interface{}{"error": err.Error()})
				return
			}
		}
	}
}
