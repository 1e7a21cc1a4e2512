package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-widget/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection to the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string][]ChangeFilter
}

type change struct {
	schema string
	table  string
	record json.RawMessage
	fields map[string]interface{}
	at     time.Time
}

// Hub fans row inserts out to the channels whose filters match them.
type Hub struct {
	clients    map[*Client]bool
	publish    chan *change
	unregister chan *Client
	done       chan struct{}
	nextID     int
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		publish:    make(chan *change),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case c := <-h.publish:
			h.deliver(c)
		}
	}
}

func (h *Hub) deliver(c *change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
	topics:
		for topic, filters := range client.topics {
			var ids []int
			for _, f := range filters {
				if f.Matches("INSERT", c.schema, c.table, c.fields) {
					ids = append(ids, f.ID)
				}
			}
			if len(ids) == 0 {
				continue
			}
			data, err := json.Marshal(OutgoingMessage{
				Topic: topic,
				Event: EventChanges,
				Payload: ChangePayload{
					Data: ChangeData{
						Schema:          c.schema,
						Table:           c.table,
						CommitTimestamp: c.at.Format(time.RFC3339Nano),
						Type:            "INSERT",
						Record:          c.record,
						Old:             map[string]interface{}{},
					},
					IDs: ids,
				},
			})
			if err != nil {
				continue
			}
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(h.clients, client)
				break topics
			}
		}
	}
}

// PublishInsert announces a new row. It returns an error once the hub has stopped.
func (h *Hub) PublishInsert(schema, table string, record interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("record is not an object: %w", err)
	}

	select {
	case h.publish <- &change{schema: schema, table: table, record: raw, fields: fields, at: time.Now().UTC()}:
		return nil
	case <-h.done:
		return fmt.Errorf("realtime hub stopped")
	}
}

func (h *Hub) attach(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.clients[client] = true
	return true
}

// subscribed reports whether any client has joined topic.
func (h *Hub) subscribed(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if _, ok := client.topics[topic]; ok {
			return true
		}
	}
	return false
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WarnCF("realtime", "Websocket read failed", map[string]interface{}{"error": err.Error()})
			}
			break
		}
		// Any frame from the peer counts as liveness.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.WarnCF("realtime", "Dropping malformed frame", map[string]interface{}{"error": err.Error()})
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg IncomingMessage) {
	switch msg.Event {
	case EventJoin:
		var join JoinPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &join); err != nil {
				c.reply(msg, "error", map[string]string{"reason": "invalid join payload"})
				return
			}
		}

		c.hub.mu.Lock()
		filters := make([]ChangeFilter, 0, len(join.Config.PostgresChanges))
		for _, f := range join.Config.PostgresChanges {
			c.hub.nextID++
			f.ID = c.hub.nextID
			filters = append(filters, f)
		}
		c.topics[msg.Topic] = filters
		c.hub.mu.Unlock()

		logger.DebugCF("realtime", "Channel joined", map[string]interface{}{
			"topic":   msg.Topic,
			"filters": len(filters),
		})

		c.reply(msg, "ok", map[string]interface{}{"postgres_changes": filters})
		c.sendJSON(OutgoingMessage{
			Topic: msg.Topic,
			Event: EventSystem,
			Payload: map[string]interface{}{
				"channel":   strings.TrimPrefix(msg.Topic, "realtime:"),
				"message":   "Subscribed to PostgreSQL",
				"extension": "postgres_changes",
				"status":    "ok",
			},
		})
	case EventHeartbeat:
		c.reply(msg, "ok", map[string]string{})

	case EventLeave:
		c.hub.mu.Lock()
		delete(c.topics, msg.Topic)
		c.hub.mu.Unlock()

		c.reply(msg, "ok", map[string]string{})
		c.sendJSON(OutgoingMessage{Topic: msg.Topic, Event: EventClose, Payload: map[string]string{}})
	}
}

func (c *Client) reply(msg IncomingMessage, status string, response interface{}) {
	c.sendJSON(OutgoingMessage{
		Topic: msg.Topic,
		Event: EventReply,
		Ref:   msg.RefString(),
		Payload: map[string]interface{}{
			"status":   status,
			"response": response,
		},
	})
}

// sendJSON queues a frame unless the hub already dropped the client.
func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush frames queued while writing.
			n := len(c.send)
			for i := 0; i < n; i++ {
				msg, ok := <-c.send
				if !ok {
					break
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the connection to the hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("realtime", "Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), topics: make(map[string][]ChangeFilter)}
	if !hub.attach(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
