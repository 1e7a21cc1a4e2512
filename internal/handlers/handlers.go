package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"chat-widget/internal/chat"
	"chat-widget/internal/db"
	"chat-widget/internal/dispatch"
	"chat-widget/internal/logger"
	"chat-widget/internal/realtime"
)

const (
	DefaultLimitMessage = "Message limit reached. Please try again later."
	burstMessage        = "Too many messages. Please slow down."
)

// Limits configures the rate-limit procedure.
type Limits struct {
	// Daily caps messages per bot and UTC day. Zero means unlimited.
	Daily int
	// PerSecond and Burst shape short bursts per bot. Zero PerSecond disables it.
	PerSecond float64
	Burst     int
}

type Handler struct {
	DB     *db.Database
	Hub    *realtime.Hub
	Limits Limits

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(database *db.Database, hub *realtime.Hub, limits Limits) *Handler {
	return &Handler{
		DB:       database,
		Hub:      hub,
		Limits:   limits,
		limiters: map[string]*rate.Limiter{},
	}
}

func extractEqValue(s string) string {
	if strings.HasPrefix(s, "eq.") {
		return s[3:]
	}
	return s
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/rest/v1/chat_messages"):
		h.handleMessages(w, r)
	case strings.HasPrefix(path, "/rest/v1/bot_configurations"):
		h.handleBotConfigurations(w, r)
	case path == "/rest/v1/rpc/increment_message_count":
		h.handleIncrementMessageCount(w, r)
	case strings.HasPrefix(path, "/realtime/v1/websocket"):
		realtime.ServeWs(h.Hub, w, r)
	case path == "/webhook/echo":
		h.handleEchoWebhook(w, r)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugCF("handlers", "Failed to write response", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var msg chat.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		created, err := h.DB.CreateMessage(msg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := h.Hub.PublishInsert(realtime.SchemaPublic, realtime.TableMessages, created); err != nil {
			logger.WarnCF("handlers", "Failed to publish row", map[string]interface{}{
				"session_id": created.SessionID,
				"error":      err.Error(),
			})
		}

		if strings.Contains(r.Header.Get("Prefer"), "return=minimal") {
			w.WriteHeader(http.StatusCreated)
			return
		}
		writeJSON(w, http.StatusCreated, []*chat.Message{created})

	case http.MethodGet:
		// session_id=eq.{sessionId}
		sessionIDParam := r.URL.Query().Get("session_id")
		if sessionIDParam == "" {
			http.Error(w, "Missing session_id parameter", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, h.DB.GetMessages(extractEqValue(sessionIDParam)))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBotConfigurations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	botID := extractEqValue(q.Get("bot_id"))
	activeOnly := extractEqValue(q.Get("is_active")) == "true"
	writeJSON(w, http.StatusOK, h.DB.FindBots(botID, activeOnly))
}

type quotaResult struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) handleIncrementMessageCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		BotID string `json:"p_bot_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BotID == "" {
		http.Error(w, "p_bot_id is required", http.StatusBadRequest)
		return
	}

	if lim := h.limiter(body.BotID); lim != nil && !lim.Allow() {
		writeJSON(w, http.StatusOK, quotaResult{Allowed: false, Message: burstMessage})
		return
	}

	count, allowed, err := h.DB.IncrementUsage(body.BotID, h.Limits.Daily)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !allowed {
		logger.InfoCF("handlers", "Daily message limit reached", map[string]interface{}{
			"bot_id": body.BotID,
			"count":  count,
		})
		writeJSON(w, http.StatusOK, quotaResult{Allowed: false, Message: DefaultLimitMessage})
		return
	}
	writeJSON(w, http.StatusOK, quotaResult{Allowed: true})
}

func (h *Handler) limiter(botID string) *rate.Limiter {
	if h.Limits.PerSecond <= 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.limiters[botID]
	if !ok {
		burst := h.Limits.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(h.Limits.PerSecond), burst)
		h.limiters[botID] = lim
	}
	return lim
}

// handleEchoWebhook is a stand-in workflow that answers every message with
// an echo. The opening request gets an array-wrapped greeting, like a
// workflow that returns all items.
func (h *Handler) handleEchoWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var env dispatch.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		var batch []dispatch.Envelope
		if err := json.Unmarshal(raw, &batch); err != nil || len(batch) == 0 {
			http.Error(w, "unrecognised envelope", http.StatusBadRequest)
			return
		}
		env = batch[0]
	}

	if env.Action == dispatch.ActionLoadPreviousSession {
		writeJSON(w, http.StatusOK, []map[string]string{{"output": "Hi! Ask me anything and I will say it back."}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": fmt.Sprintf("You said: %s", env.ChatInput)})
}
