package store_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
	"chat-widget/internal/db"
	"chat-widget/internal/handlers"
	"chat-widget/internal/realtime"
	"chat-widget/internal/store"
)

func startBackend(t *testing.T, limits handlers.Limits) (*store.Client, *db.Database) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub()
	go hub.Run(ctx)

	database := db.New(t.TempDir())
	srv := httptest.NewServer(handlers.New(database, hub, limits))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return store.New(config.Backend{URL: srv.URL, AnonKey: "anon"}), database
}

func TestInsertAndHistory(t *testing.T) {
	client, _ := startBackend(t, handlers.Limits{})
	ctx := context.Background()

	saved, err := client.InsertMessage(ctx, chat.Message{
		SessionID: "s1",
		BotID:     "b1",
		Content:   "hello",
		Sender:    chat.SenderUser,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	_, err = client.InsertMessage(ctx, chat.Message{
		SessionID: "s1",
		BotID:     "b1",
		Content:   "hi!",
		Sender:    chat.SenderBot,
		Metadata:  chat.Metadata{chat.MetaWebhookResponse: true},
	})
	require.NoError(t, err)

	rows, err := client.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "hello", rows[0].Content)
	assert.True(t, rows[1].Metadata.Flag(chat.MetaWebhookResponse))

	rows, err = client.History(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInsertRejected(t *testing.T) {
	client, _ := startBackend(t, handlers.Limits{})
	_, err := client.InsertMessage(context.Background(), chat.Message{Content: "no session"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestBotConfiguration(t *testing.T) {
	client, database := startBackend(t, handlers.Limits{})
	require.NoError(t, database.PutBot(db.BotConfiguration{"bot_id": "b1", "bot_name": "Helper"}))

	row, err := client.BotConfiguration(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "Helper", row["bot_name"])

	_, err = client.BotConfiguration(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrBotNotFound)
}

func TestCheckQuota(t *testing.T) {
	client, _ := startBackend(t, handlers.Limits{Daily: 1})
	ctx := context.Background()

	q, err := client.CheckQuota(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, q.Allowed)

	q, err = client.CheckQuota(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, q.Allowed)
	assert.Equal(t, handlers.DefaultLimitMessage, q.Message)
}

func TestCheckQuotaResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		allowed bool
		message string
		wantErr bool
	}{
		{"object", `{"allowed":true}`, true, "", false},
		{"array", `[{"allowed":false,"message":"Try later"}]`, false, "Try later", false},
		{"missing field", `{"ok":true}`, false, "", true},
		{"invalid", `nope`, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/rest/v1/rpc/increment_message_count", r.URL.Path)
				assert.Equal(t, "anon", r.Header.Get("apikey"))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			q, err := store.New(config.Backend{URL: srv.URL, AnonKey: "anon"}).CheckQuota(context.Background(), "b1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, q.Allowed)
			assert.Equal(t, tt.message, q.Message)
		})
	}
}

func TestHistoryDecodesPostgresRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.s1", r.URL.Query().Get("session_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":17,"session_id":"s1","bot_id":"b1","content":"hello","sender_type":"user","metadata":{},"created_at":"2025-01-01T10:00:00.123456"},
			{"id":18,"session_id":"s1","bot_id":"b1","content":"hi there","sender_type":"bot","metadata":{"is_webhook_response":true},"created_at":"2025-01-01 10:00:01.5+00"}
		]`))
	}))
	defer srv.Close()

	rows, err := store.New(config.Backend{URL: srv.URL}).History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "17", rows[0].ID)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 123456000, time.UTC), rows[0].CreatedAt)
	assert.Equal(t, "18", rows[1].ID)
	assert.True(t, rows[1].Metadata.Flag(chat.MetaWebhookResponse))
}

func TestInsertDecodesNumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":99,"session_id":"s1","content":"hello","sender_type":"user","created_at":"2025-01-01T10:00:00"}]`))
	}))
	defer srv.Close()

	row, err := store.New(config.Backend{URL: srv.URL}).InsertMessage(context.Background(), chat.Message{SessionID: "s1", Content: "hello", Sender: chat.SenderUser})
	require.NoError(t, err)
	assert.Equal(t, "99", row.ID)
	assert.Equal(t, 10, row.CreatedAt.Hour())
}

func TestServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := store.New(config.Backend{URL: srv.URL}).History(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestRealtimeURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://abc.supabase.co", "wss://abc.supabase.co/realtime/v1/websocket?apikey=k&vsn=1.0.0"},
		{"http://localhost:8000", "ws://localhost:8000/realtime/v1/websocket?apikey=k&vsn=1.0.0"},
	}
	for _, tt := range tests {
		got, err := store.New(config.Backend{URL: tt.base, AnonKey: "k"}).RealtimeURL()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRealtimeEndToEnd(t *testing.T) {
	client, _ := startBackend(t, handlers.Limits{})
	url, err := client.RealtimeURL()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "ws://"))

	received := make(chan chat.Message, 1)
	sub, err := realtime.NewSubscriber(url).Subscribe(context.Background(), "s1", func(m chat.Message) {
		received <- m
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = client.InsertMessage(context.Background(), chat.Message{SessionID: "s1", Content: "pushed", Sender: chat.SenderAgent})
	require.NoError(t, err)

	select {
	case m := <-received:
		assert.Equal(t, "pushed", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("no push received")
	}
}
