package realtime

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
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/v1/websocket?apikey=test&vsn=1.0.0"
}

func TestChangeFilterMatches(t *testing.T) {
	f := SessionFilter("s-1")
	assert.True(t, f.Matches("INSERT", "public", "chat_messages", map[string]interface{}{"session_id": "s-1"}))
	assert.False(t, f.Matches("INSERT", "public", "chat_messages", map[string]interface{}{"session_id": "s-2"}))
	assert.False(t, f.Matches("UPDATE", "public", "chat_messages", map[string]interface{}{"session_id": "s-1"}))
	assert.False(t, f.Matches("INSERT", "public", "bot_configurations", map[string]interface{}{"session_id": "s-1"}))
	assert.False(t, f.Matches("INSERT", "public", "chat_messages", map[string]interface{}{}))

	all := ChangeFilter{Event: "*", Schema: "public", Table: "chat_messages"}
	assert.True(t, all.Matches("INSERT", "public", "chat_messages", nil))

	unsupported := ChangeFilter{Event: "INSERT", Schema: "public", Table: "chat_messages", Filter: "session_id=neq.s-1"}
	assert.False(t, unsupported.Matches("INSERT", "public", "chat_messages", map[string]interface{}{"session_id": "s-2"}))
}

func TestSubscribeReceivesMatchingInserts(t *testing.T) {
	hub, url := startHub(t)

	received := make(chan chat.Message, 4)
	sub, err := NewSubscriber(url).Subscribe(context.Background(), "s-1", func(m chat.Message) {
		received <- m
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, "realtime:session:s-1", sub.topic)
	assert.True(t, hub.subscribed(sub.topic))

	require.NoError(t, hub.PublishInsert("public", "chat_messages", chat.Message{
		ID: "m-0", SessionID: "s-2", Content: "other session", Sender: chat.SenderBot,
	}))
	require.NoError(t, hub.PublishInsert("public", "chat_messages", chat.Message{
		ID: "m-1", SessionID: "s-1", Content: "agent here", Sender: chat.SenderAgent, CreatedAt: time.Now().UTC(),
	}))

	select {
	case m := <-received:
		assert.Equal(t, "m-1", m.ID)
		assert.Equal(t, "agent here", m.Content)
		assert.Equal(t, chat.SenderAgent, m.Sender)
	case <-time.After(2 * time.Second):
		t.Fatal("no push received")
	}

	select {
	case m := <-received:
		t.Fatalf("unexpected push %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, url := startHub(t)

	received := make(chan chat.Message, 4)
	sub, err := NewSubscriber(url).Subscribe(context.Background(), "s-1", func(m chat.Message) {
		received <- m
	})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())

	select {
	case <-sub.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}

	assert.Eventually(t, func() bool { return !hub.subscribed("realtime:session:s-1") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishInsert("public", "chat_messages", chat.Message{ID: "m-1", SessionID: "s-1"}))
	select {
	case m := <-received:
		t.Fatalf("push after unsubscribe %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHeartbeatKeepsSubscriptionAlive(t *testing.T) {
	hub, url := startHub(t)

	s := NewSubscriber(url)
	s.Heartbeat = 20 * time.Millisecond
	received := make(chan chat.Message, 1)
	sub, err := s.Subscribe(context.Background(), "s-1", func(m chat.Message) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, hub.PublishInsert("public", "chat_messages", chat.Message{ID: "m-1", SessionID: "s-1"}))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("no push after heartbeats")
	}
}

func TestSubscribeDialFailure(t *testing.T) {
	_, err := NewSubscriber("ws://127.0.0.1:1/realtime/v1/websocket").Subscribe(context.Background(), "s-1", nil)

	var subErr *chat.SubscriptionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "realtime:session:s-1", subErr.Topic)
}

func TestPublishAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.Error(t, hub.PublishInsert("public", "chat_messages", chat.Message{SessionID: "s-1"}))
}
