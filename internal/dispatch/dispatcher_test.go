package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/chat"
	"chat-widget/internal/store"
)

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  string
		errOp string
	}{
		{"object", `{"output":"hi"}`, "hi", ""},
		{"array", `[{"output":"hi"}]`, "hi", ""},
		{"extra fields", `{"output":"hi","intermediateSteps":[]}`, "hi", ""},
		{"invalid json", `<html>oops</html>`, "", "decode"},
		{"empty body", ``, "", "decode"},
		{"missing output", `{"text":"hi"}`, "", "shape"},
		{"number output", `{"output":42}`, "", "shape"},
		{"empty array", `[]`, "", "shape"},
		{"bare string", `"hi"`, "", "shape"},
		{"empty output", `{"output":""}`, "", "empty"},
		{"null output", `[{"output":null}]`, "", "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutput([]byte(tt.body))
			if tt.errOp == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			var de *chat.DispatchError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.errOp, de.Op)
		})
	}
}

func TestBothShapesRenderSameText(t *testing.T) {
	a, err := ParseOutput([]byte(`{"output":"hi"}`))
	require.NoError(t, err)
	b, err := ParseOutput([]byte(`[{"output":"hi"}]`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSendPostsEnvelope(t *testing.T) {
	var got Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"output":"pong"}]`))
	}))
	defer srv.Close()

	d := New(Options{URL: srv.URL, BotID: "bot-1", Route: "sales"})
	reply, err := d.Send(context.Background(), "s-1", "ping")
	require.NoError(t, err)

	assert.Equal(t, "pong", reply.Output)
	assert.Equal(t, Envelope{
		Action:    ActionSendMessage,
		SessionID: "s-1",
		BotID:     "bot-1",
		Route:     "sales",
		ChatInput: "ping",
	}, got)
}

func TestLoadPreviousSessionWrapsEnvelope(t *testing.T) {
	var got []Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"output":"Hello there"}`))
	}))
	defer srv.Close()

	d := New(Options{URL: srv.URL})
	reply, err := d.LoadPreviousSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply.Output)
	require.Len(t, got, 1)
	assert.Equal(t, ActionLoadPreviousSession, got[0].Action)
	assert.Equal(t, "general", got[0].Route)
	assert.Empty(t, got[0].ChatInput)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := New(Options{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := d.Send(context.Background(), "s-1", "ping")

	var de *chat.DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "post", de.Op)
	assert.Equal(t, srv.URL, de.URL)
}

func TestInvalidJSONIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	_, err := New(Options{URL: srv.URL}).Send(context.Background(), "s-1", "ping")
	var de *chat.DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "decode", de.Op)
	assert.Equal(t, srv.URL, de.URL)
}

type fakeQuota struct {
	quota store.Quota
	err   error
}

func (f fakeQuota) CheckQuota(ctx context.Context, botID string) (store.Quota, error) {
	return f.quota, f.err
}

func TestQuotaDisallowedSkipsWebhook(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"output":"hi"}`))
	}))
	defer srv.Close()

	d := New(Options{URL: srv.URL, BotID: "bot-1", Quota: fakeQuota{quota: store.Quota{Allowed: false, Message: "Try later"}}})
	_, err := d.Send(context.Background(), "s-1", "ping")

	var qe *chat.QuotaExceeded
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "Try later", qe.Message)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestQuotaDefaultMessage(t *testing.T) {
	d := New(Options{URL: "http://unused", Quota: fakeQuota{quota: store.Quota{Allowed: false}}})
	err := d.CheckQuota(context.Background())

	var qe *chat.QuotaExceeded
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "Message limit reached. Please try again later.", qe.Message)
}

func TestQuotaFailureLetsSendThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output":"hi"}`))
	}))
	defer srv.Close()

	d := New(Options{URL: srv.URL, Quota: fakeQuota{err: errors.New("rpc down")}})
	reply, err := d.Send(context.Background(), "s-1", "ping")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply.Output)
}
