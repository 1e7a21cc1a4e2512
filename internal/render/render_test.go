package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
)

func TestFormatHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "url and newline",
			in:   "See https://example.com/a?b=1\n<b>bye</b> & \"thanks\"",
			want: `See <a href="https://example.com/a?b=1" target="_blank" rel="noopener noreferrer" class="chat-link">https://example.com/a?b=1</a><br>&lt;b&gt;bye&lt;/b&gt; &amp; &#34;thanks&#34;`,
		},
		{
			name: "plain",
			in:   "hello",
			want: "hello",
		},
		{
			name: "url ends at whitespace",
			in:   "go http://a.b/c now",
			want: `go <a href="http://a.b/c" target="_blank" rel="noopener noreferrer" class="chat-link">http://a.b/c</a> now`,
		},
		{
			name: "script is escaped",
			in:   "<script>alert(1)</script>",
			want: "&lt;script&gt;alert(1)&lt;/script&gt;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHTML(tt.in))
		})
	}
}

func TestAnimatable(t *testing.T) {
	assert.True(t, Animatable("hello there", true))
	assert.False(t, Animatable("hello there", false))
	assert.False(t, Animatable("line one\nline two", true))
	assert.False(t, Animatable("visit https://example.com", true))
}

func newTestTerminal(cfg *config.Config) (*Terminal, *bytes.Buffer, *[]time.Duration) {
	var buf bytes.Buffer
	var slept []time.Duration
	term := NewTerminal(&buf, cfg)
	term.SetSleep(func(d time.Duration) { slept = append(slept, d) })
	return term, &buf, &slept
}

func TestTerminalTypesAnimatedEntries(t *testing.T) {
	cfg := config.Default()
	term, buf, slept := newTestTerminal(&cfg)

	term.Append(chat.Entry{Sender: chat.SenderBot, Content: "hey", Animate: true})
	assert.Contains(t, buf.String(), "hey")
	assert.Len(t, *slept, 3)
	assert.Equal(t, 15*time.Millisecond, (*slept)[0])

	*slept = nil
	term.Append(chat.Entry{Sender: chat.SenderBot, Content: "instant"})
	assert.Contains(t, buf.String(), "instant")
	assert.Empty(t, *slept)
}

func TestTerminalEntries(t *testing.T) {
	cfg := config.Default()
	cfg.Branding.Name = "Acme"
	term, buf, _ := newTestTerminal(&cfg)

	term.Header()
	term.Append(chat.Entry{Sender: chat.SenderUser, Content: "question"})
	term.ShowTyping()
	term.ShowTyping()
	term.HideTyping()
	term.Append(chat.Entry{Sender: chat.SenderAgent, Content: "human reply"})
	term.Append(chat.Entry{Sender: chat.SenderBot, Content: "Unable to send message. Please try again.", Kind: chat.KindError})
	term.Footer()

	out := buf.String()
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Welcome! How can we assist you today?")
	assert.Contains(t, out, "question")
	assert.Contains(t, out, "You")
	assert.Equal(t, 1, strings.Count(out, "Acme is typing..."))
	assert.Contains(t, out, "Agent")
	assert.Contains(t, out, "human reply")
	assert.Contains(t, out, "! Unable to send message")
	assert.Contains(t, out, "Powered by n8n")
}

func TestTerminalShowError(t *testing.T) {
	cfg := config.Default()
	term, buf, _ := newTestTerminal(&cfg)

	term.ShowError("Failed to load chat configuration")
	assert.Contains(t, buf.String(), "Failed to load chat configuration")
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "aaa bbb\nccc", wrap("aaa bbb ccc", 7))
	assert.Equal(t, "one\n\ntwo", wrap("one\n\ntwo", 10))
}

func TestExporters(t *testing.T) {
	messages := []chat.Message{
		{ID: "1", SessionID: "s-1", Sender: chat.SenderUser, Content: "hi", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: "2", SessionID: "s-1", Sender: chat.SenderBot, Content: "see https://x.io\nbye", Metadata: chat.Metadata{chat.MetaWebhookResponse: true}},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&TextExporter{}).Export(messages, &buf))
		assert.Contains(t, buf.String(), "[user] hi")
		assert.Contains(t, buf.String(), "[bot] see https://x.io")
	})

	t.Run("html", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&HTMLExporter{}).Export(messages, &buf))
		assert.Contains(t, buf.String(), `<div class="chat-message user">hi</div>`)
		assert.Contains(t, buf.String(), `class="chat-link">https://x.io</a><br>bye`)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&JSONExporter{}).Export(messages, &buf))
		assert.Contains(t, buf.String(), `"sender_type": "bot"`)
		assert.Contains(t, buf.String(), `"is_webhook_response": true`)

		buf.Reset()
		require.NoError(t, (&JSONExporter{}).Export(nil, &buf))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&YAMLExporter{}).Export(messages, &buf))

		var decoded []map[string]interface{}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "hi", decoded[0]["content"])
	})

	for _, format := range []string{"text", "html", "json", "yaml"} {
		e, err := NewExporter(format)
		require.NoError(t, err)
		assert.NotEmpty(t, e.Extension())
	}
	_, err := NewExporter("pdf")
	assert.Error(t, err)
}
