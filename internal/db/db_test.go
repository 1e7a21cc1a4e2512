package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/chat"
)

func TestCreateAndListMessages(t *testing.T) {
	database := New(t.TempDir())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := database.CreateMessage(chat.Message{SessionID: "s1", Content: "second", Sender: chat.SenderBot, CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)
	first, err := database.CreateMessage(chat.Message{SessionID: "s1", Content: "first", Sender: chat.SenderUser, CreatedAt: base})
	require.NoError(t, err)
	_, err = database.CreateMessage(chat.Message{SessionID: "s2", Content: "other", Sender: chat.SenderUser})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotNil(t, first.Metadata)

	rows := database.GetMessages("s1")
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Content)
	assert.Equal(t, "second", rows[1].Content)
	assert.Empty(t, database.GetMessages("missing"))
}

func TestCreateMessageRequiresSession(t *testing.T) {
	database := New(t.TempDir())
	_, err := database.CreateMessage(chat.Message{Content: "x"})
	assert.Error(t, err)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	database := New(dir)
	_, err := database.CreateMessage(chat.Message{SessionID: "s1", Content: "hello", Sender: chat.SenderUser, Metadata: chat.Metadata{"is_welcome": true}})
	require.NoError(t, err)
	require.NoError(t, database.PutBot(BotConfiguration{"bot_id": "b1", "bot_name": "Helper"}))
	_, _, err = database.IncrementUsage("b1", 0)
	require.NoError(t, err)

	for _, name := range []string{messagesFile, botsFile, usageFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	reloaded := New(dir)
	require.NoError(t, reloaded.Load())
	rows := reloaded.GetMessages("s1")
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Metadata.Flag("is_welcome"))
	require.Len(t, reloaded.FindBots("b1", true), 1)
	assert.Equal(t, "Helper", reloaded.FindBots("b1", true)[0]["bot_name"])
	require.Len(t, reloaded.Usage, 1)
	assert.Equal(t, 1, reloaded.Usage[0].Count)
}

func TestLoadMissingDirectory(t *testing.T) {
	database := New(filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, database.Load())
}

func TestLoadCorruptTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, messagesFile), []byte("{not json"), 0644))
	assert.Error(t, New(dir).Load())
}

func TestPutBotReplacesAndFilters(t *testing.T) {
	database := New(t.TempDir())
	require.NoError(t, database.PutBot(BotConfiguration{"bot_id": "b1", "bot_name": "Old"}))
	require.NoError(t, database.PutBot(BotConfiguration{"bot_id": "b1", "bot_name": "New"}))
	require.NoError(t, database.PutBot(BotConfiguration{"bot_id": "b2", "is_active": false}))

	rows := database.FindBots("b1", true)
	require.Len(t, rows, 1)
	assert.Equal(t, "New", rows[0]["bot_name"])
	assert.Empty(t, database.FindBots("b2", true))
	assert.Len(t, database.FindBots("b2", false), 1)
	assert.Len(t, database.FindBots("", false), 2)

	assert.Error(t, database.PutBot(BotConfiguration{"bot_name": "nameless"}))
}

func TestIncrementUsageHonoursDailyLimit(t *testing.T) {
	database := New(t.TempDir())
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	database.now = func() time.Time { return day }

	for i := 1; i <= 2; i++ {
		count, allowed, err := database.IncrementUsage("b1", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}
	count, allowed, err := database.IncrementUsage("b1", 2)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, count)

	day = day.Add(24 * time.Hour)
	_, allowed, err = database.IncrementUsage("b1", 2)
	require.NoError(t, err)
	assert.True(t, allowed, "counter resets on a new day")
}
