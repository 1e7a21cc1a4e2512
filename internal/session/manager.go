package session

import (
	"errors"

	"github.com/google/uuid"

	"chat-widget/internal/chat"
	"chat-widget/internal/logger"
)

// KeyPrefix namespaces stored session ids by bot.
const KeyPrefix = "n8n_chat_session"

type Mode int

const (
	ModeNew Mode = iota
	ModeResuming
)

func (m Mode) String() string {
	if m == ModeResuming {
		return "resuming"
	}
	return "new"
}

// Handle is the current session id and how it was obtained.
type Handle struct {
	ID   string
	Mode Mode
}

// Manager creates, resumes and clears the stored session id of a bot.
// Storage failures are logged and treated as an empty store.
type Manager struct {
	storage  Storage
	remember bool
	newID    func() string
}

func NewManager(storage Storage, remember bool) *Manager {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Manager{
		storage:  storage,
		remember: remember,
		newID:    func() string { return uuid.New().String() },
	}
}

func Key(botID string) string {
	return KeyPrefix + "_" + botID
}

// Lookup returns the stored id when conversations are remembered.
func (m *Manager) Lookup(botID string) (string, bool) {
	if !m.remember {
		return "", false
	}
	key := Key(botID)
	id, err := m.storage.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logFailure(&chat.StorageError{Key: key, Op: "get", Err: err})
		}
		return "", false
	}
	if id == "" {
		return "", false
	}
	return id, true
}

func (m *Manager) ResumeOrCreate(botID string) Handle {
	if id, ok := m.Lookup(botID); ok {
		return Handle{ID: id, Mode: ModeResuming}
	}
	return m.Create(botID)
}

// Create always issues a fresh id and overwrites the stored one.
func (m *Manager) Create(botID string) Handle {
	id := m.newID()
	key := Key(botID)
	if err := m.storage.Set(key, id); err != nil {
		m.logFailure(&chat.StorageError{Key: key, Op: "set", Err: err})
	}
	logger.DebugCF("session", "Created session", map[string]interface{}{
		"bot_id":     botID,
		"session_id": id,
	})
	return Handle{ID: id, Mode: ModeNew}
}

func (m *Manager) Reset(botID string) {
	key := Key(botID)
	if err := m.storage.Remove(key); err != nil {
		m.logFailure(&chat.StorageError{Key: key, Op: "remove", Err: err})
	}
}

func (m *Manager) logFailure(err *chat.StorageError) {
	logger.DebugCF("session", "Session storage unavailable", map[string]interface{}{
		"error": err.Error(),
	})
}
