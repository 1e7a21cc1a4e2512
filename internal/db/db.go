package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-widget/internal/chat"
)

const (
	messagesFile = "chat_messages.json"
	botsFile     = "bot_configurations.json"
	usageFile    = "usage.json"
)

// Database keeps the dev backend's tables in memory and mirrors them to JSON
// files under DataDir after every write.
type Database struct {
	Messages []chat.Message
	Bots     []BotConfiguration
	Usage    []Usage
	mu       sync.RWMutex
	DataDir  string
	now      func() time.Time
}

func New(dataDir string) *Database {
	return &Database{
		Messages: []chat.Message{},
		Bots:     []BotConfiguration{},
		Usage:    []Usage{},
		DataDir:  dataDir,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (db *Database) Load() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := readTable(filepath.Join(db.DataDir, messagesFile), &db.Messages); err != nil {
		return err
	}
	if err := readTable(filepath.Join(db.DataDir, botsFile), &db.Bots); err != nil {
		return err
	}
	return readTable(filepath.Join(db.DataDir, usageFile), &db.Usage)
}

func readTable(path string, into interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (db *Database) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.save()
}

// save expects db.mu to be held.
func (db *Database) save() error {
	if err := os.MkdirAll(db.DataDir, 0755); err != nil {
		return err
	}
	tables := map[string]interface{}{
		messagesFile: db.Messages,
		botsFile:     db.Bots,
		usageFile:    db.Usage,
	}
	for name, rows := range tables {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(db.DataDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) CreateMessage(msg chat.Message) (*chat.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if msg.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = db.now()
	}
	if msg.Metadata == nil {
		msg.Metadata = chat.Metadata{}
	}

	db.Messages = append(db.Messages, msg)
	if err := db.save(); err != nil {
		return nil, err
	}

	return &msg, nil
}

// GetMessages returns a session's rows, oldest first.
func (db *Database) GetMessages(sessionID string) []chat.Message {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []chat.Message{}
	for _, m := range db.Messages {
		if m.SessionID == sessionID {
			result = append(result, m)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result
}

// PutBot inserts a configuration row, replacing any row with the same bot_id.
func (db *Database) PutBot(row BotConfiguration) error {
	if row.BotID() == "" {
		return fmt.Errorf("bot_id is required")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := row["id"]; !ok {
		row["id"] = uuid.New().String()
	}
	if _, ok := row["is_active"]; !ok {
		row["is_active"] = true
	}
	for i, b := range db.Bots {
		if b.BotID() == row.BotID() {
			db.Bots[i] = row
			return db.save()
		}
	}
	db.Bots = append(db.Bots, row)
	return db.save()
}

// FindBots returns the rows for botID, optionally restricted to active ones.
func (db *Database) FindBots(botID string, activeOnly bool) []BotConfiguration {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []BotConfiguration{}
	for _, b := range db.Bots {
		if botID != "" && b.BotID() != botID {
			continue
		}
		if activeOnly && !b.Active() {
			continue
		}
		result = append(result, b)
	}
	return result
}

// IncrementUsage counts one message for botID today. When limit is positive
// and already reached, the counter is left alone and allowed is false.
func (db *Database) IncrementUsage(botID string, limit int) (count int, allowed bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	day := db.now().Format("2006-01-02")
	idx := -1
	for i, u := range db.Usage {
		if u.BotID == botID && u.Day == day {
			idx = i
			break
		}
	}
	if idx < 0 {
		db.Usage = append(db.Usage, Usage{BotID: botID, Day: day})
		idx = len(db.Usage) - 1
	}
	if limit > 0 && db.Usage[idx].Count >= limit {
		return db.Usage[idx].Count, false, nil
	}
	db.Usage[idx].Count++
	if err := db.save(); err != nil {
		return 0, false, err
	}
	return db.Usage[idx].Count, true, nil
}
