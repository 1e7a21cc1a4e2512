package chat

import "fmt"

// ConfigError means the bot configuration could not be resolved.
type ConfigError struct {
	BotID string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.BotID == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error [%s]: %v", e.BotID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DispatchError is a failed webhook call.
type DispatchError struct {
	Op  string // "post", "decode", "shape", "empty"
	URL string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Empty reports whether the webhook answered in a valid shape without text.
func (e *DispatchError) Empty() bool {
	return e.Op == "empty"
}

// QuotaExceeded is returned when the rate-limit procedure disallows a send.
type QuotaExceeded struct {
	BotID   string
	Message string
}

func (e *QuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded [%s]: %s", e.BotID, e.Message)
}

// StorageError wraps failures of the durable session storage.
type StorageError struct {
	Key string
	Op  string // "get", "set", "remove", "open"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SubscriptionError wraps realtime channel failures.
type SubscriptionError struct {
	Topic string
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription error [%s]: %v", e.Topic, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
