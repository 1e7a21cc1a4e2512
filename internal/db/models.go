package db

// BotConfiguration is one bot_configurations row. Columns are kept as loose
// JSON so the store does not need to know every widget setting.
type BotConfiguration map[string]interface{}

func (b BotConfiguration) BotID() string {
	s, _ := b["bot_id"].(string)
	return s
}

func (b BotConfiguration) Active() bool {
	v, ok := b["is_active"].(bool)
	return ok && v
}

// Usage counts the messages a bot sent on one UTC day.
type Usage struct {
	BotID string `json:"bot_id"`
	Day   string `json:"day"`
	Count int    `json:"count"`
}
