package domain

import "time"

// History roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// generation service and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryEntry is one side of a persisted turn as replayed to the model.
type HistoryEntry struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Turn is a single persisted exchange. Turns are append-only.
type Turn struct {
	UserID      string
	UserMessage string
	BotResponse string
	Timestamp   time.Time
}

// Entries expands the turn into its user and assistant history entries.
func (t Turn) Entries() []HistoryEntry {
	return []HistoryEntry{
		{Role: RoleUser, Message: t.UserMessage},
		{Role: RoleAssistant, Message: t.BotResponse},
	}
}
