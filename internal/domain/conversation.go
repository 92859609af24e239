package domain

import "time"

// Mode is the conversation mode, fixed at creation.
type Mode string

const (
	// ModeOpenChat is free conversation with no document grounding.
	ModeOpenChat Mode = "open_chat"
	// ModeGrounded constrains answers to retrieved document chunks.
	ModeGrounded Mode = "grounded"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeOpenChat || m == ModeGrounded
}

// Role is the author of a message.
type Role string

const (
	// RoleUser is a message from the end user.
	RoleUser Role = "user"
	// RoleAssistant is a model-generated message.
	RoleAssistant Role = "assistant"
	// RoleSystem is an instruction message.
	RoleSystem Role = "system"
)

// Conversation is an ordered message history owned by a user.
// DocumentIDs is non-empty only for grounded conversations.
type Conversation struct {
	ID          string
	UserID      string
	Title       string
	Mode        Mode
	DocumentIDs []string
	TotalTokens int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is a single turn in a conversation. Seq is strictly increasing
// per conversation. Provenance is set only on assistant messages produced
// in grounded mode, listing the chunks that informed the answer.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Tokens         int
	Seq            int
	Provenance     []ProvenanceEntry
	CreatedAt      time.Time
}

// ProvenanceEntry records one chunk that contributed to an assistant answer.
type ProvenanceEntry struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}
