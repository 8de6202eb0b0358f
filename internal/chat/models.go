package chat

import (
	"time"

	"github.com/suPer8Hu/agroguard/internal/models"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one chat thread. It lives in memory only.
type Conversation struct {
	ID        string    `json:"conversation_id"`
	OwnerID   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             uint64        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	OwnerID        string        `json:"-"`
	Role           string        `json:"role"`
	Content        string        `json:"content"`
	Links          []models.Link `json:"links,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
