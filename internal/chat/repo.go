package chat

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned for unknown conversations and for conversations of
// another owner.
var ErrNotFound = errors.New("conversation not found")

// Repo keeps conversations and messages in memory. Message ids increase
// across all conversations.
type Repo struct {
	mu            sync.RWMutex
	nextID        uint64
	conversations map[string]*Conversation
	messages      map[string][]Message
}

func NewRepo() *Repo {
	return &Repo{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
	}
}

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[c.ID]; ok {
		return errors.New("conversation already exists")
	}
	cp := *c
	r.conversations[c.ID] = &cp
	return nil
}

func (r *Repo) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// InsertMessage appends m and assigns its id.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[m.ConversationID]; !ok {
		return ErrNotFound
	}
	r.nextID++
	m.ID = r.nextID
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], *m)
	return nil
}

// ListMessages returns messages in DESC id order (newest -> oldest).
func (r *Repo) ListMessages(ctx context.Context, ownerID, conversationID string, limit int, beforeID uint64) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	out := make([]Message, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		m := all[i]
		if m.OwnerID != ownerID {
			continue
		}
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ListRecentMessagesDesc returns the most recent messages in DESC id order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, ownerID, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.ListMessages(ctx, ownerID, conversationID, limit, 0)
}

// DeleteOwner drops every conversation of ownerID.
func (r *Repo) DeleteOwner(ctx context.Context, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conversations {
		if c.OwnerID == ownerID {
			delete(r.conversations, id)
			delete(r.messages, id)
		}
	}
}
