package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"golang.org/x/sync/semaphore"
)

// ErrReplyPending is returned when a conversation is still waiting for the
// previous reply.
var ErrReplyPending = errors.New("reply pending")

type Replier interface {
	Chat(ctx context.Context, history []ai.Message, message string) (*ai.ChatReply, error)
}

type Service struct {
	repo              *Repo
	gateway           Replier
	contextWindowSize int
	now               func() time.Time

	mu      sync.Mutex
	pending map[string]*semaphore.Weighted
}

func NewService(repo *Repo, gateway Replier, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{
		repo:              repo,
		gateway:           gateway,
		contextWindowSize: contextWindowSize,
		now:               time.Now,
		pending:           make(map[string]*semaphore.Weighted),
	}
}

// CreateConversation starts a thread. A non-empty seed, such as a diagnosis
// summary, becomes the first user turn.
func (s *Service) CreateConversation(ctx context.Context, ownerID, seed string) (*Conversation, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conv := &Conversation{ID: id, OwnerID: ownerID, CreatedAt: s.now().UTC()}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	if seed = strings.TrimSpace(seed); seed != "" {
		if _, err := s.insert(ctx, conv, RoleUser, seed, nil); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func (s *Service) conversationFor(ctx context.Context, ownerID, conversationID string) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (s *Service) slot(conversationID string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.pending[conversationID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.pending[conversationID] = sem
	}
	return sem
}

// SendMessage stores the user turn, asks the gateway with the most recent
// turns and stores the reply. On gateway failure the user turn stays.
func (s *Service) SendMessage(ctx context.Context, ownerID, conversationID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.Validation("chat.SendMessage", "message is empty")
	}

	// 1) verify conversation ownership
	conv, err := s.conversationFor(ctx, ownerID, conversationID)
	if err != nil {
		return nil, err
	}

	sem := s.slot(conv.ID)
	if !sem.TryAcquire(1) {
		return nil, ErrReplyPending
	}
	defer sem.Release(1)

	// 2) recent history; the new turn fills the last slot of the window
	var recentDesc []Message
	if s.contextWindowSize > 1 {
		recentDesc, err = s.repo.ListRecentMessagesDesc(ctx, ownerID, conv.ID, s.contextWindowSize-1)
		if err != nil {
			return nil, err
		}
	}

	// 3) store user message
	if _, err := s.insert(ctx, conv, RoleUser, content, nil); err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	history := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}

	// 4) call gateway
	reply, err := s.gateway.Chat(ctx, history, content)
	if err != nil {
		return nil, err
	}

	// 5) store assistant message
	return s.insert(ctx, conv, RoleAssistant, reply.Text, reply.Links)
}

// Transcript returns every turn, oldest first.
func (s *Service) Transcript(ctx context.Context, ownerID, conversationID string) ([]Message, error) {
	if _, err := s.conversationFor(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	desc, err := s.repo.ListMessages(ctx, ownerID, conversationID, int(^uint(0)>>1), 0)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, desc[i])
	}
	return out, nil
}

// ListMessages pages backwards through a conversation, newest first.
func (s *Service) ListMessages(ctx context.Context, ownerID, conversationID string, limit int, beforeID uint64) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if _, err := s.conversationFor(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, ownerID, conversationID, limit, beforeID)
}

// DropOwner forgets all conversations of ownerID, used on logout.
func (s *Service) DropOwner(ctx context.Context, ownerID string) {
	s.repo.DeleteOwner(ctx, ownerID)
}

func (s *Service) insert(ctx context.Context, conv *Conversation, role, content string, links []models.Link) (*Message, error) {
	m := &Message{
		ConversationID: conv.ID,
		OwnerID:        conv.OwnerID,
		Role:           role,
		Content:        content,
		Links:          links,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
