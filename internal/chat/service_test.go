package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// opencensus, pulled in through the genai SDK, starts a worker in init
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type recordingProvider struct {
	mu          sync.Mutex
	lastHistory []ai.Message
	lastMessage string
	err         error
	block       chan struct{}
	started     chan struct{}
}

func (p *recordingProvider) Chat(ctx context.Context, history []ai.Message, message string) (*ai.ChatReply, error) {
	if p.started != nil {
		close(p.started)
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// copy to avoid mutations
	p.lastHistory = append([]ai.Message(nil), history...)
	p.lastMessage = message
	if p.err != nil {
		return nil, p.err
	}
	return &ai.ChatReply{Text: "ok", Links: []models.Link{{Title: "a", URI: "https://a"}}}, nil
}

func TestSendMessage_WritesUserAndAssistant(t *testing.T) {
	ctx := context.Background()
	prov := &recordingProvider{}
	svc := NewService(NewRepo(), prov, 20)

	conv, err := svc.CreateConversation(ctx, "u_1", "")
	require.NoError(t, err)

	reply, err := svc.SendMessage(ctx, "u_1", conv.ID, " Hello ")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.Equal(t, RoleAssistant, reply.Role)
	assert.NotZero(t, reply.ID)
	assert.Equal(t, "Hello", prov.lastMessage)
	assert.Empty(t, prov.lastHistory)

	msgs, err := svc.Transcript(ctx, "u_1", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Links, 1)
}

func TestSendMessage_UsesContextWindow(t *testing.T) {
	ctx := context.Background()
	prov := &recordingProvider{}
	repo := NewRepo()
	window := 3
	svc := NewService(repo, prov, window)

	conv, err := svc.CreateConversation(ctx, "u_2", "")
	require.NoError(t, err)

	// seed messages: 5 messages already in history
	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		require.NoError(t, repo.InsertMessage(ctx, &Message{
			ConversationID: conv.ID,
			OwnerID:        "u_2",
			Role:           role,
			Content:        "seed",
		}))
	}

	_, err = svc.SendMessage(ctx, "u_2", conv.ID, "new")
	require.NoError(t, err)

	// history plus the new message fill the window
	assert.Len(t, prov.lastHistory, window-1)
	assert.Equal(t, "new", prov.lastMessage)
	assert.Equal(t, RoleUser, prov.lastHistory[len(prov.lastHistory)-1].Role)
}

func TestSeedIsFirstUserTurn(t *testing.T) {
	ctx := context.Background()
	prov := &recordingProvider{}
	svc := NewService(NewRepo(), prov, 20)

	conv, err := svc.CreateConversation(ctx, "u_1", "Diagnosis: Tomato Late Blight, Severe")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u_1", conv.ID, "What should I spray?")
	require.NoError(t, err)

	require.Len(t, prov.lastHistory, 1)
	assert.Equal(t, ai.Message{Role: RoleUser, Content: "Diagnosis: Tomato Late Blight, Severe"}, prov.lastHistory[0])
}

func TestForeignConversationIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepo(), &recordingProvider{}, 20)

	conv, err := svc.CreateConversation(ctx, "u_1", "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "u_other", conv.ID, "hi")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Transcript(ctx, "u_other", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SendMessage(ctx, "u_1", "missing", "hi")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SendMessage(ctx, "u_1", conv.ID, "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestGatewayFailureKeepsUserTurn(t *testing.T) {
	ctx := context.Background()
	prov := &recordingProvider{err: common.Network("ai.Chat", errors.New("offline"))}
	svc := NewService(NewRepo(), prov, 20)

	conv, err := svc.CreateConversation(ctx, "u_1", "")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u_1", conv.ID, "anyone there?")
	assert.ErrorIs(t, err, common.ErrNetwork)

	msgs, err := svc.Transcript(ctx, "u_1", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "anyone there?", msgs[0].Content)
}

func TestSecondSendWhilePendingFails(t *testing.T) {
	ctx := context.Background()
	prov := &recordingProvider{block: make(chan struct{}), started: make(chan struct{})}
	svc := NewService(NewRepo(), prov, 20)

	conv, err := svc.CreateConversation(ctx, "u_1", "")
	require.NoError(t, err)
	other, err := svc.CreateConversation(ctx, "u_1", "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(ctx, "u_1", conv.ID, "first")
		done <- err
	}()
	<-prov.started

	_, err = svc.SendMessage(ctx, "u_1", conv.ID, "second")
	assert.ErrorIs(t, err, ErrReplyPending)

	close(prov.block)
	require.NoError(t, <-done)

	prov.started = nil
	prov.block = nil
	_, err = svc.SendMessage(ctx, "u_1", other.ID, "elsewhere")
	assert.NoError(t, err)
}

func TestListMessagesPages(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepo(), &recordingProvider{}, 20)
	conv, err := svc.CreateConversation(ctx, "u_1", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, "u_1", conv.ID, "q")
		require.NoError(t, err)
	}

	page, err := svc.ListMessages(ctx, "u_1", conv.ID, 4, 0)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Greater(t, page[0].ID, page[3].ID)

	rest, err := svc.ListMessages(ctx, "u_1", conv.ID, 4, page[3].ID)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	svc.DropOwner(ctx, "u_1")
	_, err = svc.Transcript(ctx, "u_1", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
