package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/infra/feishu"
)

type mockMessageRepo struct {
	members    []domain.Member
	membersErr error
	calls      int
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID, text string) error { return nil }

func (m *mockMessageRepo) SendTextToUser(ctx context.Context, userID, text string) error {
	return nil
}

func (m *mockMessageRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	return &repo.ChatInfo{ChatID: chatID}, nil
}

func (m *mockMessageRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	m.calls++
	return m.members, m.membersErr
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []*domain.Message
	err  error
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg *domain.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return h.err
}

func TestFeishuServer_ConvertsAndDeduplicates(t *testing.T) {
	repoMock := &mockMessageRepo{members: []domain.Member{{UserID: "ou_1", Name: "Asha"}, {UserID: "ou_2", Name: "Ravi"}}}
	handler := &recordingHandler{}
	s := NewFeishuServer(nil, repoMock, handler, nil)

	msg := &feishu.Message{
		ChatID:     "oc_1",
		MsgID:      "om_1",
		MsgType:    "text",
		ChatType:   "group",
		Content:    "hello",
		Sender:     &feishu.Sender{SenderID: "ou_1", SenderType: "user"},
		CreateTime: 1709806500000,
	}
	s.handleMessage(msg)
	s.handleMessage(msg)

	require.Len(t, handler.msgs, 1)
	got := handler.msgs[0]
	assert.Equal(t, domain.ChatTypeGroup, got.ChatType)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "ou_1", got.SenderID)
	assert.Equal(t, "Asha", got.SenderName)
	assert.Equal(t, int64(1709806500000), got.CreateTime.UnixMilli())

	// Second sender resolved from the cache
	s.handleMessage(&feishu.Message{ChatID: "oc_1", MsgID: "om_2", ChatType: "p2p", Content: "hi",
		Sender: &feishu.Sender{SenderID: "ou_2"}})
	require.Len(t, handler.msgs, 2)
	assert.Equal(t, "Ravi", handler.msgs[1].SenderName)
	assert.Equal(t, domain.ChatTypeP2P, handler.msgs[1].ChatType)
	assert.Equal(t, 1, repoMock.calls)
}

func TestFeishuServer_HandlerErrorIsLogged(t *testing.T) {
	repoMock := &mockMessageRepo{membersErr: errors.New("forbidden")}
	handler := &recordingHandler{err: errors.New("send failed")}
	s := NewFeishuServer(nil, repoMock, handler, nil)

	s.handleMessage(&feishu.Message{ChatID: "oc_1", MsgID: "om_1", ChatType: "p2p", Content: "hi",
		Sender: &feishu.Sender{SenderID: "ou_9"}})
	require.Len(t, handler.msgs, 1)
	assert.Equal(t, "", handler.msgs[0].SenderName)
}

func TestMarkMessageSeen_Expires(t *testing.T) {
	s := NewFeishuServer(nil, &mockMessageRepo{}, &recordingHandler{}, nil)
	t0 := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

	assert.True(t, s.markMessageSeen("om_1", t0))
	assert.False(t, s.markMessageSeen("om_1", t0.Add(time.Minute)))
	assert.True(t, s.markMessageSeen("om_1", t0.Add(seenTTL+time.Second)))
}
