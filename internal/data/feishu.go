package data

import (
	"context"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/infra/feishu"
)

// feishuRepo implements the message repository on top of the Feishu client
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

// SendTextToUser sends a private text message
func (r *feishuRepo) SendTextToUser(ctx context.Context, userID, text string) error {
	return r.client.SendTextToUser(ctx, userID, text)
}

// GetChatInfo gets chat info
func (r *feishuRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	info, err := r.client.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, err
	}

	chatType := domain.ChatTypeGroup
	if info.ChatType == "p2p" {
		chatType = domain.ChatTypeP2P
	}

	return &repo.ChatInfo{
		ChatID:      info.ChatID,
		Name:        info.Name,
		ChatType:    chatType,
		MemberCount: info.MemberCount,
	}, nil
}

// GetChatMembers gets chat member list
func (r *feishuRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Member, 0, len(members))
	for _, m := range members {
		result = append(result, domain.Member{
			UserID: m.MemberID,
			Name:   m.Name,
		})
	}
	return result, nil
}
