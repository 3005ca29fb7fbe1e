package repo

import (
	"context"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
)

// ChatInfo represents chat information
type ChatInfo struct {
	ChatID      string
	Name        string
	ChatType    domain.ChatType
	MemberCount int
}

// MessageRepo is the message repository interface
// Responsible for talking to the messaging platform
type MessageRepo interface {
	// SendText sends a text message to a chat
	SendText(ctx context.Context, chatID, text string) error

	// SendTextToUser sends a text message directly to a user
	SendTextToUser(ctx context.Context, userID, text string) error

	// GetChatInfo gets chat information
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)

	// GetChatMembers gets the list of chat members
	GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error)
}
