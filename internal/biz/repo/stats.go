package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
)

// StatsRepo is the user/group statistics repository interface
type StatsRepo interface {
	// User operations
	TouchUser(ctx context.Context, userID, name string, at time.Time) error
	GetUser(ctx context.Context, userID string) (*domain.UserStats, error)
	TopUsers(ctx context.Context, limit int) ([]*domain.UserStats, error)
	ListUsers(ctx context.Context) ([]*domain.UserStats, error)
	CountUsers(ctx context.Context) (int, error)
	TotalMessages(ctx context.Context) (int, error)

	// Group operations
	UpsertGroup(ctx context.Context, groupID, name string) error
	SetGroupAutoReply(ctx context.Context, groupID string, enabled bool) error
	GetGroup(ctx context.Context, groupID string) (*domain.GroupSetting, error)
	ListGroups(ctx context.Context) ([]*domain.GroupSetting, error)
	CountGroups(ctx context.Context) (int, error)

	// Chat log operations
	LogChat(ctx context.Context, entry *domain.ChatLog) error
	CleanupChatLogs(ctx context.Context, before time.Time) (int64, error)
}
