package usecase

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

// StatsUsecase tracks users, groups and reply logs
type StatsUsecase struct {
	statsRepo repo.StatsRepo
	ruleRepo  repo.RuleRepo
	clock     Clock
	startedAt time.Time
}

// NewStatsUsecase creates a new stats usecase
func NewStatsUsecase(statsRepo repo.StatsRepo, ruleRepo repo.RuleRepo, clock Clock) *StatsUsecase {
	if clock == nil {
		clock = time.Now
	}
	return &StatsUsecase{
		statsRepo: statsRepo,
		ruleRepo:  ruleRepo,
		clock:     clock,
		startedAt: clock(),
	}
}

// RecordUser counts one message from a user
func (uc *StatsUsecase) RecordUser(ctx context.Context, userID, name string) error {
	if userID == "" {
		return nil
	}
	return uc.statsRepo.TouchUser(ctx, userID, name, uc.clock())
}

// RecordGroup remembers the group name without touching its settings
func (uc *StatsUsecase) RecordGroup(ctx context.Context, groupID, name string) error {
	return uc.statsRepo.UpsertGroup(ctx, groupID, name)
}

// IsAutoReplyEnabled reports whether the group wants auto-replies.
// Unknown groups and lookup failures count as enabled.
func (uc *StatsUsecase) IsAutoReplyEnabled(ctx context.Context, groupID string) bool {
	group, err := uc.statsRepo.GetGroup(ctx, groupID)
	if err != nil {
		log.Warnf("[Stats] Failed to load group %s: %v", groupID, err)
		return true
	}
	if group == nil {
		return true
	}
	return group.AutoReplyEnabled
}

// SetAutoReply toggles auto-reply for a group
func (uc *StatsUsecase) SetAutoReply(ctx context.Context, groupID string, enabled bool) error {
	if groupID == "" {
		return fmt.Errorf("group id is required")
	}
	return uc.statsRepo.SetGroupAutoReply(ctx, groupID, enabled)
}

// GetGroup returns the group setting, defaulting unknown groups to enabled
func (uc *StatsUsecase) GetGroup(ctx context.Context, groupID string) (*domain.GroupSetting, error) {
	group, err := uc.statsRepo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return &domain.GroupSetting{GroupID: groupID, AutoReplyEnabled: true}, nil
	}
	return group, nil
}

// GetUser returns a user's stats, nil if the user was never seen
func (uc *StatsUsecase) GetUser(ctx context.Context, userID string) (*domain.UserStats, error) {
	return uc.statsRepo.GetUser(ctx, userID)
}

// TopUsers returns the most active users
func (uc *StatsUsecase) TopUsers(ctx context.Context, limit int) ([]*domain.UserStats, error) {
	if limit <= 0 {
		limit = 10
	}
	return uc.statsRepo.TopUsers(ctx, limit)
}

// Users returns every known user
func (uc *StatsUsecase) Users(ctx context.Context) ([]*domain.UserStats, error) {
	return uc.statsRepo.ListUsers(ctx)
}

// LogChat records an answered message
func (uc *StatsUsecase) LogChat(ctx context.Context, userID, chatID, message, response string) error {
	return uc.statsRepo.LogChat(ctx, &domain.ChatLog{
		UserID:    userID,
		ChatID:    chatID,
		Message:   message,
		Response:  response,
		Timestamp: uc.clock(),
	})
}

// CleanupChatLogs drops chat logs older than maxAge
func (uc *StatsUsecase) CleanupChatLogs(ctx context.Context, maxAge time.Duration) (int64, error) {
	return uc.statsRepo.CleanupChatLogs(ctx, uc.clock().Add(-maxAge))
}

// Summary aggregates store-wide counters
func (uc *StatsUsecase) Summary(ctx context.Context, topN int) (*domain.BotStats, error) {
	replies, err := uc.ruleRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	users, err := uc.statsRepo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := uc.statsRepo.CountGroups(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := uc.statsRepo.TotalMessages(ctx)
	if err != nil {
		return nil, err
	}
	top, err := uc.TopUsers(ctx, topN)
	if err != nil {
		return nil, err
	}

	return &domain.BotStats{
		TotalReplies:  replies,
		TotalUsers:    users,
		TotalGroups:   groups,
		TotalMessages: messages,
		StartedAt:     uc.startedAt,
		TopUsers:      top,
	}, nil
}

// Uptime returns how long the usecase has been running
func (uc *StatsUsecase) Uptime() time.Duration {
	return uc.clock().Sub(uc.startedAt)
}
