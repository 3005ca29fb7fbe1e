package domain

import "time"

// UserStats tracks per-user activity
type UserStats struct {
	UserID       string
	Name         string
	MessageCount int
	LastSeen     time.Time
}

// Rank is the activity tier of a user
type Rank string

const (
	RankGold    Rank = "🏆 Gold"
	RankSilver  Rank = "🥈 Silver"
	RankBronze  Rank = "🥉 Bronze"
	RankActive  Rank = "⭐ Active"
	RankRegular Rank = "👍 Regular"
	RankNew     Rank = "👶 New"
)

// RankFor returns the tier for a message count
func RankFor(messageCount int) Rank {
	switch {
	case messageCount >= 1000:
		return RankGold
	case messageCount >= 500:
		return RankSilver
	case messageCount >= 100:
		return RankBronze
	case messageCount >= 50:
		return RankActive
	case messageCount >= 10:
		return RankRegular
	default:
		return RankNew
	}
}

// Rank returns the user's activity tier
func (u *UserStats) Rank() Rank {
	return RankFor(u.MessageCount)
}

// GroupSetting holds per-group bot settings
// A group without a stored setting has auto-reply enabled.
type GroupSetting struct {
	GroupID          string
	GroupName        string
	AutoReplyEnabled bool
	UpdatedAt        time.Time
}

// ChatLog records one auto-reply exchange
type ChatLog struct {
	ID        int64
	UserID    string
	ChatID    string
	Message   string
	Response  string
	Timestamp time.Time
}

// BotStats aggregates store-wide counters
type BotStats struct {
	TotalReplies  int
	TotalUsers    int
	TotalGroups   int
	TotalMessages int
	StartedAt     time.Time
	TopUsers      []*UserStats
}
