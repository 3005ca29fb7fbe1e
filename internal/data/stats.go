package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

// statsRepo implements the user/group statistics repository
type statsRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewStatsRepo creates a new stats repository
func NewStatsRepo(db *sql.DB) (repo.StatsRepo, error) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			last_seen INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_settings (
			group_id TEXT PRIMARY KEY,
			group_name TEXT NOT NULL DEFAULT '',
			auto_reply_enabled INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_logs_timestamp ON chat_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_user_stats_count ON user_stats(message_count)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create stats schema: %w", err)
		}
	}

	return &statsRepo{db: db, now: time.Now}, nil
}

// ============ Users ============

// TouchUser counts one message and refreshes the user's name and last seen time
func (r *statsRepo) TouchUser(ctx context.Context, userID, name string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, name, message_count, last_seen)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE user_stats.name END,
			message_count = user_stats.message_count + 1,
			last_seen = excluded.last_seen
	`, userID, name, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}

// GetUser gets a user's stats
func (r *statsRepo) GetUser(ctx context.Context, userID string) (*domain.UserStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, name, message_count, last_seen
		FROM user_stats
		WHERE user_id = ?
	`, userID)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	return user, nil
}

// TopUsers returns users ordered by message count
func (r *statsRepo) TopUsers(ctx context.Context, limit int) ([]*domain.UserStats, error) {
	return r.queryUsers(ctx, `
		SELECT user_id, name, message_count, last_seen
		FROM user_stats
		ORDER BY message_count DESC, user_id
		LIMIT ?
	`, limit)
}

// ListUsers returns all users
func (r *statsRepo) ListUsers(ctx context.Context) ([]*domain.UserStats, error) {
	return r.queryUsers(ctx, `
		SELECT user_id, name, message_count, last_seen
		FROM user_stats
		ORDER BY message_count DESC, user_id
	`)
}

func (r *statsRepo) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.UserStats, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.UserStats
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountUsers returns the number of known users
func (r *statsRepo) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_stats`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// TotalMessages sums the message counts of all users
func (r *statsRepo) TotalMessages(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM user_stats`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum messages: %w", err)
	}
	return total, nil
}

func scanUser(row rowScanner) (*domain.UserStats, error) {
	var user domain.UserStats
	var lastSeen int64
	if err := row.Scan(&user.UserID, &user.Name, &user.MessageCount, &lastSeen); err != nil {
		return nil, err
	}
	user.LastSeen = time.Unix(lastSeen, 0)
	return &user, nil
}

// ============ Groups ============

// UpsertGroup records a group name; the auto-reply flag is left as is
func (r *statsRepo) UpsertGroup(ctx context.Context, groupID, name string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_settings (group_id, group_name, auto_reply_enabled, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			group_name = CASE WHEN excluded.group_name != '' THEN excluded.group_name ELSE group_settings.group_name END,
			updated_at = excluded.updated_at
	`, groupID, name, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

// SetGroupAutoReply sets the auto-reply flag; the group name is left as is
func (r *statsRepo) SetGroupAutoReply(ctx context.Context, groupID string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_settings (group_id, group_name, auto_reply_enabled, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			auto_reply_enabled = excluded.auto_reply_enabled,
			updated_at = excluded.updated_at
	`, groupID, boolToInt(enabled), r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set group auto-reply: %w", err)
	}
	return nil
}

// GetGroup gets a group setting
func (r *statsRepo) GetGroup(ctx context.Context, groupID string) (*domain.GroupSetting, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT group_id, group_name, auto_reply_enabled, updated_at
		FROM group_settings
		WHERE group_id = ?
	`, groupID)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group: %w", err)
	}
	return group, nil
}

// ListGroups lists all groups
func (r *statsRepo) ListGroups(ctx context.Context) ([]*domain.GroupSetting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, group_name, auto_reply_enabled, updated_at
		FROM group_settings
		ORDER BY group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.GroupSetting
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// CountGroups returns the number of known groups
func (r *statsRepo) CountGroups(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_settings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return count, nil
}

func scanGroup(row rowScanner) (*domain.GroupSetting, error) {
	var group domain.GroupSetting
	var enabled int
	var updatedAt int64
	if err := row.Scan(&group.GroupID, &group.GroupName, &enabled, &updatedAt); err != nil {
		return nil, err
	}
	group.AutoReplyEnabled = enabled != 0
	group.UpdatedAt = time.Unix(updatedAt, 0)
	return &group, nil
}

// ============ Chat logs ============

// LogChat stores one answered message
func (r *statsRepo) LogChat(ctx context.Context, entry *domain.ChatLog) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_logs (user_id, chat_id, message, response, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, entry.UserID, entry.ChatID, entry.Message, entry.Response, ts.Unix())
	if err != nil {
		return fmt.Errorf("failed to log chat: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// CleanupChatLogs deletes logs older than before
func (r *statsRepo) CleanupChatLogs(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chat_logs WHERE timestamp < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup chat logs: %w", err)
	}
	return result.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
