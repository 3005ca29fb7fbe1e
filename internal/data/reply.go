package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

// ruleRepo implements the reply rule repository
type ruleRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRuleRepo creates a new reply rule repository
func NewRuleRepo(db *sql.DB) (repo.RuleRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reply_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			keyword TEXT NOT NULL,
			keyword_key TEXT NOT NULL DEFAULT '',
			response TEXT NOT NULL,
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply_rules table: %w", err)
	}

	// Tables from before display keywords were kept stored the normalized form only
	_, _ = db.Exec(`ALTER TABLE reply_rules ADD COLUMN keyword_key TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`UPDATE reply_rules SET keyword_key = keyword WHERE keyword_key = ''`)

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_reply_rules_key ON reply_rules(keyword_key)`); err != nil {
		return nil, fmt.Errorf("failed to create reply_rules index: %w", err)
	}

	return &ruleRepo{db: db, now: time.Now}, nil
}

// Put inserts a rule or replaces the response and spelling of an existing one
func (r *ruleRepo) Put(ctx context.Context, keyword, response string) error {
	if err := domain.ValidateRule(keyword, response); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reply_rules (keyword, keyword_key, response, usage_count, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(keyword_key) DO UPDATE SET keyword = excluded.keyword, response = excluded.response
	`, strings.TrimSpace(keyword), domain.NormalizeKeyword(keyword), response, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save reply rule: %w", err)
	}
	return nil
}

// Get looks up a rule and counts the use in the same transaction
func (r *ruleRepo) Get(ctx context.Context, keyword string) (*domain.ReplyRule, error) {
	norm := domain.NormalizeKeyword(keyword)
	if norm == "" {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE reply_rules SET usage_count = usage_count + 1 WHERE keyword_key = ?
	`, norm)
	if err != nil {
		return nil, fmt.Errorf("failed to update usage count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update usage count: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, keyword, response, usage_count, created_at
		FROM reply_rules
		WHERE keyword_key = ?
	`, norm)
	rule, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("failed to query reply rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rule, nil
}

// Peek looks up a rule without touching its usage count
func (r *ruleRepo) Peek(ctx context.Context, keyword string) (*domain.ReplyRule, error) {
	norm := domain.NormalizeKeyword(keyword)
	if norm == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, keyword, response, usage_count, created_at
		FROM reply_rules
		WHERE keyword_key = ?
	`, norm)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reply rule: %w", err)
	}
	return rule, nil
}

// AllKeywords returns every normalized keyword in insertion order
func (r *ruleRepo) AllKeywords(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT keyword_key FROM reply_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// Delete removes a rule
func (r *ruleRepo) Delete(ctx context.Context, keyword string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reply_rules WHERE keyword_key = ?`, domain.NormalizeKeyword(keyword))
	if err != nil {
		return false, fmt.Errorf("failed to delete reply rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete reply rule: %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of rules
func (r *ruleRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reply_rules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reply rules: %w", err)
	}
	return count, nil
}

// List returns a page of rules ordered by keyword
func (r *ruleRepo) List(ctx context.Context, offset, limit int) ([]*domain.ReplyRule, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, keyword, response, usage_count, created_at
		FROM reply_rules
		ORDER BY keyword_key
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reply rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.ReplyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.ReplyRule, error) {
	var rule domain.ReplyRule
	var createdAt int64
	if err := row.Scan(&rule.ID, &rule.Keyword, &rule.Response, &rule.UsageCount, &createdAt); err != nil {
		return nil, err
	}
	rule.CreatedAt = time.Unix(createdAt, 0)
	return &rule, nil
}
