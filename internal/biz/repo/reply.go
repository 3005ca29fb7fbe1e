package repo

import (
	"context"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
)

// RuleRepo is the reply rule repository interface
// Keywords are matched by their normalized form (trimmed, lower-cased)
// and displayed as last entered.
// Each call is atomic on its own; there is no atomicity across calls.
type RuleRepo interface {
	// Put inserts or replaces the response for a keyword.
	// An existing rule keeps its usage count and creation time
	// and takes the new spelling of the keyword.
	Put(ctx context.Context, keyword, response string) error

	// Get returns the rule for a keyword and increments its usage count.
	// Returns nil, nil when no rule exists.
	Get(ctx context.Context, keyword string) (*domain.ReplyRule, error)

	// Peek returns the rule for a keyword without counting a use.
	// Returns nil, nil when no rule exists.
	Peek(ctx context.Context, keyword string) (*domain.ReplyRule, error)

	// AllKeywords returns every normalized keyword in insertion order
	AllKeywords(ctx context.Context) ([]string, error)

	// Delete removes a rule, reporting whether one existed
	Delete(ctx context.Context, keyword string) (bool, error)

	// Count returns the number of stored rules
	Count(ctx context.Context) (int, error)

	// List returns rules ordered by keyword; limit <= 0 returns all
	List(ctx context.Context, offset, limit int) ([]*domain.ReplyRule, error)
}
