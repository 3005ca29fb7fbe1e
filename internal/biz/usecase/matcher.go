package usecase

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

// KeywordMatcher finds stored keywords contained in a message
type KeywordMatcher struct {
	ruleRepo repo.RuleRepo
}

// NewKeywordMatcher creates a new keyword matcher
func NewKeywordMatcher(ruleRepo repo.RuleRepo) *KeywordMatcher {
	return &KeywordMatcher{ruleRepo: ruleRepo}
}

// FindMatches returns every stored keyword that occurs in text.
// Matching is case-insensitive substring containment with no word
// boundaries, so "hi" matches "this". Results keep store order.
func (m *KeywordMatcher) FindMatches(ctx context.Context, text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	keywords, err := m.ruleRepo.AllKeywords(ctx)
	if err != nil {
		log.Warnf("[Matcher] Failed to load keywords: %v", err)
		return nil
	}

	lower := strings.ToLower(text)
	var matches []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			matches = append(matches, kw)
		}
	}
	return matches
}
