package usecase

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

// Source names the stage that produced a reply
type Source string

const (
	SourceExact    Source = "exact"
	SourceKeyword  Source = "keyword"
	SourceSmart    Source = "smart"
	SourceFallback Source = "fallback"
)

// Resolution is the outcome of resolving one message
type Resolution struct {
	Response string `json:"response"`
	Source   Source `json:"source"`
	Keyword  string `json:"keyword,omitempty"` // Matched rule keyword for exact/keyword
	Rule     string `json:"rule,omitempty"`    // Smart rule name for smart
}

// Resolver picks the auto-reply for a message.
// Priority: exact rule > contained keyword > smart reply > random unknown.
type Resolver struct {
	ruleRepo   repo.RuleRepo
	matcher    *KeywordMatcher
	classifier *SmartReplyClassifier
	table      *domain.ResponseTable
	random     RandomSource
}

// NewResolver creates a new resolver
func NewResolver(
	ruleRepo repo.RuleRepo,
	matcher *KeywordMatcher,
	classifier *SmartReplyClassifier,
	table *domain.ResponseTable,
	random RandomSource,
) *Resolver {
	if random == nil {
		random = DefaultRandomSource()
	}
	return &Resolver{
		ruleRepo:   ruleRepo,
		matcher:    matcher,
		classifier: classifier,
		table:      table,
		random:     random,
	}
}

// Resolve returns the reply for text.
// Empty or whitespace-only text yields no reply; any other text always gets one.
func (r *Resolver) Resolve(ctx context.Context, text string) (string, bool) {
	res, ok := r.ResolveDetailed(ctx, text)
	if !ok {
		return "", false
	}
	return res.Response, true
}

// ResolveDetailed is Resolve plus the stage that answered
func (r *Resolver) ResolveDetailed(ctx context.Context, text string) (*Resolution, bool) {
	return r.resolve(ctx, text, r.ruleRepo.Get)
}

// Inspect resolves like ResolveDetailed but leaves usage counts untouched
func (r *Resolver) Inspect(ctx context.Context, text string) (*Resolution, bool) {
	return r.resolve(ctx, text, r.ruleRepo.Peek)
}

type lookupFunc func(ctx context.Context, keyword string) (*domain.ReplyRule, error)

func (r *Resolver) resolve(ctx context.Context, text string, get lookupFunc) (*Resolution, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	// 1. Whole message is a keyword
	if rule := lookup(ctx, get, trimmed); rule != nil {
		return &Resolution{Response: rule.Response, Source: SourceExact, Keyword: rule.Keyword}, true
	}

	// 2. First stored keyword contained in the message
	if matches := r.matcher.FindMatches(ctx, text); len(matches) > 0 {
		if rule := lookup(ctx, get, matches[0]); rule != nil {
			return &Resolution{Response: rule.Response, Source: SourceKeyword, Keyword: rule.Keyword}, true
		}
	}

	// 3. Smart reply
	if reply, name, ok := r.classifier.classify(text); ok {
		return &Resolution{Response: reply, Source: SourceSmart, Rule: name}, true
	}

	// 4. Random unknown
	reply, ok := pick(r.random, r.table.Candidates(domain.CategoryUnknown))
	if !ok {
		log.Warn("[Resolver] No unknown responses configured")
		return nil, false
	}
	return &Resolution{Response: reply, Source: SourceFallback}, true
}

// lookup treats store failures as a miss
func lookup(ctx context.Context, get lookupFunc, keyword string) *domain.ReplyRule {
	rule, err := get(ctx, keyword)
	if err != nil {
		log.Warnf("[Resolver] Rule lookup failed for %q: %v", keyword, err)
		return nil
	}
	return rule
}
