package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyKeyword  = errors.New("keyword is required")
	ErrEmptyResponse = errors.New("response is required")
)

// ReplyRule represents a stored keyword -> response mapping
type ReplyRule struct {
	ID         int64
	Keyword    string // As entered, trimmed
	Response   string // Returned verbatim
	UsageCount int
	CreatedAt  time.Time
}

// Key returns the normalized form the rule is stored and matched under
func (r *ReplyRule) Key() string {
	return NormalizeKeyword(r.Keyword)
}

// NormalizeKeyword returns the lookup form of a keyword (trimmed, lower-cased)
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// ValidateRule checks that a keyword/response pair can be stored
func ValidateRule(keyword, response string) error {
	if strings.TrimSpace(keyword) == "" {
		return ErrEmptyKeyword
	}
	if strings.TrimSpace(response) == "" {
		return ErrEmptyResponse
	}
	return nil
}

// Preview returns the response shortened to n runes for listings
func (r *ReplyRule) Preview(n int) string {
	runes := []rune(r.Response)
	if len(runes) <= n {
		return r.Response
	}
	return string(runes[:n]) + "..."
}
