package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
)

var errStoreDown = errors.New("store unavailable")

// MockRuleRepo is an in-memory repo.RuleRepo
type MockRuleRepo struct {
	mu    sync.Mutex
	rules []*domain.ReplyRule
	err   error
}

func (m *MockRuleRepo) find(keyword string) (int, *domain.ReplyRule) {
	norm := domain.NormalizeKeyword(keyword)
	for i, r := range m.rules {
		if r.Key() == norm {
			return i, r
		}
	}
	return -1, nil
}

func (m *MockRuleRepo) Put(ctx context.Context, keyword, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if err := domain.ValidateRule(keyword, response); err != nil {
		return err
	}
	if _, r := m.find(keyword); r != nil {
		r.Keyword = strings.TrimSpace(keyword)
		r.Response = response
		return nil
	}
	m.rules = append(m.rules, &domain.ReplyRule{
		ID:        int64(len(m.rules) + 1),
		Keyword:   strings.TrimSpace(keyword),
		Response:  response,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MockRuleRepo) Get(ctx context.Context, keyword string) (*domain.ReplyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	_, r := m.find(keyword)
	if r == nil {
		return nil, nil
	}
	r.UsageCount++
	cp := *r
	return &cp, nil
}

func (m *MockRuleRepo) Peek(ctx context.Context, keyword string) (*domain.ReplyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	_, r := m.find(keyword)
	if r == nil {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MockRuleRepo) AllKeywords(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for _, r := range m.rules {
		out = append(out, r.Key())
	}
	return out, nil
}

func (m *MockRuleRepo) Delete(ctx context.Context, keyword string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	i, r := m.find(keyword)
	if r == nil {
		return false, nil
	}
	m.rules = append(m.rules[:i], m.rules[i+1:]...)
	return true, nil
}

func (m *MockRuleRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules), m.err
}

func (m *MockRuleRepo) List(ctx context.Context, offset, limit int) ([]*domain.ReplyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	sorted := append([]*domain.ReplyRule(nil), m.rules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *MockRuleRepo) usage(keyword string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, r := m.find(keyword); r != nil {
		return r.UsageCount
	}
	return -1
}

// MockStatsRepo is an in-memory repo.StatsRepo
type MockStatsRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.UserStats
	groups map[string]*domain.GroupSetting
	logs   []*domain.ChatLog
	err    error
}

func NewMockStatsRepo() *MockStatsRepo {
	return &MockStatsRepo{
		users:  make(map[string]*domain.UserStats),
		groups: make(map[string]*domain.GroupSetting),
	}
}

func (m *MockStatsRepo) TouchUser(ctx context.Context, userID, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		u = &domain.UserStats{UserID: userID}
		m.users[userID] = u
	}
	if name != "" {
		u.Name = name
	}
	u.MessageCount++
	u.LastSeen = at
	return nil
}

func (m *MockStatsRepo) GetUser(ctx context.Context, userID string) (*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], m.err
}

func (m *MockStatsRepo) sortedUsers() []*domain.UserStats {
	var out []*domain.UserStats
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageCount != out[j].MessageCount {
			return out[i].MessageCount > out[j].MessageCount
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (m *MockStatsRepo) TopUsers(ctx context.Context, limit int) ([]*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedUsers()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, m.err
}

func (m *MockStatsRepo) ListUsers(ctx context.Context) ([]*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedUsers(), m.err
}

func (m *MockStatsRepo) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), m.err
}

func (m *MockStatsRepo) TotalMessages(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, u := range m.users {
		total += u.MessageCount
	}
	return total, m.err
}

func (m *MockStatsRepo) UpsertGroup(ctx context.Context, groupID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		g = &domain.GroupSetting{GroupID: groupID, AutoReplyEnabled: true}
		m.groups[groupID] = g
	}
	if name != "" {
		g.GroupName = name
	}
	return nil
}

func (m *MockStatsRepo) SetGroupAutoReply(ctx context.Context, groupID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		g = &domain.GroupSetting{GroupID: groupID}
		m.groups[groupID] = g
	}
	g.AutoReplyEnabled = enabled
	return nil
}

func (m *MockStatsRepo) GetGroup(ctx context.Context, groupID string) (*domain.GroupSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	g, ok := m.groups[groupID]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *MockStatsRepo) ListGroups(ctx context.Context) ([]*domain.GroupSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.GroupSetting
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, m.err
}

func (m *MockStatsRepo) CountGroups(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups), m.err
}

func (m *MockStatsRepo) LogChat(ctx context.Context, entry *domain.ChatLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return m.err
}

func (m *MockStatsRepo) CleanupChatLogs(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.ChatLog
	var removed int64
	for _, l := range m.logs {
		if l.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	m.logs = kept
	return removed, m.err
}

// fixedRandom always returns the same index, clamped to n
type fixedRandom int

func (f fixedRandom) Intn(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func testTable() *domain.ResponseTable {
	return &domain.ResponseTable{
		Categories: map[domain.Category][]string{
			domain.CategoryGreetings: {"नमस्ते! मैं कैसे आपकी मदद कर सकता हूं? 😊", "हैलो! कैसे हैं आप?"},
			domain.CategoryThanks:    {"आपका स्वागत है! 🙏", "कोई बात नहीं! 😊", "खुशी हुई मदद करके! 👍"},
			domain.CategoryHelp:      {"मैं आपकी क्या मदद कर सकता हूं?"},
			domain.CategoryFarewell:  {"अलविदा! फिर मिलेंगे 👋"},
			domain.CategoryUnknown:   {"माफ करना, मैं समझ नहीं पाया।", "क्या आप दोबारा कह सकते हैं?"},
		},
		Prefixes: domain.GreetingPrefixes{
			Morning:   "शुभ प्रभात! ",
			Afternoon: "नमस्ते! ",
			Evening:   "शुभ संध्या! ",
			Night:     "शुभ रात्रि! ",
		},
		QuestionAck:  "यह एक अच्छा सवाल है! मैं इसके बारे में सोचता हूं... 🤔",
		TimeTemplate: "अभी समय है: {time} ⏰",
		DateTemplate: "आज की तारीख: {date} 📅",
		Identity:     "मैं एक स्मार्ट ऑटो-रिप्लाई बॉट हूं! 🤖",
	}
}
