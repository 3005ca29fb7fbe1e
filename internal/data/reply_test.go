package data

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "sub", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRuleRepo(t *testing.T) repo.RuleRepo {
	t.Helper()
	r, err := NewRuleRepo(newTestDB(t))
	require.NoError(t, err)
	return r
}

func TestRuleRepo_PutGet(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	require.NoError(t, r.Put(ctx, "  Hello ", "Hi there!"))

	rule, err := r.Get(ctx, "HELLO")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "Hello", rule.Keyword)
	assert.Equal(t, "hello", rule.Key())
	assert.Equal(t, "Hi there!", rule.Response)
	assert.Equal(t, 1, rule.UsageCount)

	rule, err = r.Get(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, rule.UsageCount)
}

func TestRuleRepo_GetMissing(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	rule, err := r.Get(ctx, "nothing")
	assert.NoError(t, err)
	assert.Nil(t, rule)

	rule, err = r.Get(ctx, "   ")
	assert.NoError(t, err)
	assert.Nil(t, rule)
}

func TestRuleRepo_PutKeepsUsageAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	require.NoError(t, r.Put(ctx, "समय", "first"))
	first, err := r.Get(ctx, "समय")
	require.NoError(t, err)

	require.NoError(t, r.Put(ctx, "समय", "second"))
	second, err := r.Get(ctx, "समय")
	require.NoError(t, err)

	assert.Equal(t, "second", second.Response)
	assert.Equal(t, 2, second.UsageCount)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	count, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRuleRepo_KeepsSpellingAsEntered(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	require.NoError(t, r.Put(ctx, " Good Night ", "Sleep well"))
	rules, err := r.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Good Night", rules[0].Keyword)

	keywords, err := r.AllKeywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"good night"}, keywords)

	// A differently cased put replaces the rule and its spelling
	require.NoError(t, r.Put(ctx, "GOOD NIGHT", "Sweet dreams"))
	rules, err = r.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "GOOD NIGHT", rules[0].Keyword)
	assert.Equal(t, "Sweet dreams", rules[0].Response)
}

func TestRuleRepo_PeekDoesNotCount(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)
	require.NoError(t, r.Put(ctx, "Hello", "Hi"))

	for i := 0; i < 3; i++ {
		rule, err := r.Peek(ctx, " HELLO ")
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "Hi", rule.Response)
		assert.Equal(t, 0, rule.UsageCount)
	}

	rule, err := r.Peek(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, rule)

	rule, err = r.Peek(ctx, "  ")
	assert.NoError(t, err)
	assert.Nil(t, rule)

	rule, err = r.Get(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.UsageCount)
}

func TestRuleRepo_UpgradesOldTable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Exec(`
		CREATE TABLE reply_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			keyword TEXT NOT NULL UNIQUE,
			response TEXT NOT NULL,
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO reply_rules (keyword, response, usage_count, created_at) VALUES ('hi', 'hello', 4, 1700000000)`)
	require.NoError(t, err)

	r, err := NewRuleRepo(db)
	require.NoError(t, err)

	rule, err := r.Get(ctx, "HI")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, 5, rule.UsageCount)

	require.NoError(t, r.Put(ctx, "Hi", "hey"))
	count, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRuleRepo_PutRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	assert.ErrorIs(t, r.Put(ctx, " ", "x"), domain.ErrEmptyKeyword)
	assert.ErrorIs(t, r.Put(ctx, "kw", ""), domain.ErrEmptyResponse)
}

func TestRuleRepo_AllKeywordsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	for _, kw := range []string{"zeta", "Alpha", "मदद"} {
		require.NoError(t, r.Put(ctx, kw, "reply "+kw))
	}
	// Updating an existing rule does not move it
	require.NoError(t, r.Put(ctx, "zeta", "new"))

	keywords, err := r.AllKeywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "मदद"}, keywords)
}

func TestRuleRepo_Delete(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)
	require.NoError(t, r.Put(ctx, "bye", "see you"))

	removed, err := r.Delete(ctx, " BYE ")
	require.NoError(t, err)
	assert.True(t, removed)

	rule, err := r.Get(ctx, "bye")
	require.NoError(t, err)
	assert.Nil(t, rule)

	removed, err = r.Delete(ctx, "bye")
	require.NoError(t, err)
	assert.False(t, removed)

	count, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRuleRepo_List(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)
	for _, kw := range []string{"c", "a", "b", "d"} {
		require.NoError(t, r.Put(ctx, kw, strings.ToUpper(kw)))
	}

	page, err := r.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].Keyword)
	assert.Equal(t, "b", page[1].Keyword)

	page, err = r.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Keyword)

	all, err := r.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	empty, err := r.List(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProperty_RuleRepoNormalization(t *testing.T) {
	ctx := context.Background()
	r := newTestRuleRepo(t)

	properties := gopter.NewProperties(nil)

	properties.Property("get ignores case and surrounding space", prop.ForAll(
		func(keyword, response string) bool {
			if err := r.Put(ctx, keyword, response); err != nil {
				return false
			}
			rule, err := r.Get(ctx, "  "+strings.ToUpper(keyword)+"\t")
			return err == nil && rule != nil && rule.Response == response
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("putting the same pair twice keeps one rule", prop.ForAll(
		func(keyword string) bool {
			before, _ := r.Count(ctx)
			_ = r.Put(ctx, keyword, "same")
			mid, _ := r.Count(ctx)
			_ = r.Put(ctx, strings.ToUpper(keyword), "same")
			after, _ := r.Count(ctx)
			return mid-before <= 1 && after == mid
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

func TestRuleRepo_PersistenceFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := &ruleRepo{db: db, now: func() time.Time { return time.Unix(1700000000, 0) }}
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reply_rules")).
		WithArgs("Hello", "hello", "world", int64(1700000000)).
		WillReturnError(boom)
	err = r.Put(ctx, "Hello", "world")
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reply_rules SET usage_count")).
		WithArgs("hello").
		WillReturnError(boom)
	mock.ExpectRollback()
	rule, err := r.Get(ctx, "hello")
	assert.Nil(t, rule)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE keyword_key = ?")).
		WithArgs("hello").
		WillReturnError(boom)
	rule, err = r.Peek(ctx, "hello")
	assert.Nil(t, rule)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT keyword_key FROM reply_rules")).
		WillReturnError(boom)
	_, err = r.AllKeywords(ctx)
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reply_rules")).
		WithArgs("hello").
		WillReturnError(boom)
	removed, err := r.Delete(ctx, "hello")
	assert.False(t, removed)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepo_GetCommitsUsageIncrement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := &ruleRepo{db: db, now: time.Now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reply_rules SET usage_count")).
		WithArgs("hi").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, keyword, response, usage_count, created_at")).
		WithArgs("hi").
		WillReturnRows(sqlmock.NewRows([]string{"id", "keyword", "response", "usage_count", "created_at"}).
			AddRow(7, "hi", "hello", 3, 1700000000))
	mock.ExpectCommit()

	rule, err := r.Get(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rule.ID)
	assert.Equal(t, 3, rule.UsageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
