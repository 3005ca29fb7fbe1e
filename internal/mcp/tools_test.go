package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/api"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/conf"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/data"
)

type firstRandom struct{}

func (firstRandom) Intn(int) int { return 0 }

// newAPIServer runs the real admin API on a temporary store
func newAPIServer(t *testing.T) (*httptest.Server, *data.Repositories) {
	t.Helper()
	dir := t.TempDir()

	repos, err := data.NewRepositories(nil, filepath.Join(dir, "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	clock := func() time.Time { return time.Date(2024, 3, 7, 10, 15, 0, 0, time.Local) }
	table := conf.DefaultResponsesConfig().ToResponseTable()
	matcher := usecase.NewKeywordMatcher(repos.Rule)
	classifier := usecase.NewSmartReplyClassifier(table, firstRandom{}, clock)
	resolver := usecase.NewResolver(repos.Rule, matcher, classifier, table, firstRandom{})
	statsUC := usecase.NewStatsUsecase(repos.Stats, repos.Rule, clock)
	backupUC := usecase.NewBackupUsecase(repos.Rule, repos.Stats, clock)

	srv := api.NewServer(repos.Rule, matcher, resolver, statsUC, backupUC, dir, 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, repos
}

func newTestToolServer(t *testing.T) (*ToolServer, *data.Repositories) {
	t.Helper()
	ts, repos := newAPIServer(t)
	return NewToolServer(NewClient(ts.URL), "test"), repos
}

func TestTools_ReplyLifecycle(t *testing.T) {
	s, repos := newTestToolServer(t)
	ctx := context.Background()

	_, setOut, err := s.handleSetReply(ctx, nil, SetReplyInput{Keyword: " Good Night ", Response: "Sleep well"})
	require.NoError(t, err)
	assert.True(t, setOut.Success)
	assert.Equal(t, "Good Night", setOut.Keyword)

	rule, err := repos.Rule.Peek(ctx, "good night")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "Sleep well", rule.Response)

	_, listOut, err := s.handleListReplies(ctx, nil, ListRepliesInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, listOut.Total)
	require.Len(t, listOut.Replies, 1)
	assert.Equal(t, "Good Night", listOut.Replies[0].Keyword)

	_, delOut, err := s.handleDeleteReply(ctx, nil, DeleteReplyInput{Keyword: "GOOD NIGHT"})
	require.NoError(t, err)
	assert.True(t, delOut.Success)

	_, delOut, err = s.handleDeleteReply(ctx, nil, DeleteReplyInput{Keyword: "good night"})
	require.NoError(t, err)
	assert.False(t, delOut.Success)
	assert.Contains(t, delOut.Error, "HTTP 404: reply not found")
}

func TestTools_SetReplyValidation(t *testing.T) {
	s, _ := newTestToolServer(t)

	_, out, err := s.handleSetReply(context.Background(), nil, SetReplyInput{Keyword: "hi", Response: "  "})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "response is required")
}

func TestTools_SearchAndResolve(t *testing.T) {
	s, repos := newTestToolServer(t)
	ctx := context.Background()
	require.NoError(t, repos.Rule.Put(ctx, "समय", "time reply"))

	_, searchOut, err := s.handleSearchKeywords(ctx, nil, SearchKeywordsInput{Text: "अभी समय क्या है"})
	require.NoError(t, err)
	assert.Equal(t, []string{"समय"}, searchOut.Keywords)

	_, searchOut, err = s.handleSearchKeywords(ctx, nil, SearchKeywordsInput{Text: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, searchOut.Keywords)
	assert.Empty(t, searchOut.Keywords)

	_, resOut, err := s.handleResolve(ctx, nil, ResolveInput{Text: "अभी समय क्या है"})
	require.NoError(t, err)
	assert.True(t, resOut.Replied)
	assert.Equal(t, "time reply", resOut.Response)
	assert.Equal(t, string(usecase.SourceKeyword), resOut.Source)
	assert.Equal(t, "समय", resOut.Keyword)

	rule, err := repos.Rule.Peek(ctx, "समय")
	require.NoError(t, err)
	assert.Equal(t, 0, rule.UsageCount)

	_, resOut, err = s.handleResolve(ctx, nil, ResolveInput{Text: ""})
	require.NoError(t, err)
	assert.False(t, resOut.Replied)
}

func TestTools_StatsAndGroup(t *testing.T) {
	s, repos := newTestToolServer(t)
	ctx := context.Background()
	require.NoError(t, repos.Stats.TouchUser(ctx, "ou_1", "Asha", time.Now()))

	_, statsOut, err := s.handleStats(ctx, nil, StatsInput{})
	require.NoError(t, err)
	assert.Empty(t, statsOut.Error)
	assert.Equal(t, 1, statsOut.TotalUsers)
	require.Len(t, statsOut.TopUsers, 1)
	assert.Equal(t, "Asha", statsOut.TopUsers[0].Name)

	_, groupOut, err := s.handleSetGroup(ctx, nil, SetGroupInput{GroupID: "oc_1", Enabled: false})
	require.NoError(t, err)
	assert.True(t, groupOut.Success)
	require.NotNil(t, groupOut.Group)
	assert.False(t, groupOut.Group.AutoReplyEnabled)

	_, groupOut, err = s.handleSetGroup(ctx, nil, SetGroupInput{})
	require.NoError(t, err)
	assert.False(t, groupOut.Success)
}

func TestTools_APIDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	s := NewToolServer(NewClient(ts.URL), "test")
	ctx := context.Background()

	_, statsOut, err := s.handleStats(ctx, nil, StatsInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, statsOut.Error)

	_, listOut, err := s.handleListReplies(ctx, nil, ListRepliesInput{Limit: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, listOut.Error)
	assert.NotNil(t, listOut.Replies)
}

func TestToolServer_ListsTools(t *testing.T) {
	s, _ := newTestToolServer(t)
	ctx := context.Background()

	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := s.Server().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"autoreply_delete_reply",
		"autoreply_list_replies",
		"autoreply_resolve",
		"autoreply_search_keywords",
		"autoreply_set_group",
		"autoreply_set_reply",
		"autoreply_stats",
	}, names)

	call, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "autoreply_set_reply",
		Arguments: map[string]any{"keyword": "hi", "response": "hello"},
	})
	require.NoError(t, err)
	assert.False(t, call.IsError)
}
