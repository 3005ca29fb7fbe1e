package mcp

import (
	"context"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/api"
)

const defaultListLimit = 20

// AdminAPI is the subset of the admin API the tools call
type AdminAPI interface {
	SetReply(ctx context.Context, keyword, response string) (string, error)
	DeleteReply(ctx context.Context, keyword string) error
	ListReplies(ctx context.Context, offset, limit int) (*ReplyList, error)
	SearchKeywords(ctx context.Context, text string) ([]string, error)
	Resolve(ctx context.Context, text string) (*ResolveResult, error)
	Stats(ctx context.Context) (*api.Stats, error)
	SetGroupAutoReply(ctx context.Context, groupID string, enabled bool) (*api.Group, error)
}

// ToolServer exposes rule management as MCP tools over stdio
type ToolServer struct {
	server *sdkmcp.Server
	api    AdminAPI
}

// NewToolServer creates the MCP server and registers every tool
func NewToolServer(adminAPI AdminAPI, version string) *ToolServer {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "autoreply-tools",
		Version: version,
	}, nil)

	s := &ToolServer{server: server, api: adminAPI}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is done
func (s *ToolServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// Server returns the underlying MCP server
func (s *ToolServer) Server() *sdkmcp.Server {
	return s.server
}

func (s *ToolServer) registerTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_set_reply",
		Description: "Store or replace the auto-reply for a keyword. Keywords are case-insensitive and trimmed.",
	}, s.handleSetReply)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_delete_reply",
		Description: "Delete the auto-reply stored for a keyword.",
	}, s.handleDeleteReply)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_list_replies",
		Description: "List stored auto-replies sorted by keyword, with usage counts.",
	}, s.handleListReplies)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_search_keywords",
		Description: "List the stored keywords contained in a piece of text, in the order the bot would try them.",
	}, s.handleSearchKeywords)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_resolve",
		Description: "Show which reply the bot would send for a message and which stage produced it. Usage counts are not changed.",
	}, s.handleResolve)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_stats",
		Description: "Get reply, user, group and message counters plus the most active users.",
	}, s.handleStats)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "autoreply_set_group",
		Description: "Turn auto-reply on or off for a group chat. Commands keep working either way.",
	}, s.handleSetGroup)
}

// ============ Reply Tools ============

// SetReplyInput is the input for autoreply_set_reply
type SetReplyInput struct {
	Keyword  string `json:"keyword" jsonschema:"Keyword that triggers the reply"`
	Response string `json:"response" jsonschema:"Reply text sent verbatim"`
}

// SetReplyOutput is the output for autoreply_set_reply
type SetReplyOutput struct {
	Success bool   `json:"success"`
	Keyword string `json:"keyword,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *ToolServer) handleSetReply(ctx context.Context, req *sdkmcp.CallToolRequest, input SetReplyInput) (*sdkmcp.CallToolResult, SetReplyOutput, error) {
	keyword, err := s.api.SetReply(ctx, input.Keyword, input.Response)
	if err != nil {
		log.Warnf("[MCP] set_reply failed: %v", err)
		return nil, SetReplyOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, SetReplyOutput{Success: true, Keyword: keyword}, nil
}

// DeleteReplyInput is the input for autoreply_delete_reply
type DeleteReplyInput struct {
	Keyword string `json:"keyword" jsonschema:"Keyword whose reply should be removed"`
}

// DeleteReplyOutput is the output for autoreply_delete_reply
type DeleteReplyOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *ToolServer) handleDeleteReply(ctx context.Context, req *sdkmcp.CallToolRequest, input DeleteReplyInput) (*sdkmcp.CallToolResult, DeleteReplyOutput, error) {
	if err := s.api.DeleteReply(ctx, input.Keyword); err != nil {
		return nil, DeleteReplyOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, DeleteReplyOutput{Success: true}, nil
}

// ListRepliesInput is the input for autoreply_list_replies
type ListRepliesInput struct {
	Offset int `json:"offset,omitempty" jsonschema:"Number of replies to skip"`
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum number of replies to return (default 20)"`
}

// ReplyInfo is a stored reply as shown to MCP clients
type ReplyInfo struct {
	Keyword    string `json:"keyword"`
	Response   string `json:"response"`
	UsageCount int    `json:"usage_count"`
	CreatedAt  string `json:"created_at"`
}

// ListRepliesOutput is the output for autoreply_list_replies
type ListRepliesOutput struct {
	Total   int          `json:"total"`
	Replies []*ReplyInfo `json:"replies"`
	Error   string       `json:"error,omitempty"`
}

func (s *ToolServer) handleListReplies(ctx context.Context, req *sdkmcp.CallToolRequest, input ListRepliesInput) (*sdkmcp.CallToolResult, ListRepliesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	list, err := s.api.ListReplies(ctx, offset, limit)
	if err != nil {
		return nil, ListRepliesOutput{Replies: []*ReplyInfo{}, Error: err.Error()}, nil
	}

	replies := make([]*ReplyInfo, len(list.Replies))
	for i, r := range list.Replies {
		replies[i] = &ReplyInfo{
			Keyword:    r.Keyword,
			Response:   r.Response,
			UsageCount: r.UsageCount,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, ListRepliesOutput{Total: list.Total, Replies: replies}, nil
}

// SearchKeywordsInput is the input for autoreply_search_keywords
type SearchKeywordsInput struct {
	Text string `json:"text" jsonschema:"Message text to scan for stored keywords"`
}

// SearchKeywordsOutput is the output for autoreply_search_keywords
type SearchKeywordsOutput struct {
	Keywords []string `json:"keywords"`
	Error    string   `json:"error,omitempty"`
}

func (s *ToolServer) handleSearchKeywords(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchKeywordsInput) (*sdkmcp.CallToolResult, SearchKeywordsOutput, error) {
	keywords, err := s.api.SearchKeywords(ctx, input.Text)
	if err != nil {
		return nil, SearchKeywordsOutput{Keywords: []string{}, Error: err.Error()}, nil
	}
	if keywords == nil {
		keywords = []string{}
	}
	return nil, SearchKeywordsOutput{Keywords: keywords}, nil
}

// ResolveInput is the input for autoreply_resolve
type ResolveInput struct {
	Text string `json:"text" jsonschema:"Message text as a user would send it"`
}

// ResolveOutput is the output for autoreply_resolve
type ResolveOutput struct {
	Replied  bool   `json:"replied"`
	Response string `json:"response,omitempty"`
	Source   string `json:"source,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *ToolServer) handleResolve(ctx context.Context, req *sdkmcp.CallToolRequest, input ResolveInput) (*sdkmcp.CallToolResult, ResolveOutput, error) {
	result, err := s.api.Resolve(ctx, input.Text)
	if err != nil {
		return nil, ResolveOutput{Error: err.Error()}, nil
	}
	if !result.Replied || result.Resolution == nil {
		return nil, ResolveOutput{Replied: false}, nil
	}

	res := result.Resolution
	return nil, ResolveOutput{
		Replied:  true,
		Response: res.Response,
		Source:   string(res.Source),
		Keyword:  res.Keyword,
		Rule:     res.Rule,
	}, nil
}

// ============ Stats Tools ============

// StatsInput is empty - no input needed
type StatsInput struct{}

// UserInfo is one entry of the most active users
type UserInfo struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	MessageCount int    `json:"message_count"`
	Rank         string `json:"rank"`
	LastSeen     string `json:"last_seen"`
}

// StatsOutput is the output for autoreply_stats
type StatsOutput struct {
	TotalReplies  int         `json:"total_replies"`
	TotalUsers    int         `json:"total_users"`
	TotalGroups   int         `json:"total_groups"`
	TotalMessages int         `json:"total_messages"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	TopUsers      []*UserInfo `json:"top_users"`
	Error         string      `json:"error,omitempty"`
}

func (s *ToolServer) handleStats(ctx context.Context, req *sdkmcp.CallToolRequest, input StatsInput) (*sdkmcp.CallToolResult, StatsOutput, error) {
	stats, err := s.api.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{TopUsers: []*UserInfo{}, Error: err.Error()}, nil
	}

	top := make([]*UserInfo, len(stats.TopUsers))
	for i, u := range stats.TopUsers {
		top[i] = &UserInfo{
			UserID:       u.UserID,
			Name:         u.Name,
			MessageCount: u.MessageCount,
			Rank:         u.Rank,
			LastSeen:     u.LastSeen.Format(time.RFC3339),
		}
	}
	return nil, StatsOutput{
		TotalReplies:  stats.TotalReplies,
		TotalUsers:    stats.TotalUsers,
		TotalGroups:   stats.TotalGroups,
		TotalMessages: stats.TotalMessages,
		UptimeSeconds: stats.UptimeSeconds,
		TopUsers:      top,
	}, nil
}

// SetGroupInput is the input for autoreply_set_group
type SetGroupInput struct {
	GroupID string `json:"group_id" jsonschema:"Feishu chat_id of the group"`
	Enabled bool   `json:"enabled" jsonschema:"Whether the bot should auto-reply in the group"`
}

// SetGroupOutput is the output for autoreply_set_group
type SetGroupOutput struct {
	Success bool       `json:"success"`
	Group   *api.Group `json:"group,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func (s *ToolServer) handleSetGroup(ctx context.Context, req *sdkmcp.CallToolRequest, input SetGroupInput) (*sdkmcp.CallToolResult, SetGroupOutput, error) {
	if input.GroupID == "" {
		return nil, SetGroupOutput{Success: false, Error: "group_id is required"}, nil
	}
	group, err := s.api.SetGroupAutoReply(ctx, input.GroupID, input.Enabled)
	if err != nil {
		return nil, SetGroupOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, SetGroupOutput{Success: true, Group: group}, nil
}
