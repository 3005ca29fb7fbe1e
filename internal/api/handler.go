package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
)

const (
	defaultListLimit = 50
	defaultTopLimit  = 10
	maxBodyBytes     = 1 << 20
)

// Server provides the loopback admin API used by autoreply-mcp and scripts
type Server struct {
	ruleRepo repo.RuleRepo
	matcher  *usecase.KeywordMatcher
	resolver *usecase.Resolver
	statsUC  *usecase.StatsUsecase
	backupUC *usecase.BackupUsecase

	exportDir string

	server *http.Server
	port   int
}

// Reply is a stored rule as returned by the API
type Reply struct {
	Keyword    string    `json:"keyword"`
	Response   string    `json:"response"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a user's activity record
type User struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	Rank         string    `json:"rank"`
	LastSeen     time.Time `json:"last_seen"`
}

// Group is a group's bot setting
type Group struct {
	GroupID          string `json:"group_id"`
	GroupName        string `json:"group_name"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
}

// Stats is the store-wide summary
type Stats struct {
	TotalReplies  int     `json:"total_replies"`
	TotalUsers    int     `json:"total_users"`
	TotalGroups   int     `json:"total_groups"`
	TotalMessages int     `json:"total_messages"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	TopUsers      []*User `json:"top_users"`
}

// NewServer creates a new API server
func NewServer(
	ruleRepo repo.RuleRepo,
	matcher *usecase.KeywordMatcher,
	resolver *usecase.Resolver,
	statsUC *usecase.StatsUsecase,
	backupUC *usecase.BackupUsecase,
	exportDir string,
	port int,
) *Server {
	return &Server{
		ruleRepo:  ruleRepo,
		matcher:   matcher,
		resolver:  resolver,
		statsUC:   statsUC,
		backupUC:  backupUC,
		exportDir: exportDir,
		port:      port,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Reply rules
	mux.HandleFunc("/api/replies", s.handleReplies)
	mux.HandleFunc("/api/replies/", s.handleReplyItem)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/resolve", s.handleResolve)

	// Statistics and groups
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/users/top", s.handleTopUsers)
	mux.HandleFunc("/api/users/", s.handleUserItem)
	mux.HandleFunc("/api/groups/", s.handleGroupItem)

	// Backups
	mux.HandleFunc("/api/export", s.handleExport)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("[API] Starting HTTP server on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// ============ Reply Handlers ============

func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultListLimit)
		if offset < 0 || limit < 0 {
			writeStatus(w, http.StatusBadRequest, "offset and limit must not be negative")
			return
		}

		total, err := s.ruleRepo.Count(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		rules, err := s.ruleRepo.List(ctx, offset, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"total": total, "replies": toReplies(rules)})

	case http.MethodPost:
		var req struct {
			Keyword  string `json:"keyword"`
			Response string `json:"response"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeStatus(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.ruleRepo.Put(ctx, req.Keyword, req.Response); err != nil {
			if errors.Is(err, domain.ErrEmptyKeyword) || errors.Is(err, domain.ErrEmptyResponse) {
				writeStatus(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, err)
			return
		}
		keyword := strings.TrimSpace(req.Keyword)
		log.Infof("[API] Reply saved for %q", keyword)
		writeJSON(w, map[string]interface{}{"success": true, "keyword": keyword})

	default:
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleReplyItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keyword := strings.TrimPrefix(r.URL.Path, "/api/replies/")
	if strings.TrimSpace(keyword) == "" {
		writeStatus(w, http.StatusBadRequest, "keyword is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.ruleRepo.Peek(ctx, keyword)
		if err != nil {
			writeError(w, err)
			return
		}
		if rule == nil {
			writeStatus(w, http.StatusNotFound, "reply not found")
			return
		}
		writeJSON(w, toReply(rule))

	case http.MethodDelete:
		deleted, err := s.ruleRepo.Delete(ctx, keyword)
		if err != nil {
			writeError(w, err)
			return
		}
		if !deleted {
			writeStatus(w, http.StatusNotFound, "reply not found")
			return
		}
		log.Infof("[API] Reply deleted for %q", domain.NormalizeKeyword(keyword))
		writeJSON(w, map[string]interface{}{"success": true})

	default:
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	text := r.URL.Query().Get("text")
	matches := s.matcher.FindMatches(r.Context(), text)
	if matches == nil {
		matches = []string{}
	}
	writeJSON(w, map[string]interface{}{"keywords": matches})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := s.resolver.Inspect(r.Context(), req.Text)
	if !ok {
		writeJSON(w, map[string]interface{}{"replied": false})
		return
	}
	writeJSON(w, map[string]interface{}{"replied": true, "resolution": res})
}

// ============ Stats Handlers ============

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	summary, err := s.statsUC.Summary(r.Context(), defaultTopLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, &Stats{
		TotalReplies:  summary.TotalReplies,
		TotalUsers:    summary.TotalUsers,
		TotalGroups:   summary.TotalGroups,
		TotalMessages: summary.TotalMessages,
		UptimeSeconds: int64(s.statsUC.Uptime() / time.Second),
		TopUsers:      toUsers(summary.TopUsers),
	})
}

func (s *Server) handleTopUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", defaultTopLimit)
	if limit <= 0 {
		writeStatus(w, http.StatusBadRequest, "limit must be positive")
		return
	}
	users, err := s.statsUC.TopUsers(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"users": toUsers(users)})
}

func (s *Server) handleUserItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if userID == "" {
		writeStatus(w, http.StatusBadRequest, "user id is required")
		return
	}

	user, err := s.statsUC.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeStatus(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, toUser(user))
}

func (s *Server) handleGroupItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	if groupID == "" {
		writeStatus(w, http.StatusBadRequest, "group id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		group, err := s.statsUC.GetGroup(ctx, groupID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, toGroup(group))

	case http.MethodPut:
		var req struct {
			AutoReplyEnabled *bool `json:"auto_reply_enabled"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeStatus(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.AutoReplyEnabled == nil {
			writeStatus(w, http.StatusBadRequest, "auto_reply_enabled is required")
			return
		}
		if err := s.statsUC.SetAutoReply(ctx, groupID, *req.AutoReplyEnabled); err != nil {
			writeError(w, err)
			return
		}
		group, err := s.statsUC.GetGroup(ctx, groupID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, toGroup(group))

	default:
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ============ Backup Handlers ============

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := filepath.Join(s.exportDir, s.backupUC.FileName("export"))
	snap, err := s.backupUC.ExportToFile(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"path":    path,
		"replies": len(snap.Replies),
		"users":   len(snap.Users),
		"groups":  len(snap.Groups),
	})
}

// ============ Helpers ============

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	log.Errorf("[API] %v", err)
	writeStatus(w, http.StatusInternalServerError, err.Error())
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func toReply(rule *domain.ReplyRule) *Reply {
	return &Reply{
		Keyword:    rule.Keyword,
		Response:   rule.Response,
		UsageCount: rule.UsageCount,
		CreatedAt:  rule.CreatedAt,
	}
}

func toReplies(rules []*domain.ReplyRule) []*Reply {
	result := make([]*Reply, len(rules))
	for i, rule := range rules {
		result[i] = toReply(rule)
	}
	return result
}

func toUser(u *domain.UserStats) *User {
	return &User{
		UserID:       u.UserID,
		Name:         u.Name,
		MessageCount: u.MessageCount,
		Rank:         string(u.Rank()),
		LastSeen:     u.LastSeen,
	}
}

func toUsers(users []*domain.UserStats) []*User {
	result := make([]*User, len(users))
	for i, u := range users {
		result[i] = toUser(u)
	}
	return result
}

func toGroup(g *domain.GroupSetting) *Group {
	return &Group{
		GroupID:          g.GroupID,
		GroupName:        g.GroupName,
		AutoReplyEnabled: g.AutoReplyEnabled,
	}
}
