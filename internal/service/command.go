package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
)

const (
	repliesPerPage = 10
	previewLen     = 50
	statsTopUsers  = 5
	topUsersLimit  = 10
	progressBarLen = 10
)

// reArg matches one argument: a double-quoted phrase or a bare word
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

// CommandConfig contains command handling settings
type CommandConfig struct {
	BotName   string
	AdminIDs  []string
	BackupDir string
}

// CommandService answers slash commands
type CommandService struct {
	ruleRepo    repo.RuleRepo
	messageRepo repo.MessageRepo
	matcher     *usecase.KeywordMatcher
	statsUC     *usecase.StatsUsecase
	backupUC    *usecase.BackupUsecase
	cfg         CommandConfig
	clock       usecase.Clock
}

// NewCommandService creates a new command service
func NewCommandService(
	ruleRepo repo.RuleRepo,
	messageRepo repo.MessageRepo,
	matcher *usecase.KeywordMatcher,
	statsUC *usecase.StatsUsecase,
	backupUC *usecase.BackupUsecase,
	cfg CommandConfig,
) *CommandService {
	if cfg.BotName == "" {
		cfg.BotName = "Auto-Reply Bot"
	}
	return &CommandService{
		ruleRepo:    ruleRepo,
		messageRepo: messageRepo,
		matcher:     matcher,
		statsUC:     statsUC,
		backupUC:    backupUC,
		cfg:         cfg,
		clock:       time.Now,
	}
}

// command is a parsed slash command
type command struct {
	name string
	args []string
	// rest[i] is the raw text starting at args[i]
	rest []string
}

// tail returns the raw text from argument i on, or "" when absent
func (c *command) tail(i int) string {
	if i >= len(c.rest) {
		return ""
	}
	return c.rest[i]
}

// parseCommand splits "/name arg1 "quoted arg" ..." into its parts.
// A "@bot" suffix on the name is dropped.
func parseCommand(text string) *command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	name, body := text[1:], ""
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, body = name[:i], name[i:]
	}
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	cmd := &command{name: strings.ToLower(name)}

	for _, loc := range reArg.FindAllStringSubmatchIndex(body, -1) {
		if loc[2] >= 0 {
			cmd.args = append(cmd.args, body[loc[2]:loc[3]])
		} else {
			cmd.args = append(cmd.args, body[loc[4]:loc[5]])
		}
		cmd.rest = append(cmd.rest, strings.TrimSpace(body[loc[0]:]))
	}
	return cmd
}

// Handle executes a command and returns the reply text.
// An empty reply means nothing should be sent.
func (s *CommandService) Handle(ctx context.Context, msg *domain.Message) string {
	cmd := parseCommand(msg.Content)
	if cmd == nil {
		return ""
	}

	log.Infof("[Command] /%s from %s in %s", cmd.name, msg.SenderID, msg.ChatID)

	switch cmd.name {
	case "start":
		return s.start(ctx, msg)
	case "help":
		return s.help()
	case "setreply":
		return s.setReply(ctx, cmd)
	case "listreplies":
		return s.listReplies(ctx, cmd)
	case "delreply":
		return s.deleteReply(ctx, cmd)
	case "search":
		return s.search(ctx, cmd)
	case "stats":
		return s.stats(ctx)
	case "mystats":
		return s.myStats(ctx, msg)
	case "topusers":
		return s.topUsers(ctx)
	case "enable":
		return s.setGroupAutoReply(ctx, msg, true)
	case "disable":
		return s.setGroupAutoReply(ctx, msg, false)
	case "groupinfo":
		return s.groupInfo(ctx, msg)
	case "broadcast":
		return s.adminOnly(msg, func() string { return s.broadcast(ctx, cmd) })
	case "backup":
		return s.adminOnly(msg, func() string { return s.backup(ctx, "backup", "Backup") })
	case "export":
		return s.adminOnly(msg, func() string { return s.backup(ctx, "export", "Export") })
	default:
		if msg.IsGroup() {
			return ""
		}
		return fmt.Sprintf("❓ Unknown command /%s. Send /help to see what I can do.", cmd.name)
	}
}

// IsAdmin reports whether userID may run admin commands
func (s *CommandService) IsAdmin(userID string) bool {
	for _, id := range s.cfg.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *CommandService) adminOnly(msg *domain.Message, fn func() string) string {
	if !s.IsAdmin(msg.SenderID) {
		log.Warnf("[Command] Denied admin command from %s", msg.SenderID)
		return "❌ Permission denied. This command is for admins only."
	}
	return fn()
}

// ============ Basic ============

func (s *CommandService) start(ctx context.Context, msg *domain.Message) string {
	if err := s.statsUC.RecordUser(ctx, msg.SenderID, msg.SenderName); err != nil {
		log.Warnf("[Command] Failed to record user %s: %v", msg.SenderID, err)
	}

	name := msg.SenderName
	if name == "" {
		name = "there"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🙏 Hello %s!\n\n", name)
	fmt.Fprintf(&sb, "🤖 I am %s.\n\n", s.cfg.BotName)
	sb.WriteString("✨ What I do:\n")
	sb.WriteString("• Reply to keywords you teach me\n")
	sb.WriteString("• Answer greetings, thanks and simple questions\n")
	sb.WriteString("• Keep user and group statistics\n\n")
	sb.WriteString("Send /help to see all commands, or just write a message!")
	return sb.String()
}

func (s *CommandService) help() string {
	return `🆘 Help

📋 Basics
/start - Start the bot
/help - Show this message

🛠 Replies
/setreply <keyword> <reply> - Add or update a reply (quote multi-word keywords)
/listreplies [page] - List replies
/delreply <keyword> - Delete a reply
/search <text> - Show keywords found in text

📊 Statistics
/stats - Bot statistics
/mystats - Your statistics
/topusers - Most active users

👥 Groups
/enable - Turn auto-reply on in this group
/disable - Turn auto-reply off in this group
/groupinfo - Group information

⚙️ Admin
/broadcast <message> - Message every known user
/backup - Write a backup file
/export - Export data as JSON

Example: /setreply "good night" Sleep well! 🌙`
}

// ============ Replies ============

func (s *CommandService) setReply(ctx context.Context, cmd *command) string {
	if len(cmd.args) < 2 {
		return "❌ Usage: /setreply <keyword> <reply>\n\nExample: /setreply hello Hi! How are you?"
	}

	keyword := cmd.args[0]
	response := cmd.tail(1)
	if err := s.ruleRepo.Put(ctx, keyword, response); err != nil {
		log.Errorf("[Command] Failed to set reply %q: %v", keyword, err)
		return "❌ Could not save the reply. Please try again later."
	}

	keyword = strings.TrimSpace(keyword)
	return fmt.Sprintf("✅ Reply saved!\n\nKeyword: %s\nReply: %s\n\nWhenever someone writes '%s' I will answer with this.",
		keyword, response, keyword)
}

func (s *CommandService) listReplies(ctx context.Context, cmd *command) string {
	page := 1
	if len(cmd.args) > 0 {
		if n, err := strconv.Atoi(cmd.args[0]); err == nil && n > 0 {
			page = n
		}
	}

	total, err := s.ruleRepo.Count(ctx)
	if err != nil {
		log.Errorf("[Command] Failed to count replies: %v", err)
		return "❌ Could not load replies. Please try again later."
	}
	if total == 0 {
		return "📭 No replies yet.\n\nAdd the first one with /setreply <keyword> <reply>"
	}

	totalPages := (total + repliesPerPage - 1) / repliesPerPage
	if page > totalPages {
		return fmt.Sprintf("📭 Page %d does not exist. There are %d pages.", page, totalPages)
	}

	rules, err := s.ruleRepo.List(ctx, (page-1)*repliesPerPage, repliesPerPage)
	if err != nil {
		log.Errorf("[Command] Failed to list replies: %v", err)
		return "❌ Could not load replies. Please try again later."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Replies (page %d/%d)\nTotal: %d\n\n", page, totalPages, total)
	start := (page-1)*repliesPerPage + 1
	for i, rule := range rules {
		fmt.Fprintf(&sb, "%d. %s\n", start+i, rule.Keyword)
		fmt.Fprintf(&sb, "   ↳ %s\n", rule.Preview(previewLen))
		fmt.Fprintf(&sb, "   🔢 used %d times\n\n", rule.UsageCount)
	}
	if page < totalPages {
		fmt.Fprintf(&sb, "Next page: /listreplies %d", page+1)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (s *CommandService) deleteReply(ctx context.Context, cmd *command) string {
	keyword := cmd.tail(0)
	if len(cmd.args) == 1 {
		keyword = cmd.args[0]
	}
	if strings.TrimSpace(keyword) == "" {
		return "❌ Usage: /delreply <keyword>"
	}

	removed, err := s.ruleRepo.Delete(ctx, keyword)
	if err != nil {
		log.Errorf("[Command] Failed to delete reply %q: %v", keyword, err)
		return "❌ Could not delete the reply. Please try again later."
	}
	if !removed {
		return fmt.Sprintf("❌ No reply found for '%s'.\n\nSee all replies with /listreplies", keyword)
	}
	return fmt.Sprintf("✅ Reply deleted.\n\nKeyword: %s", strings.TrimSpace(keyword))
}

func (s *CommandService) search(ctx context.Context, cmd *command) string {
	text := cmd.tail(0)
	if text == "" {
		return "❌ Usage: /search <text>"
	}

	matches := s.matcher.FindMatches(ctx, text)
	if len(matches) == 0 {
		return "🔍 No stored keyword appears in that text."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Found %d keyword(s):\n", len(matches))
	for i, kw := range matches {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, kw)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ============ Statistics ============

func (s *CommandService) stats(ctx context.Context) string {
	summary, err := s.statsUC.Summary(ctx, statsTopUsers)
	if err != nil {
		log.Errorf("[Command] Failed to build stats: %v", err)
		return "❌ Could not load statistics. Please try again later."
	}

	var sb strings.Builder
	sb.WriteString("📊 Bot statistics\n\n")
	sb.WriteString("🤖 Bot\n")
	fmt.Fprintf(&sb, "• Uptime: %s\n", formatUptime(s.statsUC.Uptime()))
	fmt.Fprintf(&sb, "• Started: %s\n\n", summary.StartedAt.Format("02/01/2006 15:04:05"))
	sb.WriteString("📝 Data\n")
	fmt.Fprintf(&sb, "• Replies: %s\n", humanize.Comma(int64(summary.TotalReplies)))
	fmt.Fprintf(&sb, "• Users: %s\n", humanize.Comma(int64(summary.TotalUsers)))
	fmt.Fprintf(&sb, "• Groups: %s\n", humanize.Comma(int64(summary.TotalGroups)))
	fmt.Fprintf(&sb, "• Messages: %s\n\n", humanize.Comma(int64(summary.TotalMessages)))
	fmt.Fprintf(&sb, "🏆 Top %d users\n", statsTopUsers)
	if len(summary.TopUsers) == 0 {
		sb.WriteString("No data yet\n")
	}
	for i, u := range summary.TopUsers {
		fmt.Fprintf(&sb, "%d. %s - %d messages\n", i+1, displayName(u), u.MessageCount)
	}
	fmt.Fprintf(&sb, "\n🕐 Server time: %s", s.clock().Format("15:04:05"))
	return sb.String()
}

func (s *CommandService) myStats(ctx context.Context, msg *domain.Message) string {
	user, err := s.statsUC.GetUser(ctx, msg.SenderID)
	if err != nil {
		log.Errorf("[Command] Failed to load stats of %s: %v", msg.SenderID, err)
		return "❌ Could not load your statistics. Please try again later."
	}
	if user == nil {
		return "📭 No statistics yet.\n\nSend me a few messages, then try /mystats again."
	}

	var sb strings.Builder
	sb.WriteString("👤 Your statistics\n\n")
	fmt.Fprintf(&sb, "🆔 User ID: %s\n", user.UserID)
	fmt.Fprintf(&sb, "📛 Name: %s\n\n", displayName(user))
	sb.WriteString("📈 Activity\n")
	fmt.Fprintf(&sb, "• Messages: %s\n", humanize.Comma(int64(user.MessageCount)))
	fmt.Fprintf(&sb, "• Last seen: %s\n\n", humanize.RelTime(user.LastSeen, s.clock(), "ago", "from now"))
	fmt.Fprintf(&sb, "🎯 Rank: %s", user.Rank())
	return sb.String()
}

func (s *CommandService) topUsers(ctx context.Context) string {
	users, err := s.statsUC.TopUsers(ctx, topUsersLimit)
	if err != nil {
		log.Errorf("[Command] Failed to load top users: %v", err)
		return "❌ Could not load statistics. Please try again later."
	}
	if len(users) == 0 {
		return "📭 No user data yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Top %d active users\n\n", topUsersLimit)
	most := users[0].MessageCount
	for i, u := range users {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, displayName(u))
		fmt.Fprintf(&sb, "   %s %d messages\n\n", progressBar(u.MessageCount, most), u.MessageCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ============ Groups ============

func (s *CommandService) setGroupAutoReply(ctx context.Context, msg *domain.Message, enabled bool) string {
	if !msg.IsGroup() {
		return "❌ This command only works in groups."
	}
	if err := s.statsUC.SetAutoReply(ctx, msg.ChatID, enabled); err != nil {
		log.Errorf("[Command] Failed to set auto-reply for %s: %v", msg.ChatID, err)
		return "❌ Could not change the setting. Please try again later."
	}

	log.Infof("[Command] Auto-reply in %s set to %v by %s", msg.ChatID, enabled, msg.SenderID)
	if enabled {
		return "✅ Auto-reply is on. I will answer messages in this group. 😊"
	}
	return "❌ Auto-reply is off. I will stay quiet in this group."
}

func (s *CommandService) groupInfo(ctx context.Context, msg *domain.Message) string {
	if !msg.IsGroup() {
		return "❌ This command only works in groups."
	}

	setting, err := s.statsUC.GetGroup(ctx, msg.ChatID)
	if err != nil {
		log.Errorf("[Command] Failed to load group %s: %v", msg.ChatID, err)
		return "❌ Could not load group information. Please try again later."
	}

	name := setting.GroupName
	members := "N/A"
	if s.messageRepo != nil {
		if info, err := s.messageRepo.GetChatInfo(ctx, msg.ChatID); err != nil {
			log.Warnf("[Command] Failed to get chat info for %s: %v", msg.ChatID, err)
		} else {
			if info.Name != "" {
				name = info.Name
			}
			members = strconv.Itoa(info.MemberCount)
		}
	}
	if name == "" {
		name = "N/A"
	}

	status := "❌ off"
	if setting.AutoReplyEnabled {
		status = "✅ on"
	}

	var sb strings.Builder
	sb.WriteString("👥 Group information\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", name)
	fmt.Fprintf(&sb, "ID: %s\n", msg.ChatID)
	fmt.Fprintf(&sb, "Members: %s\n\n", members)
	fmt.Fprintf(&sb, "⚙️ Auto-reply: %s\n\n", status)
	sb.WriteString("/enable - turn auto-reply on\n/disable - turn auto-reply off")
	return sb.String()
}

// ============ Admin ============

func (s *CommandService) broadcast(ctx context.Context, cmd *command) string {
	text := cmd.tail(0)
	if text == "" {
		return "❌ Usage: /broadcast <message>"
	}
	if s.messageRepo == nil {
		return "❌ Broadcast is not available."
	}

	users, err := s.statsUC.Users(ctx)
	if err != nil {
		log.Errorf("[Command] Failed to list users for broadcast: %v", err)
		return "❌ Could not load users. Please try again later."
	}

	var sent, failed int
	for _, u := range users {
		if err := s.messageRepo.SendTextToUser(ctx, u.UserID, text); err != nil {
			log.Warnf("[Command] Broadcast to %s failed: %v", u.UserID, err)
			failed++
			continue
		}
		sent++
	}

	log.Infof("[Command] Broadcast finished: %d sent, %d failed", sent, failed)
	return fmt.Sprintf("📢 Broadcast complete\n\n• ✅ Sent: %d\n• ❌ Failed: %d\n• 📊 Total: %d", sent, failed, len(users))
}

func (s *CommandService) backup(ctx context.Context, prefix, label string) string {
	path := filepath.Join(s.cfg.BackupDir, s.backupUC.FileName(prefix))
	snap, err := s.backupUC.ExportToFile(ctx, path)
	if err != nil {
		log.Errorf("[Command] %s failed: %v", prefix, err)
		return fmt.Sprintf("❌ %s failed: %v", label, err)
	}

	log.Infof("[Command] Wrote %s", path)
	return fmt.Sprintf("✅ %s written\n\n• Replies: %d\n• Users: %d\n• Groups: %d\n• File: %s\n• Time: %s",
		label, len(snap.Replies), len(snap.Users), len(snap.Groups), path, s.clock().Format("15:04:05"))
}

// ============ Formatting ============

func displayName(u *domain.UserStats) string {
	if u.Name != "" {
		return u.Name
	}
	return u.UserID
}

// progressBar renders count relative to most as a fixed-width bar
func progressBar(count, most int) string {
	filled := 0
	if most > 0 {
		filled = count * progressBarLen / most
	}
	if filled > progressBarLen {
		filled = progressBarLen
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarLen-filled)
}

// formatUptime renders a duration as "1 day, 2 hours, 3 minutes, 4 seconds",
// skipping zero parts except a lone "0 seconds"
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	minutes := secs / 60
	secs %= 60

	var parts []string
	add := func(n int64, unit string) {
		if n == 1 {
			parts = append(parts, fmt.Sprintf("1 %s", unit))
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	if days > 0 {
		add(days, "day")
	}
	if hours > 0 {
		add(hours, "hour")
	}
	if minutes > 0 {
		add(minutes, "minute")
	}
	if secs > 0 || len(parts) == 0 {
		add(secs, "second")
	}
	return strings.Join(parts, ", ")
}
