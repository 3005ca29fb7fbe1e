package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
)

// MessageService routes incoming messages to commands or the auto-reply resolver
type MessageService struct {
	resolver    *usecase.Resolver
	statsUC     *usecase.StatsUsecase
	commands    *CommandService
	messageRepo repo.MessageRepo

	// Groups whose name was already recorded in this process
	knownGroupsMu sync.Mutex
	knownGroups   map[string]bool
}

// NewMessageService creates a new message service
func NewMessageService(
	resolver *usecase.Resolver,
	statsUC *usecase.StatsUsecase,
	commands *CommandService,
	messageRepo repo.MessageRepo,
) *MessageService {
	return &MessageService{
		resolver:    resolver,
		statsUC:     statsUC,
		commands:    commands,
		messageRepo: messageRepo,
		knownGroups: make(map[string]bool),
	}
}

// HandleMessage processes one incoming message.
// Private messages always get an answer; group messages only while
// auto-reply is enabled for the group. Commands work in both.
// Only private non-command messages add to a user's message count.
func (s *MessageService) HandleMessage(ctx context.Context, msg *domain.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	if msg.IsGroup() {
		s.recordGroup(ctx, msg.ChatID)
	}

	// Commands do not count as messages; /start records the user itself
	if msg.IsCommand() {
		reply := s.commands.Handle(ctx, msg)
		if reply == "" {
			return nil
		}
		return s.send(ctx, msg.ChatID, reply)
	}

	if msg.IsGroup() {
		if !s.statsUC.IsAutoReplyEnabled(ctx, msg.ChatID) {
			log.Debugf("[Service] Auto-reply disabled in %s, ignoring", msg.ChatID)
			return nil
		}
	} else if err := s.statsUC.RecordUser(ctx, msg.SenderID, msg.SenderName); err != nil {
		log.Warnf("[Service] Failed to record user %s: %v", msg.SenderID, err)
	}

	res, ok := s.resolver.ResolveDetailed(ctx, msg.Content)
	if !ok {
		return nil
	}
	log.Infof("[Service] Reply to %s via %s", msg.ChatID, res.Source)

	if err := s.send(ctx, msg.ChatID, res.Response); err != nil {
		return err
	}

	if err := s.statsUC.LogChat(ctx, msg.SenderID, msg.ChatID, msg.Content, res.Response); err != nil {
		log.Warnf("[Service] Failed to log chat: %v", err)
	}
	return nil
}

func (s *MessageService) send(ctx context.Context, chatID, text string) error {
	if err := s.messageRepo.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to send reply to %s: %w", chatID, err)
	}
	return nil
}

// recordGroup stores the group name the first time a group is seen
func (s *MessageService) recordGroup(ctx context.Context, chatID string) {
	s.knownGroupsMu.Lock()
	known := s.knownGroups[chatID]
	s.knownGroups[chatID] = true
	s.knownGroupsMu.Unlock()
	if known {
		return
	}

	name := ""
	if info, err := s.messageRepo.GetChatInfo(ctx, chatID); err != nil {
		log.Warnf("[Service] Failed to get chat info for %s: %v", chatID, err)
	} else {
		name = info.Name
	}

	if err := s.statsUC.RecordGroup(ctx, chatID, name); err != nil {
		log.Warnf("[Service] Failed to record group %s: %v", chatID, err)
		s.knownGroupsMu.Lock()
		delete(s.knownGroups, chatID)
		s.knownGroupsMu.Unlock()
	}
}
