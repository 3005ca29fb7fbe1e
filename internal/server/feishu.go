package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/service"
)

const seenTTL = 5 * time.Minute

// MessageHandler processes converted chat messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *domain.Message) error
}

// FeishuServer feeds Feishu events into the message service
type FeishuServer struct {
	feishuClient *feishu.Client
	messageRepo  repo.MessageRepo
	handler      MessageHandler
	scheduler    *service.BackupScheduler

	ctx context.Context

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> first seen

	// Sender names resolved from chat member lists
	namesMu sync.RWMutex
	names   map[string]string // open_id -> name
}

// NewFeishuServer creates a new Feishu server; scheduler may be nil
func NewFeishuServer(
	feishuClient *feishu.Client,
	messageRepo repo.MessageRepo,
	handler MessageHandler,
	scheduler *service.BackupScheduler,
) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		messageRepo:  messageRepo,
		handler:      handler,
		scheduler:    scheduler,
		ctx:          context.Background(),
		seenMsgs:     make(map[string]time.Time),
		names:        make(map[string]string),
	}
}

// Start starts the scheduler and blocks on the Feishu event stream
func (s *FeishuServer) Start(ctx context.Context) error {
	s.ctx = ctx
	if s.scheduler != nil {
		s.scheduler.Start(ctx)
	}

	s.feishuClient.OnMessage(s.handleMessage)

	// The WebSocket client does not return once connected
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.feishuClient.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("feishu connection: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.feishuClient.Stop()
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	// Feishu redelivers events that were not acknowledged in time
	if !s.markMessageSeen(msg.MsgID, time.Now()) {
		log.Debugf("[Server] Duplicate message ignored: %s", msg.MsgID)
		return
	}

	ctx := s.ctx
	domainMsg := s.toDomain(ctx, msg)

	log.Infof("[Server] Received %s from %s (chatType=%s)", msg.MsgType, msg.ChatID, msg.ChatType)

	if err := s.handler.HandleMessage(ctx, domainMsg); err != nil {
		log.Errorf("[Server] Handle message error: %v", err)
	}
}

// toDomain converts a Feishu message
func (s *FeishuServer) toDomain(ctx context.Context, msg *feishu.Message) *domain.Message {
	chatType := domain.ChatTypeP2P
	if msg.ChatType == "group" {
		chatType = domain.ChatTypeGroup
	}

	out := &domain.Message{
		ID:       msg.MsgID,
		ChatID:   msg.ChatID,
		ChatType: chatType,
		Content:  msg.Content,
	}
	if msg.CreateTime > 0 {
		out.CreateTime = time.UnixMilli(msg.CreateTime)
	}
	if msg.Sender != nil {
		out.SenderID = msg.Sender.SenderID
		out.SenderName = s.senderName(ctx, msg.ChatID, msg.Sender.SenderID)
	}
	return out
}

// senderName looks the sender up in the chat member list, caching every name seen
func (s *FeishuServer) senderName(ctx context.Context, chatID, senderID string) string {
	if senderID == "" {
		return ""
	}

	s.namesMu.RLock()
	name, ok := s.names[senderID]
	s.namesMu.RUnlock()
	if ok {
		return name
	}

	members, err := s.messageRepo.GetChatMembers(ctx, chatID)
	if err != nil {
		log.Warnf("[Server] Failed to get members of %s: %v", chatID, err)
		return ""
	}

	s.namesMu.Lock()
	defer s.namesMu.Unlock()
	for _, m := range members {
		if m.Name != "" {
			s.names[m.UserID] = m.Name
		}
	}
	return s.names[senderID]
}

// markMessageSeen records msgID and reports whether it was new.
// Entries older than seenTTL are dropped on the way.
func (s *FeishuServer) markMessageSeen(msgID string, now time.Time) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}

	if _, exists := s.seenMsgs[msgID]; exists {
		return false
	}
	s.seenMsgs[msgID] = now
	return true
}
