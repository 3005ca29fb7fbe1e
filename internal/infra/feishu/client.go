package feishu

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	log "github.com/sirupsen/logrus"
)

const openAPIBase = "https://open.feishu.cn/open-apis"

// Message represents a received Feishu message
type Message struct {
	ChatID      string
	MsgID       string
	MsgType     string  // text, post
	ChatType    string  // p2p (private), group
	Content     string  // Text content with the bot mention removed
	Sender      *Sender // Message sender info
	MentionsBot bool    // True if the bot was mentioned
	CreateTime  int64   // Message creation time (milliseconds Unix timestamp from Feishu)
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
	TenantKey  string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID   string `json:"member_id"`
	MemberType string `json:"member_type"`
	Name       string `json:"name"`
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	ChatType    string `json:"chat_type"` // p2p, group
	MemberCount int    `json:"user_count"`
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	botOpenID string
}

// NewClient creates a new Feishu client
// The REST client is usable right away; Start opens the event stream.
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.fetchBotOpenID(c.ctx); err != nil {
		log.Warnf("[Feishu] Failed to fetch bot open_id: %v", err)
	}

	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	log.Info("[Feishu] Starting WebSocket connection...")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotOpenID learns the bot's own open_id so mentions of it can be stripped
func (c *Client) fetchBotOpenID(ctx context.Context) error {
	tokenReq := fmt.Sprintf(`{"app_id":%q,"app_secret":%q}`, c.appID, c.appSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		openAPIBase+"/auth/v3/tenant_access_token/internal", strings.NewReader(tokenReq))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	tokenResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, openAPIBase+"/bot/v3/info", nil)
	if err != nil {
		return fmt.Errorf("build bot info request: %w", err)
	}
	infoReq.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(infoReq)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	log.Infof("[Feishu] Bot open_id: %s (name=%s)", c.botOpenID, botResult.Bot.AppName)
	return nil
}

// handleMessage converts an SDK event into a Message
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil {
		return
	}
	rawMsg := event.Event.Message
	if rawMsg == nil || rawMsg.ChatId == nil || rawMsg.MessageId == nil || rawMsg.MessageType == nil {
		return
	}

	// Ignore our own messages to avoid reply loops
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}

	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}

	if sender := event.Event.Sender; sender != nil {
		msg.Sender = &Sender{}
		if sender.SenderId != nil && sender.SenderId.OpenId != nil {
			msg.Sender.SenderID = *sender.SenderId.OpenId
		}
		if sender.SenderType != nil {
			msg.Sender.SenderType = *sender.SenderType
		}
		if sender.TenantKey != nil {
			msg.Sender.TenantKey = *sender.TenantKey
		}
	}

	// mention key (@_user_1) -> replacement text; the bot's own mention becomes empty
	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Key == nil {
			continue
		}
		if mention.Id != nil && mention.Id.OpenId != nil && *mention.Id.OpenId == c.botOpenID && c.botOpenID != "" {
			msg.MentionsBot = true
			mentionMap[*mention.Key] = ""
			continue
		}
		if mention.Name != nil {
			mentionMap[*mention.Key] = "@" + *mention.Name
		}
	}

	var content string
	if rawMsg.Content != nil {
		content = *rawMsg.Content
	}
	switch msg.MsgType {
	case "text":
		msg.Content = ParseTextContent(content, mentionMap)
	case "post":
		msg.Content = ParsePostContent(content, mentionMap)
	default:
		log.Debugf("[Feishu] Unsupported message type: %s", msg.MsgType)
		return
	}

	log.Debugf("[Feishu] Received %s from %s chat %s: %s", msg.MsgType, msg.ChatType, msg.ChatID, truncate(msg.Content, 50))

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// ParseTextContent extracts text from a text message and resolves mention placeholders
func ParseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(replaceMentions(parsed.Text, mentionMap))
}

// ParsePostContent flattens a rich text message into plain text
func ParsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var sb strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				sb.WriteString(elem.Text)
			case "at":
				if repl, ok := mentionMap[elem.UserID]; ok {
					sb.WriteString(repl)
				}
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.TrimSpace(replaceMentions(strings.Join(lines, "\n"), mentionMap))
}

// replaceMentions replaces mention placeholders (@_user_1, ...) using mentionMap
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, repl := range mentionMap {
		text = strings.ReplaceAll(text, key, repl)
	}
	return text
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.send(ctx, larkim.ReceiveIdTypeChatId, chatID, text)
}

// SendTextToUser sends a private text message to a user by open_id
func (c *Client) SendTextToUser(ctx context.Context, openID, text string) error {
	return c.send(ctx, larkim.ReceiveIdTypeOpenId, openID, text)
}

func (c *Client) send(ctx context.Context, idType, receiveID, text string) error {
	contentJSON, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	log.Debugf("[Feishu] Message sent to %s", receiveID)
	return nil
}

// GetChatMembers retrieves all members of a chat
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.MemberIdType != nil {
				member.MemberType = *item.MemberIdType
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			members = append(members, member)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	return members, nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &ChatInfo{ChatID: chatID}
	if resp.Data.Name != nil {
		info.Name = *resp.Data.Name
	}
	if resp.Data.ChatMode != nil {
		info.ChatType = *resp.Data.ChatMode
	}
	if resp.Data.UserCount != nil {
		if n, err := strconv.Atoi(*resp.Data.UserCount); err == nil {
			info.MemberCount = n
		}
	}
	return info, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
