package domain

import (
	"strings"
	"time"
)

// ChatType represents the chat type
type ChatType string

const (
	ChatTypeP2P   ChatType = "p2p"
	ChatTypeGroup ChatType = "group"
)

// Message represents an incoming chat message
type Message struct {
	ID         string
	ChatID     string
	ChatType   ChatType
	Content    string
	SenderID   string
	SenderName string
	CreateTime time.Time
}

// IsGroup checks if the message was sent in a group chat
func (m *Message) IsGroup() bool {
	return m.ChatType == ChatTypeGroup
}

// IsCommand checks if the message is a slash command
func (m *Message) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Content), "/")
}
