package domain

import "time"

// Snapshot is the JSON export of the whole store
type Snapshot struct {
	ExportDate time.Time       `json:"export_date"`
	Replies    []SnapshotReply `json:"replies"`
	Users      []SnapshotUser  `json:"users"`
	Groups     []SnapshotGroup `json:"groups"`
}

// SnapshotReply is one exported reply rule
type SnapshotReply struct {
	Keyword string `json:"keyword"`
	Reply   string `json:"reply"`
	Usage   int    `json:"usage"`
}

// SnapshotUser is one exported user
type SnapshotUser struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	LastSeen     time.Time `json:"last_seen"`
}

// SnapshotGroup is one exported group setting
type SnapshotGroup struct {
	GroupID          string `json:"group_id"`
	GroupName        string `json:"group_name"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
}
