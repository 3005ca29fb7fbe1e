package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
)

// BackupUsecase exports the store as JSON
type BackupUsecase struct {
	ruleRepo  repo.RuleRepo
	statsRepo repo.StatsRepo
	clock     Clock
}

// NewBackupUsecase creates a new backup usecase
func NewBackupUsecase(ruleRepo repo.RuleRepo, statsRepo repo.StatsRepo, clock Clock) *BackupUsecase {
	if clock == nil {
		clock = time.Now
	}
	return &BackupUsecase{
		ruleRepo:  ruleRepo,
		statsRepo: statsRepo,
		clock:     clock,
	}
}

// Snapshot reads replies, users and groups into one document
func (uc *BackupUsecase) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	rules, err := uc.ruleRepo.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	users, err := uc.statsRepo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := uc.statsRepo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		ExportDate: uc.clock(),
		Replies:    make([]domain.SnapshotReply, 0, len(rules)),
		Users:      make([]domain.SnapshotUser, 0, len(users)),
		Groups:     make([]domain.SnapshotGroup, 0, len(groups)),
	}
	for _, r := range rules {
		snap.Replies = append(snap.Replies, domain.SnapshotReply{
			Keyword: r.Keyword,
			Reply:   r.Response,
			Usage:   r.UsageCount,
		})
	}
	for _, u := range users {
		snap.Users = append(snap.Users, domain.SnapshotUser{
			UserID:       u.UserID,
			Name:         u.Name,
			MessageCount: u.MessageCount,
			LastSeen:     u.LastSeen,
		})
	}
	for _, g := range groups {
		snap.Groups = append(snap.Groups, domain.SnapshotGroup{
			GroupID:          g.GroupID,
			GroupName:        g.GroupName,
			AutoReplyEnabled: g.AutoReplyEnabled,
		})
	}
	return snap, nil
}

// Export writes an indented JSON snapshot to w
func (uc *BackupUsecase) Export(ctx context.Context, w io.Writer) (*domain.Snapshot, error) {
	snap, err := uc.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return snap, nil
}

// ExportToFile writes a snapshot to path, replacing it atomically
func (uc *BackupUsecase) ExportToFile(ctx context.Context, path string) (*domain.Snapshot, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	snap, err := uc.Export(ctx, tmp)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("failed to move backup into place: %w", err)
	}
	return snap, nil
}

// FileName returns a timestamped file name such as backup_20240301_101500.json
func (uc *BackupUsecase) FileName(prefix string) string {
	return fmt.Sprintf("%s_%s.json", prefix, uc.clock().Format("20060102_150405"))
}
