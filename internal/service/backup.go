package service

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
)

// BackupScheduler writes periodic JSON backups and prunes old chat logs
type BackupScheduler struct {
	backupUC *usecase.BackupUsecase
	statsUC  *usecase.StatsUsecase

	dir       string
	interval  time.Duration
	retention time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackupScheduler creates a new backup scheduler.
// A zero retention keeps chat logs forever.
func NewBackupScheduler(
	backupUC *usecase.BackupUsecase,
	statsUC *usecase.StatsUsecase,
	dir string,
	interval time.Duration,
	retention time.Duration,
) *BackupScheduler {
	return &BackupScheduler{
		backupUC:  backupUC,
		statsUC:   statsUC,
		dir:       dir,
		interval:  interval,
		retention: retention,
	}
}

// Start starts the scheduler; it does nothing when the interval is zero
func (s *BackupScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		log.Info("[Scheduler] Periodic backups disabled")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	log.Infof("[Scheduler] Started with interval %v", s.interval)
}

// Stop stops the scheduler and waits for a running backup to finish
func (s *BackupScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info("[Scheduler] Stopped")
}

func (s *BackupScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce writes one backup and prunes expired chat logs
func (s *BackupScheduler) RunOnce(ctx context.Context) {
	path := filepath.Join(s.dir, s.backupUC.FileName("backup"))
	if snap, err := s.backupUC.ExportToFile(ctx, path); err != nil {
		log.Errorf("[Scheduler] Backup failed: %v", err)
	} else {
		log.Infof("[Scheduler] Backup written to %s (%d replies, %d users)", path, len(snap.Replies), len(snap.Users))
	}

	if s.retention <= 0 {
		return
	}
	count, err := s.statsUC.CleanupChatLogs(ctx, s.retention)
	if err != nil {
		log.Errorf("[Scheduler] Chat log cleanup failed: %v", err)
		return
	}
	if count > 0 {
		log.Infof("[Scheduler] Cleaned up %d old chat logs", count)
	}
}
