package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/api"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/conf"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/data"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/logging"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/server"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/service"
)

const (
	shutdownTimeout    = 10 * time.Second
	shutdownBackupFile = "shutdown_backup.json"
)

var envFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "autoreply",
		Short:        "Feishu keyword auto-reply bot",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Connect to Feishu and answer messages (default)",
		RunE:  runServe,
	})

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write a JSON snapshot of replies, users and groups",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}
	root.AddCommand(exportCmd)

	return root
}

// loadConfig reads .env, the environment and the response table
func loadConfig(requireFeishu bool) (*conf.Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		log.Debugf("[Main] No %s file found, using environment variables", envFile)
	}

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if requireFeishu {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if err := logging.Setup(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		Debug: cfg.Debug,
	}); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	defer logging.Close()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()
	log.Infof("[Main] Database: %s", cfg.Storage.DBPath)

	// Initialize usecase layer
	ucs := biz.NewUsecases(repos.Rule, repos.Stats, cfg.Responses.ToResponseTable(), nil, nil)

	// Initialize service layer
	commands := service.NewCommandService(repos.Rule, repos.Message, ucs.Matcher, ucs.Stats, ucs.Backup, service.CommandConfig{
		BotName:   cfg.Feishu.BotName,
		AdminIDs:  cfg.AdminIDs,
		BackupDir: cfg.Backup.Dir,
	})
	msgSvc := service.NewMessageService(ucs.Resolver, ucs.Stats, commands, repos.Message)
	scheduler := service.NewBackupScheduler(ucs.Backup, ucs.Stats, cfg.Backup.Dir,
		cfg.Backup.BackupInterval(), cfg.Backup.RetentionPeriod())

	// Initialize servers
	apiServer := api.NewServer(repos.Rule, ucs.Matcher, ucs.Resolver, ucs.Stats, ucs.Backup, cfg.Backup.Dir, cfg.APIPort)
	srv := server.NewFeishuServer(feishuClient, repos.Message, msgSvc, scheduler)

	if summary, err := ucs.Stats.Summary(cmd.Context(), 0); err == nil {
		log.Infof("[Main] Loaded %s replies, %s users, %s groups",
			humanize.Comma(int64(summary.TotalReplies)),
			humanize.Comma(int64(summary.TotalUsers)),
			humanize.Comma(int64(summary.TotalGroups)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("[Main] Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.Stop()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Warnf("[Main] API server shutdown: %v", err)
		}

		path := filepath.Join(cfg.Backup.Dir, shutdownBackupFile)
		if _, err := ucs.Backup.ExportToFile(shutdownCtx, path); err != nil {
			log.Errorf("[Main] Shutdown backup failed: %v", err)
		} else {
			log.Infof("[Main] Shutdown backup written to %s", path)
		}
		return nil
	})

	log.Infof("[Main] Starting auto-reply bot (API on 127.0.0.1:%d)", cfg.APIPort)
	if err := g.Wait(); err != nil {
		log.Errorf("[Main] Server error: %v", err)
		return err
	}
	log.Info("[Main] Stopped")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer logging.Close()
	log.SetOutput(cmd.ErrOrStderr())

	repos, err := data.NewRepositories(nil, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()

	ucs := biz.NewUsecases(repos.Rule, repos.Stats, cfg.Responses.ToResponseTable(), nil, nil)

	// Without a file the snapshot goes to stdout, so nothing else may be printed there
	if len(args) == 0 {
		_, err := ucs.Backup.Export(cmd.Context(), cmd.OutOrStdout())
		return err
	}

	snap, err := ucs.Backup.ExportToFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s replies, %s users, %s groups to %s\n",
		humanize.Comma(int64(len(snap.Replies))),
		humanize.Comma(int64(len(snap.Users))),
		humanize.Comma(int64(len(snap.Groups))),
		args[0])
	return nil
}
