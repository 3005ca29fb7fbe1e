package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/logging"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/mcp"
)

// This MCP server talks to a running autoreply bot through its loopback admin API.
// stdout carries the MCP protocol, so logs go to stderr only.

const (
	version        = "v1.0.0"
	defaultAPIPort = 9876
)

var (
	envFile string
	apiURL  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "autoreply-mcp",
		Short:        "MCP tools for managing the Feishu auto-reply bot",
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.Flags().StringVar(&apiURL, "api-url", "", "admin API base URL (default $AUTOREPLY_API_URL or http://127.0.0.1:$API_PORT)")
	return root
}

func run(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(envFile)

	level := os.Getenv("LOG_LEVEL")
	if err := logging.Setup(logging.Options{Level: level}); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logging.Close()
	log.SetOutput(os.Stderr)

	baseURL := resolveAPIURL()
	log.Infof("[MCP] Using admin API at %s", baseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewToolServer(mcp.NewClient(baseURL), version)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func resolveAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	if v := os.Getenv("AUTOREPLY_API_URL"); v != "" {
		return v
	}
	port := defaultAPIPort
	if v := os.Getenv("API_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			port = parsed
		}
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
