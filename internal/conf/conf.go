package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIPort            = 9876
	defaultBackupIntervalHour = 24
	defaultChatLogRetainDays  = 30
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Storage configuration
	Storage StorageConfig

	// Backup configuration
	Backup BackupConfig

	// Log configuration
	Log LogConfig

	// Responses configuration (loaded from YAML)
	Responses *ResponsesConfig

	// AdminIDs are the open_ids allowed to run admin commands
	AdminIDs []string

	// APIPort is the local admin API port
	APIPort int

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	BotName   string
}

// StorageConfig contains database configuration
type StorageConfig struct {
	DBPath string
}

// BackupConfig contains periodic backup settings
type BackupConfig struct {
	Dir              string
	IntervalHours    int // 0 disables periodic backups
	ChatLogRetention int // days, 0 keeps chat logs forever
}

// LogConfig contains logging configuration
type LogConfig struct {
	File  string
	Level string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	homeDir, _ := os.UserHomeDir()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(homeDir, ".feishu-autoreply", "auto_replies.db")
	}

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(dbPath), "backups")
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "bot.log"
	}

	responses, err := LoadResponsesConfig(os.Getenv("RESPONSES_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			BotName:   os.Getenv("BOT_NAME"),
		},
		Storage: StorageConfig{
			DBPath: dbPath,
		},
		Backup: BackupConfig{
			Dir:              backupDir,
			IntervalHours:    intFromEnv("BACKUP_INTERVAL_HOURS", defaultBackupIntervalHour),
			ChatLogRetention: intFromEnv("CHAT_LOG_RETENTION_DAYS", defaultChatLogRetainDays),
		},
		Log: LogConfig{
			File:  logFile,
			Level: os.Getenv("LOG_LEVEL"),
		},
		Responses: responses,
		AdminIDs:  splitList(os.Getenv("ADMIN_IDS")),
		APIPort:   intFromEnv("API_PORT", defaultAPIPort),
		Debug:     os.Getenv("DEBUG") == "true",
	}, nil
}

// intFromEnv reads an integer, keeping def when unset or malformed
func intFromEnv(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func splitList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsAdmin reports whether userID may run admin commands
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// BackupInterval returns the periodic backup interval, zero when disabled
func (c *BackupConfig) BackupInterval() time.Duration {
	if c.IntervalHours <= 0 {
		return 0
	}
	return time.Duration(c.IntervalHours) * time.Hour
}

// RetentionPeriod returns how long chat logs are kept, zero for forever
func (c *BackupConfig) RetentionPeriod() time.Duration {
	if c.ChatLogRetention <= 0 {
		return 0
	}
	return time.Duration(c.ChatLogRetention) * 24 * time.Hour
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "must be between 1 and 65535"}
	}
	if c.Storage.DBPath == "" {
		return &ConfigError{Field: "DB_PATH", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
