package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/infra/feishu"

	_ "modernc.org/sqlite"
)

// Repositories contains all repositories
type Repositories struct {
	Rule    repo.RuleRepo
	Stats   repo.StatsRepo
	Message repo.MessageRepo

	db *sql.DB
}

// NewRepositories creates all repositories over one SQLite database.
// feishuClient may be nil for offline tools; Message is nil then.
func NewRepositories(feishuClient *feishu.Client, dbPath string) (*Repositories, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	ruleRepo, err := NewRuleRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	statsRepo, err := NewStatsRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := &Repositories{
		Rule:  ruleRepo,
		Stats: statsRepo,
		db:    db,
	}
	if feishuClient != nil {
		repos.Message = NewFeishuRepo(feishuClient)
	}
	return repos, nil
}

// Close closes the database connection
func (r *Repositories) Close() error {
	return r.db.Close()
}

// OpenDB opens (creating if needed) the SQLite database at dbPath
func OpenDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes every statement
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	return db, nil
}
