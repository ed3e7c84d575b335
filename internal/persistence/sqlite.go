package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/issuedesk/issue-service/internal/config"
)

// OpenSQLite opens the embedded database file, enables foreign keys and applies migrations.
// A single connection serializes writers so conditional updates never hit SQLITE_BUSY.
func OpenSQLite(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*sql.DB, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set WAL mode: %w", err)
	}
	if err := RunSQLiteMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("opened sqlite store", zap.String("path", cfg.SQLitePath))
	return db, nil
}
