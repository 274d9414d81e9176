//go:build !nosqlite

package persistence

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/neogan74/walletdb/internal/config"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/persister"
	_ "modernc.org/sqlite"
)

func init() {
	openers[persister.BackendSQLite] = openSQLite
}

func openSQLite(cfg config.PersistenceConfig, log logger.Logger) (*persister.Handle, error) {
	if err := ensureParent(cfg.Path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	log.Info("Using SQLite persistence",
		logger.String("path", cfg.Path),
		logger.Bool("sync_writes", cfg.SyncWrites))
	return persister.FromSQLite(db), nil
}

func sqliteDSN(cfg config.PersistenceConfig) string {
	synchronous := "NORMAL"
	if cfg.SyncWrites {
		synchronous = "FULL"
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.OpenTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous("+synchronous+")")
	return "file:" + cfg.Path + "?" + q.Encode()
}
