//go:build !nobadger

package persistence

import (
	"fmt"
	"os"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/neogan74/walletdb/internal/config"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/persister"
)

func init() {
	openers[persister.BackendBadger] = openBadger
}

func openBadger(cfg config.PersistenceConfig, log logger.Logger) (*persister.Handle, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{log: log})

	// Wallet changesets are small; keep the footprint modest.
	opts.ValueLogFileSize = 64 << 20
	opts.MemTableSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	log.Info("Using BadgerDB persistence",
		logger.String("data_dir", cfg.Path),
		logger.Bool("sync_writes", cfg.SyncWrites))
	return persister.FromBadger(db), nil
}

// badgerLogger routes badger's internal logging into our logger. Info and
// debug chatter is demoted to debug.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(badgerMessage(format, args))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(badgerMessage(format, args))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(badgerMessage(format, args))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(badgerMessage(format, args))
}

func badgerMessage(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
