//go:build !nobolt

package persistence

import (
	"fmt"

	"github.com/neogan74/walletdb/internal/config"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/persister"
	bolt "go.etcd.io/bbolt"
)

func init() {
	openers[persister.BackendBolt] = openBolt
}

func openBolt(cfg config.PersistenceConfig, log logger.Logger) (*persister.Handle, error) {
	if err := ensureParent(cfg.Path); err != nil {
		return nil, err
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{
		Timeout: cfg.OpenTimeout,
		NoSync:  !cfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	log.Info("Using bbolt persistence",
		logger.String("path", cfg.Path),
		logger.Bool("sync_writes", cfg.SyncWrites))
	return persister.FromBolt(db), nil
}
