// Package persistence opens the storage resource selected by configuration
// and binds it to a persister.Handle. Only backends compiled into the binary
// can be opened.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/neogan74/walletdb/internal/config"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/persister"
)

// opener acquires the resource of one backend and wraps it in a Handle.
type opener func(cfg config.PersistenceConfig, log logger.Logger) (*persister.Handle, error)

var openers = map[persister.Backend]opener{
	persister.BackendMemory: openMemory,
}

// Open creates a persistence handle based on configuration. A nil log falls
// back to the process default logger.
func Open(cfg config.PersistenceConfig, log logger.Logger) (*persister.Handle, error) {
	if log == nil {
		log = logger.GetDefault()
	}
	backend, err := persister.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	open, ok := openers[backend]
	if !ok {
		return nil, fmt.Errorf("unsupported persistence backend: %s", backend)
	}

	h, err := open(cfg, log.WithBackend(backend.String()))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	return h, nil
}

func openMemory(_ config.PersistenceConfig, log logger.Logger) (*persister.Handle, error) {
	log.Info("Using in-memory persistence, state is lost on exit")
	return persister.FromMemory(), nil
}

// ensureParent creates the directory that will hold path.
func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
