//go:build !nosqlite

package persister

import (
	"database/sql"
	"fmt"

	"github.com/neogan74/walletdb/internal/changeset"
)

func init() {
	register(BackendSQLite)
}

const (
	metaNetwork          = "network"
	metaDescriptor       = "descriptor"
	metaChangeDescriptor = "change_descriptor"
)

// sqliteStore keeps each ChangeSet section in its own table. Persisting a
// ChangeSet is one transaction of upserts that follow the merge rules.
type sqliteStore struct {
	db       *sql.DB
	migrated bool
}

// FromSQLite returns a Handle that owns db. db must be an open connection
// created with the "sqlite" driver (modernc.org/sqlite).
func FromSQLite(db *sql.DB) *Handle {
	return newHandle(BackendSQLite, &sqliteStore{db: db}, sqliteError)
}

// sqliteError converts a sqlite backend failure.
func sqliteError(err error) error {
	return newError(BackendSQLite, err)
}

func (s *sqliteStore) ensureSchema() error {
	if s.migrated {
		return nil
	}
	if err := applyMigrations(s.db); err != nil {
		return err
	}
	s.migrated = true
	return nil
}

func (s *sqliteStore) load() (*changeset.ChangeSet, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}

	cs := changeset.New()
	if err := s.loadMeta(cs); err != nil {
		return nil, err
	}
	if err := queryEach(s.db, "SELECT height, hash FROM walletdb_blocks", func(rows *sql.Rows) error {
		var (
			height int64
			hash   string
		)
		if err := rows.Scan(&height, &hash); err != nil {
			return err
		}
		cs.Blocks[uint32(height)] = hash
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	if err := queryEach(s.db, "SELECT txid, raw FROM walletdb_txs", func(rows *sql.Rows) error {
		var (
			txid string
			raw  []byte
		)
		if err := rows.Scan(&txid, &raw); err != nil {
			return err
		}
		cs.Txs[txid] = raw
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load txs: %w", err)
	}
	if err := queryEach(s.db, "SELECT txid, seen FROM walletdb_last_seen", func(rows *sql.Rows) error {
		var (
			txid string
			seen int64
		)
		if err := rows.Scan(&txid, &seen); err != nil {
			return err
		}
		cs.LastSeen[txid] = seen
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load last seen: %w", err)
	}
	if err := queryEach(s.db, "SELECT txid, height, hash FROM walletdb_anchors", func(rows *sql.Rows) error {
		var (
			a      changeset.Anchor
			height int64
		)
		if err := rows.Scan(&a.Txid, &height, &a.BlockHash); err != nil {
			return err
		}
		a.Height = uint32(height)
		cs.Anchors[a] = struct{}{}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load anchors: %w", err)
	}
	if err := queryEach(s.db, "SELECT keychain, idx FROM walletdb_last_revealed", func(rows *sql.Rows) error {
		var (
			keychain string
			idx      int64
		)
		if err := rows.Scan(&keychain, &idx); err != nil {
			return err
		}
		cs.LastRevealed[keychain] = uint32(idx)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load last revealed: %w", err)
	}
	return cs, nil
}

func (s *sqliteStore) loadMeta(cs *changeset.ChangeSet) error {
	err := queryEach(s.db, "SELECT key, value FROM walletdb_meta", func(rows *sql.Rows) error {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		switch key {
		case metaNetwork:
			cs.Network = value
		case metaDescriptor:
			cs.Descriptor = value
		case metaChangeDescriptor:
			cs.ChangeDescriptor = value
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load meta: %w", err)
	}
	return nil
}

func (s *sqliteStore) appendChangeSet(cs *changeset.ChangeSet) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if cs.IsEmpty() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	if err := writeChangeSet(tx, cs); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist: %w", err)
	}
	return nil
}

func writeChangeSet(tx *sql.Tx, cs *changeset.ChangeSet) error {
	meta := map[string]string{
		metaNetwork:          cs.Network,
		metaDescriptor:       cs.Descriptor,
		metaChangeDescriptor: cs.ChangeDescriptor,
	}
	for key, value := range meta {
		if value == "" {
			continue
		}
		if _, err := tx.Exec(
			"INSERT INTO walletdb_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
			key, value,
		); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}

	for height, hash := range cs.Blocks {
		if _, err := tx.Exec(
			"INSERT INTO walletdb_blocks (height, hash) VALUES (?, ?) ON CONFLICT(height) DO UPDATE SET hash = excluded.hash",
			int64(height), hash,
		); err != nil {
			return fmt.Errorf("write block %d: %w", height, err)
		}
	}
	for txid, raw := range cs.Txs {
		if raw == nil {
			raw = []byte{}
		}
		if _, err := tx.Exec(
			"INSERT INTO walletdb_txs (txid, raw) VALUES (?, ?) ON CONFLICT(txid) DO NOTHING",
			txid, raw,
		); err != nil {
			return fmt.Errorf("write tx %s: %w", txid, err)
		}
	}
	for txid, seen := range cs.LastSeen {
		if _, err := tx.Exec(
			"INSERT INTO walletdb_last_seen (txid, seen) VALUES (?, ?) ON CONFLICT(txid) DO UPDATE SET seen = max(walletdb_last_seen.seen, excluded.seen)",
			txid, seen,
		); err != nil {
			return fmt.Errorf("write last seen %s: %w", txid, err)
		}
	}
	for a := range cs.Anchors {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO walletdb_anchors (txid, height, hash) VALUES (?, ?, ?)",
			a.Txid, int64(a.Height), a.BlockHash,
		); err != nil {
			return fmt.Errorf("write anchor %s: %w", a.Txid, err)
		}
	}
	for keychain, idx := range cs.LastRevealed {
		if _, err := tx.Exec(
			"INSERT INTO walletdb_last_revealed (keychain, idx) VALUES (?, ?) ON CONFLICT(keychain) DO UPDATE SET idx = max(walletdb_last_revealed.idx, excluded.idx)",
			keychain, int64(idx),
		); err != nil {
			return fmt.Errorf("write last revealed %s: %w", keychain, err)
		}
	}
	return nil
}

func (s *sqliteStore) close() error {
	return s.db.Close()
}

func queryEach(db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
