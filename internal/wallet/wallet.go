// Package wallet is a minimal wallet engine on top of a persister.Handle.
// It keeps the full state in memory, stages every change as an increment and
// hands the staged increment to the handle on Commit.
package wallet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neogan74/walletdb/internal/changeset"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/metrics"
	"github.com/neogan74/walletdb/internal/persister"
)

const (
	KeychainExternal = "external"
	KeychainInternal = "internal"
)

// Persister is the persistence contract the wallet needs. *persister.Handle
// implements it.
type Persister interface {
	Backend() persister.Backend
	Initialize() (*changeset.ChangeSet, error)
	Persist(cs *changeset.ChangeSet) error
	Close() error
}

// Wallet is not safe for concurrent use.
type Wallet struct {
	store Persister
	log   logger.Logger
	// committed is what the store holds; state is committed plus staged.
	committed *changeset.ChangeSet
	state     *changeset.ChangeSet
	staged    *changeset.ChangeSet
}

// Load reads the persisted state through store. A fresh store is claimed for
// network; a store created for another network is rejected. A nil log falls
// back to the process default logger.
func Load(store Persister, network string, log logger.Logger) (*Wallet, error) {
	if log == nil {
		log = logger.GetDefault()
	}
	backend := store.Backend().String()
	log = log.WithBackend(backend)

	start := time.Now()
	state, err := store.Initialize()
	metrics.ObservePersist(backend, "initialize", start, err)
	if err != nil {
		log.Error("Failed to load wallet state", logger.Error(err))
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	w := &Wallet{
		store:     store,
		log:       log,
		committed: state.Clone(),
		state:     state,
		staged:    changeset.New(),
	}

	switch state.Network {
	case "":
		w.stage(&changeset.ChangeSet{Network: network})
		log.Info("Created new wallet", logger.String("network", network))
	case network:
		height, _, _ := state.Tip()
		log.Debug("Loaded wallet",
			logger.String("network", network),
			logger.Uint32("tip", height),
			logger.Int("txs", len(state.Txs)))
	default:
		return nil, &NetworkMismatchError{Stored: state.Network, Requested: network}
	}
	return w, nil
}

// Network returns the network the wallet is bound to.
func (w *Wallet) Network() string {
	return w.state.Network
}

// State returns a copy of the full wallet state, including staged changes.
func (w *Wallet) State() *changeset.ChangeSet {
	return w.state.Clone()
}

// Staged returns a copy of the changes not yet committed.
func (w *Wallet) Staged() *changeset.ChangeSet {
	return w.staged.Clone()
}

// Tip returns the highest block the wallet knows about.
func (w *Wallet) Tip() (uint32, string, bool) {
	return w.state.Tip()
}

// SetDescriptors binds the external and change descriptors. Binding the same
// descriptors again is a no-op.
func (w *Wallet) SetDescriptors(external, change string) error {
	external, change = strings.TrimSpace(external), strings.TrimSpace(change)
	if external == "" {
		return errors.New("external descriptor is required")
	}
	if w.state.Descriptor != "" && w.state.Descriptor != external {
		return &DescriptorMismatchError{Keychain: KeychainExternal, Stored: w.state.Descriptor, Given: external}
	}
	if change != "" && w.state.ChangeDescriptor != "" && w.state.ChangeDescriptor != change {
		return &DescriptorMismatchError{Keychain: KeychainInternal, Stored: w.state.ChangeDescriptor, Given: change}
	}

	inc := changeset.New()
	if w.state.Descriptor == "" {
		inc.Descriptor = external
	}
	if w.state.ChangeDescriptor == "" {
		inc.ChangeDescriptor = change
	}
	w.stage(inc)
	return nil
}

// ApplyBlock records hash at height, replacing whatever was there.
func (w *Wallet) ApplyBlock(height uint32, hash string) error {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return errors.New("block hash is required")
	}
	inc := changeset.New()
	inc.Blocks[height] = hash
	w.stage(inc)
	return nil
}

// DisconnectBlock removes the block at height from the local chain.
func (w *Wallet) DisconnectBlock(height uint32) {
	if hash, ok := w.state.Blocks[height]; !ok || hash == "" {
		return
	}
	inc := changeset.New()
	inc.Blocks[height] = ""
	w.stage(inc)
}

// InsertTx adds a raw transaction first seen unconfirmed at seenAt.
func (w *Wallet) InsertTx(txid string, raw []byte, seenAt time.Time) error {
	txid = strings.TrimSpace(txid)
	if txid == "" {
		return errors.New("txid is required")
	}
	if len(raw) == 0 {
		return errors.New("raw transaction is required")
	}
	inc := changeset.New()
	inc.Txs[txid] = raw
	if !seenAt.IsZero() {
		inc.LastSeen[txid] = seenAt.Unix()
	}
	w.stage(inc)
	return nil
}

// Anchor confirms a known transaction in the block at height.
func (w *Wallet) Anchor(txid string, height uint32, blockHash string) error {
	if _, ok := w.state.Txs[txid]; !ok {
		return &UnknownTxError{Txid: txid}
	}
	if strings.TrimSpace(blockHash) == "" {
		return errors.New("block hash is required")
	}
	inc := changeset.New()
	inc.Anchors[changeset.Anchor{Txid: txid, Height: height, BlockHash: blockHash}] = struct{}{}
	w.stage(inc)
	return nil
}

// RevealNextIndex reveals and returns the next derivation index of keychain.
func (w *Wallet) RevealNextIndex(keychain string) uint32 {
	next := uint32(0)
	if cur, ok := w.state.LastRevealed[keychain]; ok {
		next = cur + 1
	}
	inc := changeset.New()
	inc.LastRevealed[keychain] = next
	w.stage(inc)
	return next
}

// Commit persists the staged changes. It reports false without touching the
// store when nothing is staged. On failure the staged changes are kept so
// the caller can retry.
func (w *Wallet) Commit() (bool, error) {
	if w.staged.IsEmpty() {
		return false, nil
	}

	backend := w.store.Backend().String()
	start := time.Now()
	err := w.store.Persist(w.staged)
	metrics.ObservePersist(backend, "persist", start, err)
	if err != nil {
		w.log.Error("Failed to persist wallet changes", logger.Error(err))
		return false, fmt.Errorf("commit wallet: %w", err)
	}

	w.committed.Merge(w.staged)
	w.staged = changeset.New()
	metrics.SetStaged(false)
	return true, nil
}

// Discard drops the staged changes and returns the wallet to what the store
// holds. On a fresh store this includes the network claimed by Load.
func (w *Wallet) Discard() {
	if w.staged.IsEmpty() {
		return
	}
	w.state = w.committed.Clone()
	w.staged = changeset.New()
	metrics.SetStaged(false)
}

// Close releases the store.
func (w *Wallet) Close() error {
	if !w.staged.IsEmpty() {
		w.log.Warn("Closing wallet with uncommitted changes")
	}
	return w.store.Close()
}

func (w *Wallet) stage(inc *changeset.ChangeSet) {
	if inc.IsEmpty() {
		return
	}
	w.state.Merge(inc)
	w.staged.Merge(inc)
	metrics.SetStaged(true)
}
