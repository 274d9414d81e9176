package wallet

import (
	"errors"
	"testing"
	"time"

	"github.com/neogan74/walletdb/internal/changeset"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/persister"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore wraps a real handle and counts calls, optionally failing
// persist.
type recordingStore struct {
	*persister.Handle
	persists   int
	persistErr error
}

func (r *recordingStore) Persist(cs *changeset.ChangeSet) error {
	r.persists++
	if r.persistErr != nil {
		return r.persistErr
	}
	return r.Handle.Persist(cs)
}

func newStore() *recordingStore {
	return &recordingStore{Handle: persister.FromMemory()}
}

func TestLoad_FreshStoreClaimsNetwork(t *testing.T) {
	store := newStore()

	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "regtest", w.Network())
	assert.Equal(t, "regtest", w.Staged().Network)

	committed, err := w.Commit()
	require.NoError(t, err)
	assert.True(t, committed)

	stored, err := store.Initialize()
	require.NoError(t, err)
	assert.Equal(t, "regtest", stored.Network)
}

func TestLoad_NetworkMismatch(t *testing.T) {
	store := newStore()
	require.NoError(t, store.Handle.Persist(&changeset.ChangeSet{Network: "bitcoin"}))

	_, err := Load(store, "testnet", logger.NewNop())
	require.Error(t, err)
	assert.True(t, IsNetworkMismatch(err))
	assert.Contains(t, err.Error(), `"bitcoin"`)
}

func TestLoad_InitializeFailure(t *testing.T) {
	store := newStore()
	require.NoError(t, store.Close())

	_, err := Load(store, "regtest", logger.NewNop())
	require.Error(t, err)
	assert.True(t, persister.IsBackend(err, persister.BackendMemory))
	assert.ErrorIs(t, err, persister.ErrMemoryClosed)
}

func TestCommit_NothingStaged(t *testing.T) {
	store := newStore()
	require.NoError(t, store.Handle.Persist(&changeset.ChangeSet{Network: "regtest"}))

	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)

	committed, err := w.Commit()
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Zero(t, store.persists)
}

func TestCommit_FailureKeepsStaged(t *testing.T) {
	store := newStore()
	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)

	store.persistErr = errors.New("disk full")
	assert.Equal(t, uint32(0), w.RevealNextIndex(KeychainExternal))

	_, err = w.Commit()
	require.ErrorContains(t, err, "disk full")
	assert.False(t, w.Staged().IsEmpty())

	store.persistErr = nil
	committed, err := w.Commit()
	require.NoError(t, err)
	assert.True(t, committed)
	assert.True(t, w.Staged().IsEmpty())
	assert.Equal(t, 2, store.persists)
}

func TestRevealNextIndex(t *testing.T) {
	store := newStore()
	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, uint32(0), w.RevealNextIndex(KeychainExternal))
	assert.Equal(t, uint32(1), w.RevealNextIndex(KeychainExternal))
	assert.Equal(t, uint32(0), w.RevealNextIndex(KeychainInternal))
	_, err = w.Commit()
	require.NoError(t, err)

	reloaded, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), reloaded.RevealNextIndex(KeychainExternal))
}

func TestDescriptors(t *testing.T) {
	w, err := Load(newStore(), "regtest", logger.NewNop())
	require.NoError(t, err)

	require.Error(t, w.SetDescriptors(" ", ""))
	require.NoError(t, w.SetDescriptors("wpkh(ext)", "wpkh(int)"))
	require.NoError(t, w.SetDescriptors("wpkh(ext)", "wpkh(int)"))

	err = w.SetDescriptors("wpkh(other)", "wpkh(int)")
	assert.True(t, IsDescriptorMismatch(err))
	err = w.SetDescriptors("wpkh(ext)", "wpkh(other)")
	assert.True(t, IsDescriptorMismatch(err))

	state := w.State()
	assert.Equal(t, "wpkh(ext)", state.Descriptor)
	assert.Equal(t, "wpkh(int)", state.ChangeDescriptor)
}

func TestBlocksAndTip(t *testing.T) {
	w, err := Load(newStore(), "regtest", logger.NewNop())
	require.NoError(t, err)

	_, _, ok := w.Tip()
	assert.False(t, ok)

	require.Error(t, w.ApplyBlock(1, ""))
	require.NoError(t, w.ApplyBlock(1, "block-1"))
	require.NoError(t, w.ApplyBlock(2, "block-2"))

	height, hash, ok := w.Tip()
	require.True(t, ok)
	assert.Equal(t, uint32(2), height)
	assert.Equal(t, "block-2", hash)

	w.DisconnectBlock(2)
	w.DisconnectBlock(9)
	height, _, _ = w.Tip()
	assert.Equal(t, uint32(1), height)
	assert.NotContains(t, w.Staged().Blocks, uint32(9))
}

func TestTransactionsAndAnchors(t *testing.T) {
	store := newStore()
	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)

	seen := time.Unix(1700000000, 0)
	require.Error(t, w.InsertTx("", []byte{1}, seen))
	require.Error(t, w.InsertTx("tx-a", nil, seen))
	require.NoError(t, w.InsertTx("tx-a", []byte{0x02, 0x00}, seen))

	err = w.Anchor("tx-missing", 1, "block-1")
	assert.True(t, IsUnknownTx(err))
	require.Error(t, w.Anchor("tx-a", 1, ""))
	require.NoError(t, w.Anchor("tx-a", 1, "block-1"))

	_, err = w.Commit()
	require.NoError(t, err)

	stored, err := store.Initialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00}, stored.Txs["tx-a"])
	assert.Equal(t, int64(1700000000), stored.LastSeen["tx-a"])
	assert.Contains(t, stored.Anchors, changeset.Anchor{Txid: "tx-a", Height: 1, BlockHash: "block-1"})
}

func TestClose(t *testing.T) {
	store := newStore()
	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	_, err = store.Initialize()
	assert.ErrorIs(t, err, persister.ErrMemoryClosed)
}

func TestDiscard(t *testing.T) {
	store := newStore()
	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.ApplyBlock(1, "block-1"))
	_, err = w.Commit()
	require.NoError(t, err)

	require.NoError(t, w.ApplyBlock(2, "block-2"))
	assert.Equal(t, uint32(0), w.RevealNextIndex(KeychainExternal))

	w.Discard()
	assert.True(t, w.Staged().IsEmpty())
	height, hash, ok := w.Tip()
	require.True(t, ok)
	assert.Equal(t, uint32(1), height)
	assert.Equal(t, "block-1", hash)
	assert.NotContains(t, w.State().LastRevealed, KeychainExternal)

	committed, err := w.Commit()
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, 1, store.persists)
}

func TestDiscard_LeavesFreshStoreUnclaimed(t *testing.T) {
	store := newStore()
	w, err := Load(store, "regtest", logger.NewNop())
	require.NoError(t, err)

	w.Discard()
	assert.Empty(t, w.Network())
	assert.Zero(t, store.persists)

	other, err := Load(store, "signet", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "signet", other.Network())
}

func TestLoad_NilLoggerUsesDefault(t *testing.T) {
	w, err := Load(newStore(), "regtest", nil)
	require.NoError(t, err)
	assert.NotNil(t, w.log)
	_, err = w.Commit()
	require.NoError(t, err)
}
