package persister

import (
	"testing"

	"github.com/neogan74/walletdb/internal/changeset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture describes how to exercise one backend. Backend test files append
// their fixture from init so excluded backends drop out with their build tag.
type fixture struct {
	backend Backend
	// durable backends keep state across handles opened on the same dir.
	durable bool
	open    func(t *testing.T, dir string) *Handle
	// broken returns a handle over a resource that can no longer be read,
	// together with the bare backend store over the same resource.
	broken func(t *testing.T) (*Handle, store)
}

var fixtures = []fixture{
	{
		backend: BackendMemory,
		open: func(t *testing.T, _ string) *Handle {
			return FromMemory()
		},
		broken: func(t *testing.T) (*Handle, store) {
			s := newMemoryStore()
			require.NoError(t, s.close())
			return newHandle(BackendMemory, s, memoryError), s
		},
	},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, fx fixture)) {
	for _, fx := range fixtures {
		t.Run(fx.backend.String(), func(t *testing.T) {
			fn(t, fx)
		})
	}
}

func openHandle(t *testing.T, fx fixture) *Handle {
	h := fx.open(t, t.TempDir())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func oneEntry() *changeset.ChangeSet {
	cs := changeset.New()
	cs.LastRevealed["external"] = 0
	return cs
}

func walletState() *changeset.ChangeSet {
	cs := changeset.New()
	cs.Network = "regtest"
	cs.Descriptor = "wpkh(tpubD6NzVbkrYhZ4X/0/*)"
	cs.ChangeDescriptor = "wpkh(tpubD6NzVbkrYhZ4X/1/*)"
	cs.Blocks[0] = "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"
	cs.Blocks[1] = "3d2160a3b5dc4a9d62e7e66a295f70313ac808440ef7400d6c0772171ce973a5"
	cs.Txs["a1075db55d416d3ca199f55b6084e2115b9345e16c5cf302fc80e9d5fbf5d48d"] = []byte{0x02, 0x00, 0x00, 0x00}
	cs.LastSeen["a1075db55d416d3ca199f55b6084e2115b9345e16c5cf302fc80e9d5fbf5d48d"] = 1700000000
	cs.Anchors[changeset.Anchor{
		Txid:      "a1075db55d416d3ca199f55b6084e2115b9345e16c5cf302fc80e9d5fbf5d48d",
		Height:    1,
		BlockHash: "3d2160a3b5dc4a9d62e7e66a295f70313ac808440ef7400d6c0772171ce973a5",
	}] = struct{}{}
	cs.LastRevealed["external"] = 4
	cs.LastRevealed["internal"] = 1
	return cs
}

func TestHandle_Backend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)
		assert.Equal(t, fx.backend, h.Backend())
	})
}

func TestHandle_InitializeEmptyStore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)

		cs, err := h.Initialize()
		require.NoError(t, err)
		require.NotNil(t, cs)
		assert.True(t, cs.IsEmpty())
	})
}

func TestHandle_PersistEmptyMatchesBackend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)
		native := openHandle(t, fx).store

		assert.Equal(t, native.appendChangeSet(changeset.New()), h.Persist(changeset.New()))
		assert.Equal(t, native.appendChangeSet(nil), h.Persist(nil))

		cs, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, cs.IsEmpty())
	})
}

func TestHandle_RoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)

		cs, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, cs.IsEmpty())

		require.NoError(t, h.Persist(oneEntry()))

		cs, err = h.Initialize()
		require.NoError(t, err)
		assert.Equal(t, map[string]uint32{"external": 0}, cs.LastRevealed)
		assert.True(t, cs.Equal(oneEntry()))
	})
}

func TestHandle_RoundTripFullState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)

		_, err := h.Initialize()
		require.NoError(t, err)
		require.NoError(t, h.Persist(walletState()))

		cs, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, walletState().Equal(cs), "loaded %+v", cs)
	})
}

func TestHandle_IncrementsAreMerged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)
		_, err := h.Initialize()
		require.NoError(t, err)

		first := walletState()
		second := changeset.New()
		second.Network = "bitcoin"
		second.Blocks[1] = "replaced"
		second.Blocks[2] = "block-2"
		second.LastRevealed["external"] = 2
		second.LastRevealed["internal"] = 7

		require.NoError(t, h.Persist(first))
		require.NoError(t, h.Persist(second))

		want := changeset.New()
		want.Merge(first)
		want.Merge(second)

		got, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "want %+v, got %+v", want, got)
		assert.Equal(t, "regtest", got.Network)
		assert.Equal(t, "replaced", got.Blocks[1])
		assert.Equal(t, uint32(4), got.LastRevealed["external"])
		assert.Equal(t, uint32(7), got.LastRevealed["internal"])
	})
}

func TestHandle_RepeatedPersistIsAdditive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)
		_, err := h.Initialize()
		require.NoError(t, err)

		cs := walletState()
		require.NoError(t, h.Persist(cs))
		require.NoError(t, h.Persist(cs))

		want := changeset.New()
		want.Merge(cs)
		want.Merge(cs)

		got, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	})
}

func TestHandle_PersistBeforeInitialize(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h := openHandle(t, fx)

		require.NoError(t, h.Persist(oneEntry()))

		cs, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, cs.Equal(oneEntry()))
	})
}

func TestHandle_StateSurvivesReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		if !fx.durable {
			t.Skip("backend keeps no state across handles")
		}
		dir := t.TempDir()

		h := fx.open(t, dir)
		_, err := h.Initialize()
		require.NoError(t, err)
		require.NoError(t, h.Persist(walletState()))
		require.NoError(t, h.Persist(oneEntry()))
		require.NoError(t, h.Close())

		h = fx.open(t, dir)
		defer func() { _ = h.Close() }()

		want := walletState()
		want.Merge(oneEntry())

		got, err := h.Initialize()
		require.NoError(t, err)
		assert.True(t, want.Equal(got))

		require.NoError(t, h.Persist(&changeset.ChangeSet{LastRevealed: map[string]uint32{"external": 9}}))
		got, err = h.Initialize()
		require.NoError(t, err)
		assert.Equal(t, uint32(9), got.LastRevealed["external"])
	})
}

func TestHandle_UnreadableStore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h, native := fx.broken(t)

		cs, err := h.Initialize()
		require.Error(t, err)
		assert.Nil(t, cs)

		perr, ok := AsError(err)
		require.True(t, ok, "expected *Error, got %T", err)
		assert.Equal(t, fx.backend, perr.Backend)

		_, nativeErr := native.load()
		require.Error(t, nativeErr)
		assert.Equal(t, nativeErr.Error(), err.Error())
		assert.Equal(t, perr.Err.Error(), err.Error())
	})
}

func TestHandle_ErrorsCarryOnlyOwnBackend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fx fixture) {
		h, _ := fx.broken(t)

		_, err := h.Initialize()
		require.Error(t, err)
		persistErr := h.Persist(walletState())
		require.Error(t, persistErr)

		for _, e := range []error{err, persistErr} {
			assert.True(t, IsBackend(e, fx.backend))
			for _, other := range known {
				if other != fx.backend {
					assert.False(t, IsBackend(e, other), "error tagged %s", other)
				}
			}
		}
	})
}
