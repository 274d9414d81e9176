// Package changeset describes the durable state of a wallet as a mergeable
// aggregate. A ChangeSet is either the full state of a wallet or an increment
// that is merged on top of it.
package changeset

import (
	"bytes"
	"maps"
)

// Anchor records that a transaction was confirmed in a given block.
type Anchor struct {
	Txid      string
	Height    uint32
	BlockHash string
}

// ChangeSet is the full or incremental description of a wallet's state.
type ChangeSet struct {
	Network          string
	Descriptor       string
	ChangeDescriptor string

	// Blocks maps a height to its block hash. An empty hash marks the
	// height as removed from the local chain.
	Blocks map[uint32]string

	Txs      map[string][]byte
	LastSeen map[string]int64
	Anchors  map[Anchor]struct{}

	// LastRevealed maps a keychain descriptor id to the last revealed
	// derivation index.
	LastRevealed map[string]uint32
}

// New returns an empty ChangeSet with all maps allocated.
func New() *ChangeSet {
	return &ChangeSet{
		Blocks:       make(map[uint32]string),
		Txs:          make(map[string][]byte),
		LastSeen:     make(map[string]int64),
		Anchors:      make(map[Anchor]struct{}),
		LastRevealed: make(map[string]uint32),
	}
}

// IsEmpty reports whether applying c would change nothing.
func (c *ChangeSet) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.Network == "" &&
		c.Descriptor == "" &&
		c.ChangeDescriptor == "" &&
		len(c.Blocks) == 0 &&
		len(c.Txs) == 0 &&
		len(c.LastSeen) == 0 &&
		len(c.Anchors) == 0 &&
		len(c.LastRevealed) == 0
}

// Merge applies other on top of c.
//
// Network and descriptors are set once: a value already present is kept.
// Blocks are overwritten, transactions and anchors are unioned, and
// LastSeen and LastRevealed keep the larger value.
func (c *ChangeSet) Merge(other *ChangeSet) {
	if other == nil {
		return
	}
	c.ensureMaps()

	if c.Network == "" {
		c.Network = other.Network
	}
	if c.Descriptor == "" {
		c.Descriptor = other.Descriptor
	}
	if c.ChangeDescriptor == "" {
		c.ChangeDescriptor = other.ChangeDescriptor
	}

	maps.Copy(c.Blocks, other.Blocks)

	for txid, raw := range other.Txs {
		if _, ok := c.Txs[txid]; !ok {
			c.Txs[txid] = bytes.Clone(raw)
		}
	}
	for txid, seen := range other.LastSeen {
		if cur, ok := c.LastSeen[txid]; !ok || seen > cur {
			c.LastSeen[txid] = seen
		}
	}
	for a := range other.Anchors {
		c.Anchors[a] = struct{}{}
	}
	for keychain, idx := range other.LastRevealed {
		if cur, ok := c.LastRevealed[keychain]; !ok || idx > cur {
			c.LastRevealed[keychain] = idx
		}
	}
}

// Clone returns a deep copy of c.
func (c *ChangeSet) Clone() *ChangeSet {
	out := New()
	if c == nil {
		return out
	}
	out.Merge(c)
	return out
}

// Equal reports whether c and other describe the same state. Nil and empty
// maps compare equal.
func (c *ChangeSet) Equal(other *ChangeSet) bool {
	if c.IsEmpty() || other.IsEmpty() {
		return c.IsEmpty() && other.IsEmpty()
	}
	if c.Network != other.Network ||
		c.Descriptor != other.Descriptor ||
		c.ChangeDescriptor != other.ChangeDescriptor {
		return false
	}
	if !maps.Equal(c.Blocks, other.Blocks) ||
		!maps.Equal(c.LastSeen, other.LastSeen) ||
		!maps.Equal(c.Anchors, other.Anchors) ||
		!maps.Equal(c.LastRevealed, other.LastRevealed) {
		return false
	}
	return maps.EqualFunc(c.Txs, other.Txs, bytes.Equal)
}

// Tip returns the highest block that has not been removed.
func (c *ChangeSet) Tip() (uint32, string, bool) {
	var (
		height uint32
		hash   string
		found  bool
	)
	if c == nil {
		return 0, "", false
	}
	for h, bh := range c.Blocks {
		if bh == "" {
			continue
		}
		if !found || h > height {
			height, hash, found = h, bh, true
		}
	}
	return height, hash, found
}

func (c *ChangeSet) ensureMaps() {
	if c.Blocks == nil {
		c.Blocks = make(map[uint32]string)
	}
	if c.Txs == nil {
		c.Txs = make(map[string][]byte)
	}
	if c.LastSeen == nil {
		c.LastSeen = make(map[string]int64)
	}
	if c.Anchors == nil {
		c.Anchors = make(map[Anchor]struct{})
	}
	if c.LastRevealed == nil {
		c.LastRevealed = make(map[string]uint32)
	}
}
