package changeset

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// record is the msgpack wire form of a ChangeSet. Anchors travel as a sorted
// slice since msgpack maps cannot carry struct keys.
type record struct {
	Network          string            `codec:"network,omitempty"`
	Descriptor       string            `codec:"descriptor,omitempty"`
	ChangeDescriptor string            `codec:"change_descriptor,omitempty"`
	Blocks           map[uint32]string `codec:"blocks,omitempty"`
	Txs              map[string][]byte `codec:"txs,omitempty"`
	LastSeen         map[string]int64  `codec:"last_seen,omitempty"`
	Anchors          []Anchor          `codec:"anchors,omitempty"`
	LastRevealed     map[string]uint32 `codec:"last_revealed,omitempty"`
}

// Encode serializes c with msgpack.
func (c *ChangeSet) Encode() ([]byte, error) {
	rec := record{
		Network:          c.Network,
		Descriptor:       c.Descriptor,
		ChangeDescriptor: c.ChangeDescriptor,
		Blocks:           c.Blocks,
		Txs:              c.Txs,
		LastSeen:         c.LastSeen,
		LastRevealed:     c.LastRevealed,
	}
	for a := range c.Anchors {
		rec.Anchors = append(rec.Anchors, a)
	}
	slices.SortFunc(rec.Anchors, compareAnchors)

	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &codec.MsgpackHandle{})
	if err := enc.Encode(&rec); err != nil {
		return nil, fmt.Errorf("encode changeset: %w", err)
	}
	return buf, nil
}

// Decode parses a ChangeSet previously produced by Encode. The result does
// not alias data, so data may come from a buffer owned by a transaction.
func Decode(data []byte) (*ChangeSet, error) {
	var rec record
	dec := codec.NewDecoderBytes(data, &codec.MsgpackHandle{})
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode changeset: %w", err)
	}

	cs := New()
	cs.Network = rec.Network
	cs.Descriptor = rec.Descriptor
	cs.ChangeDescriptor = rec.ChangeDescriptor
	for h, hash := range rec.Blocks {
		cs.Blocks[h] = hash
	}
	for txid, raw := range rec.Txs {
		cs.Txs[txid] = bytes.Clone(raw)
	}
	for txid, seen := range rec.LastSeen {
		cs.LastSeen[txid] = seen
	}
	for _, a := range rec.Anchors {
		cs.Anchors[a] = struct{}{}
	}
	for keychain, idx := range rec.LastRevealed {
		cs.LastRevealed[keychain] = idx
	}
	return cs, nil
}

func compareAnchors(a, b Anchor) int {
	if c := cmp.Compare(a.Height, b.Height); c != 0 {
		return c
	}
	if c := cmp.Compare(a.BlockHash, b.BlockHash); c != 0 {
		return c
	}
	return cmp.Compare(a.Txid, b.Txid)
}
