package main

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"io"
	"slices"
	"strconv"

	"github.com/neogan74/walletdb/internal/changeset"
)

type stateView struct {
	Network          string            `json:"network"`
	Descriptor       string            `json:"descriptor,omitempty"`
	ChangeDescriptor string            `json:"change_descriptor,omitempty"`
	Blocks           map[string]string `json:"blocks"`
	Txs              map[string]string `json:"txs"`
	LastSeen         map[string]int64  `json:"last_seen"`
	Anchors          []anchorView      `json:"anchors"`
	LastRevealed     map[string]uint32 `json:"last_revealed"`
}

type anchorView struct {
	Txid      string `json:"txid"`
	Height    uint32 `json:"height"`
	BlockHash string `json:"block_hash"`
}

func writeState(out io.Writer, cs *changeset.ChangeSet) error {
	view := stateView{
		Network:          cs.Network,
		Descriptor:       cs.Descriptor,
		ChangeDescriptor: cs.ChangeDescriptor,
		Blocks:           make(map[string]string, len(cs.Blocks)),
		Txs:              make(map[string]string, len(cs.Txs)),
		LastSeen:         cs.LastSeen,
		Anchors:          []anchorView{},
		LastRevealed:     cs.LastRevealed,
	}
	for height, hash := range cs.Blocks {
		if hash != "" {
			view.Blocks[strconv.FormatUint(uint64(height), 10)] = hash
		}
	}
	for txid, raw := range cs.Txs {
		view.Txs[txid] = hex.EncodeToString(raw)
	}
	for a := range cs.Anchors {
		view.Anchors = append(view.Anchors, anchorView(a))
	}
	slices.SortFunc(view.Anchors, func(a, b anchorView) int {
		return cmp.Or(cmp.Compare(a.Height, b.Height), cmp.Compare(a.Txid, b.Txid))
	})

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
