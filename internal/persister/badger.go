//go:build !nobadger

package persister

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/neogan74/walletdb/internal/changeset"
)

func init() {
	register(BackendBadger)
}

const (
	changesetPrefix = "changeset:"
	sequenceKey     = "seq:changeset"
	// sequenceBandwidth is how many record ids are leased per sequence refill.
	sequenceBandwidth = 64
)

// badgerStore appends every ChangeSet as its own msgpack record under
// changeset:<seq>. Loading merges the records in sequence order.
type badgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// FromBadger returns a Handle that owns db.
func FromBadger(db *badger.DB) *Handle {
	return newHandle(BackendBadger, &badgerStore{db: db}, badgerError)
}

// badgerError converts a badger backend failure.
func badgerError(err error) error {
	return newError(BackendBadger, err)
}

func (b *badgerStore) load() (*changeset.ChangeSet, error) {
	cs := changeset.New()
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(changesetPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := changeset.Decode(val)
				if err != nil {
					return err
				}
				cs.Merge(rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (b *badgerStore) appendChangeSet(cs *changeset.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}
	data, err := cs.Encode()
	if err != nil {
		return err
	}

	if b.seq == nil {
		seq, err := b.db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
		if err != nil {
			return err
		}
		b.seq = seq
	}
	id, err := b.seq.Next()
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(id), data)
	})
}

func (b *badgerStore) close() error {
	if b.seq != nil {
		if err := b.seq.Release(); err != nil {
			return err
		}
		b.seq = nil
	}
	return b.db.Close()
}

func recordKey(id uint64) []byte {
	key := make([]byte, len(changesetPrefix)+8)
	copy(key, changesetPrefix)
	binary.BigEndian.PutUint64(key[len(changesetPrefix):], id)
	return key
}
