//go:build !nobolt

package persister

import (
	"encoding/binary"

	"github.com/neogan74/walletdb/internal/changeset"
	bolt "go.etcd.io/bbolt"
)

func init() {
	register(BackendBolt)
}

var changesetBucket = []byte("changesets")

// boltStore appends every ChangeSet to the changesets bucket keyed by the
// bucket sequence, so a cursor walks them in write order.
type boltStore struct {
	db *bolt.DB
}

// FromBolt returns a Handle that owns db.
func FromBolt(db *bolt.DB) *Handle {
	return newHandle(BackendBolt, &boltStore{db: db}, boltError)
}

// boltError converts a bolt backend failure.
func boltError(err error) error {
	return newError(BackendBolt, err)
}

func (s *boltStore) load() (*changeset.ChangeSet, error) {
	cs := changeset.New()
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(changesetBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			rec, err := changeset.Decode(v)
			if err != nil {
				return err
			}
			cs.Merge(rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *boltStore) appendChangeSet(cs *changeset.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}
	data, err := cs.Encode()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(changesetBucket)
		if err != nil {
			return err
		}
		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bucket.Put(key, data)
	})
}

func (s *boltStore) close() error {
	return s.db.Close()
}
