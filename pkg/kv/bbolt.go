package kv

import (
	"bytes"
	"context"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("reddwarf")

// Bolt is the default on-disk KVStore, backed by a single bbolt database
// file under the data directory. bbolt is a single-writer, ordered-key
// embedded store — exactly the shape spec.md's KVStore collaborator
// describes — and is already a transitive dependency of the teacher's own
// kine-based storage experiment (k3s-io/kine depends on go.etcd.io/bbolt).
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

type boltTx struct {
	b *bolt.Bucket
}

func (t *boltTx) Get(key []byte) ([]byte, error) {
	v := t.b.Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *boltTx) Put(key, value []byte) error {
	return t.b.Put(key, value)
}

func (t *boltTx) Delete(key []byte) error {
	return t.b.Delete(key)
}

func (t *boltTx) PrefixScan(prefix []byte, fn func(key, value []byte) bool) error {
	c := t.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if !fn(append([]byte(nil), k...), append([]byte(nil), v...)) {
			break
		}
	}
	return nil
}

func (s *Bolt) Update(ctx context.Context, fn func(Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{b: tx.Bucket(bucketName)})
	})
}

func (s *Bolt) View(ctx context.Context, fn func(Tx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{b: tx.Bucket(bucketName)})
	})
}

func (s *Bolt) Close() error {
	return s.db.Close()
}
