// Package kv defines the byte-level KVStore capability that the versioned
// store, resource store, and IPAM all share. KVStore is treated as an
// external collaborator per spec.md §1 — a single-writer, prefix-scannable
// byte store. This package provides two concrete implementations: an
// in-memory one for tests, and a bbolt-backed one for real deployments.
package kv

import "context"

// Tx is a single-writer transaction handle, scoped to one bucket.
type Tx interface {
	Get(key []byte) ([]byte, error) // nil, nil when absent
	Put(key, value []byte) error
	Delete(key []byte) error
	// PrefixScan calls fn for every key/value pair whose key starts with
	// prefix, in ascending key order. fn returning false stops the scan.
	PrefixScan(prefix []byte, fn func(key, value []byte) bool) error
}

// KVStore is the capability set every component depends on. Update runs fn
// inside a read-write transaction, committing iff fn returns nil. View runs
// fn inside a read-only transaction.
type KVStore interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Get is a convenience wrapper for a single read-only lookup.
func Get(ctx context.Context, s KVStore, key []byte) ([]byte, error) {
	var out []byte
	err := s.View(ctx, func(tx Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Put is a convenience wrapper for a single write.
func Put(ctx context.Context, s KVStore, key, value []byte) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Put(key, value)
	})
}

// Delete is a convenience wrapper for a single delete.
func Delete(ctx context.Context, s KVStore, key []byte) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Delete(key)
	})
}
