package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// Memory is an in-process KVStore used by tests. Writes serialize on a
// single mutex, matching the single-writer contract bbolt itself enforces
// natively.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

type memTx struct {
	m *Memory
}

func (t *memTx) Get(key []byte) ([]byte, error) {
	v, ok := t.m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *memTx) Put(key, value []byte) error {
	t.m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memTx) Delete(key []byte) error {
	delete(t.m.data, string(key))
	return nil
}

func (t *memTx) PrefixScan(prefix []byte, fn func(key, value []byte) bool) error {
	keys := make([]string, 0, len(t.m.data))
	for k := range t.m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), t.m.data[k]) {
			break
		}
	}
	return nil
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}
	if err := fn(&memTx{m: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{m: m})
}

func (m *Memory) Close() error { return nil }
