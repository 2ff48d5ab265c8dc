package zfsstore

import (
	"context"
	"sync"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// Mock is an in-memory Engine for hosts other than illumos — tests, CI,
// and development on macOS/Linux.
type Mock struct {
	mu      sync.Mutex
	pool    PoolConfig
	zones   map[string]ZoneStorageOpts
	volumes map[string]string
}

func NewMock(pool PoolConfig) *Mock {
	return &Mock{pool: pool, zones: map[string]ZoneStorageOpts{}, volumes: map[string]string{}}
}

func (m *Mock) PoolConfig() PoolConfig { return m.pool }

func (m *Mock) Initialize(_ context.Context) error { return nil }

func (m *Mock) CreateZoneDataset(_ context.Context, zoneName string, opts ZoneStorageOpts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[zoneName] = opts
	return nil
}

func (m *Mock) DestroyZoneDataset(_ context.Context, zoneName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zones, zoneName)
	return nil
}

func (m *Mock) CreateVolume(_ context.Context, name string, quota string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes[name] = quota
	return nil
}

func (m *Mock) DestroyVolume(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.volumes[name]; !ok {
		return apierrors.NotFound("volumes/" + name)
	}
	delete(m.volumes, name)
	return nil
}

// HasZoneDataset reports whether zoneName currently has a dataset
// recorded, for test assertions.
func (m *Mock) HasZoneDataset(zoneName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.zones[zoneName]
	return ok
}

func (m *Mock) ListVolumes(_ context.Context) ([]VolumeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	volumes := make([]VolumeInfo, 0, len(m.volumes))
	for name, quota := range m.volumes {
		volumes = append(volumes, VolumeInfo{Name: name, Dataset: m.pool.VolumeDataset(name), Quota: quota})
	}
	return volumes, nil
}

var _ Engine = (*Mock)(nil)
