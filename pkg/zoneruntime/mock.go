package zoneruntime

import (
	"context"
	"sync"
)

type mockZone struct {
	cfg   ZoneConfig
	state ZoneState
}

// Mock is an in-memory ZoneRuntime for hosts other than illumos — tests,
// CI, and development on macOS/Linux. It simulates the same state
// transitions Provision/Deprovision drive a real zone through.
type Mock struct {
	mu    sync.Mutex
	zones map[string]*mockZone
}

func NewMock() *Mock {
	return &Mock{zones: map[string]*mockZone{}}
}

func (m *Mock) Provision(_ context.Context, cfg ZoneConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.zones[cfg.Name]; exists {
		return &AlreadyExistsError{Zone: cfg.Name}
	}
	m.zones[cfg.Name] = &mockZone{cfg: cfg, state: StateRunning}
	return nil
}

func (m *Mock) Deprovision(_ context.Context, cfg ZoneConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zones, cfg.Name)
	return nil
}

func (m *Mock) GetZoneState(_ context.Context, name string) (ZoneState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[name]
	if !ok {
		return StateAbsent, nil
	}
	return z.state, nil
}

func (m *Mock) ShutdownZone(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[name]
	if !ok {
		return &NotFoundError{Zone: name}
	}
	z.state = StateDown
	return nil
}

func (m *Mock) HaltZone(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[name]
	if !ok {
		return &NotFoundError{Zone: name}
	}
	z.state = StateDown
	return nil
}

func (m *Mock) ExecInZone(_ context.Context, name string, argv []string) (ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[name]; !ok {
		return ExecResult{}, &NotFoundError{Zone: name}
	}
	return ExecResult{ExitCode: 0}, nil
}

var _ ZoneRuntime = (*Mock)(nil)
