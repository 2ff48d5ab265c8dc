package zoneruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvisionThenAlreadyExists(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	cfg := ZoneConfig{Name: "reddwarf-default-web-1"}

	require.NoError(t, m.Provision(ctx, cfg))

	state, err := m.GetZoneState(ctx, cfg.Name)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)

	err = m.Provision(ctx, cfg)
	var already *AlreadyExistsError
	assert.ErrorAs(t, err, &already)
}

func TestMockUnknownZoneIsAbsent(t *testing.T) {
	m := NewMock()
	state, err := m.GetZoneState(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
}

func TestMockShutdownThenDeprovision(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	cfg := ZoneConfig{Name: "reddwarf-default-web-1"}
	require.NoError(t, m.Provision(ctx, cfg))

	require.NoError(t, m.ShutdownZone(ctx, cfg.Name))
	state, _ := m.GetZoneState(ctx, cfg.Name)
	assert.Equal(t, StateDown, state)

	require.NoError(t, m.Deprovision(ctx, cfg))
	state, _ = m.GetZoneState(ctx, cfg.Name)
	assert.Equal(t, StateAbsent, state)
}
