package zfsstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCreateAndDestroyVolume(t *testing.T) {
	m := NewMock(testPool())
	ctx := context.Background()

	require.NoError(t, m.CreateVolume(ctx, "data1", "10G"))
	volumes, err := m.ListVolumes(ctx)
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Equal(t, "data1", volumes[0].Name)

	require.NoError(t, m.DestroyVolume(ctx, "data1"))
	volumes, err = m.ListVolumes(ctx)
	require.NoError(t, err)
	assert.Empty(t, volumes)
}

func TestMockDestroyVolumeNotFound(t *testing.T) {
	m := NewMock(testPool())
	err := m.DestroyVolume(context.Background(), "missing")
	assert.Error(t, err)
}
