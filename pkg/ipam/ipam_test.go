package ipam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
)

func TestAllocateIsIdempotent(t *testing.T) {
	a, err := New(kv.NewMemory(), "10.0.0.0/30")
	require.NoError(t, err)

	first, err := a.Allocate(context.Background(), "default", "web-1")
	require.NoError(t, err)
	second, err := a.Allocate(context.Background(), "default", "web-1")
	require.NoError(t, err)

	assert.Equal(t, first.IP.String(), second.IP.String())
	assert.Equal(t, "10.0.0.1", first.Gateway.String())
	assert.Equal(t, 30, first.PrefixLen)
}

func TestAllocateExhaustionOnSlash30(t *testing.T) {
	a, err := New(kv.NewMemory(), "10.0.0.0/30")
	require.NoError(t, err)

	alloc, err := a.Allocate(context.Background(), "default", "only-host")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", alloc.IP.String())

	_, err = a.Allocate(context.Background(), "default", "second-host")
	require.Error(t, err)
	var exhaustion *ExhaustionError
	assert.ErrorAs(t, err, &exhaustion)
}

func TestReleaseFreesAddressForReuse(t *testing.T) {
	a, err := New(kv.NewMemory(), "10.0.0.0/30")
	require.NoError(t, err)

	alloc, err := a.Allocate(context.Background(), "default", "web-1")
	require.NoError(t, err)

	freed, err := a.Release(context.Background(), "default", "web-1")
	require.NoError(t, err)
	assert.Equal(t, alloc.IP.String(), freed.String())

	next, err := a.Allocate(context.Background(), "default", "web-2")
	require.NoError(t, err)
	assert.Equal(t, alloc.IP.String(), next.IP.String())
}

func TestReleaseMissingMappingIsNotAnError(t *testing.T) {
	a, err := New(kv.NewMemory(), "10.0.0.0/28")
	require.NoError(t, err)

	freed, err := a.Release(context.Background(), "default", "never-allocated")
	require.NoError(t, err)
	assert.Nil(t, freed)
}

func TestVNICNameNormalizesHyphens(t *testing.T) {
	assert.Equal(t, "vnic_my_ns_my_pod", VNICName("my-ns", "my-pod"))
}

func TestVNICNameFallsBackToHashWhenTooLong(t *testing.T) {
	name := VNICName("a-very-long-namespace-name", "a-very-long-pod-name-too")
	assert.True(t, len(name) <= vnicMaxLen)
	assert.Regexp(t, "^vnic_[0-9a-f]{8}$", name)
}

func TestRejectsNonIPv4CIDR(t *testing.T) {
	_, err := New(kv.NewMemory(), "2001:db8::/32")
	require.Error(t, err)
}
