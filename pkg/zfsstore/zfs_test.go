package zfsstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	name string
	args []string
}

func fakeRunner(calls *[]fakeCall, stdout, stderr string, exitCode int, err error) commandRunner {
	return func(_ context.Context, name string, args ...string) (string, string, int, error) {
		*calls = append(*calls, fakeCall{name: name, args: args})
		return stdout, stderr, exitCode, err
	}
}

func testPool() PoolConfig {
	return DefaultPoolConfig("rpool/reddwarf")
}

func TestInitializeCreatesAllThreeBaseDatasets(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	z.run = fakeRunner(&calls, "", "", 0, nil)

	require.NoError(t, z.Initialize(context.Background()))
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"create", "-p", "rpool/reddwarf/zones"}, calls[0].args)
	assert.Equal(t, []string{"create", "-p", "rpool/reddwarf/images"}, calls[1].args)
	assert.Equal(t, []string{"create", "-p", "rpool/reddwarf/volumes"}, calls[2].args)
}

func TestInitializeToleratesAlreadyExists(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	z.run = fakeRunner(&calls, "", "filesystem 'rpool/reddwarf/zones': dataset already exists", 1, nil)

	assert.NoError(t, z.Initialize(context.Background()))
}

func TestInitializeFailsOnOtherErrors(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	z.run = fakeRunner(&calls, "", "permission denied", 1, nil)

	assert.Error(t, z.Initialize(context.Background()))
}

func TestCreateZoneDatasetClonesWhenRequested(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	z.run = fakeRunner(&calls, "", "", 0, nil)

	err := z.CreateZoneDataset(context.Background(), "ns-web-1", ZoneStorageOpts{CloneFrom: "rpool/reddwarf/images/base", Quota: "5G"})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"clone", "rpool/reddwarf/images/base", "rpool/reddwarf/zones/ns-web-1"}, calls[0].args)
	assert.Equal(t, []string{"set", "quota=5G", "rpool/reddwarf/zones/ns-web-1"}, calls[1].args)
}

func TestCreateZoneDatasetCreatesEmptyWithoutCloneFrom(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	z.run = fakeRunner(&calls, "", "", 0, nil)

	require.NoError(t, z.CreateZoneDataset(context.Background(), "ns-web-1", ZoneStorageOpts{}))
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"create", "rpool/reddwarf/zones/ns-web-1"}, calls[0].args)
}

func TestDestroyZoneDatasetIsRecursive(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	z.run = fakeRunner(&calls, "", "", 0, nil)

	require.NoError(t, z.DestroyZoneDataset(context.Background(), "ns-web-1"))
	assert.Equal(t, []string{"destroy", "-r", "rpool/reddwarf/zones/ns-web-1"}, calls[0].args)
}

func TestListVolumesParsesTabSeparatedOutput(t *testing.T) {
	var calls []fakeCall
	z := NewZfs(testPool())
	out := "rpool/reddwarf/volumes\t-\nrpool/reddwarf/volumes/data1\t10G\nrpool/reddwarf/volumes/data2\t-\n"
	z.run = fakeRunner(&calls, out, "", 0, nil)

	volumes, err := z.ListVolumes(context.Background())
	require.NoError(t, err)
	require.Len(t, volumes, 2)
	assert.Equal(t, VolumeInfo{Name: "data1", Dataset: "rpool/reddwarf/volumes/data1", Quota: "10G"}, volumes[0])
	assert.Equal(t, VolumeInfo{Name: "data2", Dataset: "rpool/reddwarf/volumes/data2", Quota: ""}, volumes[1])
}

func TestZoneDatasetAndVolumeDatasetNaming(t *testing.T) {
	pool := testPool()
	assert.Equal(t, "rpool/reddwarf/zones/ns-web-1", pool.ZoneDataset("ns-web-1"))
	assert.Equal(t, "rpool/reddwarf/volumes/data1", pool.VolumeDataset("data1"))
}
