// Package zfsstore manages zone root filesystems, container images, and
// persistent volumes as ZFS datasets under a configured pool hierarchy.
//
// A PoolConfig names three datasets under a pool: one each for zone
// roots, images, and persistent volumes. Engine is the pluggable
// backend; Zfs drives the real zfs(8) command on illumos, Mock is an
// in-memory stand-in for tests and non-illumos development.
package zfsstore

import (
	"context"
	"fmt"
)

// PoolConfig names the ZFS pool and the three datasets Reddwarf manages
// under it (the --storage-pool/--zones-dataset/--images-dataset/
// --volumes-dataset flags).
type PoolConfig struct {
	Pool           string
	ZonesDataset   string
	ImagesDataset  string
	VolumesDataset string
}

// DefaultPoolConfig fills in the conventional dataset layout under pool
// when the individual dataset flags are left unset.
func DefaultPoolConfig(pool string) PoolConfig {
	return PoolConfig{
		Pool:           pool,
		ZonesDataset:   fmt.Sprintf("%s/zones", pool),
		ImagesDataset:  fmt.Sprintf("%s/images", pool),
		VolumesDataset: fmt.Sprintf("%s/volumes", pool),
	}
}

// ZoneDataset returns the dataset a given zone's root filesystem lives
// at: {ZonesDataset}/{zoneName}.
func (c PoolConfig) ZoneDataset(zoneName string) string {
	return fmt.Sprintf("%s/%s", c.ZonesDataset, zoneName)
}

// VolumeDataset returns the dataset a persistent volume lives at:
// {VolumesDataset}/{name}.
func (c PoolConfig) VolumeDataset(name string) string {
	return fmt.Sprintf("%s/%s", c.VolumesDataset, name)
}

// ZoneStorageOpts carries per-zone dataset creation options.
type ZoneStorageOpts struct {
	// CloneFrom, if set, is an existing dataset (or snapshot) this
	// zone's root is cloned from instead of created empty.
	CloneFrom string
	// Quota, if set, is a zfs quota property value (e.g. "10G").
	Quota string
}

// VolumeInfo describes a persistent volume dataset.
type VolumeInfo struct {
	Name    string
	Dataset string
	Quota   string
}

// Engine is the pluggable storage backend. Zfs is the only real
// implementation; Mock serves tests and non-illumos hosts.
type Engine interface {
	// Initialize ensures all base datasets exist. Called once at
	// agent startup.
	Initialize(ctx context.Context) error
	CreateZoneDataset(ctx context.Context, zoneName string, opts ZoneStorageOpts) error
	DestroyZoneDataset(ctx context.Context, zoneName string) error
	CreateVolume(ctx context.Context, name string, quota string) error
	DestroyVolume(ctx context.Context, name string) error
	ListVolumes(ctx context.Context) ([]VolumeInfo, error)
	PoolConfig() PoolConfig
}
