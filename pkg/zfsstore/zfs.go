package zfsstore

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// commandRunner abstracts process execution so Zfs can be driven by a
// fake in tests without touching the real zfs(8) binary.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

func defaultRunner(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return outBuf.String(), errBuf.String(), exitCode, err
}

// Zfs is a ZFS-backed storage Engine for illumos. It manages zone root
// filesystems, container images, and persistent volumes as datasets
// under the configured pool hierarchy by shelling out to zfs(8).
type Zfs struct {
	Path string
	pool PoolConfig
	run  commandRunner
}

// NewZfs returns a Zfs engine managing the datasets in pool, driving
// the zfs(8) binary found via $PATH.
func NewZfs(pool PoolConfig) *Zfs {
	return &Zfs{Path: "zfs", pool: pool, run: defaultRunner}
}

func (z *Zfs) PoolConfig() PoolConfig { return z.pool }

// Initialize creates the zones/images/volumes base datasets, ignoring
// already-exists failures so repeated startups are idempotent.
func (z *Zfs) Initialize(ctx context.Context) error {
	for _, dataset := range []string{z.pool.ZonesDataset, z.pool.ImagesDataset, z.pool.VolumesDataset} {
		_, stderr, exitCode, err := z.run(ctx, z.Path, "create", "-p", dataset)
		if err != nil {
			return apierrors.Internalf("zfs create -p %s: %v", dataset, err)
		}
		if exitCode != 0 && !strings.Contains(stderr, "dataset already exists") {
			return apierrors.Internalf("zfs create -p %s: %s", dataset, strings.TrimSpace(stderr))
		}
	}
	return nil
}

func (z *Zfs) CreateZoneDataset(ctx context.Context, zoneName string, opts ZoneStorageOpts) error {
	dataset := z.pool.ZoneDataset(zoneName)

	var stderr string
	var err error
	if opts.CloneFrom != "" {
		_, stderr, _, err = z.run(ctx, z.Path, "clone", opts.CloneFrom, dataset)
	} else {
		_, stderr, _, err = z.run(ctx, z.Path, "create", dataset)
	}
	if err != nil {
		return apierrors.Internalf("zfs create zone dataset %s: %v: %s", dataset, err, strings.TrimSpace(stderr))
	}

	if opts.Quota != "" {
		if _, stderr, _, err := z.run(ctx, z.Path, "set", fmt.Sprintf("quota=%s", opts.Quota), dataset); err != nil {
			return apierrors.Internalf("zfs set quota %s: %v: %s", dataset, err, strings.TrimSpace(stderr))
		}
	}
	return nil
}

func (z *Zfs) DestroyZoneDataset(ctx context.Context, zoneName string) error {
	dataset := z.pool.ZoneDataset(zoneName)
	if _, stderr, _, err := z.run(ctx, z.Path, "destroy", "-r", dataset); err != nil {
		return apierrors.Internalf("zfs destroy %s: %v: %s", dataset, err, strings.TrimSpace(stderr))
	}
	return nil
}

func (z *Zfs) CreateVolume(ctx context.Context, name string, quota string) error {
	dataset := z.pool.VolumeDataset(name)
	if _, stderr, _, err := z.run(ctx, z.Path, "create", dataset); err != nil {
		return apierrors.Internalf("zfs create volume %s: %v: %s", dataset, err, strings.TrimSpace(stderr))
	}
	if quota != "" {
		if _, stderr, _, err := z.run(ctx, z.Path, "set", fmt.Sprintf("quota=%s", quota), dataset); err != nil {
			return apierrors.Internalf("zfs set quota %s: %v: %s", dataset, err, strings.TrimSpace(stderr))
		}
	}
	return nil
}

func (z *Zfs) DestroyVolume(ctx context.Context, name string) error {
	dataset := z.pool.VolumeDataset(name)
	if _, stderr, _, err := z.run(ctx, z.Path, "destroy", "-r", dataset); err != nil {
		return apierrors.Internalf("zfs destroy volume %s: %v: %s", dataset, err, strings.TrimSpace(stderr))
	}
	return nil
}

// ListVolumes shells out to `zfs list -r -H -o name,quota` under
// VolumesDataset and parses the tab-separated rows.
func (z *Zfs) ListVolumes(ctx context.Context) ([]VolumeInfo, error) {
	stdout, stderr, exitCode, err := z.run(ctx, z.Path, "list", "-r", "-H", "-o", "name,quota", z.pool.VolumesDataset)
	if err != nil {
		return nil, apierrors.Internalf("zfs list %s: %v", z.pool.VolumesDataset, err)
	}
	if exitCode != 0 {
		return nil, apierrors.Internalf("zfs list %s: %s", z.pool.VolumesDataset, strings.TrimSpace(stderr))
	}

	var volumes []VolumeInfo
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		dataset := fields[0]
		if dataset == z.pool.VolumesDataset {
			continue
		}
		quota := fields[1]
		if quota == "-" {
			quota = ""
		}
		volumes = append(volumes, VolumeInfo{
			Name:    strings.TrimPrefix(dataset, z.pool.VolumesDataset+"/"),
			Dataset: dataset,
			Quota:   quota,
		})
	}
	return volumes, nil
}

var _ Engine = (*Zfs)(nil)
