package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/CloudNebulaProject/reddwarf/pkg/apiserver"
	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/ipam"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/nodeagent"
	"github.com/CloudNebulaProject/reddwarf/pkg/nodehealth"
	"github.com/CloudNebulaProject/reddwarf/pkg/probes"
	"github.com/CloudNebulaProject/reddwarf/pkg/reconciler"
	"github.com/CloudNebulaProject/reddwarf/pkg/reddwarfclient"
	"github.com/CloudNebulaProject/reddwarf/pkg/scheduler"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
	"github.com/CloudNebulaProject/reddwarf/pkg/zfsstore"
	"github.com/CloudNebulaProject/reddwarf/pkg/zoneruntime"
)

type agentFlags struct {
	nodeName      string
	bind          string
	dataDir       string
	podCIDR       string
	etherstubName string

	storagePool    string
	zonesDataset   string
	imagesDataset  string
	volumesDataset string
	zonepathPrefix string

	systemReservedCPU    string
	systemReservedMemory string
	maxPods              int64

	tls     bool
	tlsCert string
	tlsKey  string
}

// NewAgentCommand builds the `agent` subcommand: the full reddwarf node
// agent, hosting the API server, scheduler, reconciler, node health
// watchdog, and self-registration heartbeat as cooperatively scheduled
// tasks of a single process (spec.md's concurrency model).
func NewAgentCommand() *cobra.Command {
	f := &agentFlags{}
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the full reddwarf node agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), f)
		},
	}

	hostname, _ := os.Hostname()
	cmd.Flags().StringVar(&f.nodeName, "node-name", hostname, "name this node registers under")
	cmd.Flags().StringVar(&f.bind, "bind", "127.0.0.1:6443", "address to bind the API server to")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "./reddwarf-data", "directory for the KVStore and TLS material")
	cmd.Flags().StringVar(&f.podCIDR, "pod-cidr", "10.244.0.0/16", "CIDR this node allocates pod IPs from")
	cmd.Flags().StringVar(&f.etherstubName, "etherstub-name", "reddwarf0", "etherstub zone VNICs attach to")

	cmd.Flags().StringVar(&f.storagePool, "storage-pool", "", "ZFS pool zone/image/volume datasets are created under")
	cmd.Flags().StringVar(&f.zonesDataset, "zones-dataset", "", "dataset zone root filesystems live under (default {storage-pool}/zones)")
	cmd.Flags().StringVar(&f.imagesDataset, "images-dataset", "", "dataset container images live under (default {storage-pool}/images)")
	cmd.Flags().StringVar(&f.volumesDataset, "volumes-dataset", "", "dataset persistent volumes live under (default {storage-pool}/volumes)")
	cmd.Flags().StringVar(&f.zonepathPrefix, "zonepath-prefix", "", "zonepath root directory (default "+zoneruntime.DefaultZonePathPrefix+", or the zones dataset's mountpoint when --storage-pool is set)")

	cmd.Flags().StringVar(&f.systemReservedCPU, "system-reserved-cpu", "0", "CPU quantity (e.g. 500m or 1) reserved out of node Allocatable")
	cmd.Flags().StringVar(&f.systemReservedMemory, "system-reserved-memory", "0", "bytes reserved out of node Allocatable")
	cmd.Flags().Int64Var(&f.maxPods, "max-pods", 0, "advertised pod capacity; 0 leaves the pods resource unset")

	cmd.Flags().BoolVar(&f.tls, "tls", false, "enable TLS (self-signed unless --tls-cert/--tls-key are set)")
	cmd.Flags().StringVar(&f.tlsCert, "tls-cert", "", "PEM certificate path (Provided TLS mode)")
	cmd.Flags().StringVar(&f.tlsKey, "tls-key", "", "PEM key path (Provided TLS mode)")

	for _, name := range []string{"storage-pool", "pod-cidr", "etherstub-name"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runAgent(ctx context.Context, f *agentFlags) error {
	log := slog.Default()

	if f.nodeName == "" {
		return fmt.Errorf("--node-name is required (could not determine hostname)")
	}

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := kv.OpenBolt(filepath.Join(f.dataDir, "reddwarf.db"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	vstore := version.New(db, "reddwarf-agent-"+f.nodeName)
	bus := events.New(log, 0)
	st := store.New(db, vstore, bus, log)
	podStore := store.NewPodStore(st)

	allocator, err := ipam.New(db, f.podCIDR)
	if err != nil {
		return fmt.Errorf("init ipam: %w", err)
	}

	storageEngine, err := setupStorage(ctx, f, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	rt := zoneruntime.NewExec()
	tracker := probes.NewTracker(probes.NewZoneExecutor(rt))

	reservedCPU, err := resource.ParseQuantity(f.systemReservedCPU)
	if err != nil {
		return fmt.Errorf("parse --system-reserved-cpu: %w", err)
	}
	reservedMemory, err := resource.ParseQuantity(f.systemReservedMemory)
	if err != nil {
		return fmt.Errorf("parse --system-reserved-memory: %w", err)
	}

	rec := reconciler.New(f.nodeName, st, rt, allocator, tracker, f.etherstubName, log)
	if storageEngine != nil {
		rec = rec.WithStorage(storageEngine)
	}

	sched := scheduler.New(st, db, vstore, bus, log)
	watchdog := nodehealth.New(st, log)

	apiSrv := apiserver.New(st, podStore, bus, log)
	tlsCfg, err := resolveTLS(f.tls, f.tlsCert, f.tlsKey, f.dataDir, []string{hostFromBind(f.bind)})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheme := "http"
	if f.tls {
		scheme = "https"
	}
	client := reddwarfclient.New(fmt.Sprintf("%s://%s", scheme, f.bind), nil)
	agent := nodeagent.New(f.nodeName, client, nodeagent.Detect(log), reservedCPU, reservedMemory, log).
		WithMaxPods(f.maxPods)

	log.Info("reddwarf agent starting",
		"node", f.nodeName, "bind", f.bind, "data-dir", f.dataDir,
		"pod-cidr", f.podCIDR, "storage-pool", f.storagePool, "tls", f.tls)

	var wg sync.WaitGroup
	runTask := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.Info("agent task stopped", "task", name)
		}()
	}

	sub := bus.Subscribe()
	defer sub.Close()

	runTask("reconciler", func() { rec.Run(runCtx, sub) })
	runTask("scheduler", func() { sched.Run(runCtx) })
	runTask("nodehealth", func() { watchdog.Run(runCtx) })
	runTask("nodeagent", func() {
		if err := agent.Run(runCtx); err != nil && runCtx.Err() == nil {
			log.Error("node agent stopped with error", "err", err)
		}
	})

	serveErr := make(chan error, 1)
	runTask("apiserver", func() {
		err := apiSrv.ListenAndServe(runCtx, f.bind, tlsCfg)
		serveErr <- err
		if err != nil {
			// Stop the other tasks so the agent exits with the error.
			stop()
		}
	})

	wg.Wait()
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	default:
	}
	return nil
}

// setupStorage builds a zfsstore.Engine from the storage flags. A nil,
// nil return means --storage-pool was given as empty: dataset management is
// skipped and the reconciler provisions zones without a backing
// dataset, same as before zfsstore existed.
func setupStorage(ctx context.Context, f *agentFlags, log *slog.Logger) (zfsstore.Engine, error) {
	if f.storagePool == "" {
		return nil, nil
	}

	pool := zfsstore.DefaultPoolConfig(f.storagePool)
	if f.zonesDataset != "" {
		pool.ZonesDataset = f.zonesDataset
	}
	if f.imagesDataset != "" {
		pool.ImagesDataset = f.imagesDataset
	}
	if f.volumesDataset != "" {
		pool.VolumesDataset = f.volumesDataset
	}

	engine := zfsstore.Engine(zfsstore.NewZfs(pool))
	if err := engine.Initialize(ctx); err != nil {
		return nil, err
	}

	prefix := f.zonepathPrefix
	if prefix == "" {
		prefix = "/" + pool.ZonesDataset
	}
	zoneruntime.SetZonePathPrefix(prefix)

	log.Info("zfs storage initialized", "pool", pool.Pool, "zones", pool.ZonesDataset, "images", pool.ImagesDataset, "volumes", pool.VolumesDataset, "zonepath-prefix", prefix)
	return engine, nil
}
