package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CloudNebulaProject/reddwarf/pkg/apiserver"
	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
)

type serveFlags struct {
	bind    string
	dataDir string
	tls     bool
	tlsCert string
	tlsKey  string
}

// NewServeCommand builds the `serve` subcommand: the HTTP API server over
// a Resource Store, with no scheduler/reconciler/node-agent attached
// (spec.md §6's "API server only" mode).
func NewServeCommand() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Reddwarf API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.bind, "bind", "127.0.0.1:6443", "address to bind the API server to")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "./reddwarf-data", "directory for the KVStore and TLS material")
	cmd.Flags().BoolVar(&f.tls, "tls", false, "enable TLS (self-signed unless --tls-cert/--tls-key are set)")
	cmd.Flags().StringVar(&f.tlsCert, "tls-cert", "", "PEM certificate path (Provided TLS mode)")
	cmd.Flags().StringVar(&f.tlsKey, "tls-key", "", "PEM key path (Provided TLS mode)")

	return cmd
}

func runServe(ctx context.Context, f *serveFlags) error {
	log := slog.Default()

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := kv.OpenBolt(filepath.Join(f.dataDir, "reddwarf.db"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	vstore := version.New(db, "reddwarf-server")
	bus := events.New(log, 0)
	st := store.New(db, vstore, bus, log)
	podStore := store.NewPodStore(st)

	srv := apiserver.New(st, podStore, bus, log)

	tlsCfg, err := resolveTLS(f.tls, f.tlsCert, f.tlsKey, f.dataDir, []string{hostFromBind(f.bind)})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("reddwarf API server starting", "bind", f.bind, "data-dir", f.dataDir, "tls", f.tls)
	if err := srv.ListenAndServe(runCtx, f.bind, tlsCfg); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// resolveTLS translates the serve/agent TLS flags into an
// *apiserver.TLSConfig, or nil for Disabled mode.
func resolveTLS(enabled bool, certPath, keyPath, dataDir string, sans []string) (*apiserver.TLSConfig, error) {
	switch {
	case !enabled:
		return nil, nil
	case certPath != "" || keyPath != "":
		return &apiserver.TLSConfig{Mode: apiserver.TLSProvided, CertPath: certPath, KeyPath: keyPath}, nil
	default:
		return &apiserver.TLSConfig{Mode: apiserver.TLSAutoGenerate, DataDir: dataDir, SANs: sans}, nil
	}
}

func hostFromBind(bind string) string {
	host, _, err := net.SplitHostPort(bind)
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}
