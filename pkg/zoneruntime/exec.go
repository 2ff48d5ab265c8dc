package zoneruntime

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// commandRunner abstracts process execution so Exec can be driven by a
// fake in tests without touching the real illumos zone commands.
type commandRunner func(ctx context.Context, name string, stdin string, args ...string) (stdout, stderr string, exitCode int, err error)

func defaultRunner(ctx context.Context, name string, stdin string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
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

// Exec drives real illumos zones via zonecfg(8), zoneadm(8), and
// zlogin(1).
type Exec struct {
	ZonecfgPath string
	ZoneadmPath string
	ZloginPath  string
	run         commandRunner
}

// NewExec returns an Exec runtime using the standard illumos zone tool
// names, found via $PATH.
func NewExec() *Exec {
	return &Exec{
		ZonecfgPath: "zonecfg",
		ZoneadmPath: "zoneadm",
		ZloginPath:  "zlogin",
		run:         defaultRunner,
	}
}

func (e *Exec) Provision(ctx context.Context, cfg ZoneConfig) error {
	state, err := e.GetZoneState(ctx, cfg.Name)
	if err != nil {
		return err
	}
	if state != StateAbsent {
		return &AlreadyExistsError{Zone: cfg.Name}
	}

	script := buildZonecfgScript(cfg)
	if _, stderr, _, err := e.run(ctx, e.ZonecfgPath, script, "-z", cfg.Name, "-f", "-"); err != nil {
		return apierrors.Internalf("zonecfg %s: %v: %s", cfg.Name, err, stderr)
	}

	installArgs := []string{"-z", cfg.Name, "install"}
	if cfg.Brand == BrandLX {
		extra, err := lxInstallArgs(cfg)
		if err != nil {
			return err
		}
		installArgs = append(installArgs, extra...)
	}
	if _, stderr, _, err := e.run(ctx, e.ZoneadmPath, "", installArgs...); err != nil {
		return apierrors.Internalf("zoneadm install %s: %v: %s", cfg.Name, err, stderr)
	}

	if cfg.Brand == BrandReddwarf {
		supervisorConfig := generateSupervisorConfig(cfg.Processes)
		path := filepath.Join(cfg.ZonePath, "root", "etc", "reddwarf", "supervisor.conf")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			_ = os.WriteFile(path, []byte(supervisorConfig), 0o644)
		}
	}

	if _, stderr, _, err := e.run(ctx, e.ZoneadmPath, "", "-z", cfg.Name, "boot"); err != nil {
		return apierrors.Internalf("zoneadm boot %s: %v: %s", cfg.Name, err, stderr)
	}
	return nil
}

func (e *Exec) Deprovision(ctx context.Context, cfg ZoneConfig) error {
	_, _, _, _ = e.run(ctx, e.ZoneadmPath, "", "-z", cfg.Name, "uninstall", "-F")
	_, _, _, err := e.run(ctx, e.ZonecfgPath, "", "-z", cfg.Name, "delete", "-F")
	if err != nil {
		return apierrors.Internalf("zonecfg delete %s: %v", cfg.Name, err)
	}
	return nil
}

func (e *Exec) GetZoneState(ctx context.Context, name string) (ZoneState, error) {
	stdout, _, exitCode, err := e.run(ctx, e.ZoneadmPath, "", "-z", name, "list", "-p")
	if err != nil || exitCode != 0 {
		return StateAbsent, nil
	}
	fields := strings.Split(strings.TrimSpace(stdout), ":")
	if len(fields) < 3 {
		return StateAbsent, nil
	}
	return parseZoneadmState(fields[2]), nil
}

func parseZoneadmState(s string) ZoneState {
	switch s {
	case "configured":
		return StateConfigured
	case "incomplete":
		return StateIncomplete
	case "installed":
		return StateInstalled
	case "ready":
		return StateReady
	case "running":
		return StateRunning
	case "shutting_down":
		return StateShuttingDown
	case "down":
		return StateDown
	default:
		return StateAbsent
	}
}

func (e *Exec) ShutdownZone(ctx context.Context, name string) error {
	_, stderr, _, err := e.run(ctx, e.ZoneadmPath, "", "-z", name, "shutdown")
	if err != nil {
		return apierrors.Internalf("zoneadm shutdown %s: %v: %s", name, err, stderr)
	}
	return nil
}

func (e *Exec) HaltZone(ctx context.Context, name string) error {
	_, stderr, _, err := e.run(ctx, e.ZoneadmPath, "", "-z", name, "halt")
	if err != nil {
		return apierrors.Internalf("zoneadm halt %s: %v: %s", name, err, stderr)
	}
	return nil
}

func (e *Exec) ExecInZone(ctx context.Context, name string, argv []string) (ExecResult, error) {
	args := append([]string{"-z", name, "--"}, argv...)
	stdout, stderr, exitCode, err := e.run(ctx, e.ZloginPath, "", args...)
	if err != nil {
		return ExecResult{}, apierrors.Internalf("zlogin %s: %v", name, err)
	}
	return ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}

// buildZonecfgScript renders the zonecfg(8) command script for cfg,
// consumed via `zonecfg -z name -f -`.
func buildZonecfgScript(cfg ZoneConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "create -b\n")
	fmt.Fprintf(&b, "set zonepath=%s\n", cfg.ZonePath)
	fmt.Fprintf(&b, "set brand=%s\n", brandName(cfg.Brand))
	fmt.Fprintf(&b, "add net\n")
	fmt.Fprintf(&b, "set physical=%s\n", cfg.Network.VNICName)
	fmt.Fprintf(&b, "end\n")
	if cfg.CPUCap != "" {
		fmt.Fprintf(&b, "add capped-cpu\n")
		fmt.Fprintf(&b, "set ncpus=%s\n", cfg.CPUCap)
		fmt.Fprintf(&b, "end\n")
	}
	if cfg.MemoryCap != "" {
		fmt.Fprintf(&b, "add capped-memory\n")
		fmt.Fprintf(&b, "set physical=%s\n", strings.ToLower(cfg.MemoryCap))
		fmt.Fprintf(&b, "end\n")
	}
	fmt.Fprintf(&b, "verify\n")
	fmt.Fprintf(&b, "commit\n")
	return b.String()
}

func brandName(b Brand) string {
	if b == BrandLX {
		return "lx"
	}
	return "reddwarf"
}

var _ ZoneRuntime = (*Exec)(nil)
