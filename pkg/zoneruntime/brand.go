package zoneruntime

import (
	"fmt"
	"strings"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// lxInstallArgs returns the zoneadm install arguments for an LX brand
// zone: a Linux rootfs tarball supplied via the pod's lx-image
// annotation.
func lxInstallArgs(cfg ZoneConfig) ([]string, error) {
	if cfg.LXImage == "" {
		return nil, apierrors.BadRequest("lx brand zone " + cfg.Name + " requires reddwarf.io/lx-image")
	}
	return []string{"-s", cfg.LXImage}, nil
}

// generateSupervisorConfig renders the process list as the reddwarf
// brand's supervisor config format: one [process.NAME] stanza per
// container process.
func generateSupervisorConfig(processes []Process) string {
	var b strings.Builder
	for _, p := range processes {
		fmt.Fprintf(&b, "[process.%s]\n", p.Name)
		quoted := make([]string, len(p.Command))
		for i, arg := range p.Command {
			quoted[i] = fmt.Sprintf("%q", arg)
		}
		fmt.Fprintf(&b, "command = %s\n", strings.Join(quoted, " "))
		for k, v := range p.Env {
			fmt.Fprintf(&b, "env.%s = %q\n", k, v)
		}
		b.WriteString("\n")
	}
	return b.String()
}
