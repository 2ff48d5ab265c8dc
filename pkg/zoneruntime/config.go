package zoneruntime

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/ipam"
)

// DefaultZonePathPrefix is the root directory zones are provisioned
// under absent a --zonepath-prefix override.
const DefaultZonePathPrefix = "/zones"

// ZonePathPrefix is the root directory zones are provisioned under. It
// defaults to DefaultZonePathPrefix and may be overridden once at agent
// startup (via SetZonePathPrefix) to match the mountpoint of the zones
// dataset a zfsstore.Engine was initialized with.
var ZonePathPrefix = DefaultZonePathPrefix

// SetZonePathPrefix overrides ZonePathPrefix. It is not safe to call
// once provisioning has started.
func SetZonePathPrefix(prefix string) {
	if prefix != "" {
		ZonePathPrefix = prefix
	}
}

// BrandAnnotation selects the zone brand; absent or unrecognized values
// default to BrandReddwarf.
const BrandAnnotation = "reddwarf.io/zone-brand"

// BuildZoneConfig maps a pod to the zone the runtime should provision, per
// spec.md §4.G. It is a pure function of its arguments and
// ZonePathPrefix; the ipam allocation is made by the caller.
func BuildZoneConfig(pod *corev1.Pod, alloc *ipam.Allocation, etherstubName string) ZoneConfig {
	name := ZoneName(pod.Namespace, pod.Name)
	vnic := ipam.VNICName(pod.Namespace, pod.Name)

	cfg := ZoneConfig{
		Name:     name,
		ZonePath: fmt.Sprintf("%s/%s", ZonePathPrefix, name),
		Brand:    brandFor(pod),
		Network: Etherstub{
			EtherstubName: etherstubName,
			VNICName:      vnic,
			IP:            alloc.IP.String(),
			Gateway:       alloc.Gateway.String(),
			PrefixLen:     alloc.PrefixLen,
		},
		Processes: buildProcesses(pod),
		CPUCap:    cpuCapString(pod),
		MemoryCap: memoryCapString(pod),
	}
	if cfg.Brand == BrandLX {
		cfg.LXImage = pod.Annotations["reddwarf.io/lx-image"]
	}
	return cfg
}

func brandFor(pod *corev1.Pod) Brand {
	switch pod.Annotations[BrandAnnotation] {
	case string(BrandLX):
		return BrandLX
	default:
		return BrandReddwarf
	}
}

func buildProcesses(pod *corev1.Pod) []Process {
	procs := make([]Process, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		command := make([]string, 0, len(c.Command)+len(c.Args))
		command = append(command, c.Command...)
		command = append(command, c.Args...)

		env := map[string]string{}
		for _, e := range c.Env {
			if e.Value != "" || e.ValueFrom == nil {
				env[e.Name] = e.Value
			}
		}
		procs = append(procs, Process{Name: c.Name, Command: command, Env: env})
	}
	return procs
}

// cpuCapString sums each container's limit (falling back to request) and
// renders it as a fractional-core string with two decimals.
func cpuCapString(pod *corev1.Pod) string {
	var milli int64
	var any bool
	for _, c := range pod.Spec.Containers {
		if q, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
			milli += q.MilliValue()
			any = true
			continue
		}
		if q, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			milli += q.MilliValue()
			any = true
		}
	}
	if !any {
		return ""
	}
	return fmt.Sprintf("%.2f", float64(milli)/1000)
}

// memoryCapString sums each container's limit (falling back to request)
// and renders it with the largest clean illumos unit: G/M/K over 1024-
// based KiB/MiB/GiB, distinct from Kubernetes' own Gi/Mi/Ki suffixes.
func memoryCapString(pod *corev1.Pod) string {
	var total int64
	for _, c := range pod.Spec.Containers {
		if q, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			total += q.Value()
			continue
		}
		if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			total += q.Value()
		}
	}
	if total == 0 {
		return ""
	}
	const (
		ki = 1024
		mi = ki * 1024
		gi = mi * 1024
	)
	switch {
	case total%gi == 0:
		return fmt.Sprintf("%dG", total/gi)
	case total%mi == 0:
		return fmt.Sprintf("%dM", total/mi)
	case total%ki == 0:
		return fmt.Sprintf("%dK", total/ki)
	default:
		return fmt.Sprintf("%dK", (total+ki-1)/ki)
	}
}
