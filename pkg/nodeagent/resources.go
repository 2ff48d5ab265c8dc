package nodeagent

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Capacity renders host.Capacity per spec.md §4.J: cpu = raw core count,
// memory = raw byte count.
func Capacity(host HostResources) corev1.ResourceList {
	return corev1.ResourceList{
		corev1.ResourceCPU:    *resource.NewQuantity(int64(host.CPUCount), resource.DecimalSI),
		corev1.ResourceMemory: *resource.NewQuantity(host.MemoryBytes, resource.BinarySI),
	}
}

// Allocatable computes cpu: count*1000 - reservedMillicores (clamped >=0)
// and memory: total - reservedBytes (clamped >=0), per spec.md §4.J.
func Allocatable(host HostResources, reservedCPUMillicores, reservedMemoryBytes int64) corev1.ResourceList {
	cpuMilli := int64(host.CPUCount)*1000 - reservedCPUMillicores
	if cpuMilli < 0 {
		cpuMilli = 0
	}
	mem := host.MemoryBytes - reservedMemoryBytes
	if mem < 0 {
		mem = 0
	}
	return corev1.ResourceList{
		corev1.ResourceCPU:    *resource.NewMilliQuantity(cpuMilli, resource.DecimalSI),
		corev1.ResourceMemory: *resource.NewQuantity(mem, resource.BinarySI),
	}
}
