package scheduler

import (
	corev1 "k8s.io/api/core/v1"
)

// podRequests sums every container's cpu/memory requests. Units follow
// resource.Quantity parsing (plain integer or "N.M" cores, "Nm"
// millicores; "Ki"/"Mi"/"Gi" or plain bytes for memory), so spec.md
// §4.F's unit rules fall out of Quantity.MilliValue/Value directly.
func podRequests(pod *corev1.Pod) (cpuMilli int64, memBytes int64) {
	for _, c := range pod.Spec.Containers {
		if q, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			cpuMilli += q.MilliValue()
		}
		if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			memBytes += q.Value()
		}
	}
	return cpuMilli, memBytes
}

// nodeAllocatable reads a node's advertised allocatable cpu/memory.
func nodeAllocatable(node *corev1.Node) (cpuMilli int64, memBytes int64) {
	if q, ok := node.Status.Allocatable[corev1.ResourceCPU]; ok {
		cpuMilli = q.MilliValue()
	}
	if q, ok := node.Status.Allocatable[corev1.ResourceMemory]; ok {
		memBytes = q.Value()
	}
	return cpuMilli, memBytes
}

// usage tracks, per node name, the cpu/memory requests already committed
// to pods bound there, so filters and scorers can reason about the
// cluster state a new placement would actually see.
type usage struct {
	cpuMilli int64
	memBytes int64
}

func computeNodeUsage(pods []*corev1.Pod) map[string]usage {
	out := map[string]usage{}
	for _, p := range pods {
		if p.Spec.NodeName == "" {
			continue
		}
		cpu, mem := podRequests(p)
		u := out[p.Spec.NodeName]
		u.cpuMilli += cpu
		u.memBytes += mem
		out[p.Spec.NodeName] = u
	}
	return out
}
