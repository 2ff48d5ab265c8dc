package scheduler

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
)

// Filter rejects a node with a human-readable reason (spec.md §4.F).
type Filter func(pod *corev1.Pod, node *corev1.Node, used usage) (ok bool, reason string)

// PodFitsResources rejects nodes that don't have enough allocatable
// cpu/memory left once the pods already bound there are accounted for.
func PodFitsResources(pod *corev1.Pod, node *corev1.Node, used usage) (bool, string) {
	cpuReq, memReq := podRequests(pod)
	cpuAlloc, memAlloc := nodeAllocatable(node)

	if used.cpuMilli+cpuReq > cpuAlloc {
		return false, fmt.Sprintf("insufficient cpu: need %dm, have %dm free", cpuReq, cpuAlloc-used.cpuMilli)
	}
	if used.memBytes+memReq > memAlloc {
		return false, fmt.Sprintf("insufficient memory: need %d bytes, have %d bytes free", memReq, memAlloc-used.memBytes)
	}
	return true, ""
}

// NodeSelectorMatch rejects nodes missing any pod.spec.nodeSelector
// key/value.
func NodeSelectorMatch(pod *corev1.Pod, node *corev1.Node, _ usage) (bool, string) {
	for k, v := range pod.Spec.NodeSelector {
		if node.Labels[k] != v {
			return false, fmt.Sprintf("node selector %s=%s not satisfied", k, v)
		}
	}
	return true, ""
}

// TaintToleration rejects nodes carrying a taint the pod doesn't
// tolerate. A toleration matches a taint on key, and on effect only when
// the toleration specifies one.
func TaintToleration(pod *corev1.Pod, node *corev1.Node, _ usage) (bool, string) {
	for _, taint := range node.Spec.Taints {
		if !tolerated(taint, pod.Spec.Tolerations) {
			return false, fmt.Sprintf("untolerated taint %s=%s:%s", taint.Key, taint.Value, taint.Effect)
		}
	}
	return true, ""
}

func tolerated(taint corev1.Taint, tolerations []corev1.Toleration) bool {
	for _, t := range tolerations {
		if t.Key != taint.Key {
			continue
		}
		if t.Effect != "" && t.Effect != taint.Effect {
			continue
		}
		return true
	}
	return false
}

// DefaultFilters is the filter pipeline run for every candidate node.
var DefaultFilters = []Filter{
	PodFitsResources,
	NodeSelectorMatch,
	TaintToleration,
}
