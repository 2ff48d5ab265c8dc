package scheduler

import (
	corev1 "k8s.io/api/core/v1"
)

// Scorer returns 0-100 for how well node suits pod, assuming pod were
// placed there on top of used (spec.md §4.F). The final score for a node
// is the arithmetic mean over every registered Scorer.
type Scorer func(pod *corev1.Pod, node *corev1.Node, used usage) float64

// LeastAllocated favors emptier nodes: 100 minus the average of
// hypothetical cpu/mem utilization percentage.
func LeastAllocated(pod *corev1.Pod, node *corev1.Node, used usage) float64 {
	cpuReq, memReq := podRequests(pod)
	cpuAlloc, memAlloc := nodeAllocatable(node)

	cpuUtil := fraction(used.cpuMilli+cpuReq, cpuAlloc) * 100
	memUtil := fraction(used.memBytes+memReq, memAlloc) * 100

	score := 100 - (cpuUtil+memUtil)/2
	return clamp(score)
}

// BalancedAllocation favors nodes whose cpu and memory fractions stay
// close together after placement.
func BalancedAllocation(pod *corev1.Pod, node *corev1.Node, used usage) float64 {
	cpuReq, memReq := podRequests(pod)
	cpuAlloc, memAlloc := nodeAllocatable(node)

	cpuFrac := fraction(used.cpuMilli+cpuReq, cpuAlloc)
	memFrac := fraction(used.memBytes+memReq, memAlloc)

	diff := cpuFrac - memFrac
	if diff < 0 {
		diff = -diff
	}
	return clamp((1 - diff) * 100)
}

func fraction(used, total int64) float64 {
	if total <= 0 {
		return 1
	}
	return float64(used) / float64(total)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// DefaultScorers is the scoring pipeline averaged to produce a node's
// final score.
var DefaultScorers = []Scorer{
	LeastAllocated,
	BalancedAllocation,
}
