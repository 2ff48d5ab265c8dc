// Package probes implements the probe executor and tracker described in
// spec.md §4.H: per-(pod, container, kind) threshold state machines,
// startup-gates-liveness semantics, and pod-level ready/livenessFailed
// aggregation.
package probes

import (
	"context"
	"time"
)

// Kind is the closed set of probe kinds.
type Kind string

const (
	Startup   Kind = "Startup"
	Liveness  Kind = "Liveness"
	Readiness Kind = "Readiness"
)

// Action is a closed variant over what a probe actually does.
type Action struct {
	Exec       []string // non-nil selects an Exec probe
	HTTPGet    *HTTPGetAction
	TCPSocket  *TCPSocketAction
}

type HTTPGetAction struct {
	Path   string
	Port   int
	Host   string
	Scheme string
}

type TCPSocketAction struct {
	Port int
	Host string
}

// Config is one registered probe.
type Config struct {
	Pod                 string // namespace/name
	Container           string
	Kind                Kind
	Action              Action
	InitialDelaySeconds int
	PeriodSeconds       int
	TimeoutSeconds      int
	FailureThreshold    int
	SuccessThreshold    int
}

// Defaults fills in the spec.md §4.H zero-value defaults.
func (c *Config) Defaults() {
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = 10
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 1
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
}

// Result is the outcome of one probe execution.
type Result struct {
	Success bool
	Message string
}

// Executor is the capability that actually performs one probe check. A
// real implementation shells out via zoneruntime.ZoneRuntime.ExecInZone
// for Exec probes and dials the zone's IP for TCP/HTTP probes.
type Executor interface {
	Execute(ctx context.Context, zoneName string, zoneIP string, cfg Config) Result
}

// timedOutResult builds the standard probe-timeout failure message
// (spec.md §4.H).
func timedOutResult(timeout time.Duration) Result {
	return Result{Success: false, Message: "probe timed out after " + timeout.String()}
}
