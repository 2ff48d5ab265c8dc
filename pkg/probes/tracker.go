package probes

import (
	"context"
	"sync"
	"time"
)

// state is the per-registered-probe tracking record (spec.md §4.H).
type state struct {
	cfg                  Config
	containerStartedAt   time.Time
	lastCheck            *time.Time
	consecutiveSuccesses int
	consecutiveFailures  int
	hasSucceeded         bool
}

func probeKey(container string, kind Kind) string { return container + "/" + string(kind) }

// PodStatus is the aggregate CheckPod returns.
type PodStatus struct {
	Ready          bool
	LivenessFailed bool
}

// Tracker owns probe state for every pod on this host. It is
// single-writer: only the reconciler that owns it calls its methods, per
// spec.md §5's shared-state notes.
type Tracker struct {
	mu       sync.Mutex
	executor Executor
	pods     map[string]map[string]*state // podKey -> probeKey -> state
	now      func() time.Time
}

func NewTracker(executor Executor) *Tracker {
	return &Tracker{
		executor: executor,
		pods:     map[string]map[string]*state{},
		now:      time.Now,
	}
}

// RegisterPod adds every config not already tracked for podKey. Existing
// entries (and their accumulated thresholds) are preserved.
func (t *Tracker) RegisterPod(podKey string, containerStartedAt map[string]time.Time, configs []Config) {
	t.mu.Lock()
	defer t.mu.Unlock()

	probes, ok := t.pods[podKey]
	if !ok {
		probes = map[string]*state{}
		t.pods[podKey] = probes
	}
	for _, cfg := range configs {
		cfg.Defaults()
		key := probeKey(cfg.Container, cfg.Kind)
		if _, exists := probes[key]; exists {
			continue
		}
		probes[key] = &state{
			cfg:                cfg,
			containerStartedAt: containerStartedAt[cfg.Container],
		}
	}
}

// UnregisterPod removes all state for podKey.
func (t *Tracker) UnregisterPod(podKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pods, podKey)
}

// CheckPod runs every due probe for podKey against zoneName/zoneIP, then
// returns the aggregate ready/livenessFailed status.
func (t *Tracker) CheckPod(ctx context.Context, podKey, zoneName, zoneIP string) PodStatus {
	t.mu.Lock()
	probes := t.pods[podKey]
	if probes == nil {
		t.mu.Unlock()
		return PodStatus{Ready: true, LivenessFailed: false}
	}
	due := make([]*state, 0, len(probes))
	now := t.now()
	for _, s := range probes {
		if t.isDue(s, now) && t.isGated(probes, s) {
			due = append(due, s)
		}
	}
	t.mu.Unlock()

	for _, s := range due {
		result := t.executor.Execute(ctx, zoneName, zoneIP, s.cfg)
		t.record(s, result, now)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return aggregate(probes)
}

func (t *Tracker) isDue(s *state, now time.Time) bool {
	if now.Sub(s.containerStartedAt) < time.Duration(s.cfg.InitialDelaySeconds)*time.Second {
		return false
	}
	if s.lastCheck != nil && now.Sub(*s.lastCheck) < time.Duration(s.cfg.PeriodSeconds)*time.Second {
		return false
	}
	return true
}

// isGated implements "Liveness probes are skipped entirely until the
// corresponding container's Startup probe (if any) has hasSucceeded."
func (t *Tracker) isGated(probes map[string]*state, s *state) bool {
	if s.cfg.Kind != Liveness {
		return true
	}
	startup, ok := probes[probeKey(s.cfg.Container, Startup)]
	if !ok {
		return true
	}
	return startup.hasSucceeded
}

func (t *Tracker) record(s *state, result Result, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.lastCheck = &now
	if result.Success {
		s.consecutiveFailures = 0
		s.consecutiveSuccesses++
		if s.consecutiveSuccesses >= s.cfg.SuccessThreshold {
			s.hasSucceeded = true
		}
		return
	}
	s.consecutiveSuccesses = 0
	s.consecutiveFailures++
}

// aggregate computes pod-level ready/livenessFailed per spec.md §4.H.
// Caller must hold t.mu.
func aggregate(probes map[string]*state) PodStatus {
	status := PodStatus{Ready: true, LivenessFailed: false}
	for _, s := range probes {
		switch s.cfg.Kind {
		case Readiness:
			if !s.hasSucceeded || s.consecutiveFailures >= s.cfg.FailureThreshold {
				status.Ready = false
			}
		case Startup:
			if !s.hasSucceeded {
				status.Ready = false
				if s.consecutiveFailures >= s.cfg.FailureThreshold {
					status.LivenessFailed = true
				}
			}
		case Liveness:
			if s.consecutiveFailures >= s.cfg.FailureThreshold {
				status.LivenessFailed = true
			}
		}
	}
	return status
}
