package probes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeExecutor struct {
	results map[string]Result // key: container/kind
	calls   int
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, _ string, cfg Config) Result {
	f.calls++
	return f.results[probeKey(cfg.Container, cfg.Kind)]
}

func TestCheckPodNoProbesIsReadyAndAlive(t *testing.T) {
	tr := NewTracker(&fakeExecutor{})
	status := tr.CheckPod(context.Background(), "default/web-1", "zone0", "10.0.0.2")
	assert.True(t, status.Ready)
	assert.False(t, status.LivenessFailed)
}

func TestReadinessProbeGatesReady(t *testing.T) {
	exec := &fakeExecutor{results: map[string]Result{
		"main/Readiness": {Success: false},
	}}
	tr := NewTracker(exec)
	tr.now = func() time.Time { return time.Unix(1000, 0) }
	tr.RegisterPod("default/web-1", map[string]time.Time{"main": time.Unix(0, 0)}, []Config{
		{Container: "main", Kind: Readiness, FailureThreshold: 3, SuccessThreshold: 1},
	})

	status := tr.CheckPod(context.Background(), "default/web-1", "zone0", "10.0.0.2")
	assert.False(t, status.Ready)
	assert.False(t, status.LivenessFailed)
}

func TestLivenessFailureAfterThreshold(t *testing.T) {
	exec := &fakeExecutor{results: map[string]Result{
		"main/Liveness": {Success: false},
	}}
	tr := NewTracker(exec)
	base := time.Unix(1000, 0)
	tr.now = func() time.Time { return base }
	tr.RegisterPod("default/web-1", map[string]time.Time{"main": time.Unix(0, 0)}, []Config{
		{Container: "main", Kind: Liveness, FailureThreshold: 2, PeriodSeconds: 1},
	})

	tr.CheckPod(context.Background(), "default/web-1", "zone0", "10.0.0.2")
	status := tr.CheckPod(context.Background(), "default/web-1", "zone0", "10.0.0.2")
	// same `now` so period gate blocks the second check from counting again;
	// advance time to let it actually run.
	tr.now = func() time.Time { return base.Add(2 * time.Second) }
	status = tr.CheckPod(context.Background(), "default/web-1", "zone0", "10.0.0.2")

	assert.True(t, status.LivenessFailed)
}

func TestLivenessGatedUntilStartupSucceeds(t *testing.T) {
	exec := &fakeExecutor{results: map[string]Result{
		"main/Liveness": {Success: false},
		"main/Startup":  {Success: false},
	}}
	tr := NewTracker(exec)
	tr.now = func() time.Time { return time.Unix(1000, 0) }
	tr.RegisterPod("default/web-1", map[string]time.Time{"main": time.Unix(0, 0)}, []Config{
		{Container: "main", Kind: Startup, FailureThreshold: 5, SuccessThreshold: 1},
		{Container: "main", Kind: Liveness, FailureThreshold: 1, SuccessThreshold: 1},
	})

	tr.CheckPod(context.Background(), "default/web-1", "zone0", "10.0.0.2")

	// Liveness must never have executed since Startup hasn't succeeded.
	assert.Equal(t, 0, exec.calls-1) // only Startup ran
}

func TestRegisterPodIsIdempotent(t *testing.T) {
	tr := NewTracker(&fakeExecutor{})
	configs := []Config{{Container: "main", Kind: Readiness}}
	tr.RegisterPod("default/web-1", nil, configs)
	tr.pods["default/web-1"][probeKey("main", Readiness)].consecutiveFailures = 2

	tr.RegisterPod("default/web-1", nil, configs)
	assert.Equal(t, 2, tr.pods["default/web-1"][probeKey("main", Readiness)].consecutiveFailures)
}

func TestUnregisterPodRemovesState(t *testing.T) {
	tr := NewTracker(&fakeExecutor{})
	tr.RegisterPod("default/web-1", nil, []Config{{Container: "main", Kind: Readiness}})
	tr.UnregisterPod("default/web-1")
	_, ok := tr.pods["default/web-1"]
	assert.False(t, ok)
}
