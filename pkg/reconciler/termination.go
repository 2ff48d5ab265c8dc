package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/zoneruntime"
)

func unmarshalEvent(evt events.ResourceEvent, out *resources.Pod) error {
	return json.Unmarshal(evt.Object, out)
}

// runTerminationFSM implements the termination FSM in spec.md §4.G,
// entered only when pod.deletionTimestamp is set.
func (r *Reconciler) runTerminationFSM(ctx context.Context, pod *resources.Pod) {
	zoneName := zoneruntime.ZoneName(pod.Namespace, pod.Name)
	state, err := r.runtime.GetZoneState(ctx, zoneName)
	if err != nil {
		r.log.Error("termination: get zone state failed", "namespace", pod.Namespace, "name", pod.Name, "err", err)
		return
	}

	graceExpired := r.graceExpired(pod)

	switch state {
	case zoneruntime.StateRunning:
		if graceExpired {
			r.bestEffort("halt", func() error { return r.runtime.HaltZone(ctx, zoneName) })
		} else {
			r.bestEffort("shutdown", func() error { return r.runtime.ShutdownZone(ctx, zoneName) })
		}
	case zoneruntime.StateShuttingDown:
		if graceExpired {
			r.bestEffort("halt", func() error { return r.runtime.HaltZone(ctx, zoneName) })
		}
		// else: wait, next tick re-evaluates.
	case zoneruntime.StateDown, zoneruntime.StateAbsent:
		r.finalize(ctx, pod)
	default:
		// Configured/Incomplete/Installed/Ready: not yet booted, nothing
		// graceful to do; treat the same as down.
		r.finalize(ctx, pod)
	}
}

func (r *Reconciler) graceExpired(pod *resources.Pod) bool {
	if pod.DeletionTimestamp == nil {
		return false
	}
	grace := int64(30)
	if pod.DeletionGracePeriodSeconds != nil {
		grace = *pod.DeletionGracePeriodSeconds
	}
	deadline := pod.DeletionTimestamp.Add(time.Duration(grace) * time.Second)
	return !r.now().Before(deadline)
}

// finalize performs the best-effort cleanup steps then the one
// error-surfacing step (spec.md §4.G: "only finalizePod failure is
// surfaced as an error").
func (r *Reconciler) finalize(ctx context.Context, pod *resources.Pod) {
	zoneName := zoneruntime.ZoneName(pod.Namespace, pod.Name)
	cfg := zoneruntime.ZoneConfig{Name: zoneName}

	r.bestEffort("deprovision", func() error { return r.runtime.Deprovision(ctx, cfg) })
	r.destroyZoneDataset(ctx, zoneName)
	r.bestEffort("ipam release", func() error {
		_, err := r.ipam.Release(ctx, pod.Namespace, pod.Name)
		return err
	})
	podKey := pod.Namespace + "/" + pod.Name
	r.tracker.UnregisterPod(podKey)

	if err := r.pods.FinalizePod(ctx, pod.Namespace, pod.Name); err != nil {
		r.log.Error("finalize pod failed", "namespace", pod.Namespace, "name", pod.Name, "err", err)
	}
}

func (r *Reconciler) bestEffort(step string, fn func() error) {
	if err := fn(); err != nil {
		r.log.Warn("termination step failed, continuing", "step", step, "err", err)
	}
}

// HandleDelete handles a DELETED event for a pod that bypassed the
// graceful path (e.g. a direct storage delete).
func (r *Reconciler) HandleDelete(ctx context.Context, pod *resources.Pod) {
	if pod.DeletionTimestamp != nil {
		// The termination FSM is responsible for pods already marked.
		return
	}
	zoneName := zoneruntime.ZoneName(pod.Namespace, pod.Name)
	cfg := zoneruntime.ZoneConfig{Name: zoneName}

	r.bestEffort("deprovision", func() error { return r.runtime.Deprovision(ctx, cfg) })
	r.destroyZoneDataset(ctx, zoneName)
	r.bestEffort("ipam release", func() error {
		_, err := r.ipam.Release(ctx, pod.Namespace, pod.Name)
		return err
	})
	r.tracker.UnregisterPod(pod.Namespace + "/" + pod.Name)
}

func (r *Reconciler) destroyZoneDataset(ctx context.Context, zoneName string) {
	if r.storage == nil {
		return
	}
	r.bestEffort("destroy zone dataset", func() error { return r.storage.DestroyZoneDataset(ctx, zoneName) })
}
