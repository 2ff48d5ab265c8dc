// Package reconciler implements the per-host pod reconciler (spec.md
// §4.G): a startup resync, a tick/event/cancellation select loop, the
// Reconcile decision table, and the termination finite-state machine
// driving a pod's zone down before its storage record is finalized.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/ipam"
	"github.com/CloudNebulaProject/reddwarf/pkg/probes"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
	"github.com/CloudNebulaProject/reddwarf/pkg/zfsstore"
	"github.com/CloudNebulaProject/reddwarf/pkg/zoneruntime"
)

// DefaultResyncInterval is the periodic full-resync tick.
const DefaultResyncInterval = 30 * time.Second

const (
	readyReasonProbesHealthy    = "ProbesHealthy"
	readyReasonLivenessFailure  = "LivenessProbeFailure"
	readyReasonReadinessFailure = "ReadinessProbeFailure"
	readyReasonZoneNotFound     = "ZoneNotFound"
	readyReasonZoneUnhealthy    = "ZoneUnhealthy"
	readyReasonProvisionFailed  = "ProvisionFailed"
)

// Reconciler drives pods assigned to one node toward their desired zone
// state.
type Reconciler struct {
	nodeName      string
	store         *store.Store
	pods          *store.PodStore
	runtime       zoneruntime.ZoneRuntime
	storage       zfsstore.Engine
	ipam          *ipam.Allocator
	tracker       *probes.Tracker
	etherstubName string
	resyncEvery   time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// WithStorage attaches a zfsstore.Engine: provisioning creates a zone
// dataset before the zone itself, and termination destroys it
// best-effort alongside zone deprovisioning. Nil (the default) skips
// dataset management entirely, matching hosts with no --storage-pool
// configured.
func (r *Reconciler) WithStorage(engine zfsstore.Engine) *Reconciler {
	r.storage = engine
	return r
}

func New(nodeName string, st *store.Store, rt zoneruntime.ZoneRuntime, allocator *ipam.Allocator, tracker *probes.Tracker, etherstubName string, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		nodeName:      nodeName,
		store:         st,
		pods:          store.NewPodStore(st),
		runtime:       rt,
		ipam:          allocator,
		tracker:       tracker,
		etherstubName: etherstubName,
		resyncEvery:   DefaultResyncInterval,
		log:           log,
		now:           time.Now,
	}
}

// Run is the reconciler's main loop: one resync at startup, then
// alternating ticks, events, and a LAG-triggered resync, until ctx is
// cancelled.
func (r *Reconciler) Run(ctx context.Context, sub *events.Subscription) {
	r.resync(ctx)

	ticker := time.NewTicker(r.resyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.resync(ctx)
		case <-sub.Lag():
			r.log.Warn("event bus lag signal received, forcing full resync")
			r.resync(ctx)
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			r.dispatch(ctx, evt)
		}
	}
}

func (r *Reconciler) dispatch(ctx context.Context, evt events.ResourceEvent) {
	if evt.GVK.Kind != resources.GVKPod.Kind {
		return
	}
	var pod resources.Pod
	if err := unmarshalEvent(evt, &pod); err != nil {
		r.log.Error("failed to decode pod event", "key", evt.Key, "err", err)
		return
	}

	switch evt.Type {
	case events.Added, events.Modified:
		r.Reconcile(ctx, &pod)
	case events.Deleted:
		r.HandleDelete(ctx, &pod)
	}
}

// resync lists every pod and reconciles those assigned to this node.
func (r *Reconciler) resync(ctx context.Context) {
	list, err := r.store.List(ctx, resources.Key{GVK: resources.GVKPod})
	if err != nil {
		r.log.Error("resync: list pods failed", "err", err)
		return
	}
	for _, res := range list {
		pod := res.(*resources.Pod)
		if pod.Spec.NodeName != r.nodeName {
			continue
		}
		r.Reconcile(ctx, pod)
	}
}

// Reconcile implements the decision table in spec.md §4.G.
func (r *Reconciler) Reconcile(ctx context.Context, pod *resources.Pod) {
	if pod.DeletionTimestamp != nil {
		r.runTerminationFSM(ctx, pod)
		return
	}
	if pod.Spec.NodeName != r.nodeName {
		return
	}

	switch pod.Status.Phase {
	case "", corev1.PodPending:
		r.provision(ctx, pod)
	case corev1.PodRunning:
		r.reconcileRunning(ctx, pod)
	default:
		// Succeeded/Failed: no action, matches the decision table's
		// "Other phases" row.
	}
}

func (r *Reconciler) provision(ctx context.Context, pod *resources.Pod) {
	alloc, err := r.ipam.Allocate(ctx, pod.Namespace, pod.Name)
	if err != nil {
		r.writeFailed(ctx, pod, "IPAMExhausted", err.Error())
		return
	}
	cfg := zoneruntime.BuildZoneConfig(pod.AsCoreV1(), alloc, r.etherstubName)

	if r.storage != nil {
		if err := r.storage.CreateZoneDataset(ctx, cfg.Name, zfsstore.ZoneStorageOpts{}); err != nil && !isAlreadyExists(err) {
			r.writeFailed(ctx, pod, readyReasonProvisionFailed, err.Error())
			return
		}
	}

	err = r.runtime.Provision(ctx, cfg)
	switch {
	case err == nil:
		r.writeRunning(ctx, pod, alloc.IP.String())
	case isAlreadyExists(err):
		// The zone already exists (e.g. from a prior, interrupted
		// attempt); status is left unchanged.
	default:
		r.writeFailed(ctx, pod, readyReasonProvisionFailed, err.Error())
	}
}

func (r *Reconciler) reconcileRunning(ctx context.Context, pod *resources.Pod) {
	zoneName := zoneruntime.ZoneName(pod.Namespace, pod.Name)
	state, err := r.runtime.GetZoneState(ctx, zoneName)
	if err != nil {
		r.writeFailed(ctx, pod, readyReasonZoneUnhealthy, err.Error())
		return
	}

	switch state {
	case zoneruntime.StateAbsent:
		r.writeFailed(ctx, pod, readyReasonZoneNotFound, "Zone not found")
	case zoneruntime.StateRunning:
		r.registerProbes(pod)
		r.reconcileProbes(ctx, pod, zoneName)
	default:
		r.writeFailed(ctx, pod, readyReasonZoneUnhealthy, "zone state is "+string(state))
	}
}

// registerProbes translates the pod's container probe specs into
// probes.Configs and registers them with the tracker. RegisterPod is
// idempotent (spec.md §4.H), so calling this on every reconcileRunning
// pass is cheap and also covers a reconciler restart finding a pod
// already Running with nothing yet registered. Every container is
// treated as having started at pod.Status.StartTime, since Reddwarf
// provisions a zone's containers together rather than staggering them.
func (r *Reconciler) registerProbes(pod *resources.Pod) {
	configs := probes.ConfigsFromPod(pod.AsCoreV1())
	if len(configs) == 0 {
		return
	}
	startedAt := r.now()
	if pod.Status.StartTime != nil {
		startedAt = pod.Status.StartTime.Time
	}
	containerStartedAt := make(map[string]time.Time, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		containerStartedAt[c.Name] = startedAt
	}
	r.tracker.RegisterPod(pod.Namespace+"/"+pod.Name, containerStartedAt, configs)
}

func (r *Reconciler) reconcileProbes(ctx context.Context, pod *resources.Pod, zoneName string) {
	podKey := pod.Namespace + "/" + pod.Name
	status := r.tracker.CheckPod(ctx, podKey, zoneName, pod.Status.PodIP)

	wantReady := corev1.ConditionFalse
	reason := readyReasonReadinessFailure
	if status.Ready && !status.LivenessFailed {
		wantReady = corev1.ConditionTrue
		reason = readyReasonProbesHealthy
	}

	if status.LivenessFailed {
		r.tracker.UnregisterPod(podKey)
		r.writeFailed(ctx, pod, readyReasonLivenessFailure, "liveness probe failed")
		return
	}

	if currentReady(pod) == wantReady {
		return
	}
	setReadyCondition(pod, wantReady, reason, r.now())
	r.updateStatus(ctx, pod)
}

func currentReady(pod *resources.Pod) corev1.ConditionStatus {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status
		}
	}
	return corev1.ConditionUnknown
}

func setReadyCondition(pod *resources.Pod, status corev1.ConditionStatus, reason string, now time.Time) {
	for i := range pod.Status.Conditions {
		if pod.Status.Conditions[i].Type == corev1.PodReady {
			pod.Status.Conditions[i].Status = status
			pod.Status.Conditions[i].Reason = reason
			pod.Status.Conditions[i].LastTransitionTime = metav1.NewTime(now)
			return
		}
	}
	pod.Status.Conditions = append(pod.Status.Conditions, corev1.PodCondition{
		Type:               corev1.PodReady,
		Status:             status,
		Reason:             reason,
		LastTransitionTime: metav1.NewTime(now),
	})
}

func (r *Reconciler) writeRunning(ctx context.Context, pod *resources.Pod, podIP string) {
	pod.Status.Phase = corev1.PodRunning
	pod.Status.PodIP = podIP
	startTime := metav1.NewTime(r.now())
	pod.Status.StartTime = &startTime
	r.registerProbes(pod)
	setReadyCondition(pod, corev1.ConditionTrue, readyReasonProbesHealthy, r.now())
	r.updateStatus(ctx, pod)
}

func (r *Reconciler) writeFailed(ctx context.Context, pod *resources.Pod, reason, message string) {
	pod.Status.Phase = corev1.PodFailed
	pod.Status.Reason = reason
	pod.Status.Message = message
	setReadyCondition(pod, corev1.ConditionFalse, reason, r.now())
	r.updateStatus(ctx, pod)
}

func (r *Reconciler) updateStatus(ctx context.Context, pod *resources.Pod) {
	if _, err := r.store.UpdateStatus(ctx, pod); err != nil {
		r.log.Error("status update failed", "namespace", pod.Namespace, "name", pod.Name, "err", err)
	}
}

func isAlreadyExists(err error) bool {
	var already *zoneruntime.AlreadyExistsError
	return errors.As(err, &already)
}
