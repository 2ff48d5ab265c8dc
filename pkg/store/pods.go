package store

import (
	"context"
	"encoding/json"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
)

// DefaultGracePeriodSeconds is used when neither a delete request nor
// the pod's own spec specifies one, matching the Kubernetes default.
const DefaultGracePeriodSeconds int64 = 30

// podTerminating is the phase spec.md §4.D requires DELETE to write.
// Real Kubernetes has no such PodPhase value (Terminating is a kubectl
// display concept derived from deletionTimestamp); Reddwarf's status
// contract makes it an explicit phase instead.
const podTerminating corev1.PodPhase = "Terminating"

// PodStore layers Pod-specific semantics (spec.md §4.D) over the generic
// Store: DELETE becomes a graceful termination marker rather than an
// immediate removal, and PATCH applies a JSON merge-patch. The reconciler
// calls FinalizePod once a pod's zone has actually torn down.
type PodStore struct {
	store *Store
	now   func() time.Time
}

func NewPodStore(s *Store) *PodStore {
	return &PodStore{store: s, now: time.Now}
}

// Delete marks a pod for graceful termination by setting
// deletionTimestamp, deletionGracePeriodSeconds, and status.phase =
// Terminating, and leaves the object in place for the reconciler to
// drive down. graceSeconds < 0 means "not specified by the caller": per
// spec.md §4.D the grace period then falls back to the pod's own
// spec.terminationGracePeriodSeconds, or DefaultGracePeriodSeconds if
// that's unset too. A second call on a pod already terminating is a
// no-op that returns the current object, not an error.
func (ps *PodStore) Delete(ctx context.Context, namespace, name string, graceSeconds int64) (*resources.Pod, error) {
	key := resources.Key{GVK: resources.GVKPod, Namespace: namespace, Name: name}
	r, err := ps.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	pod, ok := r.(*resources.Pod)
	if !ok {
		return nil, apierrors.Internal("unexpected resource type for pod key")
	}
	if pod.DeletionTimestamp != nil {
		return pod, nil
	}

	if graceSeconds < 0 {
		switch {
		case pod.Spec.TerminationGracePeriodSeconds != nil:
			graceSeconds = *pod.Spec.TerminationGracePeriodSeconds
		default:
			graceSeconds = DefaultGracePeriodSeconds
		}
	}

	// Second precision in the local zone, as the stored JSON decodes back,
	// so this return value matches what a later Get or Delete returns.
	now := metav1.NewTime(ps.now().Truncate(time.Second).Local())
	pod.DeletionTimestamp = &now
	pod.DeletionGracePeriodSeconds = &graceSeconds
	pod.Status.Phase = podTerminating

	updated, err := ps.store.Update(ctx, pod)
	if err != nil {
		return nil, err
	}
	return updated.(*resources.Pod), nil
}

// FinalizePod performs the real removal from storage once the reconciler
// has confirmed the pod's zone is gone. Unlike Delete this is a raw,
// one-shot removal, never re-entrant on a live pod.
func (ps *PodStore) FinalizePod(ctx context.Context, namespace, name string) error {
	key := resources.Key{GVK: resources.GVKPod, Namespace: namespace, Name: name}
	return ps.store.Delete(ctx, key)
}

// Patch applies a JSON merge-patch (RFC 7386) to the named pod and stores
// the result through the normal Update path, so it commits and publishes
// like any other mutation.
func (ps *PodStore) Patch(ctx context.Context, namespace, name string, patch []byte) (*resources.Pod, error) {
	key := resources.Key{GVK: resources.GVKPod, Namespace: namespace, Name: name}
	r, err := ps.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	pod, ok := r.(*resources.Pod)
	if !ok {
		return nil, apierrors.Internal("unexpected resource type for pod key")
	}

	current, err := json.Marshal(pod.AsCoreV1())
	if err != nil {
		return nil, apierrors.Internalf("marshal current pod: %v", err)
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return nil, apierrors.BadRequest("invalid merge patch: " + err.Error())
	}

	var patched corev1.Pod
	if err := json.Unmarshal(merged, &patched); err != nil {
		return nil, apierrors.BadRequest("merge patch produced an invalid pod: " + err.Error())
	}

	updated, err := ps.store.Update(ctx, resources.PodFromCoreV1(&patched))
	if err != nil {
		return nil, err
	}
	return updated.(*resources.Pod), nil
}
