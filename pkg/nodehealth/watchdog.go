// Package nodehealth implements the node liveness watchdog (spec.md
// §4.I): a periodic sweep marking nodes with a stale heartbeat NotReady.
package nodehealth

import (
	"context"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
)

const (
	// DefaultCheckInterval is how often the watchdog sweeps all nodes.
	DefaultCheckInterval = 15 * time.Second
	// DefaultHeartbeatTimeout is 4x the node agent's default heartbeat
	// interval.
	DefaultHeartbeatTimeout = 40 * time.Second

	reasonHeartbeatMissing = "NodeStatusUnknown"
)

// Watchdog marks nodes NotReady when their Ready condition's heartbeat
// goes stale.
type Watchdog struct {
	store            *store.Store
	checkInterval    time.Duration
	heartbeatTimeout time.Duration
	log              *slog.Logger
	now              func() time.Time
}

func New(st *store.Store, log *slog.Logger) *Watchdog {
	if log == nil {
		log = slog.Default()
	}
	return &Watchdog{
		store:            st,
		checkInterval:    DefaultCheckInterval,
		heartbeatTimeout: DefaultHeartbeatTimeout,
		log:              log,
		now:              time.Now,
	}
}

// Run sweeps nodes on checkInterval until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.log.Error("node health sweep failed", "err", err)
			}
		}
	}
}

// Sweep checks every node's Ready condition heartbeat and marks stale
// ones NotReady.
func (w *Watchdog) Sweep(ctx context.Context) error {
	nodes, err := w.store.List(ctx, resources.Key{GVK: resources.GVKNode})
	if err != nil {
		return err
	}
	now := w.now()
	for _, r := range nodes {
		node := r.(*resources.Node)
		if w.maybeMarkStale(node, now) {
			if _, err := w.store.UpdateStatus(ctx, node); err != nil {
				w.log.Error("node status update failed", "name", node.Name, "err", err)
			}
		}
	}
	return nil
}

// maybeMarkStale mutates node in place and reports whether it needs a
// status write.
func (w *Watchdog) maybeMarkStale(node *resources.Node, now time.Time) bool {
	idx := -1
	for i := range node.Status.Conditions {
		if node.Status.Conditions[i].Type == corev1.NodeReady {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	cond := &node.Status.Conditions[idx]

	if cond.Status == corev1.ConditionFalse && cond.Reason == reasonHeartbeatMissing {
		return false // already marked by this component
	}
	if now.Sub(cond.LastHeartbeatTime.Time) <= w.heartbeatTimeout {
		return false
	}

	transition := now
	if cond.Status == corev1.ConditionFalse {
		transition = cond.LastTransitionTime.Time
	}

	cond.Status = corev1.ConditionFalse
	cond.Reason = reasonHeartbeatMissing
	cond.Message = "Node heartbeat not received for " + w.heartbeatTimeout.String()
	cond.LastTransitionTime = metav1.NewTime(transition)
	return true
}
