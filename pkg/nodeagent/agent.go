// Package nodeagent implements the per-host registration and heartbeat
// loop described in spec.md §4.J: detect host resources, POST a Node on
// startup, then keep its Ready condition and capacity/allocatable fresh
// on a timer.
package nodeagent

import (
	"context"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
	"github.com/CloudNebulaProject/reddwarf/pkg/reddwarfclient"
)

// DefaultHeartbeatInterval is spec.md §4.J's default.
const DefaultHeartbeatInterval = 10 * time.Second

const readyReasonNodeReady = "NodeReady"

// Agent owns one node's lifecycle against a Reddwarf server.
type Agent struct {
	nodeName          string
	client            *reddwarfclient.Client
	heartbeatInterval time.Duration
	host              HostResources
	reservedCPUMilli  int64
	reservedMemBytes  int64
	maxPods           int64
	log               *slog.Logger
	now               func() time.Time
}

// WithMaxPods sets the node's pod capacity/allocatable (the --max-pods
// CLI flag); zero leaves the pods resource unset.
func (a *Agent) WithMaxPods(maxPods int64) *Agent {
	a.maxPods = maxPods
	return a
}

// New builds an Agent. reservedCPU/reservedMemory are the
// --system-reserved-cpu/--system-reserved-memory quantities; zero values
// are valid (nothing reserved).
func New(nodeName string, client *reddwarfclient.Client, host HostResources, reservedCPU, reservedMemory resource.Quantity, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{
		nodeName:          nodeName,
		client:            client,
		heartbeatInterval: DefaultHeartbeatInterval,
		host:              host,
		reservedCPUMilli:  reservedCPU.MilliValue(),
		reservedMemBytes:  reservedMemory.Value(),
		log:               log,
		now:               time.Now,
	}
}

// Run registers the node, then heartbeats on heartbeatInterval until ctx
// is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.register(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.heartbeat(ctx); err != nil {
				a.log.Error("node heartbeat failed", "node", a.nodeName, "err", err)
			}
		}
	}
}

// register POSTs the Node; on AlreadyExists it falls through to a
// heartbeat (status update) instead, per spec.md §4.J.
func (a *Agent) register(ctx context.Context) error {
	node := a.buildNode()
	_, err := a.client.CreateNode(ctx, node)
	if err == nil {
		a.log.Info("node registered", "node", a.nodeName)
		return nil
	}
	if apierrors.Is(err, apierrors.KindAlreadyExists) {
		a.log.Info("node already registered, heartbeating instead", "node", a.nodeName)
		return a.heartbeat(ctx)
	}
	return err
}

// heartbeat refreshes lastHeartbeatTime/lastTransitionTime on the Ready
// condition, re-asserts capacity/allocatable, and PUTs the node status.
func (a *Agent) heartbeat(ctx context.Context) error {
	node, err := a.client.GetNode(ctx, a.nodeName)
	if err != nil {
		return err
	}

	now := metav1.NewTime(a.now())
	idx := readyConditionIndex(node)
	if idx == -1 {
		node.Status.Conditions = append(node.Status.Conditions, corev1.NodeCondition{Type: corev1.NodeReady})
		idx = len(node.Status.Conditions) - 1
	}
	cond := &node.Status.Conditions[idx]
	cond.Status = corev1.ConditionTrue
	cond.Reason = readyReasonNodeReady
	cond.Message = "node agent heartbeat"
	cond.LastHeartbeatTime = now
	cond.LastTransitionTime = now

	node.Status.Capacity = Capacity(a.host)
	node.Status.Allocatable = Allocatable(a.host, a.reservedCPUMilli, a.reservedMemBytes)
	a.applyMaxPods(node)

	_, err = a.client.UpdateNodeStatus(ctx, node)
	return err
}

func (a *Agent) buildNode() *corev1.Node {
	now := metav1.NewTime(a.now())
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: a.nodeName},
		Status: corev1.NodeStatus{
			Capacity:    Capacity(a.host),
			Allocatable: Allocatable(a.host, a.reservedCPUMilli, a.reservedMemBytes),
			Conditions: []corev1.NodeCondition{{
				Type:               corev1.NodeReady,
				Status:             corev1.ConditionTrue,
				Reason:             readyReasonNodeReady,
				Message:            "node agent registered",
				LastHeartbeatTime:  now,
				LastTransitionTime: now,
			}},
		},
	}
	a.applyMaxPods(node)
	return node
}

func (a *Agent) applyMaxPods(node *corev1.Node) {
	if a.maxPods <= 0 {
		return
	}
	qty := *resource.NewQuantity(a.maxPods, resource.DecimalSI)
	node.Status.Capacity[corev1.ResourcePods] = qty
	node.Status.Allocatable[corev1.ResourcePods] = qty
}

func readyConditionIndex(node *corev1.Node) int {
	for i := range node.Status.Conditions {
		if node.Status.Conditions[i].Type == corev1.NodeReady {
			return i
		}
	}
	return -1
}
