package nodehealth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
)

func newTestWatchdog(t *testing.T) (*Watchdog, *store.Store) {
	t.Helper()
	mem := kv.NewMemory()
	vstore := version.New(mem, "test")
	bus := events.New(nil, 0)
	st := store.New(mem, vstore, bus, nil)
	return New(st, nil), st
}

func nodeWithHeartbeat(name string, status corev1.ConditionStatus, age time.Duration, transition time.Time, reason string) *resources.Node {
	return &resources.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{
				Type:               corev1.NodeReady,
				Status:             status,
				Reason:             reason,
				LastHeartbeatTime:  metav1.NewTime(time.Now().Add(-age)),
				LastTransitionTime: metav1.NewTime(transition),
			}},
		},
	}
}

func TestSweepMarksStaleNodeNotReady(t *testing.T) {
	w, st := newTestWatchdog(t)
	ctx := context.Background()

	_, err := st.Create(ctx, nodeWithHeartbeat("n1", corev1.ConditionTrue, time.Hour, time.Now(), ""))
	require.NoError(t, err)

	require.NoError(t, w.Sweep(ctx))

	got, err := st.Get(ctx, resources.Key{GVK: resources.GVKNode, Name: "n1"})
	require.NoError(t, err)
	cond := got.(*resources.Node).Status.Conditions[0]
	assert.Equal(t, corev1.ConditionFalse, cond.Status)
	assert.Equal(t, reasonHeartbeatMissing, cond.Reason)
}

func TestSweepLeavesFreshHeartbeatAlone(t *testing.T) {
	w, st := newTestWatchdog(t)
	ctx := context.Background()

	_, err := st.Create(ctx, nodeWithHeartbeat("n1", corev1.ConditionTrue, 5*time.Second, time.Now(), ""))
	require.NoError(t, err)

	require.NoError(t, w.Sweep(ctx))

	got, err := st.Get(ctx, resources.Key{GVK: resources.GVKNode, Name: "n1"})
	require.NoError(t, err)
	cond := got.(*resources.Node).Status.Conditions[0]
	assert.Equal(t, corev1.ConditionTrue, cond.Status)
}

func TestSweepIsIdempotentOnAlreadyMarkedNode(t *testing.T) {
	w, st := newTestWatchdog(t)
	ctx := context.Background()

	oldTransition := time.Now().Add(-time.Hour)
	created, err := st.Create(ctx, nodeWithHeartbeat("n1", corev1.ConditionFalse, time.Hour, oldTransition, reasonHeartbeatMissing))
	require.NoError(t, err)
	rv := created.Meta().ResourceVersion

	require.NoError(t, w.Sweep(ctx))

	got, err := st.Get(ctx, resources.Key{GVK: resources.GVKNode, Name: "n1"})
	require.NoError(t, err)
	assert.Equal(t, rv, got.Meta().ResourceVersion)
}

func TestSweepPreservesTransitionTimeWhenAlreadyFalse(t *testing.T) {
	w, st := newTestWatchdog(t)
	ctx := context.Background()

	oldTransition := time.Now().Add(-2 * time.Hour)
	_, err := st.Create(ctx, nodeWithHeartbeat("n1", corev1.ConditionFalse, time.Hour, oldTransition, "SomeOtherReason"))
	require.NoError(t, err)

	require.NoError(t, w.Sweep(ctx))

	got, err := st.Get(ctx, resources.Key{GVK: resources.GVKNode, Name: "n1"})
	require.NoError(t, err)
	cond := got.(*resources.Node).Status.Conditions[0]
	assert.WithinDuration(t, oldTransition, cond.LastTransitionTime.Time, time.Second)
}
