package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/zfsstore"
	"github.com/CloudNebulaProject/reddwarf/pkg/zoneruntime"
)

func TestProvisionCreatesZoneDatasetWhenStorageAttached(t *testing.T) {
	rec, st := newTestReconciler(t)
	mock := zfsstore.NewMock(zfsstore.DefaultPoolConfig("rpool/reddwarf"))
	rec.WithStorage(mock)
	ctx := context.Background()

	created, err := st.Create(ctx, newScheduledPod("node-1"))
	require.NoError(t, err)
	pod := created.(*resources.Pod)

	rec.Reconcile(ctx, pod)

	got, err := st.Get(ctx, resources.Key{GVK: resources.GVKPod, Namespace: "default", Name: "web-1"})
	require.NoError(t, err)
	updated := got.(*resources.Pod)
	assert.Equal(t, corev1.PodRunning, updated.Status.Phase)
}

func TestTerminationDestroysZoneDatasetWhenStorageAttached(t *testing.T) {
	rec, st := newTestReconciler(t)
	mock := zfsstore.NewMock(zfsstore.DefaultPoolConfig("rpool/reddwarf"))
	rec.WithStorage(mock)
	ctx := context.Background()

	created, err := st.Create(ctx, newScheduledPod("node-1"))
	require.NoError(t, err)
	pod := created.(*resources.Pod)
	rec.Reconcile(ctx, pod)

	zoneName := zoneruntime.ZoneName(pod.Namespace, pod.Name)
	require.True(t, mock.HasZoneDataset(zoneName))

	require.NoError(t, rec.runtime.HaltZone(ctx, zoneName))

	now := metav1.Now()
	pod.DeletionTimestamp = &now
	var grace int64
	pod.DeletionGracePeriodSeconds = &grace
	rec.runTerminationFSM(ctx, pod)

	assert.False(t, mock.HasZoneDataset(zoneName))
}
