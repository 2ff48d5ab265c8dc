package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
)

func newTestPodStore(t *testing.T) *PodStore {
	t.Helper()
	mem := kv.NewMemory()
	vstore := version.New(mem, "test")
	bus := events.New(nil, 0)
	st := New(mem, vstore, bus, nil)
	return NewPodStore(st)
}

func newTestPod(namespace, name string, terminationGrace *int64) *resources.Pod {
	return &resources.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec: corev1.PodSpec{
			Containers:                    []corev1.Container{{Name: "main"}},
			TerminationGracePeriodSeconds: terminationGrace,
		},
	}
}

func TestDeleteSetsTerminatingPhaseAndDefaultGrace(t *testing.T) {
	ps := newTestPodStore(t)
	ctx := context.Background()
	_, err := ps.store.Create(ctx, newTestPod("default", "web", nil))
	require.NoError(t, err)

	updated, err := ps.Delete(ctx, "default", "web", -1)
	require.NoError(t, err)
	assert.EqualValues(t, "Terminating", updated.Status.Phase)
	require.NotNil(t, updated.DeletionTimestamp)
	require.NotNil(t, updated.DeletionGracePeriodSeconds)
	assert.EqualValues(t, DefaultGracePeriodSeconds, *updated.DeletionGracePeriodSeconds)
}

func TestDeleteUsesPodSpecTerminationGracePeriodWhenCallerOmitsOne(t *testing.T) {
	ps := newTestPodStore(t)
	ctx := context.Background()
	grace := int64(1)
	_, err := ps.store.Create(ctx, newTestPod("default", "web", &grace))
	require.NoError(t, err)

	updated, err := ps.Delete(ctx, "default", "web", -1)
	require.NoError(t, err)
	require.NotNil(t, updated.DeletionGracePeriodSeconds)
	assert.EqualValues(t, 1, *updated.DeletionGracePeriodSeconds)
}

func TestDeleteCallerSuppliedGraceOverridesPodSpec(t *testing.T) {
	ps := newTestPodStore(t)
	ctx := context.Background()
	specGrace := int64(1)
	_, err := ps.store.Create(ctx, newTestPod("default", "web", &specGrace))
	require.NoError(t, err)

	updated, err := ps.Delete(ctx, "default", "web", 45)
	require.NoError(t, err)
	require.NotNil(t, updated.DeletionGracePeriodSeconds)
	assert.EqualValues(t, 45, *updated.DeletionGracePeriodSeconds)
}

func TestDeleteIsReentrantNoOp(t *testing.T) {
	ps := newTestPodStore(t)
	ctx := context.Background()
	_, err := ps.store.Create(ctx, newTestPod("default", "web", nil))
	require.NoError(t, err)

	first, err := ps.Delete(ctx, "default", "web", -1)
	require.NoError(t, err)
	second, err := ps.Delete(ctx, "default", "web", 99)
	require.NoError(t, err)
	assert.Equal(t, first.DeletionTimestamp, second.DeletionTimestamp)
	assert.Equal(t, *first.DeletionGracePeriodSeconds, *second.DeletionGracePeriodSeconds)
}
