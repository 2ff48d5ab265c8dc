package nodeagent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/CloudNebulaProject/reddwarf/pkg/reddwarfclient"
)

func TestRegisterPostsNewNode(t *testing.T) {
	var posted corev1.Node
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(posted)
	}))
	defer srv.Close()

	client := reddwarfclient.New(srv.URL, srv.Client())
	a := New("node-1", client, HostResources{CPUCount: 4, MemoryBytes: 8 << 30}, resource.MustParse("0"), resource.MustParse("0"), nil)

	require.NoError(t, a.register(context.Background()))
	assert.Equal(t, "node-1", posted.Name)
	assert.Equal(t, corev1.ConditionTrue, posted.Status.Conditions[0].Status)
	cpu := posted.Status.Allocatable[corev1.ResourceCPU]
	assert.Equal(t, int64(4000), cpu.MilliValue())
}

func TestRegisterFallsThroughToHeartbeatOnAlreadyExists(t *testing.T) {
	existing := corev1.Node{}
	existing.Name = "node-1"
	createCalls, heartbeatCalls := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			createCalls++
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "already exists", "code": 409})
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(existing)
		case r.Method == http.MethodPut:
			heartbeatCalls++
			require.NoError(t, json.NewDecoder(r.Body).Decode(&existing))
			_ = json.NewEncoder(w).Encode(existing)
		}
	}))
	defer srv.Close()

	client := reddwarfclient.New(srv.URL, srv.Client())
	a := New("node-1", client, HostResources{CPUCount: 2, MemoryBytes: 4 << 30}, resource.MustParse("100m"), resource.MustParse("256Mi"), nil)

	require.NoError(t, a.register(context.Background()))
	assert.Equal(t, 1, createCalls)
	assert.Equal(t, 1, heartbeatCalls)
	assert.Equal(t, corev1.ConditionTrue, existing.Status.Conditions[0].Status)
}

func TestAllocatableClampsAtZeroWhenReservationExceedsCapacity(t *testing.T) {
	alloc := Allocatable(HostResources{CPUCount: 1, MemoryBytes: 1 << 20}, 5000, 1<<30)
	cpu := alloc[corev1.ResourceCPU]
	mem := alloc[corev1.ResourceMemory]
	assert.Equal(t, int64(0), cpu.MilliValue())
	assert.Equal(t, int64(0), mem.Value())
}

func TestHeartbeatRefreshesConditionTimes(t *testing.T) {
	existing := corev1.Node{}
	existing.Name = "node-1"
	existing.Status.Conditions = []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(existing)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&existing))
			_ = json.NewEncoder(w).Encode(existing)
		}
	}))
	defer srv.Close()

	client := reddwarfclient.New(srv.URL, srv.Client())
	a := New("node-1", client, HostResources{CPUCount: 4, MemoryBytes: 8 << 30}, resource.MustParse("0"), resource.MustParse("0"), nil)

	before := time.Now().Add(-time.Hour)
	a.now = func() time.Time { return before.Add(time.Hour) }

	require.NoError(t, a.heartbeat(context.Background()))
	assert.WithinDuration(t, before.Add(time.Hour), existing.Status.Conditions[0].LastHeartbeatTime.Time, time.Second)
}
