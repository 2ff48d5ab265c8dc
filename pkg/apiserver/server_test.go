package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mem := kv.NewMemory()
	vstore := version.New(mem, "test")
	bus := events.New(nil, 0)
	st := store.New(mem, vstore, bus, nil)
	return New(st, store.NewPodStore(st), bus, nil)
}

func TestHealthzReturnsOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateNodeWithoutNameReturnsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(corev1.Node{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code) // empty name -> BadRequest
}

func TestCreatePodThenGetItBack(t *testing.T) {
	srv := newTestServer(t)
	pod := corev1.Pod{
		Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "c"}}},
	}
	pod.Name = "web"
	body, _ := json.Marshal(pod)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/namespaces/default/pods", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/namespaces/default/pods/web", nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got corev1.Pod
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	assert.Equal(t, "web", got.Name)
	assert.NotEmpty(t, got.ResourceVersion)
}

func TestGetMissingNodeReturns404WithStatusBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nodes/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body statusBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failure", body.Status)
	assert.Equal(t, 404, body.Code)
}

func TestCreateNodeWrongContentTypeReturns415(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/nodes", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestDeletePodMarksGracefulTerminationNotRemoval(t *testing.T) {
	srv := newTestServer(t)
	pod := corev1.Pod{Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "c"}}}}
	pod.Name = "web"
	body, _ := json.Marshal(pod)
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/namespaces/default/pods", bytes.NewReader(body))
	createReq.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), createReq)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/namespaces/default/pods/web", nil)
	delRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/namespaces/default/pods/web", nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got corev1.Pod
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	assert.NotNil(t, got.DeletionTimestamp)
	assert.EqualValues(t, "Terminating", got.Status.Phase)
	require.NotNil(t, got.DeletionGracePeriodSeconds)
	assert.EqualValues(t, 30, *got.DeletionGracePeriodSeconds)
}
