package reddwarfclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

func TestCreateNodeDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/nodes", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-1"}})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	got, err := c.CreateNode(context.Background(), &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-1"}})
	require.NoError(t, err)
	assert.Equal(t, "node-1", got.Name)
}

func TestCreateNodeAlreadyExistsMapsToConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"apiVersion": "v1", "kind": "Status", "status": "Failure",
			"message": "node-1 already exists", "code": 409,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.CreateNode(context.Background(), &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-1"}})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindAlreadyExists, apierrors.KindOf(err))
}

func TestGetNodeNotFoundMapsToNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "node missing-node not found", "code": 404})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.GetNode(context.Background(), "missing-node")
	require.Error(t, err)
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}
