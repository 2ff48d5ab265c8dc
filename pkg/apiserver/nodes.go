package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
)

type nodeListEnvelope struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Items      []*corev1.Node `json:"items"`
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	if watchRequested(r) {
		serveWatch(w, r, s.bus, resources.GVKNode, "")
		return
	}
	items, err := s.store.List(r.Context(), resources.Key{GVK: resources.GVKNode})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*corev1.Node, 0, len(items))
	for _, it := range items {
		out = append(out, it.(*resources.Node).AsCoreV1())
	}
	writeJSON(w, http.StatusOK, nodeListEnvelope{APIVersion: "v1", Kind: "NodeList", Items: out})
}

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var node corev1.Node
	if err := decodeBody(r, &node); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.store.Create(r.Context(), resources.NodeFromCoreV1(&node))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.(*resources.Node).AsCoreV1())
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	got, err := s.store.Get(r.Context(), resources.Key{GVK: resources.GVKNode, Name: name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got.(*resources.Node).AsCoreV1())
}

func (s *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var node corev1.Node
	if err := decodeBody(r, &node); err != nil {
		writeError(w, err)
		return
	}
	node.Name = name
	updated, err := s.store.Update(r.Context(), resources.NodeFromCoreV1(&node))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.(*resources.Node).AsCoreV1())
}

func (s *Server) updateNodeStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var node corev1.Node
	if err := decodeBody(r, &node); err != nil {
		writeError(w, err)
		return
	}
	node.Name = name
	updated, err := s.store.UpdateStatus(r.Context(), resources.NodeFromCoreV1(&node))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.(*resources.Node).AsCoreV1())
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.Delete(r.Context(), resources.Key{GVK: resources.GVKNode, Name: name}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
