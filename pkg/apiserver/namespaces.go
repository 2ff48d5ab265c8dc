package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
)

type namespaceListEnvelope struct {
	APIVersion string               `json:"apiVersion"`
	Kind       string               `json:"kind"`
	Items      []*corev1.Namespace `json:"items"`
}

func namespaceFromCoreV1(n *corev1.Namespace) *resources.Namespace { return (*resources.Namespace)(n) }

func asNamespace(r resources.Resource) *corev1.Namespace {
	return (*corev1.Namespace)(r.(*resources.Namespace))
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	if watchRequested(r) {
		serveWatch(w, r, s.bus, resources.GVKNamespace, "")
		return
	}
	items, err := s.store.List(r.Context(), resources.Key{GVK: resources.GVKNamespace})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*corev1.Namespace, 0, len(items))
	for _, it := range items {
		out = append(out, asNamespace(it))
	}
	writeJSON(w, http.StatusOK, namespaceListEnvelope{APIVersion: "v1", Kind: "NamespaceList", Items: out})
}

func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	var ns corev1.Namespace
	if err := decodeBody(r, &ns); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.store.Create(r.Context(), namespaceFromCoreV1(&ns))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asNamespace(created))
}

func (s *Server) getNamespace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	got, err := s.store.Get(r.Context(), resources.Key{GVK: resources.GVKNamespace, Name: name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asNamespace(got))
}

func (s *Server) updateNamespace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var ns corev1.Namespace
	if err := decodeBody(r, &ns); err != nil {
		writeError(w, err)
		return
	}
	ns.Name = name
	updated, err := s.store.Update(r.Context(), namespaceFromCoreV1(&ns))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asNamespace(updated))
}

func (s *Server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.Delete(r.Context(), resources.Key{GVK: resources.GVKNamespace, Name: name}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
