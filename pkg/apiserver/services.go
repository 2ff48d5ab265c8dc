package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
)

type serviceListEnvelope struct {
	APIVersion string             `json:"apiVersion"`
	Kind       string             `json:"kind"`
	Items      []*corev1.Service `json:"items"`
}

func serviceFromCoreV1(svc *corev1.Service) *resources.Service { return (*resources.Service)(svc) }

func asService(r resources.Resource) *corev1.Service {
	return (*corev1.Service)(r.(*resources.Service))
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	if watchRequested(r) {
		serveWatch(w, r, s.bus, resources.GVKService, ns)
		return
	}
	items, err := s.store.List(r.Context(), resources.Key{GVK: resources.GVKService, Namespace: ns})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*corev1.Service, 0, len(items))
	for _, it := range items {
		out = append(out, asService(it))
	}
	writeJSON(w, http.StatusOK, serviceListEnvelope{APIVersion: "v1", Kind: "ServiceList", Items: out})
}

func (s *Server) createService(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	var svc corev1.Service
	if err := decodeBody(r, &svc); err != nil {
		writeError(w, err)
		return
	}
	svc.Namespace = ns
	created, err := s.store.Create(r.Context(), serviceFromCoreV1(&svc))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asService(created))
}

func (s *Server) getService(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	got, err := s.store.Get(r.Context(), resources.Key{GVK: resources.GVKService, Namespace: ns, Name: name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asService(got))
}

func (s *Server) updateService(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	var svc corev1.Service
	if err := decodeBody(r, &svc); err != nil {
		writeError(w, err)
		return
	}
	svc.Namespace, svc.Name = ns, name
	updated, err := s.store.Update(r.Context(), serviceFromCoreV1(&svc))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asService(updated))
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	if err := s.store.Delete(r.Context(), resources.Key{GVK: resources.GVKService, Namespace: ns, Name: name}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
