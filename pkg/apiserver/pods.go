package apiserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
)

type podListEnvelope struct {
	APIVersion string         `json:"apiVersion"`
	Kind       string         `json:"kind"`
	Items      []*corev1.Pod `json:"items"`
}

func asPod(r resources.Resource) *corev1.Pod { return r.(*resources.Pod).AsCoreV1() }

// listAllPods serves GET /api/v1/pods across every namespace.
func (s *Server) listAllPods(w http.ResponseWriter, r *http.Request) {
	if watchRequested(r) {
		serveWatch(w, r, s.bus, resources.GVKPod, "")
		return
	}
	items, err := s.store.List(r.Context(), resources.Key{GVK: resources.GVKPod})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*corev1.Pod, 0, len(items))
	for _, it := range items {
		out = append(out, asPod(it))
	}
	writeJSON(w, http.StatusOK, podListEnvelope{APIVersion: "v1", Kind: "PodList", Items: out})
}

func (s *Server) listPods(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	if watchRequested(r) {
		serveWatch(w, r, s.bus, resources.GVKPod, ns)
		return
	}
	items, err := s.store.List(r.Context(), resources.Key{GVK: resources.GVKPod, Namespace: ns})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*corev1.Pod, 0, len(items))
	for _, it := range items {
		out = append(out, asPod(it))
	}
	writeJSON(w, http.StatusOK, podListEnvelope{APIVersion: "v1", Kind: "PodList", Items: out})
}

func (s *Server) createPod(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	var pod corev1.Pod
	if err := decodeBody(r, &pod); err != nil {
		writeError(w, err)
		return
	}
	pod.Namespace = ns
	created, err := s.store.Create(r.Context(), resources.PodFromCoreV1(&pod))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asPod(created))
}

func (s *Server) getPod(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	got, err := s.store.Get(r.Context(), resources.Key{GVK: resources.GVKPod, Namespace: ns, Name: name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asPod(got))
}

func (s *Server) updatePod(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	var pod corev1.Pod
	if err := decodeBody(r, &pod); err != nil {
		writeError(w, err)
		return
	}
	pod.Namespace, pod.Name = ns, name
	updated, err := s.store.Update(r.Context(), resources.PodFromCoreV1(&pod))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asPod(updated))
}

func (s *Server) patchPod(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	patch, err := readAll(r)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := s.pods.Patch(r.Context(), ns, name, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.AsCoreV1())
}

func (s *Server) updatePodStatus(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	var pod corev1.Pod
	if err := decodeBody(r, &pod); err != nil {
		writeError(w, err)
		return
	}
	pod.Namespace, pod.Name = ns, name
	updated, err := s.store.UpdateStatus(r.Context(), resources.PodFromCoreV1(&pod))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asPod(updated))
}

// deletePod marks the pod for graceful termination (store.PodStore.Delete
// sets deletionTimestamp rather than removing it outright) per spec.md
// §4.D/§4.G. A ?gracePeriodSeconds= query param overrides both the
// pod's own spec.terminationGracePeriodSeconds and the default; absent
// that param, -1 tells PodStore.Delete to fall back to the pod's spec
// value (or DefaultGracePeriodSeconds if that's unset too).
func (s *Server) deletePod(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	grace := int64(-1)
	if v := r.URL.Query().Get("gracePeriodSeconds"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			grace = parsed
		}
	}
	updated, err := s.pods.Delete(r.Context(), ns, name, grace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.AsCoreV1())
}

func (s *Server) finalizePod(w http.ResponseWriter, r *http.Request) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	if err := s.pods.FinalizePod(r.Context(), ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
