package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
	"github.com/CloudNebulaProject/reddwarf/pkg/events"
)

// watchFrame mirrors spec.md §6's SSE payload shape.
type watchFrame struct {
	Type   events.EventType `json:"type"`
	Object json.RawMessage  `json:"object"`
}

// keepAliveInterval governs how often an idle watch sends a comment line
// to keep intermediaries from closing the connection (spec.md §6).
const keepAliveInterval = 15 * time.Second

// serveWatch upgrades the response to a filtered SSE stream of
// ResourceEvents for gvk, optionally scoped to namespace (empty = all
// namespaces / cluster-scoped kinds).
func serveWatch(w http.ResponseWriter, r *http.Request, bus *events.Bus, gvk schema.GroupVersionKind, namespace string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apierrors.Internal("streaming unsupported by this response writer"))
		return
	}

	sub := bus.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case <-sub.Lag():
			// A lagging watcher simply keeps streaming whatever it can;
			// spec.md's full-resync obligation is on in-process
			// subscribers (the reconciler), not on HTTP watch clients.
		case evt, okEvt := <-sub.Events():
			if !okEvt {
				return
			}
			if !matchesWatch(evt, gvk, namespace) {
				continue
			}
			data, err := json.Marshal(watchFrame{Type: evt.Type, Object: evt.Object})
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func matchesWatch(evt events.ResourceEvent, gvk schema.GroupVersionKind, namespace string) bool {
	if evt.GVK != gvk {
		return false
	}
	if namespace == "" {
		return true
	}
	return keyHasNamespace(evt.Key, namespace)
}

// keyHasNamespace checks whether a resources.Key.String() value
// ({apiVersion}/{Kind}/{namespace}/{name}) carries the given namespace
// segment.
func keyHasNamespace(key, namespace string) bool {
	parts := splitKey(key)
	return len(parts) == 4 && parts[2] == namespace
}

func splitKey(key string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	return parts
}
