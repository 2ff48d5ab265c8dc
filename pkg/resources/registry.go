package resources

import (
	"encoding/json"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// New constructs a zero-value Resource for the given kind name. The kind
// set is open at the registry level (spec.md §3); the core ships these
// four.
func New(kind string) (Resource, error) {
	switch kind {
	case GVKPod.Kind:
		return &Pod{}, nil
	case GVKNode.Kind:
		return &Node{}, nil
	case GVKService.Kind:
		return &Service{}, nil
	case GVKNamespace.Kind:
		return &Namespace{}, nil
	default:
		return nil, apierrors.BadRequest("unknown kind: " + kind)
	}
}

// Decode unmarshals data into a fresh Resource of the given kind.
func Decode(kind string, data []byte) (Resource, error) {
	r, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, apierrors.BadRequest("malformed " + kind + " body: " + err.Error())
	}
	return r, nil
}

// GVKFor returns the registered GVK for a kind name.
func GVKFor(kind string) (schema.GroupVersionKind, bool) {
	switch kind {
	case GVKPod.Kind:
		return GVKPod, true
	case GVKNode.Kind:
		return GVKNode, true
	case GVKService.Kind:
		return GVKService, true
	case GVKNamespace.Kind:
		return GVKNamespace, true
	default:
		return schema.GroupVersionKind{}, false
	}
}
