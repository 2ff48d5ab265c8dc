package store

import (
	"encoding/json"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
)

// mergeStatus decodes prevBytes as kind, then overwrites only its Status
// field with incoming's Status, leaving metadata (other than
// resourceVersion, set by the caller) and spec untouched.
func mergeStatus(kind string, prevBytes []byte, incoming resources.Resource) (resources.Resource, error) {
	switch want := incoming.(type) {
	case *resources.Pod:
		var stored resources.Pod
		if err := json.Unmarshal(prevBytes, &stored); err != nil {
			return nil, apierrors.Internalf("decode stored pod: %v", err)
		}
		stored.Status = want.Status
		return &stored, nil
	case *resources.Node:
		var stored resources.Node
		if err := json.Unmarshal(prevBytes, &stored); err != nil {
			return nil, apierrors.Internalf("decode stored node: %v", err)
		}
		stored.Status = want.Status
		return &stored, nil
	case *resources.Service:
		var stored resources.Service
		if err := json.Unmarshal(prevBytes, &stored); err != nil {
			return nil, apierrors.Internalf("decode stored service: %v", err)
		}
		stored.Status = want.Status
		return &stored, nil
	case *resources.Namespace:
		var stored resources.Namespace
		if err := json.Unmarshal(prevBytes, &stored); err != nil {
			return nil, apierrors.Internalf("decode stored namespace: %v", err)
		}
		stored.Status = want.Status
		return &stored, nil
	default:
		return nil, apierrors.BadRequest("status subresource not supported for kind " + kind)
	}
}
