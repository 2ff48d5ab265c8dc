// Package resources defines the Resource capability set (spec.md §3/§4.D)
// over Kubernetes-shaped core/v1 objects, plus the resource-key textual
// form and DNS-1123 name validation every mutation path relies on.
package resources

import (
	"encoding/json"
	"fmt"
	"regexp"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// Resource is the capability set every kind in the store must satisfy.
// Implementations are thin wrappers around k8s.io/api/core/v1 types rather
// than a from-scratch type hierarchy, matching spec.md §3's direction that
// the kind set is open and callers must never branch on concrete type.
type Resource interface {
	GroupVersionKind() schema.GroupVersionKind
	// Meta returns the mutable metadata envelope (name, namespace, uid,
	// resourceVersion, labels, annotations, deletion fields).
	Meta() *metav1.ObjectMeta
	Validate() error
}

// Key is the stable (group, version, kind, namespace, name) tuple, along
// with its canonical textual form used both as the KVStore key and as a
// human-readable identifier (spec.md §3).
type Key struct {
	GVK       schema.GroupVersionKind
	Namespace string
	Name      string
}

// String renders the stable textual form:
// {apiVersion}/{Kind}/{namespace}/{name} for namespaced kinds,
// {apiVersion}/{Kind}/{name} for cluster-scoped ones.
func (k Key) String() string {
	av := k.GVK.GroupVersion().String()
	if k.Namespace != "" {
		return fmt.Sprintf("%s/%s/%s/%s", av, k.GVK.Kind, k.Namespace, k.Name)
	}
	return fmt.Sprintf("%s/%s/%s", av, k.GVK.Kind, k.Name)
}

// Prefix renders the scan prefix for this Key's GVK, optionally scoped to
// Namespace when set, per pkg/store's List(prefix) semantics.
func (k Key) Prefix() string {
	av := k.GVK.GroupVersion().String()
	if k.Namespace != "" {
		return fmt.Sprintf("%s/%s/%s/", av, k.GVK.Kind, k.Namespace)
	}
	return fmt.Sprintf("%s/%s/", av, k.GVK.Kind)
}

// GVKs recognized by the core (spec.md §3).
var (
	GVKPod       = schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Pod"}
	GVKNode      = schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Node"}
	GVKService   = schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Service"}
	GVKNamespace = schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Namespace"}
)

// NamespaceScoped reports whether GVK.Kind requires a namespace segment.
func NamespaceScoped(gvk schema.GroupVersionKind) bool {
	switch gvk.Kind {
	case GVKNode.Kind, GVKNamespace.Kind:
		return false
	default:
		return true
	}
}

// dns1123Subdomain matches spec.md §3's "DNS-1123 subdomain" name rule.
var dns1123Subdomain = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// ValidateName enforces DNS-1123 subdomain rules on a resource name.
func ValidateName(name string) error {
	if name == "" {
		return apierrors.BadRequest("metadata.name is required")
	}
	if len(name) > 253 {
		return apierrors.ValidationFailed("metadata.name must be no more than 253 characters")
	}
	if !dns1123Subdomain.MatchString(name) {
		return apierrors.ValidationFailed("metadata.name must be a valid DNS-1123 subdomain: " + name)
	}
	return nil
}

// Pod wraps corev1.Pod with the Resource capability set. A defined type
// (not an alias) so methods can be attached in this package while the JSON
// field tags carried over from corev1.Pod still apply verbatim.
type Pod corev1.Pod

func (p *Pod) GroupVersionKind() schema.GroupVersionKind { return GVKPod }
func (p *Pod) Meta() *metav1.ObjectMeta                  { return &p.ObjectMeta }

func (p *Pod) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if p.Namespace == "" {
		return apierrors.BadRequest("metadata.namespace is required for Pod")
	}
	if len(p.Spec.Containers) == 0 {
		return apierrors.ValidationFailed("spec.containers must not be empty")
	}
	for _, c := range p.Spec.Containers {
		if c.Name == "" {
			return apierrors.ValidationFailed("container name is required")
		}
	}
	return nil
}

func (p *Pod) MarshalJSON() ([]byte, error) { return json.Marshal((*corev1.Pod)(p)) }
func (p *Pod) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, (*corev1.Pod)(p)) }
func (p *Pod) AsCoreV1() *corev1.Pod        { return (*corev1.Pod)(p) }
func PodFromCoreV1(p *corev1.Pod) *Pod      { return (*Pod)(p) }

// Node wraps corev1.Node.
type Node corev1.Node

func (n *Node) GroupVersionKind() schema.GroupVersionKind { return GVKNode }
func (n *Node) Meta() *metav1.ObjectMeta                  { return &n.ObjectMeta }

func (n *Node) Validate() error {
	return ValidateName(n.Name)
}

func (n *Node) MarshalJSON() ([]byte, error) { return json.Marshal((*corev1.Node)(n)) }
func (n *Node) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, (*corev1.Node)(n)) }
func (n *Node) AsCoreV1() *corev1.Node       { return (*corev1.Node)(n) }
func NodeFromCoreV1(n *corev1.Node) *Node    { return (*Node)(n) }

// Service wraps corev1.Service.
type Service corev1.Service

func (s *Service) GroupVersionKind() schema.GroupVersionKind { return GVKService }
func (s *Service) Meta() *metav1.ObjectMeta                  { return &s.ObjectMeta }

func (s *Service) Validate() error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if s.Namespace == "" {
		return apierrors.BadRequest("metadata.namespace is required for Service")
	}
	return nil
}

func (s *Service) MarshalJSON() ([]byte, error) { return json.Marshal((*corev1.Service)(s)) }
func (s *Service) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, (*corev1.Service)(s)) }
func (s *Service) AsCoreV1() *corev1.Service    { return (*corev1.Service)(s) }

// Namespace wraps corev1.Namespace.
type Namespace corev1.Namespace

func (n *Namespace) GroupVersionKind() schema.GroupVersionKind { return GVKNamespace }
func (n *Namespace) Meta() *metav1.ObjectMeta                  { return &n.ObjectMeta }

func (n *Namespace) Validate() error {
	return ValidateName(n.Name)
}

func (n *Namespace) MarshalJSON() ([]byte, error) { return json.Marshal((*corev1.Namespace)(n)) }
func (n *Namespace) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, (*corev1.Namespace)(n)) }
func (n *Namespace) AsCoreV1() *corev1.Namespace  { return (*corev1.Namespace)(n) }
