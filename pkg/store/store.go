// Package store implements the Resource Store (spec.md §4.D): CRUD plus a
// status subresource and list-by-prefix, with every mutation committing
// through pkg/version and publishing through pkg/events.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/types"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
)

// Store is the Resource Store. Construct with New.
type Store struct {
	kv      kv.KVStore
	version *version.Store
	bus     *events.Bus
	log     *slog.Logger
}

func New(store kv.KVStore, vstore *version.Store, bus *events.Bus, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{kv: store, version: vstore, bus: bus, log: log}
}

// Get loads and decodes the resource stored under key.
func (s *Store) Get(ctx context.Context, key resources.Key) (resources.Resource, error) {
	data, err := kv.Get(ctx, s.kv, []byte(key.String()))
	if err != nil {
		return nil, apierrors.Internalf("get %s: %v", key, err)
	}
	if data == nil {
		return nil, apierrors.NotFound(key.String())
	}
	return resources.Decode(key.GVK.Kind, data)
}

// List returns every resource whose key matches prefix, in key order.
func (s *Store) List(ctx context.Context, prefix resources.Key) ([]resources.Resource, error) {
	var out []resources.Resource
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		return tx.PrefixScan([]byte(prefix.Prefix()), func(_ []byte, value []byte) bool {
			r, decErr := resources.Decode(prefix.GVK.Kind, value)
			if decErr != nil {
				s.log.Warn("skipping undecodable resource during list", "err", decErr)
				return true
			}
			out = append(out, r)
			return true
		})
	})
	if err != nil {
		return nil, apierrors.Internalf("list %s: %v", prefix.Prefix(), err)
	}
	sort.Slice(out, func(i, j int) bool {
		return keyString(out[i]) < keyString(out[j])
	})
	return out, nil
}

func keyString(r resources.Resource) string {
	m := r.Meta()
	return resources.Key{GVK: r.GroupVersionKind(), Namespace: m.Namespace, Name: m.Name}.String()
}

// Create inserts a brand-new resource. Fails with AlreadyExists if the
// storage key is already present.
func (s *Store) Create(ctx context.Context, r resources.Resource) (resources.Resource, error) {
	meta := r.Meta()
	if meta.Name == "" {
		return nil, apierrors.BadRequest("metadata.name is required")
	}
	key := resources.Key{GVK: r.GroupVersionKind(), Namespace: meta.Namespace, Name: meta.Name}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	existing, err := kv.Get(ctx, s.kv, []byte(key.String()))
	if err != nil {
		return nil, apierrors.Internalf("create %s: %v", key, err)
	}
	if existing != nil {
		return nil, apierrors.AlreadyExists(key.String())
	}

	meta.UID = types.UID(uuid.NewString())
	data, err := json.Marshal(r)
	if err != nil {
		return nil, apierrors.Internalf("marshal %s: %v", key, err)
	}

	commit, err := s.version.CreateCommit(ctx, []version.Change{{
		Kind:        version.ChangeCreate,
		ResourceKey: key.String(),
		Content:     data,
	}}, "create "+key.String())
	if err != nil {
		return nil, err
	}
	meta.ResourceVersion = commit.ID

	data, err = json.Marshal(r)
	if err != nil {
		return nil, apierrors.Internalf("marshal %s: %v", key, err)
	}
	if err := kv.Put(ctx, s.kv, []byte(key.String()), data); err != nil {
		return nil, apierrors.Internalf("write %s: %v", key, err)
	}

	s.publish(events.Added, r, commit.ID)
	return r, nil
}

// Update overwrites an existing resource, committing both the previous and
// new content.
func (s *Store) Update(ctx context.Context, r resources.Resource) (resources.Resource, error) {
	meta := r.Meta()
	key := resources.Key{GVK: r.GroupVersionKind(), Namespace: meta.Namespace, Name: meta.Name}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	prev, err := kv.Get(ctx, s.kv, []byte(key.String()))
	if err != nil {
		return nil, apierrors.Internalf("update %s: %v", key, err)
	}
	if prev == nil {
		return nil, apierrors.NotFound(key.String())
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, apierrors.Internalf("marshal %s: %v", key, err)
	}

	commit, err := s.version.CreateCommit(ctx, []version.Change{{
		Kind:            version.ChangeUpdate,
		ResourceKey:     key.String(),
		Content:         data,
		PreviousContent: prev,
	}}, "update "+key.String())
	if err != nil {
		return nil, err
	}
	meta.ResourceVersion = commit.ID

	data, err = json.Marshal(r)
	if err != nil {
		return nil, apierrors.Internalf("marshal %s: %v", key, err)
	}
	if err := kv.Put(ctx, s.kv, []byte(key.String()), data); err != nil {
		return nil, apierrors.Internalf("write %s: %v", key, err)
	}

	s.publish(events.Modified, r, commit.ID)
	return r, nil
}

// UpdateStatus merges only incoming's status field over the stored
// document, preserving spec and (other than resourceVersion) metadata.
func (s *Store) UpdateStatus(ctx context.Context, r resources.Resource) (resources.Resource, error) {
	meta := r.Meta()
	key := resources.Key{GVK: r.GroupVersionKind(), Namespace: meta.Namespace, Name: meta.Name}

	prev, err := kv.Get(ctx, s.kv, []byte(key.String()))
	if err != nil {
		return nil, apierrors.Internalf("update status %s: %v", key, err)
	}
	if prev == nil {
		return nil, apierrors.NotFound(key.String())
	}

	merged, err := mergeStatus(key.GVK.Kind, prev, r)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, apierrors.Internalf("marshal %s: %v", key, err)
	}

	commit, err := s.version.CreateCommit(ctx, []version.Change{{
		Kind:            version.ChangeUpdate,
		ResourceKey:     key.String(),
		Content:         data,
		PreviousContent: prev,
	}}, "update status "+key.String())
	if err != nil {
		return nil, err
	}
	merged.Meta().ResourceVersion = commit.ID

	data, err = json.Marshal(merged)
	if err != nil {
		return nil, apierrors.Internalf("marshal %s: %v", key, err)
	}
	if err := kv.Put(ctx, s.kv, []byte(key.String()), data); err != nil {
		return nil, apierrors.Internalf("write %s: %v", key, err)
	}

	s.publish(events.Modified, merged, commit.ID)
	return merged, nil
}

// Delete removes key outright, publishing a DELETED event carrying the
// last-known object.
func (s *Store) Delete(ctx context.Context, key resources.Key) error {
	prev, err := kv.Get(ctx, s.kv, []byte(key.String()))
	if err != nil {
		return apierrors.Internalf("delete %s: %v", key, err)
	}
	if prev == nil {
		return apierrors.NotFound(key.String())
	}

	commit, err := s.version.CreateCommit(ctx, []version.Change{{
		Kind:        version.ChangeDelete,
		ResourceKey: key.String(),
		Content:     prev,
	}}, "delete "+key.String())
	if err != nil {
		return err
	}

	if err := kv.Delete(ctx, s.kv, []byte(key.String())); err != nil {
		return apierrors.Internalf("delete %s: %v", key, err)
	}

	prevObj, decErr := resources.Decode(key.GVK.Kind, prev)
	if decErr == nil {
		s.publish(events.Deleted, prevObj, commit.ID)
	}
	return nil
}

// publish is best-effort: a failure here is logged, never surfaced, per
// spec.md §4.D/§7.
func (s *Store) publish(t events.EventType, r resources.Resource, rv string) {
	data, err := json.Marshal(r)
	if err != nil {
		s.log.Error("event publish: marshal failed", "err", err)
		return
	}
	meta := r.Meta()
	key := resources.Key{GVK: r.GroupVersionKind(), Namespace: meta.Namespace, Name: meta.Name}
	s.bus.Publish(events.ResourceEvent{
		Type:            t,
		GVK:             r.GroupVersionKind(),
		Key:             key.String(),
		Object:          data,
		ResourceVersion: rv,
	})
}
