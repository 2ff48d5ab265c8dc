// Package version implements the content-addressed commit DAG (spec.md
// §4.B) layered over a pkg/kv.KVStore. Commit IDs double as
// resourceVersions for every resource the Resource Store manages.
package version

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
)

const (
	commitKeyPrefix = "version:commit:"
	headKey         = "version:head"
)

// Store wraps a KVStore with commit-DAG semantics. The zero value is not
// usable; construct with New.
type Store struct {
	kv     kv.KVStore
	author string
	now    func() time.Time
}

// New returns a Store writing commits authored as author. now defaults to
// time.Now; tests may override it for deterministic timestamps.
func New(store kv.KVStore, author string) *Store {
	return &Store{kv: store, author: author, now: time.Now}
}

func commitKey(id string) []byte {
	return []byte(commitKeyPrefix + id)
}

// CreateCommit atomically writes a new commit whose sole parent is the
// current HEAD, then advances HEAD to it. This is the only path by which
// HEAD moves.
func (s *Store) CreateCommit(ctx context.Context, changes []Change, message string) (*Commit, error) {
	id := uuid.NewString()
	c := &Commit{
		ID:        id,
		Changes:   changes,
		Message:   message,
		Author:    s.author,
		Timestamp: s.now().UTC(),
	}

	err := s.kv.Update(ctx, func(tx kv.Tx) error {
		headBytes, err := tx.Get([]byte(headKey))
		if err != nil {
			return err
		}
		if len(headBytes) > 0 {
			c.Parents = []string{string(headBytes)}
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := tx.Put(commitKey(id), data); err != nil {
			return err
		}
		return tx.Put([]byte(headKey), []byte(id))
	})
	if err != nil {
		return nil, apierrors.Internalf("create commit: %v", err)
	}
	return c, nil
}

// GetCommit looks up a commit by ID.
func (s *Store) GetCommit(ctx context.Context, id string) (*Commit, error) {
	data, err := kv.Get(ctx, s.kv, commitKey(id))
	if err != nil {
		return nil, apierrors.Internalf("get commit: %v", err)
	}
	if data == nil {
		return nil, apierrors.Internalf("commit %s not found", id)
	}
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apierrors.Internalf("decode commit %s: %v", id, err)
	}
	return &c, nil
}

// GetHead returns the current HEAD commit, or nil if no commit has been
// made yet.
func (s *Store) GetHead(ctx context.Context) (*Commit, error) {
	data, err := kv.Get(ctx, s.kv, []byte(headKey))
	if err != nil {
		return nil, apierrors.Internalf("get head: %v", err)
	}
	if data == nil {
		return nil, nil
	}
	return s.GetCommit(ctx, string(data))
}

// Traverse walks parent links from `from` back to `to` (inclusive of both
// ends), returning the chain in from->to order. `to` may be "" to mean
// "walk to the root".
func (s *Store) Traverse(ctx context.Context, from, to string) ([]*Commit, error) {
	var chain []*Commit
	cur := from
	for cur != "" {
		c, err := s.GetCommit(ctx, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		if cur == to {
			return chain, nil
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	if to != "" {
		return nil, apierrors.Internalf("traverse: %s not reachable from %s", to, from)
	}
	return chain, nil
}

// DetectConflicts reports, for the two commit chains rooted at a and b back
// to their common ancestor, every resource key touched by both sides with
// differing content.
func (s *Store) DetectConflicts(ctx context.Context, a, b string) ([]Conflict, error) {
	ancestor, err := s.FindCommonAncestor(ctx, a, b)
	if err != nil {
		return nil, err
	}
	sideA, err := s.Traverse(ctx, a, ancestor)
	if err != nil {
		return nil, err
	}
	sideB, err := s.Traverse(ctx, b, ancestor)
	if err != nil {
		return nil, err
	}

	changesA := map[string][]byte{}
	for _, c := range sideA {
		if c.ID == ancestor {
			continue
		}
		for _, ch := range c.Changes {
			changesA[ch.ResourceKey] = ch.Content
		}
	}

	var conflicts []Conflict
	for _, c := range sideB {
		if c.ID == ancestor {
			continue
		}
		for _, ch := range c.Changes {
			if other, ok := changesA[ch.ResourceKey]; ok && !bytes.Equal(other, ch.Content) {
				conflicts = append(conflicts, Conflict{
					ResourceKey: ch.ResourceKey,
					CommitA:     a,
					CommitB:     b,
				})
			}
		}
	}
	return conflicts, nil
}

// FindCommonAncestor does a BFS over parent links from both a and b until
// the frontiers intersect.
func (s *Store) FindCommonAncestor(ctx context.Context, a, b string) (string, error) {
	seenA := map[string]bool{}
	seenB := map[string]bool{}
	frontierA := []string{a}
	frontierB := []string{b}

	if a == b {
		return a, nil
	}

	for len(frontierA) > 0 || len(frontierB) > 0 {
		var nextA []string
		for _, id := range frontierA {
			if id == "" || seenA[id] {
				continue
			}
			seenA[id] = true
			if seenB[id] {
				return id, nil
			}
			c, err := s.GetCommit(ctx, id)
			if err != nil {
				return "", err
			}
			nextA = append(nextA, c.Parents...)
		}
		var nextB []string
		for _, id := range frontierB {
			if id == "" || seenB[id] {
				continue
			}
			seenB[id] = true
			if seenA[id] {
				return id, nil
			}
			c, err := s.GetCommit(ctx, id)
			if err != nil {
				return "", err
			}
			nextB = append(nextB, c.Parents...)
		}
		frontierA, frontierB = nextA, nextB
	}
	return "", fmt.Errorf("no common ancestor between %s and %s", a, b)
}
