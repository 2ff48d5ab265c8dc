// Package scheduler implements the filter → score → bind pod placement
// loop described in spec.md §4.F. Binding writes the commit and publishes
// the MODIFIED event itself rather than going through pkg/store's Update,
// since it holds the pod in a partially-known state (only nodeName is
// being set) while every other mutation path owns the whole object.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
	"github.com/CloudNebulaProject/reddwarf/pkg/resources"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
	"github.com/CloudNebulaProject/reddwarf/pkg/version"
)

// DefaultInterval is the scheduling cycle period.
const DefaultInterval = time.Second

// Scheduler binds unscheduled pods to nodes. It reads through the
// Resource Store but holds its own KVStore/version/event-bus handles for
// the bind write path (spec.md's Design Notes on ownership).
type Scheduler struct {
	reader   *store.Store
	kv       kv.KVStore
	version  *version.Store
	bus      *events.Bus
	interval time.Duration
	filters  []Filter
	scorers  []Scorer
	log      *slog.Logger
}

func New(reader *store.Store, kvStore kv.KVStore, vstore *version.Store, bus *events.Bus, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		reader:   reader,
		kv:       kvStore,
		version:  vstore,
		bus:      bus,
		interval: DefaultInterval,
		filters:  DefaultFilters,
		scorers:  DefaultScorers,
		log:      log,
	}
}

// Run drives the scheduling loop on a fixed interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("scheduling cycle failed", "err", err)
			}
		}
	}
}

// RunOnce performs a single list-filter-score-bind cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	podResources, err := s.reader.List(ctx, resources.Key{GVK: resources.GVKPod})
	if err != nil {
		return err
	}
	nodeResources, err := s.reader.List(ctx, resources.Key{GVK: resources.GVKNode})
	if err != nil {
		return err
	}

	var allPods []*corev1.Pod
	var pending []*resources.Pod
	for _, r := range podResources {
		pod := r.(*resources.Pod)
		allPods = append(allPods, pod.AsCoreV1())
		if pod.Spec.NodeName == "" && pod.DeletionTimestamp == nil {
			pending = append(pending, pod)
		}
	}
	var nodes []*corev1.Node
	for _, r := range nodeResources {
		nodes = append(nodes, r.(*resources.Node).AsCoreV1())
	}

	used := computeNodeUsage(allPods)

	for _, pod := range pending {
		chosen := s.pickNode(pod.AsCoreV1(), nodes, used)
		if chosen == nil {
			s.log.Info("no suitable node for pod", "namespace", pod.Namespace, "name", pod.Name)
			continue
		}
		if err := s.bind(ctx, pod, chosen.Name); err != nil {
			s.log.Error("bind failed", "namespace", pod.Namespace, "name", pod.Name, "node", chosen.Name, "err", err)
			continue
		}
		u := used[chosen.Name]
		cpu, mem := podRequests(pod.AsCoreV1())
		u.cpuMilli += cpu
		u.memBytes += mem
		used[chosen.Name] = u
	}
	return nil
}

// pickNode runs the filter pipeline then the scorer pipeline, returning
// the highest scoring node (ties broken by list order), or nil if every
// node was filtered out.
func (s *Scheduler) pickNode(pod *corev1.Pod, nodes []*corev1.Node, used map[string]usage) *corev1.Node {
	var best *corev1.Node
	bestScore := -1.0

	for _, node := range nodes {
		nodeUsage := used[node.Name]
		fits := true
		for _, f := range s.filters {
			if ok, _ := f(pod, node, nodeUsage); !ok {
				fits = false
				break
			}
		}
		if !fits {
			continue
		}

		var total float64
		for _, sc := range s.scorers {
			total += sc(pod, node, nodeUsage)
		}
		score := total / float64(len(s.scorers))
		if score > bestScore {
			bestScore = score
			best = node
		}
	}
	return best
}

// bind performs the write-commit-emit sequence directly: read previous
// bytes, set nodeName, commit both contents, write, publish MODIFIED.
func (s *Scheduler) bind(ctx context.Context, pod *resources.Pod, nodeName string) error {
	key := resources.Key{GVK: resources.GVKPod, Namespace: pod.Namespace, Name: pod.Name}

	prev, err := kv.Get(ctx, s.kv, []byte(key.String()))
	if err != nil {
		return err
	}

	pod.Spec.NodeName = nodeName
	data, err := json.Marshal(pod)
	if err != nil {
		return err
	}

	commit, err := s.version.CreateCommit(ctx, []version.Change{{
		Kind:            version.ChangeUpdate,
		ResourceKey:     key.String(),
		Content:         data,
		PreviousContent: prev,
	}}, "bind "+key.String()+" to "+nodeName)
	if err != nil {
		return err
	}
	pod.ResourceVersion = commit.ID

	data, err = json.Marshal(pod)
	if err != nil {
		return err
	}
	if err := kv.Put(ctx, s.kv, []byte(key.String()), data); err != nil {
		return err
	}

	s.bus.Publish(events.ResourceEvent{
		Type:            events.Modified,
		GVK:             resources.GVKPod,
		Key:             key.String(),
		Object:          data,
		ResourceVersion: commit.ID,
	})
	return nil
}
