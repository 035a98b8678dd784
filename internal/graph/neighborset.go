// Package graph implements the proximity-graph primitives the builder
// and searcher operate on: per-node diversity-pruned neighbor lists,
// layered adjacency storage, and snapshot-isolated concurrent views.
package graph

import (
	"sort"
	"sync"

	"github.com/vamanadb/vamana/internal/vamerr"
)

// Pair is one graph edge: the neighbor's ordinal and the similarity
// score that edge was selected under (higher is always better,
// regardless of the underlying metric's native direction).
type Pair struct {
	Ordinal int32
	Score   float32
}

// ScoreFunc returns the similarity score between two graph ordinals,
// used by diversity selection and backlink pruning to re-evaluate
// candidates against each other and against a newly inserted node.
type ScoreFunc func(a, b int32) float32

// DiversityProvider selects a degree-bounded, mutually diverse subset
// of scored candidates — the Vamana alpha-relaxed occlusion rule lives
// behind this interface so NeighborSet stays agnostic to which
// diversity heuristic is in effect.
type DiversityProvider interface {
	Select(candidates []Pair, maxDegree int, alpha float32, score ScoreFunc) []Pair
}

// NeighborSet is one node's adjacency list at one graph layer: a
// degree-bounded, score-sorted (descending) set of edges, safe for
// concurrent reads and single-writer mutation.
type NeighborSet struct {
	mu        sync.RWMutex
	maxDegree int
	pairs     []Pair
}

// NewNeighborSet creates an empty set bounded to maxDegree edges.
func NewNeighborSet(maxDegree int) *NeighborSet {
	return &NeighborSet{maxDegree: maxDegree}
}

// Snapshot returns a defensive copy of the current edges, sorted
// descending by score.
func (n *NeighborSet) Snapshot() []Pair {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Pair, len(n.pairs))
	copy(out, n.pairs)
	return out
}

// Len returns the current edge count.
func (n *NeighborSet) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.pairs)
}

// Replace installs pairs as the full neighbor set, sorting them
// descending by score and truncating to maxDegree. Used to install
// the result of a fresh diversity selection during a node's initial
// construction.
func (n *NeighborSet) Replace(pairs []Pair) {
	sorted := append([]Pair(nil), pairs...)
	sortDescending(sorted)
	if len(sorted) > n.maxDegree {
		sorted = sorted[:n.maxDegree]
	}
	n.mu.Lock()
	n.pairs = sorted
	n.mu.Unlock()
}

func sortDescending(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
}

// InsertDiverse inserts a candidate edge, re-running diversity
// selection over the existing set plus the candidate whenever the
// insert would exceed maxDegree. It reports whether the candidate
// survived selection.
func (n *NeighborSet) InsertDiverse(candidate Pair, provider DiversityProvider, alpha float32, score ScoreFunc) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, p := range n.pairs {
		if p.Ordinal == candidate.Ordinal {
			return false
		}
	}

	merged := append(append([]Pair(nil), n.pairs...), candidate)
	if len(merged) <= n.maxDegree {
		sortDescending(merged)
		n.pairs = merged
		return true
	}

	selected := provider.Select(merged, n.maxDegree, alpha, score)
	sortDescending(selected)
	n.pairs = selected
	for _, p := range selected {
		if p.Ordinal == candidate.Ordinal {
			return true
		}
	}
	return false
}

// DefaultBacklinkOverflow is the slack ratio a node's reverse-edge
// list is allowed to grow past maxDegree before a diversity-based
// prune is triggered, when a caller doesn't supply BuilderConfig's
// NeighborOverflow — the 1.125 (9/8) the builder always used before
// the ratio became configurable.
const DefaultBacklinkOverflow float32 = 9.0 / 8.0

// Backlink adds a reverse edge (this node gained a new neighbor that
// considers it a neighbor in turn). overflow is the degree-bound
// multiplier (≥ 1.0) the set may temporarily grow past before a
// diversity-based prune is triggered; values <= 1.0 are treated as
// DefaultBacklinkOverflow. If the set's size after insertion exceeds
// that slack, it is pruned back down to maxDegree via diversity
// selection; otherwise the raw edge is kept so that cheap backlinks
// during a busy build phase don't each pay pruning cost.
func (n *NeighborSet) Backlink(candidate Pair, provider DiversityProvider, alpha, overflow float32, score ScoreFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, p := range n.pairs {
		if p.Ordinal == candidate.Ordinal {
			return
		}
	}
	n.pairs = append(n.pairs, candidate)

	if overflow <= 1.0 {
		overflow = DefaultBacklinkOverflow
	}
	overflowDegree := int(float32(n.maxDegree) * overflow)
	if overflowDegree < n.maxDegree {
		overflowDegree = n.maxDegree
	}
	if len(n.pairs) <= overflowDegree {
		sortDescending(n.pairs)
		return
	}

	selected := provider.Select(n.pairs, n.maxDegree, alpha, score)
	sortDescending(selected)
	n.pairs = selected
}

// EnforceDegree truncates the set to its top maxDegree edges by score
// without re-running diversity selection. Builder.cleanup calls it as
// its final pass to bring every node back within its degree bound.
func (n *NeighborSet) EnforceDegree() {
	n.mu.Lock()
	defer n.mu.Unlock()
	sortDescending(n.pairs)
	if len(n.pairs) > n.maxDegree {
		n.pairs = n.pairs[:n.maxDegree]
	}
}

// RemoveOrdinals drops every edge pointing at one of dead, reporting
// the removed edges so the caller can feed them into
// ReplaceDeletedNeighbors as seed candidates.
func (n *NeighborSet) RemoveOrdinals(dead map[int32]bool) []Pair {
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.pairs[:0:0]
	var removed []Pair
	for _, p := range n.pairs {
		if dead[p.Ordinal] {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	n.pairs = kept
	return removed
}

// ReplaceDeletedNeighbors backfills edges removed by RemoveOrdinals
// with fresh candidates (typically the removed neighbors' own
// neighbors), re-running diversity selection so the repaired set obeys
// the same occlusion rule a freshly built set would.
func (n *NeighborSet) ReplaceDeletedNeighbors(replacements []Pair, provider DiversityProvider, alpha float32, score ScoreFunc) error {
	if provider == nil {
		return vamerr.New(vamerr.InvalidArgument, "diversity provider required to replace deleted neighbors")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	seen := make(map[int32]bool, len(n.pairs))
	merged := append([]Pair(nil), n.pairs...)
	for _, p := range merged {
		seen[p.Ordinal] = true
	}
	for _, p := range replacements {
		if seen[p.Ordinal] {
			continue
		}
		seen[p.Ordinal] = true
		merged = append(merged, p)
	}

	if len(merged) <= n.maxDegree {
		sortDescending(merged)
		n.pairs = merged
		return nil
	}
	selected := provider.Select(merged, n.maxDegree, alpha, score)
	sortDescending(selected)
	n.pairs = selected
	return nil
}
