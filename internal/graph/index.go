package graph

import (
	"sync"

	"github.com/vamanadb/vamana/internal/vamerr"
)

// Index is the layered proximity graph: a base layer every live node
// belongs to plus a geometrically shrinking set of upper layers, a
// soft-delete bitset, and a monotonically-advancing entry node.
type Index struct {
	mu sync.RWMutex

	maxDegree0     int
	maxDegreeUpper int

	layers []*GraphLayer // layers[0] is the base layer
	levels map[int32]int // ordinal -> highest level it participates in

	entryOrdinal int32
	entryLevel   int
	hasEntry     bool

	live       map[int32]bool
	deleted    map[int32]bool
	completion *CompletionTracker
	frozen     bool
}

// NewIndex creates an empty index. maxDegree0 bounds the base layer,
// maxDegreeUpper bounds every layer above it.
func NewIndex(maxDegree0, maxDegreeUpper int) *Index {
	return &Index{
		maxDegree0:     maxDegree0,
		maxDegreeUpper: maxDegreeUpper,
		layers:         []*GraphLayer{NewGraphLayer(maxDegree0)},
		levels:         make(map[int32]int),
		live:           make(map[int32]bool),
		deleted:        make(map[int32]bool),
		completion:     NewCompletionTracker(),
	}
}

// MaxDegree returns the degree bound for layer, which is maxDegree0
// at layer 0 and maxDegreeUpper above it.
func (idx *Index) MaxDegree(layer int) int {
	if layer == 0 {
		return idx.maxDegree0
	}
	return idx.maxDegreeUpper
}

// AddNode registers ordinal as participating in layers 0..level
// inclusive, allocating any missing upper layers, and marks it live.
// It does not install any edges — ConnectNode does that once the
// builder has computed them.
func (idx *Index) AddNode(ordinal int32, level int) {
	idx.mu.Lock()
	for len(idx.layers) <= level {
		idx.layers = append(idx.layers, NewGraphLayer(idx.maxDegreeUpper))
	}
	idx.levels[ordinal] = level
	idx.live[ordinal] = true
	idx.mu.Unlock()

	for l := 0; l <= level; l++ {
		idx.layers[l].Ensure(ordinal)
	}
}

// ConnectNode installs the diversity-selected neighbor set for
// ordinal at layer, replacing whatever was there before.
func (idx *Index) ConnectNode(ordinal int32, layer int, pairs []Pair) error {
	l, err := idx.layerAt(layer)
	if err != nil {
		return err
	}
	l.Ensure(ordinal).Replace(pairs)
	return nil
}

func (idx *Index) layerAt(layer int) (*GraphLayer, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if layer < 0 || layer >= len(idx.layers) {
		return nil, vamerr.New(vamerr.IndexOutOfBounds, "layer %d out of range [0,%d)", layer, len(idx.layers))
	}
	return idx.layers[layer], nil
}

// Layer returns the GraphLayer at the given level, or an error if it
// does not exist yet.
func (idx *Index) Layer(layer int) (*GraphLayer, error) { return idx.layerAt(layer) }

// NumLayers returns the current number of allocated layers.
func (idx *Index) NumLayers() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.layers)
}

// Level returns the highest layer ordinal participates in.
func (idx *Index) Level(ordinal int32) (int, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	l, ok := idx.levels[ordinal]
	return l, ok
}

// TryAdvanceEntry updates the entry node if candidate's level is
// strictly greater than the current entry's level (or there is no
// entry yet). The update is a compare-and-swap guarded by the index
// mutex, so the entry node only ever moves to a higher layer — it
// never regresses mid-build, which is what lets concurrent searchers
// read it without a dedicated lock.
func (idx *Index) TryAdvanceEntry(candidate int32, level int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.hasEntry || level > idx.entryLevel {
		idx.entryOrdinal = candidate
		idx.entryLevel = level
		idx.hasEntry = true
	}
}

// Entry returns the current entry node and its level.
func (idx *Index) Entry() (ordinal int32, level int, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entryOrdinal, idx.entryLevel, idx.hasEntry
}

// MarkComplete records that ordinal has finished the full insertion
// protocol (all levels connected and backlinked) and is safe for a
// concurrent searcher to traverse into.
func (idx *Index) MarkComplete(ordinal int32) { idx.completion.MarkComplete(ordinal) }

// Completion exposes the tracker for the searcher's view construction.
func (idx *Index) Completion() *CompletionTracker { return idx.completion }

// SetAllMutationsCompleted declares that no further inserts, deletes,
// or rewiring passes will touch idx — the builder's cleanup() calls
// this once every node's degree has been enforced. It unlocks the
// cheap FrozenView path and is required before Save will accept idx.
func (idx *Index) SetAllMutationsCompleted() {
	idx.mu.Lock()
	idx.frozen = true
	idx.mu.Unlock()
}

// AllMutationsCompleted reports whether SetAllMutationsCompleted has
// been called.
func (idx *Index) AllMutationsCompleted() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.frozen
}

// MarkDeleted soft-deletes ordinal: it stops being reported live and a
// subsequent ReplaceDeletedNeighbors pass is expected to remove
// dangling edges pointing at it, but its NeighborSet and vector data
// are not reclaimed immediately.
func (idx *Index) MarkDeleted(ordinal int32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.live, ordinal)
	idx.deleted[ordinal] = true
}

// IsLive reports whether ordinal is live (present and not soft-deleted).
func (idx *Index) IsLive(ordinal int32) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.live[ordinal]
}

// DeletedOrdinals returns a snapshot of every soft-deleted ordinal.
func (idx *Index) DeletedOrdinals() map[int32]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[int32]bool, len(idx.deleted))
	for k := range idx.deleted {
		out[k] = true
	}
	return out
}

// LiveOrdinals returns a snapshot of every currently live ordinal.
func (idx *Index) LiveOrdinals() []int32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]int32, 0, len(idx.live))
	for o := range idx.live {
		out = append(out, o)
	}
	return out
}

// Size returns the number of live ordinals.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.live)
}

// GraphView is a read handle over an Index that a Searcher traverses:
// the entry node, and each node's neighbors filtered to whatever
// notion of "reachable" the concrete view implements. GetView returns
// either a FrozenView or a ConcurrentView depending on whether the
// index's mutations have all completed.
type GraphView interface {
	Entry() (ordinal int32, level int, ok bool)
	Neighbors(ordinal int32, layer int) []Pair
	IsLive(ordinal int32) bool
}

// ConcurrentView is a snapshot-isolated read handle: the set of live
// ordinals, the entry node, and the completion clock are fixed at the
// moment GetView was called, so a long-running search sees a
// consistent graph even while other goroutines continue inserting or
// deleting nodes. Neighbor reads still go through the live GraphLayer
// (they are individually consistent via NeighborSet's own locking) but
// a neighbor is only visible if it had completed insertion strictly
// before the snapshot's clock — nodes installed concurrently with (or
// after) the snapshot are invisible, matching the clock/completed_at
// semantics the builder and searcher rely on for "only fully-installed
// nodes are reachable".
type ConcurrentView struct {
	idx          *Index
	liveSnapshot map[int32]bool
	clock        uint64
	entryOrdinal int32
	entryLevel   int
	hasEntry     bool
}

func (idx *Index) concurrentView() *ConcurrentView {
	idx.mu.RLock()
	live := make(map[int32]bool, len(idx.live))
	for k := range idx.live {
		live[k] = true
	}
	entry, level, ok := idx.entryOrdinal, idx.entryLevel, idx.hasEntry
	idx.mu.RUnlock()

	return &ConcurrentView{
		idx:          idx,
		liveSnapshot: live,
		clock:        idx.completion.Clock(),
		entryOrdinal: entry,
		entryLevel:   level,
		hasEntry:     ok,
	}
}

// IsLive reports whether ordinal was live as of the snapshot.
func (v *ConcurrentView) IsLive(ordinal int32) bool { return v.liveSnapshot[ordinal] }

// Entry returns the snapshot's entry node.
func (v *ConcurrentView) Entry() (int32, int, bool) { return v.entryOrdinal, v.entryLevel, v.hasEntry }

// Neighbors returns ordinal's neighbor pairs at layer, filtered to
// neighbors that were both live as of the snapshot and completed
// insertion strictly before the snapshot's clock.
func (v *ConcurrentView) Neighbors(ordinal int32, layer int) []Pair {
	l, err := v.idx.layerAt(layer)
	if err != nil {
		return nil
	}
	ns := l.Get(ordinal)
	if ns == nil {
		return nil
	}
	all := ns.Snapshot()
	out := all[:0:0]
	for _, p := range all {
		if !v.liveSnapshot[p.Ordinal] {
			continue
		}
		at, ok := v.idx.completion.CompletedAt(p.Ordinal)
		if !ok || at >= v.clock {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FrozenView is a cheap read handle valid only once
// SetAllMutationsCompleted has been called: every node is guaranteed
// fully installed, so it skips the snapshot and completion bookkeeping
// ConcurrentView needs and reads straight through to the live index.
type FrozenView struct {
	idx *Index
}

// IsLive reports whether ordinal is currently live.
func (v *FrozenView) IsLive(ordinal int32) bool { return v.idx.IsLive(ordinal) }

// Entry returns the index's current entry node.
func (v *FrozenView) Entry() (int32, int, bool) { return v.idx.Entry() }

// Neighbors returns ordinal's neighbor pairs at layer, filtered to
// currently live endpoints (no completion check: every node is
// guaranteed complete once SetAllMutationsCompleted has been called).
func (v *FrozenView) Neighbors(ordinal int32, layer int) []Pair {
	l, err := v.idx.layerAt(layer)
	if err != nil {
		return nil
	}
	ns := l.Get(ordinal)
	if ns == nil {
		return nil
	}
	all := ns.Snapshot()
	out := all[:0:0]
	for _, p := range all {
		if v.idx.IsLive(p.Ordinal) {
			out = append(out, p)
		}
	}
	return out
}

// GetView returns a FrozenView if SetAllMutationsCompleted has been
// called, and a snapshot-isolated ConcurrentView otherwise — the
// get_view() duality: a cheap view once the graph is immutable, a
// consistent view while it may still be changing underneath a reader.
func (idx *Index) GetView() GraphView {
	idx.mu.RLock()
	frozen := idx.frozen
	idx.mu.RUnlock()
	if frozen {
		return &FrozenView{idx: idx}
	}
	return idx.concurrentView()
}
