package vamana

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/vamanadb/vamana/internal/graph"
	"github.com/vamanadb/vamana/internal/vamerr"
	"github.com/vamanadb/vamana/pkg/observability"
)

// BuilderConfig parameterizes graph construction.
type BuilderConfig struct {
	// MaxDegree bounds the base layer (layer 0).
	MaxDegree int
	// MaxDegreeUpper bounds every layer above 0; defaults to MaxDegree.
	MaxDegreeUpper int
	// BeamWidth is the candidate list size used while inserting
	// (commonly called L or efConstruction).
	BeamWidth int
	// Alpha relaxes the diversity occlusion rule; 1.0 is strict RNG,
	// values above 1 admit more long-range edges.
	Alpha float32
	// NeighborOverflow is the slack ratio (>= 1.0) a node's
	// reverse-edge list may temporarily grow past MaxDegree/
	// MaxDegreeUpper before a diversity-based prune is triggered.
	// Values <= 1.0, including zero, select
	// graph.DefaultBacklinkOverflow (1.125).
	NeighborOverflow float32
	// AddHierarchy enables multi-layer level sampling. nil and true
	// both mean enabled (the default); an explicit false forces every
	// node to be inserted at layer 0 only, producing a flat,
	// single-layer graph.
	AddHierarchy *bool
	// RandomSeed seeds level assignment.
	RandomSeed int64
	// Parallelism bounds the number of goroutines Build uses; 0 or 1
	// means sequential.
	Parallelism int
	// Logger receives build lifecycle events (Build/BuildAndMergeNewNodes
	// start, completion, duration, node count) via LogOperation. nil
	// means no logging.
	Logger *observability.Logger
}

// normalize fills in defaults for zero-valued fields.
func (c *BuilderConfig) normalize() {
	if c.MaxDegreeUpper == 0 {
		c.MaxDegreeUpper = c.MaxDegree
	}
	if c.BeamWidth == 0 {
		c.BeamWidth = 64
	}
	if c.Alpha == 0 {
		c.Alpha = 1.2
	}
	if c.NeighborOverflow <= 1.0 {
		c.NeighborOverflow = graph.DefaultBacklinkOverflow
	}
	if c.Parallelism == 0 {
		c.Parallelism = 1
	}
}

// Builder inserts vectors into a layered graph.Index one at a time
// (or concurrently via Build), computing each node's random level,
// descending from the current entry node, running a beam search per
// layer, selecting diverse neighbors, and backlinking.
type Builder struct {
	cfg       BuilderConfig
	idx       *graph.Index
	scorer    BuildScoreProvider
	diversity graph.DiversityProvider

	levelMu sync.Mutex
	rng     *rand.Rand
	ml      float64
}

// NewBuilder creates a Builder over idx (which must already be sized
// appropriately) using scorer for all diversity and candidate scoring
// during construction.
func NewBuilder(cfg BuilderConfig, idx *graph.Index, scorer BuildScoreProvider) *Builder {
	cfg.normalize()
	m := cfg.MaxDegree
	if m < 2 {
		m = 2
	}
	return &Builder{
		cfg:       cfg,
		idx:       idx,
		scorer:    scorer,
		diversity: graph.VamanaDiversityProvider{},
		rng:       rand.New(rand.NewSource(cfg.RandomSeed)),
		ml:        1.0 / math.Log(float64(m)),
	}
}

func (b *Builder) randomLevel() int {
	if b.cfg.AddHierarchy != nil && !*b.cfg.AddHierarchy {
		return 0
	}
	b.levelMu.Lock()
	r := b.rng.Float64()
	b.levelMu.Unlock()
	if r <= 0 {
		r = 1e-12
	}
	return int(math.Floor(-math.Log(r) * b.ml))
}

func (b *Builder) scoreFunc() graph.ScoreFunc {
	return func(a, c int32) float32 { return b.scorer.Score(a, c) }
}

// InsertNode runs the full insertion protocol for ordinal: level
// sampling, entry descent, per-layer beam search, diversity selection,
// install, and backlink. The caller must have already made ordinal's
// vector/PQ code available to the BuildScoreProvider before calling
// this (InsertNode only manipulates graph structure).
func (b *Builder) InsertNode(ordinal int32) error {
	level := b.randomLevel()
	b.idx.AddNode(ordinal, level)

	entry, entryLevel, ok := b.idx.Entry()
	if !ok {
		b.idx.TryAdvanceEntry(ordinal, level)
		b.idx.MarkComplete(ordinal)
		return nil
	}

	cur := entry
	for l := entryLevel; l > level; l-- {
		cur = b.greedyDescend(cur, l, ordinal)
	}

	top := level
	if entryLevel < top {
		top = entryLevel
	}
	for l := top; l >= 0; l-- {
		candidates, err := b.beamSearchLayer(l, cur, ordinal, b.cfg.BeamWidth)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			continue
		}
		cur = candidates[0].Ordinal

		maxDegree := b.idx.MaxDegree(l)
		selected := b.diversity.Select(candidates, maxDegree, b.cfg.Alpha, b.scoreFunc())
		if err := b.idx.ConnectNode(ordinal, l, selected); err != nil {
			return err
		}

		layer, err := b.idx.Layer(l)
		if err != nil {
			return err
		}
		for _, nb := range selected {
			reciprocalScore := b.scorer.Score(nb.Ordinal, ordinal)
			layer.Ensure(nb.Ordinal).Backlink(graph.Pair{Ordinal: ordinal, Score: reciprocalScore}, b.diversity, b.cfg.Alpha, b.cfg.NeighborOverflow, b.scoreFunc())
		}
	}

	b.idx.TryAdvanceEntry(ordinal, level)
	b.idx.MarkComplete(ordinal)
	return nil
}

// greedyDescend walks layer l from cur towards ordinal, one hop at a
// time, stopping when no neighbor scores better than the current
// node — a beam-width-1 search used above the node's own top layer.
func (b *Builder) greedyDescend(cur int32, l int, ordinal int32) int32 {
	layer, err := b.idx.Layer(l)
	if err != nil {
		return cur
	}
	best := cur
	bestScore := b.scorer.Score(ordinal, cur)
	for {
		ns := layer.Get(best)
		if ns == nil {
			return best
		}
		improved := false
		for _, p := range ns.Snapshot() {
			s := b.scorer.Score(ordinal, p.Ordinal)
			if s > bestScore {
				bestScore = s
				best = p.Ordinal
				improved = true
			}
		}
		if !improved {
			return best
		}
	}
}

// beamSearchLayer runs a best-first search of width beamWidth over
// layer l, starting from entry, scoring every candidate against
// target. Returned candidates are sorted descending by score.
func (b *Builder) beamSearchLayer(l int, entry, target int32, beamWidth int) ([]graph.Pair, error) {
	layer, err := b.idx.Layer(l)
	if err != nil {
		return nil, err
	}

	visited := map[int32]bool{entry: true}
	entryScore := b.scorer.Score(target, entry)

	frontier := &maxScoreHeap{{ordinal: entry, score: entryScore}}
	results := &minScoreHeap{{ordinal: entry, score: entryScore}}
	heap.Init(frontier)
	heap.Init(results)

	for frontier.Len() > 0 {
		current := heap.Pop(frontier).(heapItem)
		if results.Len() >= beamWidth && current.score < results.Peek().score {
			break
		}

		ns := layer.Get(current.ordinal)
		if ns == nil {
			continue
		}
		for _, p := range ns.Snapshot() {
			if visited[p.Ordinal] {
				continue
			}
			visited[p.Ordinal] = true
			s := b.scorer.Score(target, p.Ordinal)
			if results.Len() < beamWidth || s > results.Peek().score {
				heap.Push(frontier, heapItem{ordinal: p.Ordinal, score: s})
				heap.Push(results, heapItem{ordinal: p.Ordinal, score: s})
				if results.Len() > beamWidth {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]graph.Pair, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item := heap.Pop(results).(heapItem)
		out[i] = graph.Pair{Ordinal: item.ordinal, Score: item.score}
	}
	return out, nil
}

// Build inserts every ordinal in order, using up to cfg.Parallelism
// worker goroutines. Because each InsertNode call reads and mutates
// shared graph state (entry node, neighbor sets) through graph.Index's
// own locking, concurrent workers interleave safely, but level
// sampling order (and hence the resulting graph shape) is not fully
// deterministic across different Parallelism settings.
func (b *Builder) Build(ordinals []int32) error {
	return b.logOp("build_graph", len(ordinals), func() error {
		if b.cfg.Parallelism <= 1 || len(ordinals) < 2 {
			for _, o := range ordinals {
				if err := b.InsertNode(o); err != nil {
					return err
				}
			}
			return b.cleanup()
		}

		jobs := make(chan int32)
		errs := make(chan error, b.cfg.Parallelism)
		var wg sync.WaitGroup
		for w := 0; w < b.cfg.Parallelism; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for o := range jobs {
					if err := b.InsertNode(o); err != nil {
						select {
						case errs <- err:
						default:
						}
					}
				}
			}()
		}
		for _, o := range ordinals {
			jobs <- o
		}
		close(jobs)
		wg.Wait()

		select {
		case err := <-errs:
			return err
		default:
			return b.cleanup()
		}
	})
}

// logOp runs fn under cfg.Logger.LogOperation, tagging the log entry
// with the node count being inserted. A nil Logger skips straight to
// fn — logging is opt-in and costs nothing when unset.
func (b *Builder) logOp(operation string, nodeCount int, fn func() error) error {
	if b.cfg.Logger == nil {
		return fn()
	}
	logger := b.cfg.Logger.WithFields(map[string]interface{}{"nodes": nodeCount})
	return logger.LogOperation(fmt.Sprintf("vamana.%s", operation), fn)
}

// cleanup enforces degree across every node at every layer — a final
// truncation pass that catches any list still sitting in the overflow
// window after its last backlink — and then declares the index's
// mutations complete, unlocking the cheap FrozenView read path for
// searchers and making the graph eligible for SaveGraph.
func (b *Builder) cleanup() error {
	for l := 0; l < b.idx.NumLayers(); l++ {
		layer, err := b.idx.Layer(l)
		if err != nil {
			return err
		}
		for _, ordinal := range layer.Ordinals() {
			if ns := layer.Get(ordinal); ns != nil {
				ns.EnforceDegree()
			}
		}
	}
	b.idx.SetAllMutationsCompleted()
	return nil
}

// BuildAndMergeNewNodes inserts newOrdinals into an index that already
// has a complete base graph, reusing the existing entry node and graph
// structure instead of rebuilding from scratch — the incremental-build
// path.
func (b *Builder) BuildAndMergeNewNodes(newOrdinals []int32) error {
	if _, _, ok := b.idx.Entry(); !ok {
		return vamerr.New(vamerr.InvariantViolation, "cannot merge into an index with no existing entry node")
	}
	return b.logOp("merge_new_nodes", len(newOrdinals), func() error {
		return b.Build(newOrdinals)
	})
}

// MarkDeleted soft-deletes ordinal from the underlying index.
func (b *Builder) MarkDeleted(ordinal int32) { b.idx.MarkDeleted(ordinal) }

// ReplaceDeletedNeighbors repairs every live node's neighbor lists at
// every layer, removing edges to soft-deleted ordinals and backfilling
// with the deleted nodes' own surviving neighbors so graph
// connectivity degrades gracefully as deletions accumulate.
func (b *Builder) ReplaceDeletedNeighbors() error {
	dead := b.idx.DeletedOrdinals()
	if len(dead) == 0 {
		return nil
	}

	for l := 0; l < b.idx.NumLayers(); l++ {
		layer, err := b.idx.Layer(l)
		if err != nil {
			return err
		}
		for _, ordinal := range layer.Ordinals() {
			if dead[ordinal] {
				continue
			}
			ns := layer.Get(ordinal)
			if ns == nil {
				continue
			}
			removed := ns.RemoveOrdinals(dead)
			if len(removed) == 0 {
				continue
			}
			var replacements []graph.Pair
			for _, r := range removed {
				deadNS := layer.Get(r.Ordinal)
				if deadNS == nil {
					continue
				}
				for _, rp := range deadNS.Snapshot() {
					if rp.Ordinal == ordinal || dead[rp.Ordinal] {
						continue
					}
					replacements = append(replacements, graph.Pair{Ordinal: rp.Ordinal, Score: b.scorer.Score(ordinal, rp.Ordinal)})
				}
			}
			if err := ns.ReplaceDeletedNeighbors(replacements, b.diversity, b.cfg.Alpha, b.scoreFunc()); err != nil {
				return err
			}
		}
	}
	return nil
}
