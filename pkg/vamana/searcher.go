package vamana

import (
	"container/heap"
	"time"

	"github.com/vamanadb/vamana/internal/graph"
	"github.com/vamanadb/vamana/internal/vamerr"
	"github.com/vamanadb/vamana/pkg/observability"
)

// SearchResult is one scored hit, with the score under whatever
// metric the search was run with (higher is better).
type SearchResult struct {
	Ordinal int32
	Score   float32
}

// SearchStats reports how much work a search did, for diagnostics and
// tuning beam width.
type SearchStats struct {
	Visited            int
	Expanded           int
	ExpandedBaseLayer  int
	Reranked           int
}

// SearchConfig parameterizes one query.
type SearchConfig struct {
	K         int
	BeamWidth int
	// Filter, if set, excludes ordinals that don't satisfy it from the
	// result set (but they may still be traversed through).
	Filter func(ordinal int32) bool
	// Rerank, if set, is consulted after the approximate beam search
	// to recompute exact scores for the candidate pool before
	// truncating to K — the PQ-approximate-then-exact-rerank pattern.
	Rerank QueryScoreProvider
}

// Searcher runs queries against a view of a graph — either a
// snapshot-isolated ConcurrentView or, once the graph is immutable, a
// cheap FrozenView (see graph.Index.GetView).
type Searcher struct {
	view   graph.GraphView
	scorer QueryScoreProvider
	logger *observability.Logger
}

// NewSearcher binds a Searcher to a view of idx and a query-scoring
// provider (exact or PQ-approximate).
func NewSearcher(view graph.GraphView, scorer QueryScoreProvider) *Searcher {
	return &Searcher{view: view, scorer: scorer}
}

// NewSearcherWithLogger is NewSearcher plus a Logger that receives one
// LogOperation-style entry per Search call, tagged with the query's k,
// beam width, and the resulting visited/expanded counts.
func NewSearcherWithLogger(view graph.GraphView, scorer QueryScoreProvider, logger *observability.Logger) *Searcher {
	return &Searcher{view: view, scorer: scorer, logger: logger}
}

// Search runs one k-NN query.
func (s *Searcher) Search(query []float32, cfg SearchConfig) ([]SearchResult, SearchStats, error) {
	if s.logger == nil {
		return s.search(query, cfg)
	}

	start := time.Now()
	logger := s.logger.WithFields(map[string]interface{}{"k": cfg.K, "beam_width": cfg.BeamWidth})
	logger.Info("Starting operation: vamana.search")
	results, stats, err := s.search(query, cfg)
	fields := map[string]interface{}{
		"duration": time.Since(start),
		"visited":  stats.Visited,
		"expanded": stats.Expanded,
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.Error("Operation failed: vamana.search", fields)
	} else {
		logger.Info("Operation completed: vamana.search", fields)
	}
	return results, stats, err
}

func (s *Searcher) search(query []float32, cfg SearchConfig) ([]SearchResult, SearchStats, error) {
	entry, entryLevel, ok := s.view.Entry()
	if !ok {
		return nil, SearchStats{}, vamerr.New(vamerr.InvariantViolation, "search against an index with no entry node")
	}
	if cfg.BeamWidth < cfg.K {
		cfg.BeamWidth = cfg.K
	}
	if cfg.BeamWidth == 0 {
		cfg.BeamWidth = 64
	}

	scorer, err := s.scorer.NewQueryScorer(query)
	if err != nil {
		return nil, SearchStats{}, err
	}

	stats := SearchStats{}
	cur := entry
	curScore := scorer.Score(entry)
	stats.Visited++

	for l := entryLevel; l > 0; l-- {
		for {
			neighbors := s.view.Neighbors(cur, l)
			improved := false
			for _, p := range neighbors {
				stats.Visited++
				sc := scorer.Score(p.Ordinal)
				if sc > curScore {
					curScore = sc
					cur = p.Ordinal
					improved = true
				}
			}
			stats.Expanded++
			if !improved {
				break
			}
		}
	}

	candidates, baseStats := s.beamSearchBaseLayer(cur, curScore, scorer, cfg)
	stats.Visited += baseStats.Visited
	stats.Expanded += baseStats.Expanded
	stats.ExpandedBaseLayer = baseStats.ExpandedBaseLayer

	if cfg.Rerank != nil {
		rerankScorer, err := cfg.Rerank.NewQueryScorer(query)
		if err != nil {
			return nil, stats, err
		}
		for i := range candidates {
			candidates[i].Score = rerankScorer.Score(candidates[i].Ordinal)
			stats.Reranked++
		}
		sortResultsDescending(candidates)
	}

	if len(candidates) > cfg.K {
		candidates = candidates[:cfg.K]
	}
	return candidates, stats, nil
}

func (s *Searcher) beamSearchBaseLayer(entry int32, entryScore float32, scorer QueryScorer, cfg SearchConfig) ([]SearchResult, SearchStats) {
	stats := SearchStats{}
	visited := map[int32]bool{entry: true}

	frontier := &maxScoreHeap{{ordinal: entry, score: entryScore}}
	heap.Init(frontier)

	results := &minScoreHeap{}
	heap.Init(results)
	if cfg.Filter == nil || cfg.Filter(entry) {
		heap.Push(results, heapItem{ordinal: entry, score: entryScore})
	}
	stats.Visited++

	for frontier.Len() > 0 {
		current := heap.Pop(frontier).(heapItem)
		if results.Len() >= cfg.BeamWidth && current.score < results.Peek().score {
			break
		}
		stats.ExpandedBaseLayer++

		neighbors := s.view.Neighbors(current.ordinal, 0)
		for _, p := range neighbors {
			if visited[p.Ordinal] {
				continue
			}
			visited[p.Ordinal] = true
			stats.Visited++

			sc := scorer.Score(p.Ordinal)
			if results.Len() < cfg.BeamWidth || sc > results.Peek().score {
				heap.Push(frontier, heapItem{ordinal: p.Ordinal, score: sc})
				if cfg.Filter == nil || cfg.Filter(p.Ordinal) {
					heap.Push(results, heapItem{ordinal: p.Ordinal, score: sc})
					if results.Len() > cfg.BeamWidth {
						heap.Pop(results)
					}
				}
			}
		}
	}
	stats.Expanded = stats.ExpandedBaseLayer

	out := make([]SearchResult, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item := heap.Pop(results).(heapItem)
		out[i] = SearchResult{Ordinal: item.ordinal, Score: item.score}
	}
	return out, stats
}

func sortResultsDescending(results []SearchResult) {
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Score < results[j].Score {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
}
