// Package vamana implements the graph builder, searcher and score
// providers that turn internal/graph's layered proximity graph and
// internal/pq's product quantizer into a working approximate nearest
// neighbor index.
package vamana

import (
	"github.com/vamanadb/vamana/internal/kernels"
	"github.com/vamanadb/vamana/internal/pq"
	"github.com/vamanadb/vamana/internal/vamerr"
)

// Metric selects the similarity family a score provider scores under.
// Score always returns "higher is better" regardless of the metric's
// native comparison direction, so the graph package's diversity and
// search code never needs to know which metric is in effect.
type Metric int

const (
	MetricSquaredEuclidean Metric = iota
	MetricDotProduct
	MetricCosine
)

func rawToScore(metric Metric, raw float32) float32 {
	if metric == MetricSquaredEuclidean {
		return -raw
	}
	return raw
}

// VectorValues is random access into the full-precision vectors a
// graph ordinal denotes, the "RandomAccessVectorValues" role in a
// Vamana-style index.
type VectorValues interface {
	Dimension() int
	Size() int
	VectorAt(ordinal int32) []float32
}

// sliceVectorValues is the in-memory VectorValues used by tests and
// small indexes; a disk-backed or mmap-backed implementation can
// satisfy the same interface without the rest of the package changing.
type sliceVectorValues struct {
	vectors [][]float32
}

// NewSliceVectorValues wraps an in-memory vector slice as
// VectorValues. Ownership of vectors is NOT copied — callers must not
// mutate entries after handing them to an index.
func NewSliceVectorValues(vectors [][]float32) VectorValues {
	return &sliceVectorValues{vectors: vectors}
}

func (v *sliceVectorValues) Dimension() int {
	if len(v.vectors) == 0 {
		return 0
	}
	return len(v.vectors[0])
}
func (v *sliceVectorValues) Size() int                      { return len(v.vectors) }
func (v *sliceVectorValues) VectorAt(ordinal int32) []float32 { return v.vectors[ordinal] }

// BuildScoreProvider scores two graph ordinals against each other,
// the form diversity selection and backlink pruning need during
// construction.
type BuildScoreProvider interface {
	Score(a, b int32) float32
}

// QueryScorer scores graph ordinals against one fixed query, reusing
// whatever the provider precomputed for that query (a distance table,
// for the PQ-backed provider; nothing, for the exact provider).
type QueryScorer interface {
	Score(ordinal int32) float32
}

// QueryScoreProvider builds a QueryScorer bound to one query vector.
type QueryScoreProvider interface {
	NewQueryScorer(query []float32) (QueryScorer, error)
}

// RandomAccessScoreProvider scores directly against full-precision
// vectors via internal/kernels — exact, no approximation, used for the
// final rerank phase and for small indexes that never quantize.
type RandomAccessScoreProvider struct {
	values VectorValues
	metric Metric
	// graphToValues remaps a graph ordinal to its VectorValues
	// ordinal; nil means identity (graph ordinal == storage ordinal).
	graphToValues func(int32) int32
}

// NewRandomAccessScoreProvider scores directly off values.
func NewRandomAccessScoreProvider(values VectorValues, metric Metric) *RandomAccessScoreProvider {
	return &RandomAccessScoreProvider{values: values, metric: metric}
}

// NewRemappedRandomAccessScoreProvider is for when the graph's ordinal
// numbering differs from the backing VectorValues' ordinal numbering
// (e.g. the graph was built incrementally and reuses ordinals vacated
// by deletions while VectorValues is append-only).
func NewRemappedRandomAccessScoreProvider(values VectorValues, metric Metric, graphToValues func(int32) int32) *RandomAccessScoreProvider {
	return &RandomAccessScoreProvider{values: values, metric: metric, graphToValues: graphToValues}
}

func (p *RandomAccessScoreProvider) resolve(ordinal int32) []float32 {
	if p.graphToValues != nil {
		ordinal = p.graphToValues(ordinal)
	}
	return p.values.VectorAt(ordinal)
}

func (p *RandomAccessScoreProvider) rawScore(a, b []float32) float32 {
	ops := kernels.Active()
	switch p.metric {
	case MetricSquaredEuclidean:
		return ops.SquareL2(a, b)
	case MetricDotProduct:
		return ops.Dot(a, b)
	case MetricCosine:
		return ops.Cosine(a, b)
	default:
		return 0
	}
}

// Score implements BuildScoreProvider.
func (p *RandomAccessScoreProvider) Score(a, b int32) float32 {
	raw := p.rawScore(p.resolve(a), p.resolve(b))
	return rawToScore(p.metric, raw)
}

type randomAccessQueryScorer struct {
	p     *RandomAccessScoreProvider
	query []float32
}

func (s *randomAccessQueryScorer) Score(ordinal int32) float32 {
	raw := s.p.rawScore(s.query, s.p.resolve(ordinal))
	return rawToScore(s.p.metric, raw)
}

// NewQueryScorer implements QueryScoreProvider.
func (p *RandomAccessScoreProvider) NewQueryScorer(query []float32) (QueryScorer, error) {
	if len(query) != p.values.Dimension() {
		return nil, vamerr.New(vamerr.InvalidArgument, "query dimension %d does not match index dimension %d", len(query), p.values.Dimension())
	}
	return &randomAccessQueryScorer{p: p, query: query}, nil
}

// PQBuildScoreProvider scores off product-quantized codes: symmetric
// (code-to-code) distance computation for build-time diversity and
// backlink decisions, and a per-query asymmetric distance table for
// search-time candidate scoring. This is the approximate scorer a
// beam search runs its expansion phase against before an optional
// exact rerank using RandomAccessScoreProvider.
type PQBuildScoreProvider struct {
	quantizer *pq.Quantizer
	codes     *pq.Store
	metric    pq.Metric
	voMetric  Metric
	symTable  *pq.SymmetricTable
}

// NewPQBuildScoreProvider builds a provider over codes already encoded
// by quantizer. metric must not be cosine for the symmetric (Score)
// path — see internal/pq.Quantizer.ComputeSymmetricTable.
func NewPQBuildScoreProvider(quantizer *pq.Quantizer, codes *pq.Store, metric pq.Metric, voMetric Metric) (*PQBuildScoreProvider, error) {
	sym, err := quantizer.ComputeSymmetricTable(metric)
	if err != nil {
		return nil, err
	}
	return &PQBuildScoreProvider{quantizer: quantizer, codes: codes, metric: metric, voMetric: voMetric, symTable: sym}, nil
}

// Score implements BuildScoreProvider using the symmetric distance
// table (SDC).
func (p *PQBuildScoreProvider) Score(a, b int32) float32 {
	codeA, errA := p.codes.Get(int(a))
	codeB, errB := p.codes.Get(int(b))
	if errA != nil || errB != nil {
		return rawToScore(p.voMetric, 0)
	}
	raw := p.symTable.Distance(codeA, codeB)
	return rawToScore(p.voMetric, raw)
}

type pqQueryScorer struct {
	p     *PQBuildScoreProvider
	table *pq.DistanceTable
}

func (s *pqQueryScorer) Score(ordinal int32) float32 {
	code, err := s.p.codes.Get(int(ordinal))
	if err != nil {
		return rawToScore(s.p.voMetric, 0)
	}
	raw := s.table.Distance(code)
	return rawToScore(s.p.voMetric, raw)
}

// NewQueryScorer implements QueryScoreProvider, building an asymmetric
// distance table (ADC) for query once, reused across every Score call
// during that query's beam search.
func (p *PQBuildScoreProvider) NewQueryScorer(query []float32) (QueryScorer, error) {
	table, err := p.quantizer.ComputeDistanceTable(query, p.metric)
	if err != nil {
		return nil, err
	}
	return &pqQueryScorer{p: p, table: table}, nil
}
