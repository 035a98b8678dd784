package pq

import (
	"github.com/vamanadb/vamana/internal/kernels"
	"github.com/vamanadb/vamana/internal/vamerr"
)

// DistanceTable holds, for one query, the precomputed per-subspace
// partial distances to every centroid (asymmetric distance
// computation). AssembleAndSum over a code's bytes then reconstructs
// the full approximate distance in O(M) instead of O(dim).
type DistanceTable struct {
	q      *Quantizer
	metric Metric
	// partials is stride-major: partials[m*K+c].
	partials []float32
	// magnitudes holds ||centroid||^2 per (m,c), used by the cosine path.
	magnitudes []float32
	queryNorm  float32
}

// ComputeDistanceTable builds a DistanceTable for query under metric.
// Cosine similarity is supported here because the query side is dense
// (not PQ-encoded): only the code-to-code symmetric cosine path is
// unsupported, see ComputeSymmetricTable.
func (q *Quantizer) ComputeDistanceTable(query []float32, metric Metric) (*DistanceTable, error) {
	if len(query) != q.codebook.Dim {
		return nil, vamerr.New(vamerr.InvalidArgument, "query dimension %d does not match trained dimension %d", len(query), q.codebook.Dim)
	}
	if q.codebook.GlobalCentroid != nil {
		centered := make([]float32, len(query))
		for d := range query {
			centered[d] = query[d] - q.codebook.GlobalCentroid[d]
		}
		query = centered
	}

	ops := kernels.Active()
	m, k := q.codebook.M, q.codebook.K
	partials := make([]float32, m*k)
	var magnitudes []float32
	if metric == MetricCosine {
		magnitudes = make([]float32, m*k)
	}

	for mi := 0; mi < m; mi++ {
		sub := q.codebook.subvector(query, mi)
		for c := 0; c < k; c++ {
			centroid := q.codebook.Centroids[mi][c]
			switch metric {
			case MetricSquaredEuclidean:
				partials[mi*k+c] = ops.SquareL2(sub, centroid)
			case MetricDotProduct:
				partials[mi*k+c] = ops.Dot(sub, centroid)
			case MetricCosine:
				partials[mi*k+c] = ops.Dot(sub, centroid)
				magnitudes[mi*k+c] = ops.Dot(centroid, centroid)
			default:
				return nil, vamerr.New(vamerr.InvalidArgument, "unknown metric %d", metric)
			}
		}
	}

	var queryNorm float32
	if metric == MetricCosine {
		queryNorm = ops.Dot(query, query)
	}

	return &DistanceTable{q: q, metric: metric, partials: partials, magnitudes: magnitudes, queryNorm: queryNorm}, nil
}

// Distance returns the approximate distance/similarity between the
// table's query and the vector code encodes.
func (t *DistanceTable) Distance(code []byte) float32 {
	ops := kernels.Active()
	if t.metric == MetricCosine {
		return ops.PQDecodedCosineSimilarity(code, 0, t.q.codebook.M, t.q.codebook.K, t.partials, t.magnitudes, t.queryNorm)
	}
	// partials is stride-major over K; AssembleAndSum expects
	// stride-major data indexed by subspace i at data[stride*i+code[i]].
	return ops.AssembleAndSum(t.partials, t.q.codebook.K, code)
}

// SymmetricTable holds the triangular centroid-to-centroid partial sum
// table used to score two PQ codes against each other directly,
// without reconstructing either vector (SDC).
type SymmetricTable struct {
	q        *Quantizer
	metric   Metric
	partials []float32 // per subspace: K*(K+1)/2 triangular entries
}

// ComputeSymmetricTable builds the code-to-code table for squared
// Euclidean or dot-product metrics. Cosine is rejected: a correct SDC
// cosine score needs each code's own reconstructed magnitude, which
// this table's per-subspace triangular layout has no slot for: it
// would have to carry an extra per-code normalization pass, at which
// point it is no longer a pure precomputed-table lookup. Compute
// cosine by decoding both codes and comparing directly instead.
func (q *Quantizer) ComputeSymmetricTable(metric Metric) (*SymmetricTable, error) {
	if metric == MetricCosine {
		return nil, vamerr.New(vamerr.Unsupported, "symmetric distance computation does not support cosine; decode and compare instead")
	}
	ops := kernels.Active()
	m, k := q.codebook.M, q.codebook.K
	b := k * (k + 1) / 2
	partials := make([]float32, m*b)
	tri := func(r, c int) int { return r*k - r*(r-1)/2 + (c - r) }

	for mi := 0; mi < m; mi++ {
		for r := 0; r < k; r++ {
			for c := r; c < k; c++ {
				a := q.codebook.Centroids[mi][r]
				bb := q.codebook.Centroids[mi][c]
				var v float32
				switch metric {
				case MetricSquaredEuclidean:
					v = ops.SquareL2(a, bb)
				case MetricDotProduct:
					v = ops.Dot(a, bb)
				}
				partials[mi*b+tri(r, c)] = v
			}
		}
	}
	return &SymmetricTable{q: q, metric: metric, partials: partials}, nil
}

// Distance returns the approximate distance/similarity between the
// two codes.
func (t *SymmetricTable) Distance(code1, code2 []byte) float32 {
	ops := kernels.Active()
	return ops.AssembleAndSumPQ(t.partials, t.q.codebook.M, code1, 0, code2, 0, t.q.codebook.K)
}

// ReconstructionLoss returns the mean squared reconstruction error of
// the trained codebook over vectors, used to verify Refine's
// monotonicity.
func (q *Quantizer) ReconstructionLoss(vectors [][]float32) (float32, error) {
	var total float64
	for _, v := range vectors {
		code, err := q.Encode(v)
		if err != nil {
			return 0, err
		}
		recon, err := q.Decode(code)
		if err != nil {
			return 0, err
		}
		var d float32
		for i := range v {
			e := v[i] - recon[i]
			d += e * e
		}
		total += float64(d)
	}
	return float32(total / float64(len(vectors))), nil
}
