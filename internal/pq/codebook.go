// Package pq implements product quantization: codebook training (both
// unweighted and anisotropic), encode/decode, asymmetric and symmetric
// distance scoring, and the chunked on-heap layout large encoded
// vector sets are stored in.
package pq

import (
	"github.com/vamanadb/vamana/internal/vamerr"
)

// Metric selects which similarity family a Quantizer's distance
// tables and reconstruction loss are computed under.
type Metric int

const (
	MetricSquaredEuclidean Metric = iota
	MetricDotProduct
	MetricCosine
)

// Config parameterizes training. AnisotropicThreshold is nil for
// plain (unweighted) quantization; set it to apply the anisotropic
// loss used for maximum-inner-product retrieval. UseGlobalCentroid
// mean-centers the training set before per-subspace clustering, which
// tightens clusters when the data has a large common-mode offset
// (e.g. embeddings that are not already zero-centered).
type Config struct {
	Subspaces            int
	Clusters             int
	MaxIterations        int
	ConvergenceFraction  float64
	AnisotropicThreshold *float32
	UseGlobalCentroid    bool
	RandomSeed           int64
}

// DefaultConfig returns the conventional PQ training parameters: 256
// clusters per subspace (one byte per code), 25 Lloyd iterations, and
// a 1% reassignment threshold for early convergence.
func DefaultConfig(subspaces int) Config {
	return Config{
		Subspaces:           subspaces,
		Clusters:            256,
		MaxIterations:       25,
		ConvergenceFraction: 0.01,
	}
}

// subspaceDims splits dim into m parts as evenly as possible, with any
// remainder distributed one unit at a time to the earliest subspaces
// so that no subspace differs from another by more than one dimension.
func subspaceDims(dim, m int) []int {
	base := dim / m
	rem := dim % m
	dims := make([]int, m)
	for i := range dims {
		dims[i] = base
		if i < rem {
			dims[i]++
		}
	}
	return dims
}

// Codebook holds the trained centroids for every subspace along with
// the subspace layout (sizes and offsets into the full dimension).
type Codebook struct {
	Dim             int
	M               int
	K               int
	SubspaceSizes   []int
	SubspaceOffsets []int
	// Centroids[m][k] is a SubspaceSizes[m]-length vector.
	Centroids [][][]float32
	// GlobalCentroid is the mean vector subtracted from every input
	// before per-subspace clustering/encoding, or nil if training ran
	// without mean-centering.
	GlobalCentroid []float32
}

// meanVector returns the elementwise mean of vectors, all of which
// must share dimension dim.
func meanVector(vectors [][]float32, dim int) []float32 {
	mean := make([]float32, dim)
	for _, v := range vectors {
		for d, x := range v {
			mean[d] += x
		}
	}
	n := float32(len(vectors))
	for d := range mean {
		mean[d] /= n
	}
	return mean
}

// centerVectors returns a copy of vectors with centroid subtracted
// elementwise from each.
func centerVectors(vectors [][]float32, centroid []float32) [][]float32 {
	centered := make([][]float32, len(vectors))
	for i, v := range vectors {
		c := make([]float32, len(v))
		for d := range v {
			c[d] = v[d] - centroid[d]
		}
		centered[i] = c
	}
	return centered
}

func newCodebook(dim, m, k int) *Codebook {
	sizes := subspaceDims(dim, m)
	offsets := make([]int, m)
	off := 0
	for i, s := range sizes {
		offsets[i] = off
		off += s
	}
	centroids := make([][][]float32, m)
	for i := range centroids {
		centroids[i] = make([][]float32, k)
	}
	return &Codebook{
		Dim: dim, M: m, K: k,
		SubspaceSizes: sizes, SubspaceOffsets: offsets,
		Centroids: centroids,
	}
}

func (c *Codebook) subvector(v []float32, m int) []float32 {
	off := c.SubspaceOffsets[m]
	return v[off : off+c.SubspaceSizes[m]]
}

func validateTrainingSet(vectors [][]float32, m, k int) error {
	if m <= 0 {
		return vamerr.New(vamerr.InvalidArgument, "subspace count must be positive, got %d", m)
	}
	if k <= 0 || k > 256 {
		return vamerr.New(vamerr.InvalidArgument, "cluster count must be in (0, 256], got %d", k)
	}
	if len(vectors) == 0 {
		return vamerr.New(vamerr.InvalidArgument, "training set must be non-empty")
	}
	dim := len(vectors[0])
	if dim < m {
		return vamerr.New(vamerr.InvalidArgument, "dimension %d smaller than subspace count %d", dim, m)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return vamerr.New(vamerr.InvalidArgument, "vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	if len(vectors) < k {
		return vamerr.New(vamerr.InvalidArgument, "training set size %d smaller than cluster count %d", len(vectors), k)
	}
	return nil
}
