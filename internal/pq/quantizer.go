package pq

import (
	"math/rand"

	"github.com/vamanadb/vamana/internal/kernels"
	"github.com/vamanadb/vamana/internal/vamerr"
)

// Quantizer is a trained product quantizer: a Codebook plus the
// configuration it was trained under.
type Quantizer struct {
	cfg      Config
	codebook *Codebook
}

// Dim, M, K expose the trained layout.
func (q *Quantizer) Dim() int { return q.codebook.Dim }
func (q *Quantizer) M() int   { return q.codebook.M }
func (q *Quantizer) K() int   { return q.codebook.K }

// Codebook returns the trained codebook, for persistence.
func (q *Quantizer) Codebook() *Codebook { return q.codebook }

// NewQuantizer wraps an already-trained codebook (used when loading a
// persisted quantizer).
func NewQuantizer(cfg Config, codebook *Codebook) *Quantizer {
	return &Quantizer{cfg: cfg, codebook: codebook}
}

// Train fits a new codebook to vectors. When cfg.AnisotropicThreshold
// is set, Lloyd iterations minimize the anisotropic loss instead of
// plain squared error; otherwise every subspace is trained
// independently under squared L2.
func Train(vectors [][]float32, cfg Config) (*Quantizer, error) {
	if err := validateTrainingSet(vectors, cfg.Subspaces, cfg.Clusters); err != nil {
		return nil, err
	}
	dim := len(vectors[0])
	codebook := newCodebook(dim, cfg.Subspaces, cfg.Clusters)

	trainSet := vectors
	if cfg.UseGlobalCentroid {
		codebook.GlobalCentroid = meanVector(vectors, dim)
		trainSet = centerVectors(vectors, codebook.GlobalCentroid)
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 25
	}
	convergence := cfg.ConvergenceFraction
	if convergence <= 0 {
		convergence = 0.01
	}
	r := rand.New(rand.NewSource(cfg.RandomSeed))

	for m := 0; m < cfg.Subspaces; m++ {
		sub := make([][]float32, len(trainSet))
		for i, v := range trainSet {
			sub[i] = codebook.subvector(v, m)
		}
		k := cfg.Clusters
		if k > len(sub) {
			k = len(sub)
		}
		centroids := kmeansPlusPlusSeed(sub, k, r)
		if cfg.AnisotropicThreshold != nil {
			centroids = lloydAnisotropic(sub, centroids, maxIter, convergence, *cfg.AnisotropicThreshold)
		} else {
			centroids = lloydUnweighted(sub, centroids, maxIter, convergence)
		}
		for c := 0; c < len(centroids); c++ {
			codebook.Centroids[m][c] = centroids[c]
		}
		// Pad unused cluster slots (k < cfg.Clusters) by repeating the
		// last trained centroid. validateTrainingSet rejects training
		// sets smaller than cfg.Clusters, so k equals cfg.Clusters here
		// and this loop does not run.
		for c := len(centroids); c < cfg.Clusters; c++ {
			codebook.Centroids[m][c] = centroids[len(centroids)-1]
		}
	}

	return &Quantizer{cfg: cfg, codebook: codebook}, nil
}

// Refine continues Lloyd iterations from the quantizer's current
// codebook rather than re-seeding, so reconstruction loss is
// guaranteed non-increasing across calls.
func (q *Quantizer) Refine(vectors [][]float32) error {
	if err := validateTrainingSet(vectors, q.codebook.M, q.codebook.K); err != nil {
		return err
	}
	maxIter := q.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 25
	}
	convergence := q.cfg.ConvergenceFraction
	if convergence <= 0 {
		convergence = 0.01
	}

	refineSet := vectors
	if q.codebook.GlobalCentroid != nil {
		refineSet = centerVectors(vectors, q.codebook.GlobalCentroid)
	}

	for m := 0; m < q.codebook.M; m++ {
		sub := make([][]float32, len(refineSet))
		for i, v := range refineSet {
			sub[i] = q.codebook.subvector(v, m)
		}
		centroids := append([][]float32(nil), q.codebook.Centroids[m]...)
		if q.cfg.AnisotropicThreshold != nil {
			centroids = lloydAnisotropic(sub, centroids, maxIter, convergence, *q.cfg.AnisotropicThreshold)
		} else {
			centroids = lloydUnweighted(sub, centroids, maxIter, convergence)
		}
		q.codebook.Centroids[m] = centroids
	}
	return nil
}

// Encode maps a full-dimension vector to its M-byte PQ code: one byte
// per subspace, the index of the nearest centroid. A null (all-zero)
// vector encodes to an all-zero code without running nearest-centroid
// search, matching the convention that the zero vector is its own
// exact reconstruction origin.
func (q *Quantizer) Encode(v []float32) ([]byte, error) {
	if len(v) != q.codebook.Dim {
		return nil, vamerr.New(vamerr.InvalidArgument, "vector dimension %d does not match trained dimension %d", len(v), q.codebook.Dim)
	}
	code := make([]byte, q.codebook.M)
	if isZero(v) {
		return code, nil
	}
	if q.codebook.GlobalCentroid != nil {
		centered := make([]float32, len(v))
		for d := range v {
			centered[d] = v[d] - q.codebook.GlobalCentroid[d]
		}
		v = centered
	}
	ops := kernels.Active()
	for m := 0; m < q.codebook.M; m++ {
		sub := q.codebook.subvector(v, m)
		best := 0
		bestDist := ops.SquareL2(sub, q.codebook.Centroids[m][0])
		for c := 1; c < q.codebook.K; c++ {
			d := ops.SquareL2(sub, q.codebook.Centroids[m][c])
			if d < bestDist {
				bestDist, best = d, c
			}
		}
		code[m] = byte(best)
	}
	return code, nil
}

// Decode reconstructs the approximate full-dimension vector a code
// represents, by concatenating each subspace's chosen centroid.
func (q *Quantizer) Decode(code []byte) ([]float32, error) {
	if len(code) != q.codebook.M {
		return nil, vamerr.New(vamerr.InvalidArgument, "code length %d does not match subspace count %d", len(code), q.codebook.M)
	}
	out := make([]float32, q.codebook.Dim)
	for m := 0; m < q.codebook.M; m++ {
		centroid := q.codebook.Centroids[m][code[m]]
		copy(out[q.codebook.SubspaceOffsets[m]:], centroid)
	}
	if q.codebook.GlobalCentroid != nil {
		for d := range out {
			out[d] += q.codebook.GlobalCentroid[d]
		}
	}
	return out, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
