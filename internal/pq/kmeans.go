package pq

import (
	"math/rand"

	"github.com/vamanadb/vamana/internal/kernels"
)

// kmeansPlusPlusSeed chooses k initial centroids from vectors using
// D^2-weighted sampling, same scheme as the product quantizer's
// original k-means++ seeding: the first centroid is uniform, every
// later one is drawn with probability proportional to its squared
// distance to the nearest centroid chosen so far.
func kmeansPlusPlusSeed(vectors [][]float32, k int, r *rand.Rand) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, k)

	first := r.Intn(len(vectors))
	centroids[0] = append([]float32(nil), vectors[first]...)

	ops := kernels.Active()
	for c := 1; c < k; c++ {
		dist2 := make([]float32, len(vectors))
		var total float32
		for i, v := range vectors {
			best := float32(-1)
			for j := 0; j < c; j++ {
				d := ops.SquareL2(v, centroids[j])
				if best < 0 || d < best {
					best = d
				}
			}
			dist2[i] = best
			total += best
		}

		if total <= 0 {
			idx := r.Intn(len(vectors))
			centroids[c] = append([]float32(nil), vectors[idx]...)
			continue
		}

		target := r.Float32() * total
		var cum float32
		chosen := len(vectors) - 1
		for i, d := range dist2 {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids[c] = append([]float32(nil), vectors[chosen]...)
	}

	_ = dim
	return centroids
}

// lloydUnweighted runs standard Lloyd iterations with squared-L2
// assignment. When a cluster empties, it is re-seeded from the point
// currently furthest from its own assigned centroid (rather than left
// stale), so no cluster silently stops receiving points.
func lloydUnweighted(vectors [][]float32, centroids [][]float32, maxIter int, convergenceFraction float64) [][]float32 {
	ops := kernels.Active()
	k := len(centroids)
	dim := len(vectors[0])
	assignment := make([]int, len(vectors))
	ownDist := make([]float32, len(vectors))

	for iter := 0; iter < maxIter; iter++ {
		changed := 0
		counts := make([]int, k)
		sums := make([][]float32, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}

		for i, v := range vectors {
			best := 0
			bestDist := ops.SquareL2(v, centroids[0])
			for c := 1; c < k; c++ {
				d := ops.SquareL2(v, centroids[c])
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if assignment[i] != best {
				changed++
			}
			assignment[i] = best
			ownDist[i] = bestDist
			counts[best]++
			ops.AddInPlace(sums[best], v)
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			ops.Scale(sums[c], 1/float32(counts[c]))
			centroids[c] = sums[c]
		}

		reseedEmptyClusters(vectors, centroids, counts, assignment, ownDist)

		if float64(changed)/float64(len(vectors)) < convergenceFraction {
			break
		}
	}

	return centroids
}

// reseedEmptyClusters moves the globally-furthest-from-its-centroid
// point into each empty cluster, one point per empty cluster, so that
// subsequent iterations have a chance to rebalance.
func reseedEmptyClusters(vectors [][]float32, centroids [][]float32, counts []int, assignment []int, ownDist []float32) {
	used := make(map[int]bool)
	for c, n := range counts {
		if n > 0 {
			continue
		}
		worst := -1
		var worstDist float32 = -1
		for i, d := range ownDist {
			if used[i] {
				continue
			}
			if d > worstDist {
				worstDist, worst = d, i
			}
		}
		if worst < 0 {
			continue
		}
		centroids[c] = append([]float32(nil), vectors[worst]...)
		assignment[worst] = c
		used[worst] = true
		counts[c] = 1
	}
}

// lloydAnisotropic runs Lloyd iterations under the anisotropic loss:
// reconstruction error is decomposed into a component parallel to the
// point's own direction and an orthogonal component, and the parallel
// component is down-weighted by (||p||^2 - T) / ||p||^2 once ||p||^2
// exceeds T (points below threshold are treated as orthogonal-only, so
// their magnitude error is not penalized). Centroid recomputation uses
// the plain mean of assigned points: an exact anisotropic update would
// solve a per-cluster weighted least-squares system, but the
// weighted-assignment step already captures the loss's direction
// sensitivity and a mean update keeps the iteration as cheap as the
// unweighted path.
func lloydAnisotropic(vectors [][]float32, centroids [][]float32, maxIter int, convergenceFraction float64, threshold float32) [][]float32 {
	ops := kernels.Active()
	k := len(centroids)
	dim := len(vectors[0])
	assignment := make([]int, len(vectors))
	ownDist := make([]float32, len(vectors))

	weightedDist := func(p, c []float32) float32 {
		normSq := ops.Dot(p, p)
		e := ops.Sub(p, c)
		if normSq <= 0 {
			return ops.Dot(e, e)
		}
		parallelScalar := ops.Dot(e, p) / normSq
		var parallel, orth float32
		for d := 0; d < dim; d++ {
			pe := parallelScalar * p[d]
			parallel += pe * pe
			oe := e[d] - pe
			orth += oe * oe
		}
		wPar := float32(0)
		if normSq > threshold {
			wPar = (normSq - threshold) / normSq
		}
		return wPar*parallel + orth
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := 0
		counts := make([]int, k)
		sums := make([][]float32, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}

		for i, v := range vectors {
			best := 0
			bestDist := weightedDist(v, centroids[0])
			for c := 1; c < k; c++ {
				d := weightedDist(v, centroids[c])
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if assignment[i] != best {
				changed++
			}
			assignment[i] = best
			ownDist[i] = bestDist
			counts[best]++
			ops.AddInPlace(sums[best], v)
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			ops.Scale(sums[c], 1/float32(counts[c]))
			centroids[c] = sums[c]
		}

		reseedEmptyClusters(vectors, centroids, counts, assignment, ownDist)

		if float64(changed)/float64(len(vectors)) < convergenceFraction {
			break
		}
	}

	return centroids
}
