package benchmarks

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/vamanadb/vamana/internal/pq"
)

// This file benchmarks the product quantizer's two Lloyd-iteration
// variants (unweighted squared-error vs. anisotropic loss) across a
// matrix of subspace/cluster configurations, and reports the
// resulting asymmetric-distance recall against exact k-NN.

const (
	benchVectorDim  = 768 // typical embedding dimension
	benchNumVectors = 2000
	benchNumQueries = 50
	benchK          = 10
)

var pqConfigs = []struct {
	name      string
	subspaces int
	clusters  int
}{
	{"PQ-8x64", 8, 64},
	{"PQ-16x256", 16, 256},
	{"PQ-32x256", 32, 256},
}

func TestQuantizationComparison(t *testing.T) {
	fmt.Println("\n=== PRODUCT QUANTIZATION TRAINING COMPARISON ===")

	database := generateRandomVectors(benchNumVectors, benchVectorDim)
	queries := generateRandomVectors(benchNumQueries, benchVectorDim)
	groundTruth := computeGroundTruth(queries, database, benchK)

	fmt.Printf("Dataset: %d vectors x %d dimensions\n", benchNumVectors, benchVectorDim)
	fmt.Printf("Queries: %d, k: %d\n\n", benchNumQueries, benchK)

	for _, cfg := range pqConfigs {
		t.Run(cfg.name+"/unweighted", func(t *testing.T) {
			runQuantizationBenchmark(t, cfg.name+" unweighted", cfg.subspaces, cfg.clusters, nil, database, queries, groundTruth)
		})
		t.Run(cfg.name+"/anisotropic", func(t *testing.T) {
			threshold := float32(0.2)
			runQuantizationBenchmark(t, cfg.name+" anisotropic", cfg.subspaces, cfg.clusters, &threshold, database, queries, groundTruth)
		})
	}
}

func runQuantizationBenchmark(t *testing.T, name string, subspaces, clusters int, anisotropicThreshold *float32, database, queries [][]float32, groundTruth [][]int) {
	cfg := pq.DefaultConfig(subspaces)
	cfg.Clusters = clusters
	cfg.AnisotropicThreshold = anisotropicThreshold

	trainStart := time.Now()
	quantizer, err := pq.Train(database, cfg)
	trainTime := time.Since(trainStart)
	if err != nil {
		t.Fatalf("Training failed: %v", err)
	}

	encodeStart := time.Now()
	encodedDB := make([][]byte, len(database))
	for i, vec := range database {
		code, err := quantizer.Encode(vec)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		encodedDB[i] = code
	}
	encodeTime := time.Since(encodeStart)

	loss, err := quantizer.ReconstructionLoss(database)
	if err != nil {
		t.Fatalf("ReconstructionLoss failed: %v", err)
	}

	originalBytes := benchVectorDim * 4
	compressedBytes := subspaces
	compressionRatio := float64(originalBytes) / float64(compressedBytes)

	searchStart := time.Now()
	var totalRecall float32
	for qi, query := range queries {
		table, err := quantizer.ComputeDistanceTable(query, pq.MetricSquaredEuclidean)
		if err != nil {
			t.Fatalf("ComputeDistanceTable failed: %v", err)
		}

		candidates := make([]candidate, len(encodedDB))
		for i, code := range encodedDB {
			candidates[i] = candidate{id: i, dist: table.Distance(code)}
		}
		quickSelect(candidates, benchK)

		results := make([]int, benchK)
		for i := 0; i < benchK; i++ {
			results[i] = candidates[i].id
		}
		totalRecall += computeRecall(groundTruth[qi], results)
	}
	searchTime := time.Since(searchStart)
	avgRecall := totalRecall / float32(benchNumQueries)
	qps := float64(benchNumQueries) / searchTime.Seconds()

	fmt.Printf("\n%s Results:\n", name)
	fmt.Printf("  Compression: %.1fx (%d bytes/vector, original %d)\n", compressionRatio, compressedBytes, originalBytes)
	fmt.Printf("  Training time: %v\n", trainTime)
	fmt.Printf("  Reconstruction loss: %.6f\n", loss)
	fmt.Printf("  Encoding time: %v (%.0f vec/sec)\n", encodeTime, float64(benchNumVectors)/encodeTime.Seconds())
	fmt.Printf("  Recall@%d: %.2f%%\n", benchK, avgRecall*100)
	fmt.Printf("  Search QPS: %.0f\n", qps)
}

// Helper functions

func generateRandomVectors(n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vectors[i] = make([]float32, dim)
		for j := 0; j < dim; j++ {
			vectors[i][j] = rand.Float32()
		}
	}
	return vectors
}

func computeGroundTruth(queries, database [][]float32, k int) [][]int {
	groundTruth := make([][]int, len(queries))
	for qi, query := range queries {
		candidates := make([]candidate, len(database))
		for i, vec := range database {
			candidates[i] = candidate{id: i, dist: squaredL2(query, vec)}
		}
		quickSelect(candidates, k)
		groundTruth[qi] = make([]int, k)
		for i := 0; i < k; i++ {
			groundTruth[qi][i] = candidates[i].id
		}
	}
	return groundTruth
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func computeRecall(groundTruth, results []int) float32 {
	gtSet := make(map[int]bool, len(groundTruth))
	for _, id := range groundTruth {
		gtSet[id] = true
	}
	var matches int
	for _, id := range results {
		if gtSet[id] {
			matches++
		}
	}
	return float32(matches) / float32(len(groundTruth))
}

type candidate struct {
	id   int
	dist float32
}

// quickSelect partially sorts candidates so the first k are the k
// smallest by distance, ascending.
func quickSelect(candidates []candidate, k int) {
	if k >= len(candidates) {
		for i := 0; i < len(candidates)-1; i++ {
			for j := i + 1; j < len(candidates); j++ {
				if candidates[j].dist < candidates[i].dist {
					candidates[i], candidates[j] = candidates[j], candidates[i]
				}
			}
		}
		return
	}
	for i := 0; i < k; i++ {
		minIdx := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].dist < candidates[minIdx].dist {
				minIdx = j
			}
		}
		if minIdx != i {
			candidates[i], candidates[minIdx] = candidates[minIdx], candidates[i]
		}
	}
}
