package pq

import (
	"bytes"
	"math/rand"
	"testing"
)

func randVectors(r *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = r.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func TestTrainPerfectReconstructionOnExactCentroids(t *testing.T) {
	// property: if the training set is exactly K repeated points per
	// subspace cluster, Encode/Decode must reconstruct it exactly.
	r := rand.New(rand.NewSource(7))
	cfg := Config{Subspaces: 4, Clusters: 4, MaxIterations: 50, ConvergenceFraction: 0.0}
	dim := 8
	base := randVectors(r, cfg.Clusters, dim)
	var vectors [][]float32
	for rep := 0; rep < 20; rep++ {
		vectors = append(vectors, base...)
	}

	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	for _, v := range base {
		code, err := q.Encode(v)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		recon, err := q.Decode(code)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		for d := range v {
			if diff := v[d] - recon[d]; diff > 1e-2 || diff < -1e-2 {
				t.Errorf("reconstruction mismatch at dim %d: got %v want %v", d, recon[d], v[d])
			}
		}
	}
}

func TestTrainIterativeImprovement(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	cfg := Config{Subspaces: 2, Clusters: 8, MaxIterations: 1, ConvergenceFraction: 0}
	vectors := randVectors(r, 200, 16)

	q1, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	loss1, err := q1.ReconstructionLoss(vectors)
	if err != nil {
		t.Fatalf("loss: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := q1.Refine(vectors); err != nil {
			t.Fatalf("Refine: %v", err)
		}
	}
	loss2, err := q1.ReconstructionLoss(vectors)
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if loss2 > loss1+1e-3 {
		t.Errorf("refined loss %v should not exceed initial loss %v", loss2, loss1)
	}
}

func TestEncodeDecodeZeroVectorShortCircuits(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	cfg := Config{Subspaces: 2, Clusters: 4, MaxIterations: 5}
	vectors := randVectors(r, 50, 8)
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	zero := make([]float32, 8)
	code, err := q.Encode(zero)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, b := range code {
		if b != 0 {
			t.Errorf("zero vector should encode to all-zero code, got %v", code)
		}
	}
}

func TestSaveLoadRoundTripBitExact(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	cfg := Config{Subspaces: 4, Clusters: 8, MaxIterations: 5}
	vectors := randVectors(r, 100, 12)
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := q.SaveV0(&buf); err != nil {
		t.Fatalf("SaveV0: %v", err)
	}
	raw := append([]byte(nil), buf.Bytes()...)

	loaded, err := Load(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var buf2 bytes.Buffer
	if err := loaded.SaveV0(&buf2); err != nil {
		t.Fatalf("SaveV0 round trip: %v", err)
	}
	if !bytes.Equal(raw, buf2.Bytes()) {
		t.Errorf("version-0 round trip is not bit-exact")
	}
}

func TestGlobalCentroidSubtractedBeforeEncoding(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	dim := 8
	base := randVectors(r, 200, dim)
	offset := make([]float32, dim)
	for d := range offset {
		offset[d] = 100 + float32(d)
	}
	vectors := make([][]float32, len(base))
	for i, v := range base {
		shifted := make([]float32, dim)
		for d := range v {
			shifted[d] = v[d] + offset[d]
		}
		vectors[i] = shifted
	}

	cfg := Config{Subspaces: 2, Clusters: 8, MaxIterations: 25, ConvergenceFraction: 0.01, UseGlobalCentroid: true}
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if q.codebook.GlobalCentroid == nil {
		t.Fatal("expected a trained global centroid")
	}

	code, err := q.Encode(vectors[0])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	recon, err := q.Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for d := range vectors[0] {
		if diff := vectors[0][d] - recon[d]; diff > 5 || diff < -5 {
			t.Errorf("reconstruction at dim %d = %v, want near %v", d, recon[d], vectors[0][d])
		}
	}
}

func TestGlobalCentroidZeroVectorStillShortCircuits(t *testing.T) {
	r := rand.New(rand.NewSource(19))
	dim := 6
	vectors := randVectors(r, 100, dim)
	cfg := Config{Subspaces: 3, Clusters: 4, MaxIterations: 5, UseGlobalCentroid: true}
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	zero := make([]float32, dim)
	code, err := q.Encode(zero)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, b := range code {
		if b != 0 {
			t.Errorf("null input must encode to all-zero code even with a global centroid, got %v", code)
		}
	}
}

func TestSaveLoadRoundTripWithGlobalCentroid(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	cfg := Config{Subspaces: 4, Clusters: 8, MaxIterations: 5, UseGlobalCentroid: true}
	vectors := randVectors(r, 100, 12)
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := q.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.codebook.GlobalCentroid == nil {
		t.Fatal("expected the loaded codebook to carry a global centroid")
	}
	for d, x := range q.codebook.GlobalCentroid {
		if got := loaded.codebook.GlobalCentroid[d]; got != x {
			t.Errorf("global centroid[%d] = %v, want %v", d, got, x)
		}
	}

	var buf2 bytes.Buffer
	if err := loaded.Save(&buf2); err != nil {
		t.Fatalf("Save round trip: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Errorf("version-1 round trip with a global centroid is not bit-exact")
	}
}

func TestSymmetricTableRejectsCosine(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	cfg := Config{Subspaces: 2, Clusters: 4, MaxIterations: 5}
	vectors := randVectors(r, 50, 8)
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if _, err := q.ComputeSymmetricTable(MetricCosine); err == nil {
		t.Errorf("expected Unsupported error for cosine symmetric table")
	}
}

func TestDistanceTableMatchesDirectDistance(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	cfg := Config{Subspaces: 4, Clusters: 16, MaxIterations: 10}
	vectors := randVectors(r, 300, 16)
	q, err := Train(vectors, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	query := vectors[0]
	table, err := q.ComputeDistanceTable(query, MetricSquaredEuclidean)
	if err != nil {
		t.Fatalf("ComputeDistanceTable: %v", err)
	}

	for _, v := range vectors[1:10] {
		code, err := q.Encode(v)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		recon, err := q.Decode(code)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		var direct float32
		for d := range query {
			diff := query[d] - recon[d]
			direct += diff * diff
		}
		approx := table.Distance(code)
		if diff := approx - direct; diff > 1e-2 || diff < -1e-2 {
			t.Errorf("table distance %v does not match direct distance %v", approx, direct)
		}
	}
}

func TestPQLayoutInvariants(t *testing.T) {
	cases := []struct {
		n, m                                                       int
		wantFull, wantLast, wantFullChunks, wantTotal int
	}{
		{n: 1073741824, m: 2, wantFull: 1073741823, wantLast: 1, wantFullChunks: 1, wantTotal: 2},
		{n: 100, m: 1073741824, wantFull: 1, wantLast: 0, wantFullChunks: 100, wantTotal: 100},
	}
	for _, c := range cases {
		l, err := NewPQLayout(c.n, c.m)
		if err != nil {
			t.Fatalf("NewPQLayout(%d,%d): %v", c.n, c.m, err)
		}
		if l.FullChunkVectors != c.wantFull {
			t.Errorf("FullChunkVectors = %d, want %d", l.FullChunkVectors, c.wantFull)
		}
		if l.LastChunkVectors != c.wantLast {
			t.Errorf("LastChunkVectors = %d, want %d", l.LastChunkVectors, c.wantLast)
		}
		if l.FullSizeChunks != c.wantFullChunks {
			t.Errorf("FullSizeChunks = %d, want %d", l.FullSizeChunks, c.wantFullChunks)
		}
		if l.TotalChunks != c.wantTotal {
			t.Errorf("TotalChunks = %d, want %d", l.TotalChunks, c.wantTotal)
		}
		if l.FullChunkVectors <= 0 {
			t.Errorf("FullChunkVectors must be > 0")
		}
		if l.LastChunkVectors >= l.FullChunkVectors && l.LastChunkVectors != 0 {
			t.Errorf("LastChunkVectors %d must be < FullChunkVectors %d", l.LastChunkVectors, l.FullChunkVectors)
		}
		gotN := l.FullSizeChunks*l.FullChunkVectors + l.LastChunkVectors
		if gotN != c.n {
			t.Errorf("full*vectors+last = %d, want N=%d", gotN, c.n)
		}
	}

	if _, err := NewPQLayout(0, 4); err == nil {
		t.Errorf("expected error for N<=0")
	}
	if _, err := NewPQLayout(4, 0); err == nil {
		t.Errorf("expected error for M<=0")
	}
}

func TestStoreSetGetAcrossChunks(t *testing.T) {
	s, err := NewStore(5, 3)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for i := 0; i < 5; i++ {
		code := []byte{byte(i), byte(i + 1), byte(i + 2)}
		if err := s.Set(i, code); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		got, err := s.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		want := []byte{byte(i), byte(i + 1), byte(i + 2)}
		if !bytes.Equal(got, want) {
			t.Errorf("Get(%d) = %v, want %v", i, got, want)
		}
	}
	if _, err := s.Get(5); err == nil {
		t.Errorf("expected IndexOutOfBounds for ordinal past N")
	}
}
