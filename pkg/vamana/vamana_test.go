package vamana

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/vamanadb/vamana/internal/graph"
	"github.com/vamanadb/vamana/pkg/observability"
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

func bruteForceTopK(vectors [][]float32, query []float32, k int) []int32 {
	type scored struct {
		ordinal int32
		score   float32
	}
	scores := make([]scored, len(vectors))
	ops := rawScoreOps()
	for i, v := range vectors {
		scores[i] = scored{int32(i), ops(query, v)}
	}
	for i := 1; i < len(scores); i++ {
		j := i
		for j > 0 && scores[j-1].score < scores[j].score {
			scores[j-1], scores[j] = scores[j], scores[j-1]
			j--
		}
	}
	if len(scores) > k {
		scores = scores[:k]
	}
	out := make([]int32, len(scores))
	for i, s := range scores {
		out[i] = s.ordinal
	}
	return out
}

func rawScoreOps() func(a, b []float32) float32 {
	return func(a, b []float32) float32 {
		var dot float32
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	}
}

func buildTestIndex(t *testing.T, vectors [][]float32) (*graph.Index, *Builder) {
	t.Helper()
	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	idx := graph.NewIndex(16, 8)
	builder := NewBuilder(BuilderConfig{MaxDegree: 16, MaxDegreeUpper: 8, BeamWidth: 32, Alpha: 1.2, RandomSeed: 1}, idx, scorer)

	ordinals := make([]int32, len(vectors))
	for i := range vectors {
		ordinals[i] = int32(i)
	}
	if err := builder.Build(ordinals); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx, builder
}

func TestBuildAndSearchFindsReasonableRecall(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	vectors := randVectors(r, 300, 16)
	idx, _ := buildTestIndex(t, vectors)

	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	view := idx.GetView()
	searcher := NewSearcher(view, scorer)

	query := vectors[0]
	want := bruteForceTopK(vectors, query, 10)

	results, _, err := searcher.Search(query, SearchConfig{K: 10, BeamWidth: 64})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	hit := 0
	wantSet := make(map[int32]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
	}
	for _, r := range results {
		if wantSet[r.Ordinal] {
			hit++
		}
	}
	if hit < 5 {
		t.Errorf("recall too low: %d/10 exact top-10 hits found, results=%v want=%v", hit, results, want)
	}
}

func TestSearchResultsAreSortedDescendingAndBoundedByK(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	vectors := randVectors(r, 200, 8)
	idx, _ := buildTestIndex(t, vectors)

	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	searcher := NewSearcher(idx.GetView(), scorer)

	results, _, err := searcher.Search(vectors[10], SearchConfig{K: 5, BeamWidth: 40})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending: %v", results)
		}
	}
}

func TestSearchFilterExcludesOrdinals(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	vectors := randVectors(r, 150, 8)
	idx, _ := buildTestIndex(t, vectors)

	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	searcher := NewSearcher(idx.GetView(), scorer)

	excluded := int32(3)
	results, _, err := searcher.Search(vectors[3], SearchConfig{
		K: 5, BeamWidth: 40,
		Filter: func(o int32) bool { return o != excluded },
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Ordinal == excluded {
			t.Errorf("filtered ordinal %d appeared in results", excluded)
		}
	}
}

func TestConcurrentViewIsolatesInFlightInserts(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	vectors := randVectors(r, 50, 8)
	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	idx := graph.NewIndex(16, 8)
	builder := NewBuilder(BuilderConfig{MaxDegree: 16, MaxDegreeUpper: 8, BeamWidth: 32, Alpha: 1.2, RandomSeed: 1}, idx, scorer)
	for i := range vectors {
		if err := builder.InsertNode(int32(i)); err != nil {
			t.Fatalf("InsertNode: %v", err)
		}
	}

	// Mutations are still in flight (cleanup/SetAllMutationsCompleted
	// hasn't run), so GetView must hand back a snapshot-isolated
	// ConcurrentView rather than a FrozenView.
	view := idx.GetView()
	if _, ok := view.(*graph.ConcurrentView); !ok {
		t.Fatalf("expected a ConcurrentView before SetAllMutationsCompleted, got %T", view)
	}

	extra := randVectors(r, 5, 8)
	allVectors := append(append([][]float32(nil), vectors...), extra...)
	newValues := NewSliceVectorValues(allVectors)
	newScorer := NewRandomAccessScoreProvider(newValues, MetricDotProduct)
	builder2 := NewBuilder(BuilderConfig{MaxDegree: 16, MaxDegreeUpper: 8, BeamWidth: 32, Alpha: 1.2, RandomSeed: 2}, idx, newScorer)
	for i := range extra {
		ordinal := int32(len(vectors) + i)
		if err := builder2.InsertNode(ordinal); err != nil {
			t.Fatalf("InsertNode: %v", err)
		}
	}

	// The view captured before the new inserts must not report the new
	// ordinals as live, even though the underlying index now has them.
	for i := range extra {
		ordinal := int32(len(vectors) + i)
		if view.IsLive(ordinal) {
			t.Errorf("snapshot view should not see ordinal %d inserted after the snapshot", ordinal)
		}
	}
}

func TestGetViewReturnsFrozenViewAfterCleanup(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	vectors := randVectors(r, 40, 8)
	idx, _ := buildTestIndex(t, vectors)

	if !idx.AllMutationsCompleted() {
		t.Fatal("Build should call SetAllMutationsCompleted via cleanup")
	}
	view := idx.GetView()
	if _, ok := view.(*graph.FrozenView); !ok {
		t.Fatalf("expected a FrozenView once mutations are complete, got %T", view)
	}
}

func TestSaveGraphRejectsIncompleteIndex(t *testing.T) {
	idx := graph.NewIndex(8, 4)
	idx.AddNode(0, 0)
	idx.TryAdvanceEntry(0, 0)
	idx.MarkComplete(0)

	var buf bytes.Buffer
	if err := SaveGraph(&buf, idx); err == nil {
		t.Fatal("expected SaveGraph to reject an index before SetAllMutationsCompleted")
	}

	idx.SetAllMutationsCompleted()
	if err := SaveGraph(&buf, idx); err != nil {
		t.Fatalf("SaveGraph after SetAllMutationsCompleted: %v", err)
	}
}

func TestGraphFormatRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	vectors := randVectors(r, 120, 8)
	idx, _ := buildTestIndex(t, vectors)

	var buf bytes.Buffer
	if err := SaveGraph(&buf, idx); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	loaded, err := LoadGraph(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	if loaded.Size() != idx.Size() {
		t.Errorf("loaded size %d != original size %d", loaded.Size(), idx.Size())
	}
	origEntry, origLevel, origOk := idx.Entry()
	loadEntry, loadLevel, loadOk := loaded.Entry()
	if origOk != loadOk || origEntry != loadEntry || origLevel != loadLevel {
		t.Errorf("entry mismatch: orig=(%d,%d,%v) loaded=(%d,%d,%v)", origEntry, origLevel, origOk, loadEntry, loadLevel, loadOk)
	}

	layer, err := idx.Layer(0)
	if err != nil {
		t.Fatalf("Layer: %v", err)
	}
	loadedLayer, err := loaded.Layer(0)
	if err != nil {
		t.Fatalf("loaded Layer: %v", err)
	}
	for _, ordinal := range layer.Ordinals() {
		want := layer.Get(ordinal).Snapshot()
		got := loadedLayer.Get(ordinal).Snapshot()
		if len(want) != len(got) {
			t.Errorf("ordinal %d: neighbor count mismatch %d vs %d", ordinal, len(want), len(got))
			continue
		}
		for i := range want {
			if want[i] != got[i] {
				t.Errorf("ordinal %d neighbor %d mismatch: want %v got %v", ordinal, i, want[i], got[i])
			}
		}
	}
}

func TestIncrementalBuildMergesNewNodes(t *testing.T) {
	r := rand.New(rand.NewSource(77))
	vectors := randVectors(r, 100, 8)
	idx, _ := buildTestIndex(t, vectors)

	extra := randVectors(r, 20, 8)
	all := append(append([][]float32(nil), vectors...), extra...)
	values := NewSliceVectorValues(all)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	builder := NewBuilder(BuilderConfig{MaxDegree: 16, MaxDegreeUpper: 8, BeamWidth: 32, Alpha: 1.2, RandomSeed: 3}, idx, scorer)

	newOrdinals := make([]int32, len(extra))
	for i := range extra {
		newOrdinals[i] = int32(len(vectors) + i)
	}
	if err := builder.BuildAndMergeNewNodes(newOrdinals); err != nil {
		t.Fatalf("BuildAndMergeNewNodes: %v", err)
	}
	if idx.Size() != len(vectors)+len(extra) {
		t.Errorf("expected size %d after merge, got %d", len(vectors)+len(extra), idx.Size())
	}
}

func TestRemappedScoreProviderUsesOrdinalMapping(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	backing := randVectors(r, 10, 4)
	values := NewSliceVectorValues(backing)
	// graph ordinal i maps to backing ordinal 9-i.
	remap := func(o int32) int32 { return 9 - o }
	provider := NewRemappedRandomAccessScoreProvider(values, MetricDotProduct, remap)

	direct := NewRandomAccessScoreProvider(values, MetricDotProduct)
	want := direct.Score(9, 0)
	got := provider.Score(0, 9)
	if want != got {
		t.Errorf("remapped score %v != direct score %v", got, want)
	}
}

func TestAddHierarchyFalseForcesFlatGraph(t *testing.T) {
	r := rand.New(rand.NewSource(55))
	vectors := randVectors(r, 60, 8)
	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	idx := graph.NewIndex(16, 8)
	flat := false
	builder := NewBuilder(BuilderConfig{MaxDegree: 16, MaxDegreeUpper: 8, BeamWidth: 32, Alpha: 1.2, RandomSeed: 9, AddHierarchy: &flat}, idx, scorer)

	ordinals := make([]int32, len(vectors))
	for i := range vectors {
		ordinals[i] = int32(i)
	}
	if err := builder.Build(ordinals); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.NumLayers() != 1 {
		t.Errorf("expected a single layer with AddHierarchy disabled, got %d", idx.NumLayers())
	}
	for _, o := range ordinals {
		if level, ok := idx.Level(o); !ok || level != 0 {
			t.Errorf("ordinal %d: expected level 0 with AddHierarchy disabled, got %d", o, level)
		}
	}
}

func TestCleanupEnforcesMaxDegreeWithNeighborOverflow(t *testing.T) {
	r := rand.New(rand.NewSource(64))
	vectors := randVectors(r, 150, 8)
	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	idx := graph.NewIndex(8, 8)
	builder := NewBuilder(BuilderConfig{MaxDegree: 8, BeamWidth: 32, Alpha: 1.2, RandomSeed: 11, NeighborOverflow: 1.5, AddHierarchy: boolPtr(false)}, idx, scorer)

	ordinals := make([]int32, len(vectors))
	for i := range vectors {
		ordinals[i] = int32(i)
	}
	if err := builder.Build(ordinals); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// cleanup()'s EnforceDegree pass must have truncated every node
	// back to MaxDegree regardless of how much overflow slack Backlink
	// admitted mid-build.
	layer, err := idx.Layer(0)
	if err != nil {
		t.Fatalf("Layer: %v", err)
	}
	for _, ordinal := range layer.Ordinals() {
		if n := layer.Get(ordinal).Len(); n > 8 {
			t.Errorf("ordinal %d: degree %d exceeds MaxDegree 8 after cleanup", ordinal, n)
		}
	}
}

func boolPtr(b bool) *bool { return &b }

func TestBuildLogsLifecycleWhenLoggerSet(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	vectors := randVectors(r, 30, 8)
	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)
	idx := graph.NewIndex(8, 4)

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.INFO, &buf)
	builder := NewBuilder(BuilderConfig{MaxDegree: 8, BeamWidth: 16, Alpha: 1.2, RandomSeed: 2, Logger: logger}, idx, scorer)

	ordinals := make([]int32, len(vectors))
	for i := range vectors {
		ordinals[i] = int32(i)
	}
	if err := builder.Build(ordinals); err != nil {
		t.Fatalf("Build: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "vamana.build_graph") {
		t.Errorf("expected build log entry mentioning vamana.build_graph, got: %s", out)
	}
	if !strings.Contains(out, "Operation completed") {
		t.Errorf("expected a completion log entry, got: %s", out)
	}
}

func TestSearchLogsLifecycleWhenLoggerSet(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	vectors := randVectors(r, 40, 8)
	idx, _ := buildTestIndex(t, vectors)

	values := NewSliceVectorValues(vectors)
	scorer := NewRandomAccessScoreProvider(values, MetricDotProduct)

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.INFO, &buf)
	searcher := NewSearcherWithLogger(idx.GetView(), scorer, logger)

	if _, _, err := searcher.Search(vectors[0], SearchConfig{K: 5, BeamWidth: 32}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "vamana.search") {
		t.Errorf("expected search log entry mentioning vamana.search, got: %s", out)
	}
	if !strings.Contains(out, "Operation completed") {
		t.Errorf("expected a completion log entry, got: %s", out)
	}
}
