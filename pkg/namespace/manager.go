// Package namespace multiplexes several independent vamana graph
// indexes under one process, one per namespace, each with its own
// quota, rate limit and query cache. It is how a single deployment of
// this library serves more than one tenant's vectors without any
// cross-namespace search or storage leaking between them.
package namespace

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vamanadb/vamana/internal/graph"
	"github.com/vamanadb/vamana/internal/pq"
	"github.com/vamanadb/vamana/internal/vamerr"
	"github.com/vamanadb/vamana/pkg/vamana"
)

// Quota bounds the resources a single namespace may consume.
type Quota struct {
	MaxVectors    int64   // <=0 means unlimited
	MaxDimensions int     // <=0 means unchecked
	RateLimitQPS  float64 // <=0 means unlimited; token-bucket rate
	Burst         int     // token bucket burst size, defaults to RateLimitQPS
}

// DefaultQuota returns a generous default quota.
func DefaultQuota() Quota {
	return Quota{
		MaxVectors:    1_000_000,
		MaxDimensions: 2048,
		RateLimitQPS:  1000,
		Burst:         200,
	}
}

// UnlimitedQuota returns a quota with every bound disabled.
func UnlimitedQuota() Quota {
	return Quota{MaxVectors: -1, MaxDimensions: -1, RateLimitQPS: -1}
}

// Usage tracks a namespace's current resource consumption.
type Usage struct {
	VectorCount int64
	QueryCount  int64
}

// Manager owns every namespace in a process: creation, lookup,
// deletion and quota updates. It is the multi-namespace analogue of a
// single pkg/vamana.Builder+Searcher pair.
type Manager struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

// NewManager creates an empty namespace manager.
func NewManager() *Manager {
	return &Manager{namespaces: make(map[string]*Namespace)}
}

// CreateNamespace allocates a new namespace with the given dimension,
// similarity metric, graph builder configuration, and quota.
func (m *Manager) CreateNamespace(name string, dim int, metric vamana.Metric, builderCfg vamana.BuilderConfig, quota Quota) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.namespaces[name]; exists {
		return nil, vamerr.New(vamerr.InvalidArgument, "namespace %q already exists", name)
	}
	ns := newNamespace(name, dim, metric, builderCfg, quota)
	m.namespaces[name] = ns
	return ns, nil
}

// GetNamespace returns an existing namespace.
func (m *Manager) GetNamespace(name string) (*Namespace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.namespaces[name]
	if !ok {
		return nil, vamerr.New(vamerr.InvalidArgument, "namespace %q not found", name)
	}
	return ns, nil
}

// GetOrCreateNamespace returns an existing namespace, or creates one
// with the given defaults if it does not exist yet.
func (m *Manager) GetOrCreateNamespace(name string, dim int, metric vamana.Metric, builderCfg vamana.BuilderConfig, quota Quota) (*Namespace, error) {
	m.mu.Lock()
	if ns, ok := m.namespaces[name]; ok {
		m.mu.Unlock()
		return ns, nil
	}
	ns := newNamespace(name, dim, metric, builderCfg, quota)
	m.namespaces[name] = ns
	m.mu.Unlock()
	return ns, nil
}

// DeleteNamespace removes a namespace and everything in it.
func (m *Manager) DeleteNamespace(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.namespaces[name]; !exists {
		return vamerr.New(vamerr.InvalidArgument, "namespace %q not found", name)
	}
	delete(m.namespaces, name)
	return nil
}

// ListNamespaces returns every namespace name currently registered.
func (m *Manager) ListNamespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		out = append(out, name)
	}
	return out
}

// growableVectors is an append-only, mutex-guarded vamana.VectorValues
// backing store: the VectorSource role of spec §3, generalized to
// grow as InsertNode calls hand it new ordinals instead of being
// fixed-size up front the way a disk-backed VectorSource would be.
type growableVectors struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

func newGrowableVectors(dim int) *growableVectors {
	return &growableVectors{dim: dim}
}

func (v *growableVectors) Dimension() int { return v.dim }

func (v *growableVectors) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

func (v *growableVectors) VectorAt(ordinal int32) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vectors[ordinal]
}

// Append stores vec (not copied — callers must not mutate it
// afterwards) and returns its newly assigned ordinal.
func (v *growableVectors) Append(vec []float32) int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	ordinal := int32(len(v.vectors))
	v.vectors = append(v.vectors, vec)
	return ordinal
}

func (v *growableVectors) snapshot() [][]float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([][]float32, len(v.vectors))
	copy(out, v.vectors)
	return out
}

// Namespace is one independent graph index plus its vector storage,
// optional PQ compression, quota enforcement and query cache — the
// unit this library calls a tenant elsewhere in the ecosystem it was
// grounded on.
type Namespace struct {
	Name   string
	dim    int
	metric vamana.Metric

	createdAt time.Time

	mu         sync.RWMutex
	vectors    *growableVectors
	metadata   map[int32]map[string]interface{}
	idx        *graph.Index
	builderCfg vamana.BuilderConfig
	builder    *vamana.Builder
	build      vamana.BuildScoreProvider
	rerank     vamana.QueryScoreProvider

	quantizer *pq.Quantizer
	codes     *pq.Store

	quota   Quota
	usage   Usage
	usageMu sync.Mutex
	limiter *rate.Limiter

	cache *QueryCache
}

func newNamespace(name string, dim int, metric vamana.Metric, builderCfg vamana.BuilderConfig, quota Quota) *Namespace {
	idx := graph.NewIndex(builderCfg.MaxDegree, builderCfg.MaxDegreeUpper)
	vectors := newGrowableVectors(dim)
	exact := vamana.NewRandomAccessScoreProvider(vectors, metric)

	var limiter *rate.Limiter
	if quota.RateLimitQPS > 0 {
		burst := quota.Burst
		if burst <= 0 {
			burst = int(quota.RateLimitQPS)
		}
		limiter = rate.NewLimiter(rate.Limit(quota.RateLimitQPS), burst)
	}

	ns := &Namespace{
		Name:       name,
		dim:        dim,
		metric:     metric,
		createdAt:  time.Now(),
		vectors:    vectors,
		metadata:   make(map[int32]map[string]interface{}),
		idx:        idx,
		builderCfg: builderCfg,
		build:      exact,
		rerank:     exact,
		quota:      quota,
		limiter:    limiter,
		cache:      NewQueryCache(256, time.Minute),
	}
	ns.builder = vamana.NewBuilder(builderCfg, idx, exact)
	return ns
}

// checkVectorQuota returns an error if inserting count more vectors
// would exceed the namespace's MaxVectors bound.
func (ns *Namespace) checkVectorQuota(count int64) error {
	if ns.quota.MaxVectors <= 0 {
		return nil
	}
	ns.usageMu.Lock()
	defer ns.usageMu.Unlock()
	if ns.usage.VectorCount+count > ns.quota.MaxVectors {
		return vamerr.New(vamerr.InvalidArgument, "vector quota exceeded: current=%d requested=%d max=%d", ns.usage.VectorCount, count, ns.quota.MaxVectors)
	}
	return nil
}

// checkRateLimit blocks the query path against the namespace's QPS
// token bucket; it never blocks the insert path, matching the spec's
// "searches do not spawn, builds may" scheduling note in §5.
func (ns *Namespace) checkRateLimit() error {
	if ns.limiter == nil {
		return nil
	}
	if !ns.limiter.Allow() {
		return vamerr.New(vamerr.InvalidArgument, "rate limit exceeded for namespace %q", ns.Name)
	}
	return nil
}

// Insert adds one vector (with optional metadata) to the namespace,
// encoding it into the PQ code store first if PQ is enabled, then
// running the full Vamana insertion protocol (§4.5).
func (ns *Namespace) Insert(vec []float32, metadata map[string]interface{}) (int32, error) {
	if len(vec) != ns.dim {
		return 0, vamerr.New(vamerr.InvalidArgument, "vector dimension %d does not match namespace dimension %d", len(vec), ns.dim)
	}
	if ns.quota.MaxDimensions > 0 && len(vec) > ns.quota.MaxDimensions {
		return 0, vamerr.New(vamerr.InvalidArgument, "vector dimension %d exceeds namespace max %d", len(vec), ns.quota.MaxDimensions)
	}
	if err := ns.checkVectorQuota(1); err != nil {
		return 0, err
	}

	ns.mu.Lock()
	ordinal := ns.vectors.Append(vec)
	if metadata != nil {
		ns.metadata[ordinal] = metadata
	}
	if ns.quantizer != nil {
		if err := ns.growCodesLocked(); err != nil {
			ns.mu.Unlock()
			return 0, err
		}
		code, err := ns.quantizer.Encode(vec)
		if err != nil {
			ns.mu.Unlock()
			return 0, err
		}
		if err := ns.codes.Set(int(ordinal), code); err != nil {
			ns.mu.Unlock()
			return 0, err
		}
	}
	ns.mu.Unlock()

	if err := ns.builder.InsertNode(ordinal); err != nil {
		return 0, err
	}

	ns.usageMu.Lock()
	ns.usage.VectorCount++
	ns.usageMu.Unlock()
	ns.cache.Clear()
	return ordinal, nil
}

// growCodesLocked reallocates ns.codes with doubled capacity if the
// next ordinal would overflow it. Callers must hold ns.mu.
func (ns *Namespace) growCodesLocked() error {
	nextOrdinal := ns.vectors.Size() - 1
	if ns.codes != nil && nextOrdinal < ns.codes.Layout().N {
		return nil
	}
	newCap := 64
	if ns.codes != nil {
		newCap = ns.codes.Layout().N * 2
	}
	for newCap <= nextOrdinal {
		newCap *= 2
	}
	grown, err := pq.NewStore(newCap, ns.quantizer.M())
	if err != nil {
		return err
	}
	if ns.codes != nil {
		for o := 0; o < nextOrdinal; o++ {
			code, err := ns.codes.Get(o)
			if err != nil {
				return err
			}
			if err := grown.Set(o, code); err != nil {
				return err
			}
		}
	}
	ns.codes = grown
	return nil
}

// EnablePQ trains a product quantizer over every vector currently in
// the namespace and switches the build/query scoring path from exact
// dense distance to PQ asymmetric/symmetric distance with exact
// rerank, per §4.7's PQBuildScoreProvider. Vectors inserted after this
// call are encoded incrementally; the graph structure already built
// is left untouched (only future insertions and searches use the new
// scorer). It returns the trained codebook's mean squared
// reconstruction loss and its in-memory size in bytes, for callers
// that report training metrics.
func (ns *Namespace) EnablePQ(subspaces, clusters int, metric pq.Metric, useGlobalCentroid bool) (loss float32, codebookBytes int64, err error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	vectors := ns.vectors.snapshot()
	if len(vectors) == 0 {
		return 0, 0, vamerr.New(vamerr.InvalidArgument, "cannot train PQ on an empty namespace")
	}

	cfg := pq.DefaultConfig(subspaces)
	cfg.Clusters = clusters
	cfg.UseGlobalCentroid = useGlobalCentroid
	quantizer, err := pq.Train(vectors, cfg)
	if err != nil {
		return 0, 0, err
	}

	store, err := pq.NewStore(len(vectors), quantizer.M())
	if err != nil {
		return 0, 0, err
	}
	for i, v := range vectors {
		code, err := quantizer.Encode(v)
		if err != nil {
			return 0, 0, err
		}
		if err := store.Set(i, code); err != nil {
			return 0, 0, err
		}
	}

	provider, err := vamana.NewPQBuildScoreProvider(quantizer, store, metric, ns.metric)
	if err != nil {
		return 0, 0, err
	}

	loss, err = quantizer.ReconstructionLoss(vectors)
	if err != nil {
		return 0, 0, err
	}
	codebookBytes = int64(quantizer.Dim()) * int64(quantizer.K()) * 4

	ns.quantizer = quantizer
	ns.codes = store
	ns.build = provider
	ns.rerank = vamana.NewRandomAccessScoreProvider(ns.vectors, ns.metric)
	ns.builder = vamana.NewBuilder(ns.builderCfg, ns.idx, provider)
	ns.cache.Clear()
	return loss, codebookBytes, nil
}

// SearchConfig parameterizes one namespace query.
type SearchConfig struct {
	K         int
	BeamWidth int
	Filter    Filter
	Rerank    bool // rerank PQ-approximate results with exact distance
}

// Search runs a k-NN query against the namespace, enforcing the rate
// limit quota and consulting the query result cache before running a
// fresh beam search. Filtered queries bypass the cache, since the cache
// key does not cover the filter.
func (ns *Namespace) Search(query []float32, cfg SearchConfig) ([]vamana.SearchResult, vamana.SearchStats, error) {
	if len(query) != ns.dim {
		return nil, vamana.SearchStats{}, vamerr.New(vamerr.InvalidArgument, "query dimension %d does not match namespace dimension %d", len(query), ns.dim)
	}
	if err := ns.checkRateLimit(); err != nil {
		return nil, vamana.SearchStats{}, err
	}

	ns.usageMu.Lock()
	ns.usage.QueryCount++
	ns.usageMu.Unlock()

	cacheable := cfg.Filter == nil
	key := CacheKeyFor(query, cfg.K, cfg.BeamWidth, cfg.Rerank)
	if cacheable {
		if cached, ok := ns.cache.Get(key); ok {
			return cached, vamana.SearchStats{}, nil
		}
	}

	ns.mu.RLock()
	view := ns.idx.GetView()
	scorer := ns.build.(vamana.QueryScoreProvider)
	rerank := ns.rerank
	usesPQ := ns.quantizer != nil
	logger := ns.builderCfg.Logger
	ns.mu.RUnlock()

	searchCfg := vamana.SearchConfig{K: cfg.K, BeamWidth: cfg.BeamWidth}
	if cfg.Filter != nil {
		searchCfg.Filter = Compile(cfg.Filter, ns.metadataOf)
	}
	if usesPQ && cfg.Rerank {
		searchCfg.Rerank = rerank
	}

	var searcher *vamana.Searcher
	if logger != nil {
		searcher = vamana.NewSearcherWithLogger(view, scorer, logger)
	} else {
		searcher = vamana.NewSearcher(view, scorer)
	}
	results, stats, err := searcher.Search(query, searchCfg)
	if err != nil {
		return nil, stats, err
	}
	if cacheable {
		ns.cache.Put(key, results)
	}
	return results, stats, nil
}

func (ns *Namespace) metadataOf(ordinal int32) map[string]interface{} {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.metadata[ordinal]
}

// MarkDeleted soft-deletes a vector from the namespace's graph.
func (ns *Namespace) MarkDeleted(ordinal int32) {
	ns.builder.MarkDeleted(ordinal)
	ns.cache.Clear()
}

// ReplaceDeletedNeighbors runs the tombstone-repair pass (§4.5).
func (ns *Namespace) ReplaceDeletedNeighbors() error {
	err := ns.builder.ReplaceDeletedNeighbors()
	ns.cache.Clear()
	return err
}

// Size returns the number of live vectors in the namespace.
func (ns *Namespace) Size() int { return ns.idx.Size() }

// Dimension returns the namespace's vector dimension.
func (ns *Namespace) Dimension() int { return ns.dim }

// Usage returns a snapshot of the namespace's current resource usage.
func (ns *Namespace) Usage() Usage {
	ns.usageMu.Lock()
	defer ns.usageMu.Unlock()
	return ns.usage
}

// Quota returns the namespace's configured quota.
func (ns *Namespace) Quota() Quota { return ns.quota }

// UsagePercentage reports vector-quota consumption as a percentage.
func (ns *Namespace) UsagePercentage() float64 {
	if ns.quota.MaxVectors <= 0 {
		return 0
	}
	ns.usageMu.Lock()
	defer ns.usageMu.Unlock()
	return float64(ns.usage.VectorCount) / float64(ns.quota.MaxVectors) * 100
}

// Index exposes the underlying graph index, e.g. for Build/Save/Load
// callers that need direct access beyond Insert/Search.
func (ns *Namespace) Index() *graph.Index { return ns.idx }

// Vectors exposes the underlying VectorValues store.
func (ns *Namespace) Vectors() vamana.VectorValues { return ns.vectors }

// String implements fmt.Stringer for diagnostics.
func (ns *Namespace) String() string {
	return fmt.Sprintf("namespace(%s, dim=%d, size=%d, pq=%v)", ns.Name, ns.dim, ns.Size(), ns.quantizer != nil)
}
