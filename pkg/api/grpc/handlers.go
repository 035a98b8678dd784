package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vamanadb/vamana/internal/pq"
	"github.com/vamanadb/vamana/pkg/namespace"
	"github.com/vamanadb/vamana/pkg/vamana"
)

func parseMetric(name string) vamana.Metric {
	switch name {
	case "l2", "euclidean", "":
		return vamana.MetricSquaredEuclidean
	case "cosine":
		return vamana.MetricCosine
	default:
		return vamana.MetricDotProduct
	}
}

func parsePQMetric(name string) pq.Metric {
	switch name {
	case "l2", "euclidean", "":
		return pq.MetricSquaredEuclidean
	case "cosine":
		return pq.MetricCosine
	default:
		return pq.MetricDotProduct
	}
}

func metricName(m vamana.Metric) string {
	switch m {
	case vamana.MetricSquaredEuclidean:
		return "l2"
	case vamana.MetricCosine:
		return "cosine"
	default:
		return "dot"
	}
}

func vectorFromStruct(s *structpb.Struct, field string) []float32 {
	list := s.Fields[field].GetListValue()
	if list == nil {
		return nil
	}
	vec := make([]float32, len(list.Values))
	for i, v := range list.Values {
		vec[i] = float32(v.GetNumberValue())
	}
	return vec
}

func metadataFromStruct(s *structpb.Struct, field string) map[string]interface{} {
	md := s.Fields[field].GetStructValue()
	if md == nil {
		return nil
	}
	return md.AsMap()
}

func mustStruct(fields map[string]interface{}) *structpb.Struct {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		// Only reachable if fields contains a non-JSON-representable
		// value, which every caller below avoids by construction.
		panic(fmt.Sprintf("grpc: building response struct: %v", err))
	}
	return st
}

// CreateNamespace provisions a new namespace. Request fields:
// namespace (string), dimension (number), metric ("l2"|"dot"|"cosine"),
// max_degree, max_degree_upper, beam_width, alpha, neighbor_overflow,
// add_hierarchy (bool), max_vectors, rate_limit_qps. Only namespace is
// required. A missing dimension and graph parameters come from server
// config, neighbor_overflow and add_hierarchy from the builder's own
// defaults, and max_vectors and rate_limit_qps from
// namespace.DefaultQuota.
func (s *Server) CreateNamespace(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.Fields["namespace"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	dim := int(req.Fields["dimension"].GetNumberValue())
	if dim <= 0 {
		dim = s.cfg.Builder.Dimensions
	}
	metric := parseMetric(req.Fields["metric"].GetStringValue())

	builderCfg := vamana.BuilderConfig{
		MaxDegree:      s.cfg.Builder.MaxDegree,
		MaxDegreeUpper: s.cfg.Builder.MaxDegreeUpper,
		BeamWidth:      s.cfg.Builder.BeamWidth,
		Alpha:          s.cfg.Builder.Alpha,
		Parallelism:    s.cfg.Builder.Parallelism,
		Logger:         s.logger,
	}
	if v, ok := req.Fields["max_degree"]; ok {
		builderCfg.MaxDegree = int(v.GetNumberValue())
	}
	if v, ok := req.Fields["max_degree_upper"]; ok {
		builderCfg.MaxDegreeUpper = int(v.GetNumberValue())
	}
	if v, ok := req.Fields["beam_width"]; ok {
		builderCfg.BeamWidth = int(v.GetNumberValue())
	}
	if v, ok := req.Fields["alpha"]; ok {
		builderCfg.Alpha = float32(v.GetNumberValue())
	}
	if v, ok := req.Fields["neighbor_overflow"]; ok {
		builderCfg.NeighborOverflow = float32(v.GetNumberValue())
	}
	if v, ok := req.Fields["add_hierarchy"]; ok {
		add := v.GetBoolValue()
		builderCfg.AddHierarchy = &add
	}

	quota := namespace.DefaultQuota()
	if v, ok := req.Fields["max_vectors"]; ok {
		quota.MaxVectors = int64(v.GetNumberValue())
	}
	if v, ok := req.Fields["rate_limit_qps"]; ok {
		quota.RateLimitQPS = v.GetNumberValue()
	}

	ns, err := s.manager.CreateNamespace(name, dim, metric, builderCfg, quota)
	if err != nil {
		return nil, status.Error(codes.AlreadyExists, err.Error())
	}
	s.metrics.UpdateNamespaceCount(len(s.manager.ListNamespaces()))

	return mustStruct(map[string]interface{}{
		"namespace": ns.Name,
		"dimension": float64(ns.Dimension()),
		"metric":    metricName(metric),
	}), nil
}

// Insert adds one vector to a namespace. Request fields: namespace
// (string), vector (list of numbers), metadata (struct, optional).
func (s *Server) Insert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	name := req.Fields["namespace"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	if claims, ok := ClaimsFromContext(ctx); ok && claims.Namespace != "" && claims.Namespace != name {
		return nil, status.Error(codes.PermissionDenied, "token is not scoped to this namespace")
	}

	vec := vectorFromStruct(req, "vector")
	if len(vec) == 0 {
		return nil, status.Error(codes.InvalidArgument, "vector is required")
	}
	metadata := metadataFromStruct(req, "metadata")

	ns, err := s.manager.GetNamespace(name)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	ordinal, err := ns.Insert(vec, metadata)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.metrics.RecordInsert(name, 1)
	s.metrics.RecordRequest("Insert", "success", time.Since(start))

	return mustStruct(map[string]interface{}{
		"namespace": name,
		"ordinal":   float64(ordinal),
	}), nil
}

// Search runs a k-NN query. Request fields: namespace (string), query
// (list of numbers), k (number), beam_width (number, optional), rerank
// (bool, optional), filter (struct, optional — see filter.go).
func (s *Server) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	name := req.Fields["namespace"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	if claims, ok := ClaimsFromContext(ctx); ok && claims.Namespace != "" && claims.Namespace != name {
		return nil, status.Error(codes.PermissionDenied, "token is not scoped to this namespace")
	}

	query := vectorFromStruct(req, "query")
	if len(query) == 0 {
		return nil, status.Error(codes.InvalidArgument, "query vector is required")
	}
	k := int(req.Fields["k"].GetNumberValue())
	if k <= 0 {
		k = s.cfg.Search.DefaultK
	}
	beamWidth := int(req.Fields["beam_width"].GetNumberValue())
	if beamWidth <= 0 {
		beamWidth = s.cfg.Search.DefaultBeamWidth
	}
	rerank := s.cfg.Search.DefaultRerank
	if v, ok := req.Fields["rerank"]; ok {
		rerank = v.GetBoolValue()
	}

	var filter namespace.Filter
	if fv, ok := req.Fields["filter"]; ok {
		f, err := structToFilter(fv.GetStructValue())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
		}
		filter = f
	}

	ns, err := s.manager.GetNamespace(name)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	results, stats, err := ns.Search(query, namespace.SearchConfig{
		K: k, BeamWidth: beamWidth, Rerank: rerank, Filter: filter,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	protoResults := make([]interface{}, 0, len(results))
	for _, r := range results {
		protoResults = append(protoResults, map[string]interface{}{
			"ordinal": float64(r.Ordinal),
			"score":   float64(r.Score),
		})
	}

	s.metrics.RecordSearch(time.Since(start), len(results))
	s.metrics.RecordBeamSearch(stats.Visited, stats.Expanded)
	s.metrics.RecordRequest("Search", "success", time.Since(start))

	resultsList, err := structpb.NewList(protoResults)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding results: %v", err)
	}
	resp := mustStruct(map[string]interface{}{
		"namespace": name,
		"visited":   float64(stats.Visited),
		"expanded":  float64(stats.Expanded),
	})
	resp.Fields["results"] = structpb.NewListValue(resultsList)
	return resp, nil
}

// Delete soft-deletes one vector. Request fields: namespace (string),
// ordinal (number).
func (s *Server) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.Fields["namespace"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	ns, err := s.manager.GetNamespace(name)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	ordinal := int32(req.Fields["ordinal"].GetNumberValue())
	ns.MarkDeleted(ordinal)
	s.metrics.RecordDelete(name, 1)

	return mustStruct(map[string]interface{}{
		"namespace": name,
		"ordinal":   float64(ordinal),
		"deleted":   true,
	}), nil
}

// Stats reports server-wide or, if a namespace field is given,
// per-namespace statistics.
func (s *Server) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if name := req.Fields["namespace"].GetStringValue(); name != "" {
		ns, err := s.manager.GetNamespace(name)
		if err != nil {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		usage := ns.Usage()
		return mustStruct(map[string]interface{}{
			"namespace":        ns.Name,
			"dimension":        float64(ns.Dimension()),
			"size":             float64(ns.Size()),
			"vector_count":     float64(usage.VectorCount),
			"query_count":      float64(usage.QueryCount),
			"usage_percentage": ns.UsagePercentage(),
		}), nil
	}

	names := s.manager.ListNamespaces()
	nsValues := make([]interface{}, len(names))
	for i, n := range names {
		nsValues[i] = n
	}
	return mustStruct(map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"namespaces":     nsValues,
	}), nil
}

// EnablePQ trains a product quantizer over a namespace's current
// vectors and switches it to approximate, codebook-backed scoring.
// Request fields: namespace (string), subspaces (number), clusters
// (number), metric ("l2"|"dot"|"cosine", optional), global_centroid
// (bool, optional — mean-center vectors before clustering).
func (s *Server) EnablePQ(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.Fields["namespace"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	subspaces := int(req.Fields["subspaces"].GetNumberValue())
	if subspaces <= 0 {
		subspaces = s.cfg.PQ.Subspaces
	}
	clusters := int(req.Fields["clusters"].GetNumberValue())
	if clusters <= 0 {
		clusters = s.cfg.PQ.Clusters
	}
	metric := parsePQMetric(req.Fields["metric"].GetStringValue())
	globalCentroid := req.Fields["global_centroid"].GetBoolValue()

	ns, err := s.manager.GetNamespace(name)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	loss, codebookBytes, err := ns.EnablePQ(subspaces, clusters, metric, globalCentroid)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.metrics.RecordPQTraining(name, float64(loss), codebookBytes)

	return mustStruct(map[string]interface{}{
		"namespace":      name,
		"subspaces":      float64(subspaces),
		"clusters":       float64(clusters),
		"loss":           float64(loss),
		"codebook_bytes": float64(codebookBytes),
	}), nil
}

// HealthCheck reports whether the server is accepting traffic.
func (s *Server) HealthCheck(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	healthStatus := "healthy"
	if s.isShuttingDown() {
		healthStatus = "unhealthy"
	}
	return mustStruct(map[string]interface{}{
		"status":          healthStatus,
		"uptime_seconds":  s.Uptime().Seconds(),
		"namespace_count": float64(len(s.manager.ListNamespaces())),
	}), nil
}
