package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const version = "1.0.0"

var (
	serverAddr string
	namespace  string
	token      string
	timeout    time.Duration
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	flag.StringVar(&serverAddr, "server", "localhost:50051", "gRPC server address")
	flag.StringVar(&namespace, "namespace", "default", "namespace to use")
	flag.StringVar(&token, "token", "", "bearer token (optional, required if the server enforces auth)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	command := os.Args[1]

	switch command {
	case "create-namespace":
		handleCreateNamespace(os.Args[2:])
	case "insert":
		handleInsert(os.Args[2:])
	case "search":
		handleSearch(os.Args[2:])
	case "delete":
		handleDelete(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "enable-pq":
		handleEnablePQ(os.Args[2:])
	case "health":
		handleHealth(os.Args[2:])
	case "version":
		fmt.Printf("vamana-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

// callRPC invokes one of the server's structpb-based unary RPCs by
// method name. There is no generated client stub (no .proto compiler
// in this environment), so this calls grpc.ClientConn.Invoke directly
// — the same mechanism a generated stub would use underneath.
func callRPC(method string, req *structpb.Struct) *structpb.Struct {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		fmt.Printf("Failed to connect to server at %s: %v\n", serverAddr, err)
		os.Exit(1)
	}
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), timeout)
	defer callCancel()
	if token != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, "authorization", "Bearer "+token)
	}

	resp := new(structpb.Struct)
	fullMethod := fmt.Sprintf("/vamana.VectorDB/%s", method)
	if err := conn.Invoke(callCtx, fullMethod, req, resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return resp
}

func printStruct(s *structpb.Struct) {
	b, err := json.MarshalIndent(s.AsMap(), "", "  ")
	if err != nil {
		fmt.Printf("%v\n", s.AsMap())
		return
	}
	fmt.Println(string(b))
}

func parseVector(s string) []interface{} {
	var values []float64
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		fmt.Printf("Error parsing vector: %v\n", err)
		os.Exit(1)
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func handleCreateNamespace(args []string) {
	fs := flag.NewFlagSet("create-namespace", flag.ExitOnError)
	var (
		dimension        = fs.Int("dimension", 0, "vector dimension (required)")
		metric           = fs.String("metric", "dot", "distance metric: l2 | dot | cosine")
		maxVec           = fs.Int64("max-vectors", 0, "vector quota, 0 means unlimited")
		neighborOverflow = fs.Float64("neighbor-overflow", 0, "backlink degree overflow ratio, 0 means server default")
		addHierarchy     = fs.Bool("add-hierarchy", true, "enable multi-layer level sampling (false forces a flat graph)")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.StringVar(&token, "token", token, "bearer token")
	fs.Parse(args)

	if *dimension <= 0 {
		fmt.Println("Error: -dimension is required")
		os.Exit(1)
	}

	req, _ := structpb.NewStruct(map[string]interface{}{
		"namespace":         namespace,
		"dimension":         float64(*dimension),
		"metric":            *metric,
		"max_vectors":       float64(*maxVec),
		"neighbor_overflow": *neighborOverflow,
		"add_hierarchy":     *addHierarchy,
	})
	resp := callRPC("CreateNamespace", req)
	fmt.Println("✓ Namespace created")
	printStruct(resp)
}

func handleInsert(args []string) {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	var (
		vectorStr   = fs.String("vector", "", "vector as JSON array (required)")
		metadataStr = fs.String("metadata", "{}", "metadata as JSON object")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.StringVar(&token, "token", token, "bearer token")
	fs.Parse(args)

	if *vectorStr == "" {
		fmt.Println("Error: -vector is required")
		os.Exit(1)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(*metadataStr), &metadata); err != nil {
		fmt.Printf("Error parsing metadata: %v\n", err)
		os.Exit(1)
	}

	fields := map[string]interface{}{
		"namespace": namespace,
		"vector":    parseVector(*vectorStr),
	}
	if len(metadata) > 0 {
		fields["metadata"] = metadata
	}
	req, _ := structpb.NewStruct(fields)

	resp := callRPC("Insert", req)
	fmt.Printf("✓ Inserted vector with ordinal %v\n", resp.Fields["ordinal"].GetNumberValue())
}

func handleSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var (
		queryVectorStr = fs.String("query", "", "query vector as JSON array (required)")
		k              = fs.Int("k", 10, "number of results to return")
		beamWidth      = fs.Int("beam-width", 0, "search beam width (0 means server default)")
		rerank         = fs.Bool("rerank", true, "exact-rerank PQ-approximate results")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.StringVar(&token, "token", token, "bearer token")
	fs.Parse(args)

	if *queryVectorStr == "" {
		fmt.Println("Error: -query is required")
		os.Exit(1)
	}

	fields := map[string]interface{}{
		"namespace": namespace,
		"query":     parseVector(*queryVectorStr),
		"k":         float64(*k),
		"rerank":    *rerank,
	}
	if *beamWidth > 0 {
		fields["beam_width"] = float64(*beamWidth)
	}
	req, _ := structpb.NewStruct(fields)

	resp := callRPC("Search", req)
	displaySearchResults(resp)
}

func handleDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	var ordinal = fs.Int("ordinal", -1, "ordinal of the vector to delete (required)")
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.StringVar(&token, "token", token, "bearer token")
	fs.Parse(args)

	if *ordinal < 0 {
		fmt.Println("Error: -ordinal is required")
		os.Exit(1)
	}

	req, _ := structpb.NewStruct(map[string]interface{}{
		"namespace": namespace,
		"ordinal":   float64(*ordinal),
	})
	callRPC("Delete", req)
	fmt.Printf("✓ Deleted ordinal %d\n", *ordinal)
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace (omit for server-wide stats)")
	fs.StringVar(&token, "token", token, "bearer token")
	fs.Parse(args)

	fields := map[string]interface{}{}
	if namespace != "" {
		fields["namespace"] = namespace
	}
	req, _ := structpb.NewStruct(fields)
	resp := callRPC("Stats", req)

	fmt.Println("=== Statistics ===")
	printStruct(resp)
}

func handleEnablePQ(args []string) {
	fs := flag.NewFlagSet("enable-pq", flag.ExitOnError)
	var (
		subspaces      = fs.Int("subspaces", 8, "number of PQ subspaces")
		clusters       = fs.Int("clusters", 256, "codewords per subspace")
		metric         = fs.String("metric", "l2", "distance metric: l2 | dot | cosine")
		globalCentroid = fs.Bool("global-centroid", false, "mean-center vectors before clustering")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.StringVar(&token, "token", token, "bearer token")
	fs.Parse(args)

	req, _ := structpb.NewStruct(map[string]interface{}{
		"namespace":       namespace,
		"subspaces":       float64(*subspaces),
		"clusters":        float64(*clusters),
		"metric":          *metric,
		"global_centroid": *globalCentroid,
	})
	resp := callRPC("EnablePQ", req)
	fmt.Println("✓ PQ enabled")
	printStruct(resp)
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.Parse(args)

	req, _ := structpb.NewStruct(map[string]interface{}{})
	resp := callRPC("HealthCheck", req)

	status := resp.Fields["status"].GetStringValue()
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Uptime: %.0f seconds\n", resp.Fields["uptime_seconds"].GetNumberValue())

	if status != "healthy" {
		os.Exit(1)
	}
}

func displaySearchResults(resp *structpb.Struct) {
	results := resp.Fields["results"].GetListValue()
	fmt.Printf("Found %d results (visited %v, expanded %v)\n\n",
		len(results.GetValues()),
		resp.Fields["visited"].GetNumberValue(),
		resp.Fields["expanded"].GetNumberValue())

	for i, v := range results.GetValues() {
		r := v.GetStructValue()
		fmt.Printf("Result %d:\n", i+1)
		fmt.Printf("  Ordinal: %v\n", r.Fields["ordinal"].GetNumberValue())
		fmt.Printf("  Score:   %v\n", r.Fields["score"].GetNumberValue())
		fmt.Println()
	}
}

func showUsage() {
	fmt.Println(strings.TrimSpace(`
vamana-cli - Client for the vamana vector database gRPC server

Usage:
  vamana-cli <command> [options]

Commands:
  create-namespace   Create a new namespace
  insert             Insert a vector with metadata
  search             Search for similar vectors
  delete             Soft-delete a vector by ordinal
  stats              Get server or namespace statistics
  enable-pq          Train a product quantizer and switch to approximate scoring
  health             Check server health
  version            Show version
  help               Show this help message

Global Options:
  -server ADDRESS   gRPC server address (default: localhost:50051)
  -namespace NAME   Namespace to use (default: default)
  -token TOKEN      Bearer token (required if the server enforces auth)
  Each request times out after 30s; there is no option to change this.

Examples:
  vamana-cli create-namespace -dimension 128 -metric cosine
  vamana-cli insert -vector '[0.1, 0.2, 0.3]' -metadata '{"category": "tech"}'
  vamana-cli search -query '[0.15, 0.25, 0.35]' -k 10
  vamana-cli delete -ordinal 42
  vamana-cli stats
  vamana-cli health
`))
}
