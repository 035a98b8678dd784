package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	grpcserver "github.com/vamanadb/vamana/pkg/api/grpc"
	"github.com/vamanadb/vamana/pkg/config"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		configFile  = flag.String("config", "", "path to configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("vamana server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := loadConfig(*configFile)

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("Initializing vamana server...")
	srv, err := grpcserver.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create gRPC server: %v", err)
	}

	printStartupInfo(cfg)

	log.Println("Starting gRPC server...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start gRPC server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("Server is ready. Press Ctrl+C to stop.")
	sig := <-sigChan
	log.Printf("Received signal: %v", sig)

	log.Println("Shutting down gracefully...")
	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping gRPC server: %v", err)
	}

	log.Println("Server stopped. Goodbye!")
}

func loadConfig(configFile string) *config.Config {
	if configFile != "" {
		log.Printf("Warning: config file support not yet implemented, using environment variables")
	}
	return config.LoadFromEnv()
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   __     __              __  __  __ _  __ _                ║
║   \ \   / /_ _ _ __ ___ / _\ \ \/ /\ \ / / |               ║
║    \ \ / / _` + "`" + ` | '_ ` + "`" + ` _ \ \_ \  \  /  \ V /| |               ║
║     \ V / (_| | | | | | |__) | /  __ | | | |               ║
║      \_/ \__,_|_| |_| |_|____/ /_/\_\|_| |_|               ║
║                                                           ║
║   Disk-friendly ANN vector search, Vamana-graph built    ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            gRPC Server Configuration                   ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Max Connections:  %-35d ║\n", cfg.Server.MaxConnections)
	fmt.Printf("║ Auth Enabled:     %-35v ║\n", cfg.Server.JWTSecret != "")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Builder Configuration                    ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Max Degree:       %-35d ║\n", cfg.Builder.MaxDegree)
	fmt.Printf("║ Beam Width:       %-35d ║\n", cfg.Builder.BeamWidth)
	fmt.Printf("║ Alpha:            %-35v ║\n", cfg.Builder.Alpha)
	fmt.Printf("║ Dimensions:       %-35d ║\n", cfg.Builder.Dimensions)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               PQ Configuration                         ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.PQ.Enabled)
	if cfg.PQ.Enabled {
		fmt.Printf("║ Subspaces:        %-35d ║\n", cfg.PQ.Subspaces)
		fmt.Printf("║ Clusters:         %-35d ║\n", cfg.PQ.Clusters)
	}
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Cache Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.Cache.Enabled)
	fmt.Printf("║ Capacity:         %-35d ║\n", cfg.Cache.Capacity)
	fmt.Printf("║ TTL:              %-35s ║\n", cfg.Cache.TTL)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func showUsage() {
	fmt.Println("vamana server - disk-friendly ANN vector search over a Vamana graph")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vamana-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Path to configuration file (not yet implemented)")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 50051)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  VAMANA_HOST                 Server host")
	fmt.Println("  VAMANA_PORT                 Server port")
	fmt.Println("  VAMANA_MAX_CONNECTIONS      Max concurrent connections")
	fmt.Println("  VAMANA_REQUEST_TIMEOUT      Request timeout (e.g., 30s)")
	fmt.Println("  VAMANA_ENABLE_TLS           Enable TLS (true/false)")
	fmt.Println("  VAMANA_TLS_CERT             TLS certificate file")
	fmt.Println("  VAMANA_TLS_KEY              TLS key file")
	fmt.Println("  VAMANA_JWT_SECRET           Bearer token signing secret (empty disables auth)")
	fmt.Println("  VAMANA_MAX_DEGREE           Vamana graph max out-degree")
	fmt.Println("  VAMANA_MAX_DEGREE_UPPER     Max out-degree of the upper layer")
	fmt.Println("  VAMANA_BEAM_WIDTH           Build-time beam width")
	fmt.Println("  VAMANA_ALPHA                Robust-pruning alpha")
	fmt.Println("  VAMANA_PARALLELISM          Build parallelism")
	fmt.Println("  VAMANA_DIMENSIONS           Default vector dimensions for new namespaces")
	fmt.Println("  VAMANA_DEFAULT_K            Default search result count")
	fmt.Println("  VAMANA_DEFAULT_BEAM_WIDTH   Default search-time beam width")
	fmt.Println("  VAMANA_DEFAULT_RERANK       Exact-rerank PQ-approximate results by default")
	fmt.Println("  VAMANA_PQ_ENABLED           Enable product quantization (true/false)")
	fmt.Println("  VAMANA_PQ_SUBSPACES         Number of PQ subspaces")
	fmt.Println("  VAMANA_PQ_CLUSTERS          Clusters per PQ subspace")
	fmt.Println("  VAMANA_CACHE_ENABLED        Enable query cache (true/false)")
	fmt.Println("  VAMANA_CACHE_CAPACITY       Cache capacity")
	fmt.Println("  VAMANA_CACHE_TTL            Cache TTL (e.g., 5m)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Start with default configuration")
	fmt.Println("  vamana-server")
	fmt.Println()
	fmt.Println("  # Start on a custom port")
	fmt.Println("  vamana-server -port 8080")
	fmt.Println()
	fmt.Println("  # Start with environment variables")
	fmt.Println("  VAMANA_PORT=8080 VAMANA_MAX_DEGREE=48 vamana-server")
	fmt.Println()
}
