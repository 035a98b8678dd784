package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server  ServerConfig
	Builder BuilderConfig
	Search  SearchConfig
	PQ      PQConfig
	Cache   CacheConfig
	Logging LoggingConfig
}

// ServerConfig holds gRPC server configuration.
type ServerConfig struct {
	Host            string        // Server host (default: "0.0.0.0")
	Port            int           // Server port (default: 50051)
	MaxConnections  int           // Max concurrent connections
	RequestTimeout  time.Duration // Request timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	EnableTLS       bool          // Enable TLS
	CertFile        string        // TLS certificate file
	KeyFile         string        // TLS key file
	JWTSecret       string        // HMAC secret used to verify bearer tokens
}

// BuilderConfig mirrors pkg/vamana.BuilderConfig; it is kept as a
// separate, env-loadable struct here so the server doesn't have to
// parse vamana.BuilderConfig's zero-value defaulting rules itself.
type BuilderConfig struct {
	MaxDegree      int     // base-layer degree bound (default: 32)
	MaxDegreeUpper int     // upper-layer degree bound (default: MaxDegree/2)
	BeamWidth      int     // candidate list size during insertion (default: 100)
	Alpha          float32 // diversity occlusion relaxation (default: 1.2)
	RandomSeed     int64   // level-assignment seed
	Parallelism    int     // Build() worker count (default: 0, sequential)
	Dimensions     int     // vector dimensionality (default: 768)
}

// SearchConfig holds default query-time parameters.
type SearchConfig struct {
	DefaultK         int  // default result count
	DefaultBeamWidth int  // default search candidate list size
	DefaultRerank    bool // whether to exact-rerank PQ-approximate results by default
}

// PQConfig holds product-quantization defaults. PQ is opt-in per
// namespace; these are the parameters used when a namespace enables it
// without overriding subspace/cluster counts.
type PQConfig struct {
	Enabled   bool // whether PQ is enabled by default for new namespaces
	Subspaces int  // number of PQ subspaces (default: 8)
	Clusters  int  // codewords per subspace (default: 256)
}

// LoggingConfig controls the pkg/observability.Logger the server
// threads into every namespace's builder and searcher.
type LoggingConfig struct {
	Level   string // DEBUG | INFO | WARN | ERROR | FATAL (default: INFO)
	Enabled bool   // whether build/search lifecycle events are logged at all
}

// CacheConfig holds query cache configuration.
type CacheConfig struct {
	Enabled  bool          // Enable query result caching
	Capacity int           // Max cache entries per namespace
	TTL      time.Duration // Time to live for cache entries
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50051,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
		},
		Builder: BuilderConfig{
			MaxDegree:      32,
			MaxDegreeUpper: 16,
			BeamWidth:      100,
			Alpha:          1.2,
			RandomSeed:     0,
			Parallelism:    0,
			Dimensions:     768,
		},
		Search: SearchConfig{
			DefaultK:         10,
			DefaultBeamWidth: 64,
			DefaultRerank:    true,
		},
		PQ: PQConfig{
			Enabled:   false,
			Subspaces: 8,
			Clusters:  256,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "INFO",
			Enabled: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables, layered
// on top of Default().
func LoadFromEnv() *Config {
	cfg := Default()

	// Server configuration
	if host := os.Getenv("VAMANA_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("VAMANA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if maxConn := os.Getenv("VAMANA_MAX_CONNECTIONS"); maxConn != "" {
		if mc, err := strconv.Atoi(maxConn); err == nil {
			cfg.Server.MaxConnections = mc
		}
	}
	if timeout := os.Getenv("VAMANA_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if shutdown := os.Getenv("VAMANA_SHUTDOWN_TIMEOUT"); shutdown != "" {
		if t, err := time.ParseDuration(shutdown); err == nil {
			cfg.Server.ShutdownTimeout = t
		}
	}
	if enableTLS := os.Getenv("VAMANA_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("VAMANA_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("VAMANA_TLS_KEY")
	}
	if secret := os.Getenv("VAMANA_JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	// Builder configuration
	if m := os.Getenv("VAMANA_MAX_DEGREE"); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			cfg.Builder.MaxDegree = v
		}
	}
	if mu := os.Getenv("VAMANA_MAX_DEGREE_UPPER"); mu != "" {
		if v, err := strconv.Atoi(mu); err == nil {
			cfg.Builder.MaxDegreeUpper = v
		}
	}
	if bw := os.Getenv("VAMANA_BEAM_WIDTH"); bw != "" {
		if v, err := strconv.Atoi(bw); err == nil {
			cfg.Builder.BeamWidth = v
		}
	}
	if alpha := os.Getenv("VAMANA_ALPHA"); alpha != "" {
		if v, err := strconv.ParseFloat(alpha, 32); err == nil {
			cfg.Builder.Alpha = float32(v)
		}
	}
	if par := os.Getenv("VAMANA_PARALLELISM"); par != "" {
		if v, err := strconv.Atoi(par); err == nil {
			cfg.Builder.Parallelism = v
		}
	}
	if dims := os.Getenv("VAMANA_DIMENSIONS"); dims != "" {
		if v, err := strconv.Atoi(dims); err == nil {
			cfg.Builder.Dimensions = v
		}
	}

	// Search configuration
	if k := os.Getenv("VAMANA_DEFAULT_K"); k != "" {
		if v, err := strconv.Atoi(k); err == nil {
			cfg.Search.DefaultK = v
		}
	}
	if bw := os.Getenv("VAMANA_DEFAULT_BEAM_WIDTH"); bw != "" {
		if v, err := strconv.Atoi(bw); err == nil {
			cfg.Search.DefaultBeamWidth = v
		}
	}
	if rerank := os.Getenv("VAMANA_DEFAULT_RERANK"); rerank == "false" {
		cfg.Search.DefaultRerank = false
	}

	// PQ configuration
	if enabled := os.Getenv("VAMANA_PQ_ENABLED"); enabled == "true" {
		cfg.PQ.Enabled = true
	}
	if sub := os.Getenv("VAMANA_PQ_SUBSPACES"); sub != "" {
		if v, err := strconv.Atoi(sub); err == nil {
			cfg.PQ.Subspaces = v
		}
	}
	if clusters := os.Getenv("VAMANA_PQ_CLUSTERS"); clusters != "" {
		if v, err := strconv.Atoi(clusters); err == nil {
			cfg.PQ.Clusters = v
		}
	}

	// Logging configuration
	if level := os.Getenv("VAMANA_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if enabled := os.Getenv("VAMANA_LOG_ENABLED"); enabled == "true" {
		cfg.Logging.Enabled = true
	}

	// Cache configuration
	if cacheEnabled := os.Getenv("VAMANA_CACHE_ENABLED"); cacheEnabled == "false" {
		cfg.Cache.Enabled = false
	}
	if capacity := os.Getenv("VAMANA_CACHE_CAPACITY"); capacity != "" {
		if c, err := strconv.Atoi(capacity); err == nil {
			cfg.Cache.Capacity = c
		}
	}
	if ttl := os.Getenv("VAMANA_CACHE_TTL"); ttl != "" {
		if t, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = t
		}
	}

	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}

	// Builder validation
	if c.Builder.MaxDegree < 2 || c.Builder.MaxDegree > 512 {
		return fmt.Errorf("invalid max degree: %d (recommended: 16-64)", c.Builder.MaxDegree)
	}
	if c.Builder.BeamWidth < 1 {
		return fmt.Errorf("invalid beam width: %d (must be >= 1)", c.Builder.BeamWidth)
	}
	if c.Builder.Alpha < 1.0 {
		return fmt.Errorf("invalid alpha: %f (must be >= 1.0)", c.Builder.Alpha)
	}
	if c.Builder.Dimensions < 1 {
		return fmt.Errorf("invalid dimensions: %d (must be > 0)", c.Builder.Dimensions)
	}

	// Search validation
	if c.Search.DefaultK < 1 {
		return fmt.Errorf("invalid default k: %d (must be > 0)", c.Search.DefaultK)
	}
	if c.Search.DefaultBeamWidth < c.Search.DefaultK {
		return fmt.Errorf("invalid default beam width: %d (must be >= default k %d)", c.Search.DefaultBeamWidth, c.Search.DefaultK)
	}

	// PQ validation
	if c.PQ.Subspaces < 1 {
		return fmt.Errorf("invalid PQ subspaces: %d (must be > 0)", c.PQ.Subspaces)
	}
	if c.PQ.Clusters < 2 || c.PQ.Clusters > 256 {
		return fmt.Errorf("invalid PQ clusters: %d (must be 2-256, one byte per code)", c.PQ.Clusters)
	}
	if c.Builder.Dimensions%c.PQ.Subspaces != 0 && c.PQ.Enabled {
		return fmt.Errorf("PQ subspaces %d do not evenly divide dimensions %d", c.PQ.Subspaces, c.Builder.Dimensions)
	}

	// Cache validation
	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	return nil
}

// Address returns the server address (host:port).
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
