package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Test Server defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 50051 {
		t.Errorf("Expected port 50051, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 1000 {
		t.Errorf("Expected max connections 1000, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.EnableTLS {
		t.Error("Expected TLS disabled by default")
	}

	// Test Builder defaults
	if cfg.Builder.MaxDegree != 32 {
		t.Errorf("Expected MaxDegree=32, got %d", cfg.Builder.MaxDegree)
	}
	if cfg.Builder.BeamWidth != 100 {
		t.Errorf("Expected BeamWidth=100, got %d", cfg.Builder.BeamWidth)
	}
	if cfg.Builder.Alpha != 1.2 {
		t.Errorf("Expected Alpha=1.2, got %f", cfg.Builder.Alpha)
	}
	if cfg.Builder.Dimensions != 768 {
		t.Errorf("Expected Dimensions=768, got %d", cfg.Builder.Dimensions)
	}

	// Test Search defaults
	if cfg.Search.DefaultK != 10 {
		t.Errorf("Expected DefaultK=10, got %d", cfg.Search.DefaultK)
	}
	if cfg.Search.DefaultBeamWidth != 64 {
		t.Errorf("Expected DefaultBeamWidth=64, got %d", cfg.Search.DefaultBeamWidth)
	}
	if !cfg.Search.DefaultRerank {
		t.Error("Expected DefaultRerank enabled by default")
	}

	// Test PQ defaults
	if cfg.PQ.Enabled {
		t.Error("Expected PQ disabled by default")
	}
	if cfg.PQ.Subspaces != 8 {
		t.Errorf("Expected Subspaces=8, got %d", cfg.PQ.Subspaces)
	}
	if cfg.PQ.Clusters != 256 {
		t.Errorf("Expected Clusters=256, got %d", cfg.PQ.Clusters)
	}

	// Test Cache defaults
	if !cfg.Cache.Enabled {
		t.Error("Expected cache enabled by default")
	}
	if cfg.Cache.Capacity != 1000 {
		t.Errorf("Expected cache capacity 1000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Expected cache TTL 5m, got %v", cfg.Cache.TTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := []string{
		"VAMANA_HOST", "VAMANA_PORT", "VAMANA_MAX_CONNECTIONS",
		"VAMANA_REQUEST_TIMEOUT", "VAMANA_ENABLE_TLS",
		"VAMANA_MAX_DEGREE", "VAMANA_BEAM_WIDTH", "VAMANA_DIMENSIONS",
		"VAMANA_PQ_ENABLED", "VAMANA_PQ_SUBSPACES", "VAMANA_PQ_CLUSTERS",
		"VAMANA_CACHE_ENABLED", "VAMANA_CACHE_CAPACITY", "VAMANA_CACHE_TTL",
	}
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	os.Setenv("VAMANA_HOST", "127.0.0.1")
	os.Setenv("VAMANA_PORT", "8080")
	os.Setenv("VAMANA_MAX_CONNECTIONS", "5000")
	os.Setenv("VAMANA_REQUEST_TIMEOUT", "60s")
	os.Setenv("VAMANA_ENABLE_TLS", "true")

	os.Setenv("VAMANA_MAX_DEGREE", "48")
	os.Setenv("VAMANA_BEAM_WIDTH", "150")
	os.Setenv("VAMANA_DIMENSIONS", "1536")

	os.Setenv("VAMANA_PQ_ENABLED", "true")
	os.Setenv("VAMANA_PQ_SUBSPACES", "16")
	os.Setenv("VAMANA_PQ_CLUSTERS", "128")

	os.Setenv("VAMANA_CACHE_ENABLED", "false")
	os.Setenv("VAMANA_CACHE_CAPACITY", "5000")
	os.Setenv("VAMANA_CACHE_TTL", "10m")

	cfg := LoadFromEnv()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 5000 {
		t.Errorf("Expected max connections 5000, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("Expected request timeout 60s, got %v", cfg.Server.RequestTimeout)
	}
	if !cfg.Server.EnableTLS {
		t.Error("Expected TLS enabled")
	}

	if cfg.Builder.MaxDegree != 48 {
		t.Errorf("Expected MaxDegree=48, got %d", cfg.Builder.MaxDegree)
	}
	if cfg.Builder.BeamWidth != 150 {
		t.Errorf("Expected BeamWidth=150, got %d", cfg.Builder.BeamWidth)
	}
	if cfg.Builder.Dimensions != 1536 {
		t.Errorf("Expected Dimensions=1536, got %d", cfg.Builder.Dimensions)
	}

	if !cfg.PQ.Enabled {
		t.Error("Expected PQ enabled")
	}
	if cfg.PQ.Subspaces != 16 {
		t.Errorf("Expected Subspaces=16, got %d", cfg.PQ.Subspaces)
	}
	if cfg.PQ.Clusters != 128 {
		t.Errorf("Expected Clusters=128, got %d", cfg.PQ.Clusters)
	}

	if cfg.Cache.Enabled {
		t.Error("Expected cache disabled")
	}
	if cfg.Cache.Capacity != 5000 {
		t.Errorf("Expected cache capacity 5000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Expected cache TTL 10m, got %v", cfg.Cache.TTL)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	originalPort := os.Getenv("VAMANA_PORT")
	defer func() {
		if originalPort == "" {
			os.Unsetenv("VAMANA_PORT")
		} else {
			os.Setenv("VAMANA_PORT", originalPort)
		}
	}()

	os.Setenv("VAMANA_PORT", "invalid")
	cfg := LoadFromEnv()

	if cfg.Server.Port != 50051 {
		t.Errorf("Expected default port 50051 for invalid value, got %d", cfg.Server.Port)
	}
}

func TestLoadFromEnv_DefaultsWhenNotSet(t *testing.T) {
	envVars := []string{
		"VAMANA_HOST", "VAMANA_PORT", "VAMANA_MAX_CONNECTIONS",
		"VAMANA_REQUEST_TIMEOUT", "VAMANA_ENABLE_TLS",
		"VAMANA_MAX_DEGREE", "VAMANA_BEAM_WIDTH", "VAMANA_DIMENSIONS",
		"VAMANA_PQ_ENABLED", "VAMANA_PQ_SUBSPACES", "VAMANA_PQ_CLUSTERS",
		"VAMANA_CACHE_ENABLED", "VAMANA_CACHE_CAPACITY", "VAMANA_CACHE_TTL",
	}
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg := LoadFromEnv()
	defaults := Default()

	if cfg.Server.Host != defaults.Server.Host {
		t.Errorf("Expected default host, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != defaults.Server.Port {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Builder.MaxDegree != defaults.Builder.MaxDegree {
		t.Errorf("Expected default MaxDegree, got %d", cfg.Builder.MaxDegree)
	}
	if cfg.Cache.Enabled != defaults.Cache.Enabled {
		t.Errorf("Expected default cache enabled, got %v", cfg.Cache.Enabled)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "Valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "Invalid port (too low)",
			config: &Config{
				Server:  ServerConfig{Port: 0},
				Builder: BuilderConfig{MaxDegree: 32, Dimensions: 768},
				Search:  SearchConfig{DefaultK: 10, DefaultBeamWidth: 64},
				PQ:      PQConfig{Subspaces: 8, Clusters: 256},
			},
			wantErr: true,
		},
		{
			name: "Invalid port (too high)",
			config: &Config{
				Server:  ServerConfig{Port: 70000},
				Builder: BuilderConfig{MaxDegree: 32, Dimensions: 768},
				Search:  SearchConfig{DefaultK: 10, DefaultBeamWidth: 64},
				PQ:      PQConfig{Subspaces: 8, Clusters: 256},
			},
			wantErr: true,
		},
		{
			name: "Invalid max degree (too low)",
			config: &Config{
				Server:  ServerConfig{Port: 50051},
				Builder: BuilderConfig{MaxDegree: 0, Dimensions: 768},
				Search:  SearchConfig{DefaultK: 10, DefaultBeamWidth: 64},
				PQ:      PQConfig{Subspaces: 8, Clusters: 256},
			},
			wantErr: true,
		},
		{
			name: "Invalid dimensions",
			config: &Config{
				Server:  ServerConfig{Port: 50051},
				Builder: BuilderConfig{MaxDegree: 32, Dimensions: 0},
				Search:  SearchConfig{DefaultK: 10, DefaultBeamWidth: 64},
				PQ:      PQConfig{Subspaces: 8, Clusters: 256},
			},
			wantErr: true,
		},
		{
			name: "Invalid PQ clusters",
			config: &Config{
				Server:  ServerConfig{Port: 50051},
				Builder: BuilderConfig{MaxDegree: 32, Dimensions: 768},
				Search:  SearchConfig{DefaultK: 10, DefaultBeamWidth: 64},
				PQ:      PQConfig{Subspaces: 8, Clusters: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "localhost",
		Port: 8080,
	}

	addr := cfg.Address()
	expected := "localhost:8080"

	if addr != expected {
		t.Errorf("Expected address %s, got %s", expected, addr)
	}

	defaultCfg := Default()
	addr = defaultCfg.Server.Address()
	expected = "0.0.0.0:50051"

	if addr != expected {
		t.Errorf("Expected default address %s, got %s", expected, addr)
	}
}
