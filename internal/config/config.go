// Package config loads YAML configuration by environment name and applies
// defaults and validation before anything else sees it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the mediadex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings. An empty level means the logger
// picks per environment.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// HTTPConfig holds HTTP server settings. All timeouts are in seconds.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings. Redis always carries the
// lexical corpus; it also carries vectors when vector_driver is "redis".
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	VectorDriver     string   `yaml:"vector_driver"` // redis, qdrant (default: redis)
}

// QdrantConfig holds Qdrant connection settings, used when
// database.vector_driver is "qdrant".
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // label for logs and metrics
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheTTL   int    `yaml:"cache_ttl_sec"` // 0 = no expiry
}

// IndexConfig holds index layout and HNSW settings.
type IndexConfig struct {
	Name            string `yaml:"name"`
	KeyPrefix       string `yaml:"key_prefix"`
	Dimensions      int    `yaml:"dimensions"`
	Metric          string `yaml:"metric"` // cosine, ip, l2
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// SearchConfig holds hybrid search defaults.
type SearchConfig struct {
	TopK         int     `yaml:"top_k"`
	VectorWeight float64 `yaml:"vector_weight"`
	TextWeight   float64 `yaml:"text_weight"`
	MinScore     float64 `yaml:"min_score"`
	RecentDays   int     `yaml:"recent_days"`
}

// Load reads config/<env>.yaml, expands environment variable references,
// applies defaults and validates the result.
func Load(env string) (Config, error) {
	path := locateConfig(env)

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on error, for use in main.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv reads the environment name from ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	intDefault(&c.HTTP.ReadTimeoutSec, 10)
	intDefault(&c.HTTP.WriteTimeoutSec, 30)
	intDefault(&c.HTTP.ShutdownSec, 10)
	intDefault(&c.Database.ReadinessTimeout, 10)
	strDefault(&c.Database.VectorDriver, "redis")
	strDefault(&c.Qdrant.Collection, "mediadex_chunks")
	strDefault(&c.Embedding.Provider, "openai")
	strDefault(&c.Embedding.Model, "text-embedding-3-small")
	intDefault(&c.Embedding.Dimensions, 1536)
	strDefault(&c.Index.Name, "mediadex-chunks")
	strDefault(&c.Index.KeyPrefix, "mediadex:chunk:")
	intDefault(&c.Index.Dimensions, c.Embedding.Dimensions)
	strDefault(&c.Index.Metric, "cosine")
	intDefault(&c.Index.HNSWM, 16)
	intDefault(&c.Index.HNSWEFConstruct, 200)
	intDefault(&c.Search.TopK, 10)
	intDefault(&c.Search.RecentDays, 30)

	// Weights default as a pair so an explicit 0 on one side survives.
	if c.Search.VectorWeight == 0 && c.Search.TextWeight == 0 {
		c.Search.VectorWeight = 0.7
		c.Search.TextWeight = 0.3
	}
	if c.Search.MinScore == 0 {
		c.Search.MinScore = 0.5
	}
}

func intDefault(v *int, d int) {
	if *v <= 0 {
		*v = d
	}
}

func strDefault(v *string, d string) {
	if *v == "" {
		*v = d
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs must not be empty")
	}
	switch c.Database.VectorDriver {
	case "redis":
	case "qdrant":
		if c.Qdrant.Addr == "" {
			return fmt.Errorf("qdrant.addr is required when database.vector_driver is qdrant")
		}
	default:
		return fmt.Errorf("database.vector_driver must be \"redis\" or \"qdrant\", got %q", c.Database.VectorDriver)
	}
	switch c.Index.Metric {
	case "cosine", "ip", "l2":
	default:
		return fmt.Errorf("index.metric must be cosine, ip or l2, got %q", c.Index.Metric)
	}
	if c.Search.VectorWeight < 0 || c.Search.TextWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	return nil
}

// locateConfig resolves config/<env>.yaml against the working directory
// first, then against the repository root so tests run from package
// directories still find it.
func locateConfig(env string) string {
	name := env + ".yaml"

	local := filepath.Join("config", name)
	if statOK(local) {
		return local
	}

	// internal/config/config.go sits two directories below the root.
	_, self, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(self)))
	if p := filepath.Join(root, "config", name); statOK(p) {
		return p
	}

	return local
}

func statOK(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envExpr = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:-default} references with
// values from the process environment.
func expandEnvVars(data []byte) []byte {
	return envExpr.ReplaceAllFunc(data, func(m []byte) []byte {
		inner := string(m[2 : len(m)-1])
		name, fallback, hasFallback := strings.Cut(inner, ":-")
		v := os.Getenv(name)
		if v == "" && hasFallback {
			v = fallback
		}
		return []byte(v)
	})
}
