package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs:        []string{"localhost:6379"},
			VectorDriver: "redis",
		},
		Index: IndexConfig{Metric: "cosine"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_VectorDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.VectorDriver = "pinecone"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown vector driver")
	}

	cfg = validConfig()
	cfg.Database.VectorDriver = "qdrant"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for qdrant driver without qdrant.addr")
	}

	cfg.Qdrant.Addr = "localhost:6334"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for qdrant driver with addr: %v", err)
	}
}

func TestValidate_InvalidMetric(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Metric = "hamming"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported metric")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Database.VectorDriver != "redis" {
		t.Errorf("vector driver = %q, want redis", cfg.Database.VectorDriver)
	}
	if cfg.Index.KeyPrefix != "mediadex:chunk:" {
		t.Errorf("key prefix = %q, want mediadex:chunk:", cfg.Index.KeyPrefix)
	}
	if cfg.Index.Dimensions != cfg.Embedding.Dimensions {
		t.Errorf("index dimensions = %d, want embedding dimensions %d",
			cfg.Index.Dimensions, cfg.Embedding.Dimensions)
	}
	if cfg.Search.VectorWeight != 0.7 || cfg.Search.TextWeight != 0.3 {
		t.Errorf("weights = %v/%v, want 0.7/0.3",
			cfg.Search.VectorWeight, cfg.Search.TextWeight)
	}
	if cfg.Search.MinScore != 0.5 {
		t.Errorf("min score = %v, want 0.5", cfg.Search.MinScore)
	}
	if cfg.Index.HNSWM != 16 || cfg.Index.HNSWEFConstruct != 200 {
		t.Errorf("hnsw = %d/%d, want 16/200", cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct)
	}
}

func TestApplyDefaults_KeepsExplicitWeights(t *testing.T) {
	cfg := Config{Search: SearchConfig{VectorWeight: 0.9, TextWeight: 0.1}}
	cfg.ApplyDefaults()

	if cfg.Search.VectorWeight != 0.9 || cfg.Search.TextWeight != 0.1 {
		t.Errorf("weights = %v/%v, want 0.9/0.1",
			cfg.Search.VectorWeight, cfg.Search.TextWeight)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("MEDIADEX_TEST_PASSWORD", "s3cret")
	defer os.Unsetenv("MEDIADEX_TEST_PASSWORD")

	in := []byte("password: ${MEDIADEX_TEST_PASSWORD}\nmodel: ${MEDIADEX_TEST_MODEL:-text-embedding-3-small}\n")
	got := string(expandEnvVars(in))

	want := "password: s3cret\nmodel: text-embedding-3-small\n"
	if got != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("ENV")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}

	os.Setenv("ENV", "prod")
	defer os.Unsetenv("ENV")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
