package mediadex

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	username string
	password string

	vectorDriver string // "redis" or "qdrant"
	qdrantAddr   string
	qdrantColl   string

	embedder Embedder

	indexName  string
	keyPrefix  string
	dimensions int
	metric     string

	hnswM           int
	hnswEFConstruct int

	vectorWeight float64
	textWeight   float64
	minScore     float64

	cacheEmbeddings bool
	cacheTTL        time.Duration

	logger *zap.Logger
}

// WithRedis configures the Redis connection. Required: Redis carries the
// lexical corpus even when vectors live elsewhere.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedisAddrs configures a multi-node Redis connection.
func WithRedisAddrs(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithQdrant stores vectors in a Qdrant collection instead of Redis.
func WithQdrant(addr, collection string) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDriver = "qdrant"
		c.qdrantAddr = addr
		c.qdrantColl = collection
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithIndex overrides the index name and key prefix.
func WithIndex(name, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.keyPrefix = keyPrefix
	})
}

// WithDimensions sets the vector dimensionality.
// Defaults to 1536 (text-embedding-3-small).
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithMetric sets the distance metric: cosine (default), ip or l2.
func WithMetric(metric string) Option {
	return optionFunc(func(c *clientConfig) {
		c.metric = metric
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithWeights overrides the fusion weights and score floor.
// Defaults: vector 0.7, text 0.3, minScore 0.5.
func WithWeights(vector, text, minScore float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorWeight = vector
		c.textWeight = text
		c.minScore = minScore
	})
}

// WithEmbeddingCache caches query embeddings in Redis keyed by content hash.
// ttl 0 caches without expiry.
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheEmbeddings = true
		c.cacheTTL = ttl
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
