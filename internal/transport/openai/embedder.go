// Package openai talks to an OpenAI-compatible embeddings endpoint. It
// performs a single attempt per call; callers that want retries layer them
// on top.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/metrics"
)

// Config carries the connection settings for an embeddings endpoint.
// BaseURL is optional and defaults to the public OpenAI API.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	Logger     *zap.Logger
}

// Embedder produces embeddings through the OpenAI-compatible API.
type Embedder struct {
	api      *openai.Client
	model    openai.EmbeddingModel
	dims     int
	provider string
	log      *zap.Logger
}

// NewEmbedder builds an Embedder from cfg.
func NewEmbedder(cfg *Config) *Embedder {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		api:      openai.NewClientWithConfig(oc),
		model:    openai.EmbeddingModel(cfg.Model),
		dims:     cfg.Dimensions,
		provider: cfg.Provider,
		log:      cfg.Logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if text == "" {
		return domain.EmbeddingResult{}, domain.ErrEmptyText
	}

	batch, err := e.createEmbeddings(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    batch.Embeddings[0],
		PromptTokens: batch.PromptTokens,
		TotalTokens:  batch.TotalTokens,
	}, nil
}

// EmbedBatch implements domain.BatchEmbedder. The result holds one vector
// per input text, in input order. Splitting oversized batches is left to
// the caller.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	for i, t := range texts {
		if t == "" {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text [%d]: %w", i, domain.ErrEmptyText)
		}
	}
	return e.createEmbeddings(ctx, texts)
}

func (e *Embedder) createEmbeddings(ctx context.Context, input []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dims > 0 {
		req.Dimensions = e.dims
	}

	started := time.Now()
	resp, err := e.api.CreateEmbeddings(ctx, req)
	elapsed := time.Since(started)

	if err != nil {
		e.countFailure("api_error")
		return domain.BatchEmbeddingResult{}, providerError(err)
	}
	if len(resp.Data) != len(input) {
		e.countFailure("short_response")
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(input), domain.ErrEmbeddingProviderError,
		)
	}

	name := string(e.model)
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, name, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, name).Observe(elapsed.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, name, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, name, "total").Add(float64(resp.Usage.TotalTokens))
	}

	// Data entries carry an Index field and are not guaranteed to arrive in
	// input order.
	vectors := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embedding response index %d out of range: %w", d.Index, domain.ErrEmbeddingProviderError,
			)
		}
		vectors[d.Index] = d.Embedding
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *Embedder) countFailure(class string) {
	name := string(e.model)
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, name, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, name, class).Inc()
}

// HealthCheck implements domain.HealthChecker by listing models, which is
// the cheapest authenticated call the API offers.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// providerError turns a go-openai error into a message that keeps the HTTP
// status and any server-supplied detail, wrapped in ErrEmbeddingProviderError
// so callers can classify it.
func providerError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := jsonDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, msg, domain.ErrEmbeddingProviderError)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrEmbeddingProviderError)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
}

// jsonDetail pulls the "detail" field some gateways put in error bodies.
func jsonDetail(body []byte) string {
	var v struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &v) == nil {
		return v.Detail
	}
	return ""
}
