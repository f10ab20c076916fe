// Package openai wraps the OpenAI embeddings API with batching,
// rate-limit handling, and dimension validation.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clauselens/clauselens/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for embeddings.
	DefaultEmbeddingModel = openai.SmallEmbedding3

	// DefaultBatchSize caps how many chunks go into a single API call.
	DefaultBatchSize = 8

	// DefaultBatchPause is the idle time between consecutive batches.
	DefaultBatchPause = 250 * time.Millisecond

	defaultMaxAttempts = 3
	initialBackoff     = time.Second
	requestTimeout     = 20 * time.Second
)

var (
	// ErrEmptyText is returned when an input text is empty.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions.
	ErrWrongDimensions = fmt.Errorf("embedding has wrong dimensions, expected %d", domain.EmbeddingDimensions)
	// ErrCountMismatch is returned when the API returns a different number
	// of embeddings than inputs.
	ErrCountMismatch = errors.New("embedding count does not match input count")
)

// RateLimitError is returned when the API responds with 429. RetryAfter
// carries the server-suggested wait, or zero when absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// rateLimitTransport converts HTTP 429 responses into typed errors so
// the retry loop can honor Retry-After.
type rateLimitTransport struct {
	inner http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	inner := t.inner
	if inner == nil {
		inner = http.DefaultTransport
	}

	resp, err := inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		resp.Body.Close()
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	return resp, nil
}

// EmbeddingAPI defines the interface for batch embedding generation.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIAdapter implements EmbeddingAPI over the OpenAI client.
type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIAdapter creates an adapter for the given API key and model.
func NewOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{
		Transport: &rateLimitTransport{},
		Timeout:   requestTimeout,
	}

	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: domain.EmbeddingDimensions,
	}
}

// CreateEmbeddings calls the OpenAI API for a batch of texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Config configures the embedding Client.
type Config struct {
	APIKey         string
	EmbeddingModel openai.EmbeddingModel
	BatchSize      int
	BatchPause     time.Duration
	MaxAttempts    int
}

// Client generates embeddings in validated, rate-limit-aware batches.
type Client struct {
	api         EmbeddingAPI
	dimensions  int
	batchSize   int
	batchPause  time.Duration
	maxAttempts int
}

// NewClient creates an embedding client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates an embedding client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	c := &Client{
		api:         NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel),
		dimensions:  domain.EmbeddingDimensions,
		batchSize:   cfg.BatchSize,
		batchPause:  cfg.BatchPause,
		maxAttempts: cfg.MaxAttempts,
	}
	c.applyDefaults()
	return c
}

// NewClientWithAPI creates a client over a custom EmbeddingAPI.
func NewClientWithAPI(api EmbeddingAPI, cfg Config) *Client {
	c := &Client{
		api:         api,
		dimensions:  domain.EmbeddingDimensions,
		batchSize:   cfg.BatchSize,
		batchPause:  cfg.BatchPause,
		maxAttempts: cfg.MaxAttempts,
	}
	c.applyDefaults()
	return c
}

func (c *Client) applyDefaults() {
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.batchPause < 0 {
		c.batchPause = DefaultBatchPause
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
}

// EmbedQuery generates a single embedding for a search query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	results, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EmbedBatch generates embeddings for all texts, preserving input order.
// Texts are sent in batches with a pause between consecutive calls.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		if start > 0 && c.batchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.batchPause):
			}
		}

		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		results = append(results, batch...)
	}

	return results, nil
}

func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := initialBackoff

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff
			var rateErr *RateLimitError
			if errors.As(lastErr, &rateErr) && rateErr.RetryAfter > wait {
				wait = rateErr.RetryAfter
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
		}

		embeddings, err := c.api.CreateEmbeddings(ctx, texts)
		if err != nil {
			if !isRetryable(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if len(embeddings) != len(texts) {
			return nil, ErrCountMismatch
		}
		for _, e := range embeddings {
			if len(e) != c.dimensions {
				return nil, ErrWrongDimensions
			}
		}

		return embeddings, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// isRetryable reports whether an API error is worth another attempt.
// Rate limits, server errors, and transport failures retry; client
// errors do not.
func isRetryable(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	// Treat transport-level failures (timeouts, resets) as retryable.
	return true
}
