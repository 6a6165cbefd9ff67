// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pdiddy/persona-engine/internal/httputil"
	"github.com/pdiddy/persona-engine/pkg/types"
)

const defaultModel = "text-embedding-3-small"

// HTTPClient calls an OpenAI-compatible /embeddings endpoint. Requests
// are batched, throttled, retried on 429/5xx, and pass through a circuit
// breaker that opens after three consecutive failures.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient builds a client from cfg. BaseURL is required.
func NewHTTPClient(cfg types.EmbeddingConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("embedding base URL is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		batchSize:  batch,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
		limiter:    limiter,
		breaker:    breaker,
	}, nil
}

// Name identifies the embedder and its model.
func (c *HTTPClient) Name() string { return "http:" + c.model }

// Embed sends texts in batches and returns vectors in input order.
func (c *HTTPClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		batch := texts[start:end]
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.post(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, res.([][]float64)...)
	}
	return out, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse accepts both the OpenAI shape (data[].embedding) and the
// Ollama /api/embed shape (embeddings[][]).
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Embeddings [][]float64 `json:"embeddings"`
}

func (c *HTTPClient) post(ctx context.Context, batch []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(payload))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("embedding service returned %s: %s", resp.Status, snippet)
	}

	var decoded embedResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	var vecs [][]float64
	switch {
	case len(decoded.Data) > 0:
		sort.SliceStable(decoded.Data, func(i, j int) bool { return decoded.Data[i].Index < decoded.Data[j].Index })
		for _, d := range decoded.Data {
			vecs = append(vecs, d.Embedding)
		}
	default:
		vecs = decoded.Embeddings
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(vecs), len(batch))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding service returned an empty vector for input %d", i)
		}
	}
	return vecs, nil
}
