// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding provides the embedding-service collaborator: a
// deterministic local TF-IDF embedder, an HTTP client for
// OpenAI-compatible embedding endpoints, and a caching wrapper.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/pdiddy/persona-engine/pkg/types"
)

// Embedder returns one fixed-dimension vector per input text. Embed must
// be deterministic for a given embedder state.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Preparer is implemented by embedders that must see the corpus before
// embedding, such as TF-IDF.
type Preparer interface {
	Prepare(corpus []string) error
}

// Factory builds a fresh embedder for one collection.
type Factory func() (Embedder, error)

// NewFactory returns a Factory for the configured provider. The HTTP
// client is shared across collections; TF-IDF embedders are not, since
// their vocabulary belongs to one corpus.
func NewFactory(cfg types.EmbeddingConfig, cache Cache) (Factory, error) {
	switch cfg.Provider {
	case types.ProviderTFIDF, "":
		return func() (Embedder, error) { return NewTFIDF(), nil }, nil
	case types.ProviderHTTP:
		client, err := NewHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		var e Embedder = client
		if cache != nil {
			e = NewCached(client, cache, cfg.BaseURL+"|"+cfg.Model)
		}
		return func() (Embedder, error) { return e, nil }, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either
// vector is zero or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Unit clamps a similarity into [0,1].
func Unit(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
