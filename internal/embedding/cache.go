// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Cache stores vectors by key. history.Store implements it over SQLite.
type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float64, bool, error)
	PutEmbedding(ctx context.Context, key string, vec []float64) error
}

// Cached wraps an embedder and serves repeated texts from a Cache. Only
// misses reach the inner embedder, in one batch.
type Cached struct {
	inner     Embedder
	cache     Cache
	namespace string
}

// NewCached wraps inner. namespace separates vectors of different models.
func NewCached(inner Embedder, cache Cache, namespace string) *Cached {
	return &Cached{inner: inner, cache: cache, namespace: namespace}
}

// Name reports the inner embedder's name.
func (c *Cached) Name() string { return c.inner.Name() }

// Embed returns cached vectors where present and embeds the rest.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, t := range texts {
		vec, ok, err := c.cache.GetEmbedding(ctx, c.key(t))
		if err != nil {
			return nil, fmt.Errorf("reading embedding cache: %w", err)
		}
		if ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), len(missTexts))
	}
	for j, vec := range vecs {
		out[missIdx[j]] = vec
		if err := c.cache.PutEmbedding(ctx, c.key(missTexts[j]), vec); err != nil {
			return nil, fmt.Errorf("writing embedding cache: %w", err)
		}
	}
	return out, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
