// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// SegmentConfig holds the typography thresholds used by the segmenter.
type SegmentConfig struct {
	// HeadingSizeRatio is the font-size multiple of the body baseline at
	// which a block counts as a heading candidate (default 1.15).
	HeadingSizeRatio float64 `json:"heading_size_ratio" yaml:"heading_size_ratio" mapstructure:"heading_size_ratio"`

	// MaxHeadingWords caps the word count of any heading (default 12).
	MaxHeadingWords int `json:"max_heading_words" yaml:"max_heading_words" mapstructure:"max_heading_words"`

	// ShortLineWords is the word limit for the short-line heuristic (default 6).
	ShortLineWords int `json:"short_line_words" yaml:"short_line_words" mapstructure:"short_line_words"`
}

// Weights are the fixed combination constants of the relevance score.
// They are policy, not learned parameters.
type Weights struct {
	Semantic   float64 `json:"semantic" yaml:"semantic" mapstructure:"semantic"`
	Lexical    float64 `json:"lexical" yaml:"lexical" mapstructure:"lexical"`
	Structural float64 `json:"structural" yaml:"structural" mapstructure:"structural"`
}

// Normalized returns the weights scaled to sum to 1.
func (w Weights) Normalized() Weights {
	sum := w.Semantic + w.Lexical + w.Structural
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{Semantic: w.Semantic / sum, Lexical: w.Lexical / sum, Structural: w.Structural / sum}
}

// DefaultWeights returns the default score weights.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Lexical: 0.3, Structural: 0.2}
}

// ScoreConfig holds settings for the relevance scorer.
type ScoreConfig struct {
	Weights Weights `json:"weights" yaml:"weights" mapstructure:"weights"`

	// RelevanceThreshold drops sections below this relevance (default 0.6).
	RelevanceThreshold float64 `json:"relevance_threshold" yaml:"relevance_threshold" mapstructure:"relevance_threshold"`

	// ConfidenceThreshold drops sections below this confidence regardless
	// of their relevance (default 0.7).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`

	// MinBodyWords is the body length under which confidence is discounted (default 20).
	MinBodyWords int `json:"min_body_words" yaml:"min_body_words" mapstructure:"min_body_words"`

	// MaxEmbedChars truncates section text before embedding (default 2000).
	MaxEmbedChars int `json:"max_embed_chars" yaml:"max_embed_chars" mapstructure:"max_embed_chars"`
}

// SynthConfig holds settings for cross-document synthesis.
type SynthConfig struct {
	// MaxSections caps the output section count (default 10).
	MaxSections int `json:"max_sections" yaml:"max_sections" mapstructure:"max_sections"`

	// DedupThreshold is the embedding cosine at or above which two
	// sections are near-duplicates (default 0.85).
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold" mapstructure:"dedup_threshold"`

	// MaxPerDocument caps selections from one document; 0 means unlimited.
	MaxPerDocument int `json:"max_per_document" yaml:"max_per_document" mapstructure:"max_per_document"`

	// RefinedMaxSentences bounds the refined-text window (default 3).
	RefinedMaxSentences int `json:"refined_max_sentences" yaml:"refined_max_sentences" mapstructure:"refined_max_sentences"`

	// RefinedMaxChars bounds the refined-text length (default 600).
	RefinedMaxChars int `json:"refined_max_chars" yaml:"refined_max_chars" mapstructure:"refined_max_chars"`
}

// EmbeddingProvider selects the embedding collaborator.
type EmbeddingProvider string

const (
	ProviderTFIDF EmbeddingProvider = "tfidf"
	ProviderHTTP  EmbeddingProvider = "http"
)

// EmbeddingConfig holds settings for the embedding collaborator.
type EmbeddingConfig struct {
	// Provider is tfidf (local, deterministic) or http.
	Provider EmbeddingProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// BaseURL is the OpenAI-compatible API root (e.g. "http://localhost:11434/v1").
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Model is the embedding model identifier.
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`

	// APIKey is the bearer token for the embedding API.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// Timeout is the HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on 429/5xx (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BatchSize caps inputs per request (default 64).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// RequestsPerMinute throttles requests; 0 disables throttling.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// CacheDir enables the SQLite embedding cache when set.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`
}

// EngineConfig groups all settings for one pipeline run. It is passed by
// value into each component, so concurrent collections may use different
// settings.
type EngineConfig struct {
	Segment   SegmentConfig   `json:"segment" yaml:"segment" mapstructure:"segment"`
	Score     ScoreConfig     `json:"score" yaml:"score" mapstructure:"score"`
	Synth     SynthConfig     `json:"synth" yaml:"synth" mapstructure:"synth"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`

	// DocumentTimeout bounds parsing and embedding of a single document (default 30s).
	DocumentTimeout time.Duration `json:"document_timeout" yaml:"document_timeout" mapstructure:"document_timeout"`

	// Concurrency bounds parallel collections and documents (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultEngineConfig returns the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Segment: SegmentConfig{
			HeadingSizeRatio: 1.15,
			MaxHeadingWords:  12,
			ShortLineWords:   6,
		},
		Score: ScoreConfig{
			Weights:             DefaultWeights(),
			RelevanceThreshold:  0.6,
			ConfidenceThreshold: 0.7,
			MinBodyWords:        20,
			MaxEmbedChars:       2000,
		},
		Synth: SynthConfig{
			MaxSections:         10,
			DedupThreshold:      0.85,
			RefinedMaxSentences: 3,
			RefinedMaxChars:     600,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderTFIDF,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			BatchSize:  64,
		},
		DocumentTimeout: 30 * time.Second,
		Concurrency:     4,
	}
}

// Validate reports the first out-of-range setting.
func (c EngineConfig) Validate() error {
	inUnit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
		return nil
	}
	if err := inUnit("relevance_threshold", c.Score.RelevanceThreshold); err != nil {
		return err
	}
	if err := inUnit("confidence_threshold", c.Score.ConfidenceThreshold); err != nil {
		return err
	}
	if err := inUnit("dedup_threshold", c.Synth.DedupThreshold); err != nil {
		return err
	}
	if c.Synth.MaxSections <= 0 {
		return fmt.Errorf("max_sections must be positive, got %d", c.Synth.MaxSections)
	}
	if c.Synth.MaxPerDocument < 0 {
		return fmt.Errorf("max_per_document must not be negative, got %d", c.Synth.MaxPerDocument)
	}
	if c.Segment.HeadingSizeRatio < 1 {
		return fmt.Errorf("heading_size_ratio must be at least 1, got %v", c.Segment.HeadingSizeRatio)
	}
	w := c.Score.Weights
	if w.Semantic < 0 || w.Lexical < 0 || w.Structural < 0 {
		return fmt.Errorf("score weights must not be negative")
	}
	if c.DocumentTimeout <= 0 {
		return fmt.Errorf("document_timeout must be positive, got %v", c.DocumentTimeout)
	}
	switch c.Embedding.Provider {
	case ProviderTFIDF:
	case ProviderHTTP:
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q: use tfidf or http", c.Embedding.Provider)
	}
	return nil
}
