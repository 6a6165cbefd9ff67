// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/persona-engine/internal/secrets"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// embeddingKeyEnv is the environment fallback for the embedding API key.
const embeddingKeyEnv = "PERSONA_ENGINE_EMBEDDING_API_KEY"

// engineFlags maps command-line flags to configuration keys.
var engineFlags = map[string]string{
	"max-sections":         "synth.max_sections",
	"max-per-document":     "synth.max_per_document",
	"dedup-threshold":      "synth.dedup_threshold",
	"relevance-threshold":  "score.relevance_threshold",
	"confidence-threshold": "score.confidence_threshold",
	"document-timeout":     "document_timeout",
	"concurrency":          "concurrency",
	"embedding-provider":   "embedding.provider",
	"embedding-url":        "embedding.base_url",
	"embedding-model":      "embedding.model",
	"embedding-cache-dir":  "embedding.cache_dir",
	"history-dir":          "history_dir",
	"heading-size-ratio":   "segment.heading_size_ratio",
}

// setEngineDefaults registers every engine setting with viper so that
// environment variables and config files reach Unmarshal.
func setEngineDefaults() {
	d := types.DefaultEngineConfig()
	defaults := map[string]any{
		"segment.heading_size_ratio":    d.Segment.HeadingSizeRatio,
		"segment.max_heading_words":     d.Segment.MaxHeadingWords,
		"segment.short_line_words":      d.Segment.ShortLineWords,
		"score.weights.semantic":        d.Score.Weights.Semantic,
		"score.weights.lexical":         d.Score.Weights.Lexical,
		"score.weights.structural":      d.Score.Weights.Structural,
		"score.relevance_threshold":     d.Score.RelevanceThreshold,
		"score.confidence_threshold":    d.Score.ConfidenceThreshold,
		"score.min_body_words":          d.Score.MinBodyWords,
		"score.max_embed_chars":         d.Score.MaxEmbedChars,
		"synth.max_sections":            d.Synth.MaxSections,
		"synth.dedup_threshold":         d.Synth.DedupThreshold,
		"synth.max_per_document":        d.Synth.MaxPerDocument,
		"synth.refined_max_sentences":   d.Synth.RefinedMaxSentences,
		"synth.refined_max_chars":       d.Synth.RefinedMaxChars,
		"embedding.provider":            string(d.Embedding.Provider),
		"embedding.base_url":            d.Embedding.BaseURL,
		"embedding.model":               d.Embedding.Model,
		"embedding.api_key":             "",
		"embedding.timeout":             d.Embedding.Timeout,
		"embedding.max_retries":         d.Embedding.MaxRetries,
		"embedding.batch_size":          d.Embedding.BatchSize,
		"embedding.requests_per_minute": d.Embedding.RequestsPerMinute,
		"embedding.cache_dir":           d.Embedding.CacheDir,
		"document_timeout":              d.DocumentTimeout,
		"concurrency":                   d.Concurrency,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// addEngineFlags registers the engine flags on cmd.
func addEngineFlags(cmd *cobra.Command) {
	d := types.DefaultEngineConfig()
	f := cmd.Flags()
	f.Int("max-sections", d.Synth.MaxSections, "maximum number of extracted sections")
	f.Int("max-per-document", d.Synth.MaxPerDocument, "maximum sections from one document (0 = unlimited)")
	f.Float64("dedup-threshold", d.Synth.DedupThreshold, "cosine similarity at which sections are near-duplicates")
	f.Float64("relevance-threshold", d.Score.RelevanceThreshold, "minimum relevance score of an extracted section")
	f.Float64("confidence-threshold", d.Score.ConfidenceThreshold, "minimum confidence score of an extracted section")
	f.Duration("document-timeout", d.DocumentTimeout, "time limit for parsing or embedding one document")
	f.Int("concurrency", d.Concurrency, "parallel collections and documents")
	f.String("embedding-provider", string(d.Embedding.Provider), "embedding provider: tfidf or http")
	f.String("embedding-url", "", "OpenAI-compatible embedding API root (http provider)")
	f.String("embedding-model", "", "embedding model identifier (http provider)")
	f.String("embedding-cache-dir", "", "directory of the SQLite embedding cache (http provider)")
}

// bindEngineFlags binds the flags of the running command. Binding happens
// at run time because several commands share the same keys.
func bindEngineFlags(flags *pflag.FlagSet) error {
	for name, key := range engineFlags {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// loadEngineConfig resolves the engine configuration from defaults, the
// config file, the environment, and the flags of cmd, in increasing
// precedence.
func loadEngineConfig(cmd *cobra.Command) (types.EngineConfig, error) {
	if err := bindEngineFlags(cmd.Flags()); err != nil {
		return types.EngineConfig{}, err
	}
	cfg := types.DefaultEngineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = secrets.Lookup(loadedSecrets, secrets.EmbeddingAPIKey, embeddingKeyEnv)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config resolves defaults, the config file, PERSONA_ENGINE_ environment
variables, and flags, validates the result, and prints it as YAML. The
embedding API key is never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadEngineConfig(cmd)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	addEngineFlags(configCmd)
	rootCmd.AddCommand(configCmd)
}
