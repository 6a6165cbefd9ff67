// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/persona-engine/internal/secrets"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// resetViper gives each test a fresh viper configured like initConfig.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.SetEnvPrefix("PERSONA_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setEngineDefaults()
	t.Cleanup(viper.Reset)
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addEngineFlags(cmd)
	return cmd
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	resetViper(t)
	loadedSecrets = nil

	cfg, err := loadEngineConfig(testCommand())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultEngineConfig(), cfg)
}

func TestLoadEngineConfigPrecedence(t *testing.T) {
	resetViper(t)
	loadedSecrets = map[string]string{secrets.EmbeddingAPIKey: "ek_file"}
	t.Cleanup(func() { loadedSecrets = nil })

	t.Setenv("PERSONA_ENGINE_SCORE_RELEVANCE_THRESHOLD", "0.4")
	t.Setenv("PERSONA_ENGINE_DOCUMENT_TIMEOUT", "5s")
	t.Setenv("PERSONA_ENGINE_SYNTH_MAX_SECTIONS", "7")

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("max-sections", "3"))

	cfg, err := loadEngineConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Synth.MaxSections, "flag beats env")
	assert.Equal(t, 0.4, cfg.Score.RelevanceThreshold)
	assert.Equal(t, 5*time.Second, cfg.DocumentTimeout)
	assert.Equal(t, "ek_file", cfg.Embedding.APIKey)
}

func TestLoadEngineConfigInvalid(t *testing.T) {
	resetViper(t)

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("relevance-threshold", "1.5"))

	_, err := loadEngineConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relevance_threshold")
}

func TestLoadEngineConfigHTTPNeedsURL(t *testing.T) {
	resetViper(t)

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("embedding-provider", "http"))

	_, err := loadEngineConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "text", false},
		{"debug", "json", false},
		{"WARN", "", false},
		{"loud", "text", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l, err := newLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestOpenEnvSharesStore(t *testing.T) {
	dir := t.TempDir()
	cfg := types.DefaultEngineConfig()
	cfg.Embedding.Provider = types.ProviderHTTP
	cfg.Embedding.BaseURL = "http://localhost:11434/v1"
	cfg.Embedding.Model = "nomic-embed-text"
	cfg.Embedding.CacheDir = dir

	env, err := openEnv(cfg, dir)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.recorder())
	assert.Same(t, env.history, env.cache)
	assert.NotNil(t, env.factory)
}

func TestOpenEnvWithoutHistory(t *testing.T) {
	env, err := openEnv(types.DefaultEngineConfig(), "")
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.recorder())
	assert.Nil(t, env.cache)
}
