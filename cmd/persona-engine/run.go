// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/persona-engine/internal/docparse"
	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/internal/history"
	"github.com/pdiddy/persona-engine/internal/pipeline"
	"github.com/pdiddy/persona-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <input-dir> <output-dir>",
	Short: "Rank every collection under an input directory",
	Long: `Run treats input-dir as one collection when it holds a metadata file
(challenge1b_input.json, input.json, metadata.json, or input.yaml) and
otherwise processes every sub-directory that does. Each collection's record
is written to output-dir/<collection>_output.json.

A collection that fails is reported and does not stop the others; the
command exits non-zero when any collection failed. With --history-dir each
record is also saved to the SQLite run history.`,
	Args: cobra.ExactArgs(2),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig(cmd)
	if err != nil {
		return err
	}
	env, err := openEnv(cfg, viper.GetString("history_dir"))
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := pipeline.NewRunner(cfg, docparse.NewRegistry(), env.factory, logger)
	summary, err := runner.RunBatch(ctx, args[0], args[1], env.recorder(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d collection(s) failed", summary.Failed)
	}
	return nil
}

// runEnv holds the collaborators a run needs beyond the configuration.
type runEnv struct {
	factory embedding.Factory
	history *history.Store
	cache   *history.Store
}

// openEnv opens the history store and the embedding cache when their
// directories are set and builds the embedder factory. The two share one
// store when the directories match.
func openEnv(cfg types.EngineConfig, historyDir string) (*runEnv, error) {
	env := &runEnv{}
	if historyDir != "" {
		s, err := history.NewStore(historyDir)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		env.history = s
	}

	var cache embedding.Cache
	if dir := cfg.Embedding.CacheDir; dir != "" && cfg.Embedding.Provider == types.ProviderHTTP {
		if dir == historyDir {
			env.cache = env.history
		} else {
			s, err := history.NewStore(dir)
			if err != nil {
				env.Close()
				return nil, fmt.Errorf("opening embedding cache: %w", err)
			}
			env.cache = s
		}
		cache = env.cache
	}

	factory, err := embedding.NewFactory(cfg.Embedding, cache)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.factory = factory
	return env, nil
}

// recorder returns the history store as a pipeline.Recorder, or nil when
// history is off.
func (e *runEnv) recorder() pipeline.Recorder {
	if e.history == nil {
		return nil
	}
	return e.history
}

// Close closes the stores.
func (e *runEnv) Close() {
	if e.cache != nil && e.cache != e.history {
		e.cache.Close()
	}
	if e.history != nil {
		e.history.Close()
	}
}

func init() {
	addEngineFlags(runCmd)
	runCmd.Flags().String("history-dir", "", "save each record to the run history in this directory")

	rootCmd.AddCommand(runCmd)
}
