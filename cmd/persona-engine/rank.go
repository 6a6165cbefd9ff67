// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/persona-engine/internal/assemble"
	"github.com/pdiddy/persona-engine/internal/docparse"
	"github.com/pdiddy/persona-engine/internal/pipeline"
)

var rankCmd = &cobra.Command{
	Use:   "rank <collection-dir>",
	Short: "Rank the sections of one collection",
	Long: `Rank processes a single collection and prints its JSON record to
stdout, or writes it to --output. Warnings recorded in the metadata are
also logged.`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
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
	rec, err := runner.RunCollection(ctx, args[0])
	if err != nil {
		return err
	}
	for _, w := range rec.Metadata.Warnings {
		logger.Warn(w.Message, "kind", w.Kind, "document", w.Document)
	}

	if r := env.recorder(); r != nil {
		if err := r.SaveRun(ctx, filepath.Base(filepath.Clean(args[0])), rec); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recording run: %v\n", err)
		}
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return assemble.Encode(os.Stdout, rec)
	}
	if err := pipeline.WriteOutput(output, rec); err != nil {
		return err
	}
	fmt.Printf("%d sections -> %s\n", len(rec.ExtractedSections), output)
	return nil
}

func init() {
	addEngineFlags(rankCmd)
	rankCmd.Flags().StringP("output", "o", "", "write the record to this file instead of stdout")
	rankCmd.Flags().String("history-dir", "", "save the record to the run history in this directory")

	rootCmd.AddCommand(rankCmd)
}
