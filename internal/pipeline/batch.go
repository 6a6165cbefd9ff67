// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/persona-engine/internal/assemble"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// Recorder persists completed runs. history.Store implements it.
type Recorder interface {
	SaveRun(ctx context.Context, collection string, rec types.OutputRecord) error
}

// BatchSummary holds the outcome of a batch run.
type BatchSummary struct {
	Processed int
	Failed    int
	Outputs   []string
}

// Total returns the number of collections attempted.
func (s BatchSummary) Total() int {
	return s.Processed + s.Failed
}

// HasFailures reports whether any collection failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// RunBatch processes every collection under inputDir in parallel and
// writes one output file per collection to outputDir. A failed
// collection is reported and does not stop the others. Progress lines go
// to w. When rec is non-nil each record is also saved to it.
func (r *Runner) RunBatch(ctx context.Context, inputDir, outputDir string, rec Recorder, w io.Writer) (BatchSummary, error) {
	var summary BatchSummary
	dirs, err := Collections(inputDir)
	if err != nil {
		return summary, err
	}
	if len(dirs) == 0 {
		return summary, fmt.Errorf("no collections found in %s", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return summary, fmt.Errorf("creating output directory: %w", err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			name := filepath.Base(dir)
			out, n, err := r.runOne(ctx, dir, outputDir, rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(w, "failed %s: %v\n", name, err)
				summary.Failed++
				return nil
			}
			if out.warning != "" {
				fmt.Fprintf(w, "  warning: %s\n", out.warning)
			}
			fmt.Fprintf(w, "processed %s (%d sections) -> %s\n", name, n, out.path)
			summary.Processed++
			summary.Outputs = append(summary.Outputs, out.path)
			return nil
		})
	}
	g.Wait()

	fmt.Fprintf(w, "\n%d/%d collections processed\n", summary.Processed, summary.Total())
	return summary, nil
}

type batchOutput struct {
	path    string
	warning string
}

func (r *Runner) runOne(ctx context.Context, dir, outputDir string, rec Recorder) (batchOutput, int, error) {
	var out batchOutput
	record, err := r.RunCollection(ctx, dir)
	if err != nil {
		return out, 0, err
	}
	out.path = OutputPath(outputDir, dir)
	if err := WriteOutput(out.path, record); err != nil {
		return out, 0, err
	}
	if rec != nil {
		if err := rec.SaveRun(ctx, filepath.Base(dir), record); err != nil {
			out.warning = fmt.Sprintf("recording run: %v", err)
		}
	}
	return out, len(record.ExtractedSections), nil
}

// WriteOutput writes rec to path through a temporary file so a failed
// write never leaves a partial record behind.
func WriteOutput(path string, rec types.OutputRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".output-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := assemble.Encode(tmp, rec); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming output: %w", err)
	}
	return nil
}
