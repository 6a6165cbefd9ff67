// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/persona-engine/internal/assemble"
	"github.com/pdiddy/persona-engine/internal/docparse"
	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// fakeParser serves in-memory documents by file name.
type fakeParser struct {
	mu    sync.Mutex
	docs  map[string]types.Document
	delay map[string]time.Duration
	calls int
}

func (f *fakeParser) Parse(_ context.Context, path string) (types.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	name := filepath.Base(path)
	if d, ok := f.delay[name]; ok {
		time.Sleep(d)
	}
	doc, ok := f.docs[name]
	if !ok {
		return types.Document{}, fmt.Errorf("cannot open %s", name)
	}
	return doc, nil
}

func testDoc(title, body string) types.Document {
	return types.Document{Pages: []types.Page{{Number: 1, Blocks: []types.Block{
		{Text: title, FontSize: 16, Flags: types.FlagBold},
		{Text: body, FontSize: 10},
	}}}}
}

func analystInput() types.CollectionInput {
	return types.CollectionInput{
		Persona:     types.Persona{Role: "Investment Analyst"},
		JobToBeDone: types.JobToBeDone{Task: "Analyze revenue trends"},
	}
}

func defaultDocs() map[string]types.Document {
	return map[string]types.Document{
		"strategy.pdf": testDoc("Revenue Growth Strategy", "Revenue trends show steady growth across every region we operate in."),
		"about.pdf":    testDoc("Company History", "The company was founded by two engineers working from a small garage."),
	}
}

// writeCollection creates a collection directory with a metadata file
// and empty document files under PDFs/.
func writeCollection(t *testing.T, dir string, in types.CollectionInput, files ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "PDFs"), 0o755))
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "challenge1b_input.json"), data, 0o644))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "PDFs", f), nil, 0o644))
	}
}

func testConfig() types.EngineConfig {
	cfg := types.DefaultEngineConfig()
	cfg.Score.RelevanceThreshold = 0.1
	cfg.Score.ConfidenceThreshold = 0.5
	return cfg
}

func newTestRunner(t *testing.T, cfg types.EngineConfig, fp *fakeParser) *Runner {
	t.Helper()
	reg := docparse.NewRegistry()
	reg.Register(".pdf", fp)
	factory, err := embedding.NewFactory(cfg.Embedding, nil)
	require.NoError(t, err)
	r := NewRunner(cfg, reg, factory, nil)
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return fixed }
	r.NewRunID = func() string { return "run-fixed" }
	return r
}

func TestRunCollectionRanksSections(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "collection-1")
	writeCollection(t, dir, analystInput(), "strategy.pdf", "about.pdf")
	r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"about.pdf", "strategy.pdf"}, rec.Metadata.InputDocuments)
	assert.Equal(t, 2, rec.Metadata.DocumentsProcessed)
	assert.Equal(t, "Investment Analyst", rec.Metadata.Persona)
	assert.Equal(t, "Analyze revenue trends", rec.Metadata.JobToBeDone)
	assert.Equal(t, "run-fixed", rec.Metadata.RunID)

	require.Len(t, rec.ExtractedSections, 2)
	assert.Equal(t, "Revenue Growth Strategy", rec.ExtractedSections[0].SectionTitle)
	assert.Equal(t, "Company History", rec.ExtractedSections[1].SectionTitle)
	for i, s := range rec.ExtractedSections {
		assert.Equal(t, i+1, s.ImportanceRank)
	}
	require.Len(t, rec.SubsectionAnalysis, 2)
	assert.Equal(t, "strategy.pdf", rec.SubsectionAnalysis[0].DocumentID)
}

func TestRunCollectionHonoursThresholds(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf", "about.pdf")
	cfg := types.DefaultEngineConfig()
	cfg.Synth.MaxSections = 1
	r := newTestRunner(t, cfg, &fakeParser{docs: defaultDocs()})

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rec.ExtractedSections), 1)
	assert.LessOrEqual(t, len(rec.ExtractedSections), cfg.Synth.MaxSections)
	for _, s := range rec.ExtractedSections {
		assert.GreaterOrEqual(t, s.RelevanceScore, cfg.Score.RelevanceThreshold)
		assert.GreaterOrEqual(t, s.ConfidenceScore, cfg.Score.ConfidenceThreshold)
	}
	assert.Len(t, rec.SubsectionAnalysis, len(rec.ExtractedSections))
}

func TestRunCollectionDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf", "about.pdf")
	cfg := types.DefaultEngineConfig()
	r := newTestRunner(t, cfg, &fakeParser{docs: defaultDocs()})

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, rec.ExtractedSections, 1, "only the revenue section clears the default thresholds")
	top := rec.ExtractedSections[0]
	assert.Equal(t, "Revenue Growth Strategy", top.SectionTitle)
	assert.Equal(t, "strategy.pdf", top.Document)
	assert.Equal(t, 1, top.ImportanceRank)
	assert.GreaterOrEqual(t, top.RelevanceScore, cfg.Score.RelevanceThreshold)
	require.Len(t, rec.SubsectionAnalysis, 1)
	assert.Equal(t, "strategy.pdf", rec.SubsectionAnalysis[0].DocumentID)
	assert.Empty(t, rec.Metadata.Warnings)
}

func TestRunCollectionSkipsUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf", "corrupt.pdf")
	r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"strategy.pdf"}, rec.Metadata.InputDocuments)
	require.Len(t, rec.Metadata.Warnings, 1)
	w := rec.Metadata.Warnings[0]
	assert.Equal(t, "corrupt.pdf", w.Document)
	assert.Equal(t, types.WarnParse, w.Kind)
	assert.Contains(t, w.Message, "cannot open corrupt.pdf")
}

func TestRunCollectionDocumentTimeout(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf", "about.pdf")
	cfg := testConfig()
	cfg.DocumentTimeout = 20 * time.Millisecond
	fp := &fakeParser{docs: defaultDocs(), delay: map[string]time.Duration{"about.pdf": 500 * time.Millisecond}}
	r := newTestRunner(t, cfg, fp)

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"strategy.pdf"}, rec.Metadata.InputDocuments)
	require.Len(t, rec.Metadata.Warnings, 1)
	assert.Equal(t, types.WarnTimeout, rec.Metadata.Warnings[0].Kind)
	for _, s := range rec.ExtractedSections {
		assert.NotEqual(t, "about.pdf", s.Document)
	}
}

func TestRunCollectionZeroDocuments(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput())
	r := newTestRunner(t, testConfig(), &fakeParser{})

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, rec.ExtractedSections)
	assert.Empty(t, rec.SubsectionAnalysis)
	assert.Equal(t, 0, rec.Metadata.DocumentsProcessed)
	require.Len(t, rec.Metadata.Warnings, 1)
	assert.Equal(t, types.WarnEmptyCollection, rec.Metadata.Warnings[0].Kind)

	var buf bytes.Buffer
	require.NoError(t, assemble.Encode(&buf, rec))
	assert.Contains(t, buf.String(), `"extracted_sections": []`)
	assert.Contains(t, buf.String(), `"documents_processed": 0`)
}

func TestRunCollectionMetadataErrorBeforeParsing(t *testing.T) {
	tests := []struct {
		name      string
		in        types.CollectionInput
		wantField string
	}{
		{"missing task", types.CollectionInput{Persona: types.Persona{Role: "Chef"}}, "job_to_be_done.task"},
		{"missing role", types.CollectionInput{JobToBeDone: types.JobToBeDone{Task: "Cook"}}, "persona.role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCollection(t, dir, tt.in, "strategy.pdf")
			fp := &fakeParser{docs: defaultDocs()}
			r := newTestRunner(t, testConfig(), fp)

			_, err := r.RunCollection(context.Background(), dir)
			var merr *InputMetadataError
			require.True(t, errors.As(err, &merr), "got %v", err)
			assert.Equal(t, tt.wantField, merr.Field)
			assert.Zero(t, fp.calls, "no document parsed")
		})
	}

	t.Run("no metadata file", func(t *testing.T) {
		_, err := newTestRunner(t, testConfig(), &fakeParser{}).RunCollection(context.Background(), t.TempDir())
		var merr *InputMetadataError
		assert.True(t, errors.As(err, &merr))
	})

	t.Run("malformed json", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "input.json"), []byte("{"), 0o644))
		_, err := newTestRunner(t, testConfig(), &fakeParser{}).RunCollection(context.Background(), dir)
		var merr *InputMetadataError
		assert.True(t, errors.As(err, &merr))
	})
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("model not loaded")
}

func TestRunCollectionEmbeddingFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf")
	r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})
	r.factory = func() (embedding.Embedder, error) { return failingEmbedder{}, nil }

	_, err := r.RunCollection(context.Background(), dir)
	var eerr *EmbeddingServiceError
	require.True(t, errors.As(err, &eerr), "got %v", err)
	assert.ErrorContains(t, err, "model not loaded")
}

func TestRunCollectionIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf", "about.pdf")

	encode := func() []byte {
		r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})
		rec, err := r.RunCollection(context.Background(), dir)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, assemble.Encode(&buf, rec))
		return buf.Bytes()
	}
	assert.Equal(t, encode(), encode())
}

func TestRunCollectionDocumentListOrder(t *testing.T) {
	dir := t.TempDir()
	in := analystInput()
	in.Documents = []types.InputDocument{{Filename: "strategy.pdf"}, {Filename: "missing.pdf"}, {Filename: "about.pdf"}}
	writeCollection(t, dir, in, "strategy.pdf", "about.pdf")
	r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"strategy.pdf", "about.pdf"}, rec.Metadata.InputDocuments)
	require.Len(t, rec.Metadata.Warnings, 1)
	assert.Equal(t, "missing.pdf", rec.Metadata.Warnings[0].Document)
}

func TestRunCollectionRejectsPathsOutsideCollection(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "collection")
	in := analystInput()
	in.Documents = []types.InputDocument{{Filename: "../outside.pdf"}, {Filename: "PDFs/strategy.pdf"}, {Filename: "strategy.pdf"}}
	writeCollection(t, dir, in, "strategy.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.pdf"), nil, 0o644))
	docs := defaultDocs()
	docs["outside.pdf"] = testDoc("Leaked", "This file lives outside the collection directory.")
	fp := &fakeParser{docs: docs}
	r := newTestRunner(t, testConfig(), fp)

	rec, err := r.RunCollection(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"strategy.pdf"}, rec.Metadata.InputDocuments)
	assert.Equal(t, 1, fp.calls, "only the in-collection document is parsed")
	require.Len(t, rec.Metadata.Warnings, 2)
	for _, w := range rec.Metadata.Warnings {
		assert.Equal(t, types.WarnParse, w.Kind)
		assert.Contains(t, w.Message, "outside the collection")
	}
	for _, s := range rec.ExtractedSections {
		assert.NotEqual(t, "Leaked", s.SectionTitle)
	}
}

func TestRunCollectionCancelled(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, analystInput(), "strategy.pdf")
	r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RunCollection(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

type memRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (m *memRecorder) SaveRun(_ context.Context, collection string, _ types.OutputRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, collection)
	return nil
}

func TestRunBatch(t *testing.T) {
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")
	writeCollection(t, filepath.Join(input, "good"), analystInput(), "strategy.pdf", "about.pdf")
	writeCollection(t, filepath.Join(input, "bad"), types.CollectionInput{Persona: types.Persona{Role: "Chef"}}, "strategy.pdf")
	require.NoError(t, os.MkdirAll(filepath.Join(input, "not-a-collection"), 0o755))

	r := newTestRunner(t, testConfig(), &fakeParser{docs: defaultDocs()})
	rec := &memRecorder{}
	var w bytes.Buffer
	summary, err := r.RunBatch(context.Background(), input, output, rec, &w)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, summary.HasFailures())
	assert.Equal(t, 2, summary.Total())
	assert.Equal(t, []string{"good"}, rec.runs)

	data, err := os.ReadFile(filepath.Join(output, "good_output.json"))
	require.NoError(t, err)
	var out types.OutputRecord
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotEmpty(t, out.ExtractedSections)

	log := w.String()
	assert.Contains(t, log, "failed bad: input metadata: job_to_be_done.task")
	assert.Contains(t, log, "processed good (2 sections)")
	assert.True(t, strings.HasSuffix(log, "1/2 collections processed\n"))
}

func TestRunBatchNoCollections(t *testing.T) {
	r := newTestRunner(t, testConfig(), &fakeParser{})
	_, err := r.RunBatch(context.Background(), t.TempDir(), t.TempDir(), nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestLoadInputYAML(t *testing.T) {
	dir := t.TempDir()
	yml := "persona:\n  role: Food Contractor\n  focus_areas: [vegetarian, buffet]\njob_to_be_done:\n  task: Prepare a dinner menu\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.yaml"), []byte(yml), 0o644))

	in, err := LoadInput(dir)
	require.NoError(t, err)
	assert.Equal(t, "Food Contractor", in.Persona.Role)
	assert.Equal(t, []string{"vegetarian", "buffet"}, in.Persona.FocusAreas)
}

func TestCollections(t *testing.T) {
	root := t.TempDir()
	writeCollection(t, filepath.Join(root, "b"), analystInput())
	writeCollection(t, filepath.Join(root, "a"), analystInput())

	dirs, err := Collections(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b")}, dirs)

	single, err := Collections(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a")}, single)

	assert.Equal(t, filepath.Join("out", "a_output.json"), OutputPath("out", filepath.Join(root, "a")+"/"))
}

func TestWithTimeout(t *testing.T) {
	v, err := withTimeout(context.Background(), time.Second, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = withTimeout(context.Background(), 10*time.Millisecond, func(context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("boom")
	assert.ErrorIs(t, &DocumentParseError{Document: "a.pdf", Err: base}, base)
	assert.ErrorIs(t, &EmbeddingServiceError{Err: base}, base)
	assert.ErrorIs(t, &InputMetadataError{Field: "persona.role", Err: base}, base)
	assert.Equal(t, "collection c is empty: no documents found", (&EmptyCollectionError{Collection: "c", Reason: "no documents found"}).Error())
}
