// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/pdiddy/persona-engine/internal/lexicon"
)

// TFIDF is a corpus-fitted TF-IDF vectorizer. The vocabulary is sorted so
// vectors are identical across runs over the same corpus.
type TFIDF struct {
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewTFIDF returns an unprepared TF-IDF embedder.
func NewTFIDF() *TFIDF {
	return &TFIDF{vocabulary: make(map[string]int)}
}

// Name identifies the embedder.
func (e *TFIDF) Name() string { return "tfidf" }

// Dimension is the vocabulary size after Prepare.
func (e *TFIDF) Dimension() int { return len(e.idf) }

// Prepare builds the vocabulary and smoothed IDF weights from corpus.
func (e *TFIDF) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for tf-idf")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokens(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return errors.New("no tokens found in corpus")
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	for i, term := range terms {
		e.vocabulary[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	e.prepared = true
	return nil
}

// Embed returns L2-normalized TF-IDF vectors. Out-of-vocabulary text
// yields a zero vector.
func (e *TFIDF) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if !e.prepared {
		return nil, errors.New("tf-idf embedder not prepared")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *TFIDF) vector(text string) []float64 {
	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokens(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// tokens returns stemmed, stopword-free words.
func tokens(text string) []string {
	words := lexicon.Words(text)
	for i, w := range words {
		words[i] = lexicon.Stem(w)
	}
	return words
}
