// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docparse turns input files into styled page blocks. PDF files
// are read with ledongthuc/pdf; Markdown files with goldmark. A Registry
// dispatches by file extension.
package docparse

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/persona-engine/pkg/types"
)

// Parser reads one document from path. Implementations must honour ctx
// cancellation between pages.
type Parser interface {
	Parse(ctx context.Context, path string) (types.Document, error)
}

// Registry maps lower-case file extensions (".pdf") to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the PDF and Markdown parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(".pdf", &PDFParser{})
	md := &MarkdownParser{}
	r.Register(".md", md)
	r.Register(".markdown", md)
	return r
}

// Register adds or replaces the parser for ext.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(ext)] = p
}

// Supports reports whether name has a registered extension.
func (r *Registry) Supports(name string) bool {
	_, ok := r.parsers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse dispatches to the parser registered for path's extension.
func (r *Registry) Parse(ctx context.Context, path string) (types.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.parsers[ext]
	if !ok {
		return types.Document{}, fmt.Errorf("unsupported document type %q", ext)
	}
	return p.Parse(ctx, path)
}
