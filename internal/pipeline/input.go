// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/persona-engine/internal/docparse"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// documentsDir is the conventional sub-directory holding a collection's
// documents.
const documentsDir = "PDFs"

// MetadataFiles lists the accepted metadata file names in lookup order.
var MetadataFiles = []string{
	"challenge1b_input.json",
	"input.json",
	"metadata.json",
	"input.yaml",
	"input.yml",
}

var errNoMetadata = errors.New("no metadata file found")

// FindMetadata returns the path of the collection's metadata file.
func FindMetadata(dir string) (string, error) {
	for _, name := range MetadataFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errNoMetadata
}

// LoadInput reads and validates the metadata file of the collection in
// dir. Every failure is an InputMetadataError.
func LoadInput(dir string) (types.CollectionInput, error) {
	var in types.CollectionInput
	path, err := FindMetadata(dir)
	if err != nil {
		return in, &InputMetadataError{Err: fmt.Errorf("%w in %s (expected one of %s)", err, dir, strings.Join(MetadataFiles, ", "))}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return in, &InputMetadataError{Err: fmt.Errorf("reading %s: %w", path, err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &in)
	default:
		err = json.Unmarshal(data, &in)
	}
	if err != nil {
		return in, &InputMetadataError{Err: fmt.Errorf("parsing %s: %w", filepath.Base(path), err)}
	}
	if field := in.MissingField(); field != "" {
		return in, &InputMetadataError{Field: field, Err: errors.New("required field is empty")}
	}
	return in, nil
}

// docRef names one document of a collection.
type docRef struct {
	ID   string
	Path string

	// Err rejects the document before parsing.
	Err error
}

// discoverDocuments lists the collection's documents. When the metadata
// names documents, that list sets the order and missing files are kept so
// that parsing reports them. Names with path components are rejected. Otherwise supported files are discovered in
// PDFs/ (or the collection directory) and sorted by name.
func discoverDocuments(dir string, in types.CollectionInput, reg *docparse.Registry) ([]docRef, error) {
	root := dir
	if info, err := os.Stat(filepath.Join(dir, documentsDir)); err == nil && info.IsDir() {
		root = filepath.Join(dir, documentsDir)
	}

	if len(in.Documents) > 0 {
		refs := make([]docRef, 0, len(in.Documents))
		seen := make(map[string]bool)
		for _, d := range in.Documents {
			name := strings.TrimSpace(d.Filename)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			if filepath.Base(name) != name || name == "." || name == ".." {
				refs = append(refs, docRef{ID: name, Err: fmt.Errorf("file name %q points outside the collection", name)})
				continue
			}
			path := filepath.Join(root, name)
			if _, err := os.Stat(path); err != nil && root != dir {
				if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
					path = filepath.Join(dir, name)
				}
			}
			refs = append(refs, docRef{ID: name, Path: path})
		}
		return refs, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	var refs []docRef
	for _, e := range entries {
		if e.IsDir() || !reg.Supports(e.Name()) {
			continue
		}
		refs = append(refs, docRef{ID: e.Name(), Path: filepath.Join(root, e.Name())})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// Collections returns the collection directories under dir: dir itself
// when it holds a metadata file, otherwise every sub-directory that does,
// sorted by name.
func Collections(dir string) ([]string, error) {
	if _, err := FindMetadata(dir); err == nil {
		return []string{dir}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if _, err := FindMetadata(sub); err == nil {
			out = append(out, sub)
		}
	}
	sort.Strings(out)
	return out, nil
}

// OutputPath returns the output file path of a collection.
func OutputPath(outputDir, collection string) string {
	return filepath.Join(outputDir, filepath.Base(filepath.Clean(collection))+"_output.json")
}
