// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "fmt"

// DocumentParseError reports one unreadable document. The run skips the
// document and records a warning.
type DocumentParseError struct {
	Document string
	Err      error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Document, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// EmbeddingServiceError reports a failed embedding call. It is fatal for
// the collection.
type EmbeddingServiceError struct {
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// EmptyCollectionError reports a collection with no documents or no
// sections. The run still produces a record with no extracted sections.
type EmptyCollectionError struct {
	Collection string
	Reason     string
}

func (e *EmptyCollectionError) Error() string {
	return fmt.Sprintf("collection %s is empty: %s", e.Collection, e.Reason)
}

// InputMetadataError reports a missing or malformed persona or job field.
// It is raised before any document is parsed.
type InputMetadataError struct {
	Field string
	Err   error
}

func (e *InputMetadataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("input metadata: %v", e.Err)
	}
	return fmt.Sprintf("input metadata: %s: %v", e.Field, e.Err)
}

func (e *InputMetadataError) Unwrap() error { return e.Err }
