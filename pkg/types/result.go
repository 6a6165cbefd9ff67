// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ScoredSection is a Section with its scores. Rank is zero until the
// cross-document synthesizer selects the section.
type ScoredSection struct {
	Section

	// RelevanceScore is the weighted topical score in [0,1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// ConfidenceScore reflects extraction quality in [0,1].
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`

	// Rank is the 1-based position in the output.
	Rank int `json:"importance_rank" yaml:"importance_rank"`
}

// PersonaQuery is the query representation derived once per collection.
type PersonaQuery struct {
	RoleText string `json:"role" yaml:"role"`
	TaskText string `json:"task" yaml:"task"`

	// FocusTerms is the sorted set of stemmed keywords used for lexical
	// overlap.
	FocusTerms []string `json:"focus_terms" yaml:"focus_terms"`

	// Passage is the descriptive text that was embedded.
	Passage string `json:"passage" yaml:"passage"`

	// Embedding is the single query vector.
	Embedding []float64 `json:"-" yaml:"-"`
}

// SubsectionInsight is the refined excerpt of a selected section.
type SubsectionInsight struct {
	DocumentID     string  `json:"document" yaml:"document"`
	RefinedText    string  `json:"refined_text" yaml:"refined_text"`
	PageNumber     int     `json:"page_number" yaml:"page_number"`
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// WarningKind classifies an entry in OutputMetadata.Warnings.
type WarningKind string

const (
	WarnParse           WarningKind = "parse_error"
	WarnTimeout         WarningKind = "timeout"
	WarnNoSections      WarningKind = "no_sections"
	WarnPageFallback    WarningKind = "page_fallback"
	WarnTitleFallback   WarningKind = "title_fallback"
	WarnEmptyCollection WarningKind = "empty_collection"
)

// Warning is a recovered failure or fallback that is reported in the
// output metadata.
type Warning struct {
	Document string      `json:"document,omitempty" yaml:"document,omitempty"`
	Kind     WarningKind `json:"kind" yaml:"kind"`
	Message  string      `json:"message" yaml:"message"`
}

// OutputMetadata describes one run over a collection.
type OutputMetadata struct {
	InputDocuments        []string  `json:"input_documents" yaml:"input_documents"`
	Persona               string    `json:"persona" yaml:"persona"`
	JobToBeDone           string    `json:"job_to_be_done" yaml:"job_to_be_done"`
	ProcessingTimestamp   string    `json:"processing_timestamp" yaml:"processing_timestamp"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds" yaml:"processing_time_seconds"`
	RunID                 string    `json:"run_id" yaml:"run_id"`
	DocumentsProcessed    int       `json:"documents_processed" yaml:"documents_processed"`
	Warnings              []Warning `json:"warnings" yaml:"warnings"`
}

// ExtractedSection is the output form of a ranked section.
type ExtractedSection struct {
	Document        string  `json:"document" yaml:"document"`
	SectionTitle    string  `json:"section_title" yaml:"section_title"`
	ImportanceRank  int     `json:"importance_rank" yaml:"importance_rank"`
	PageNumber      int     `json:"page_number" yaml:"page_number"`
	RelevanceScore  float64 `json:"relevance_score" yaml:"relevance_score"`
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`
}

// OutputRecord is the terminal artifact for one collection. Field order is
// part of the JSON contract.
type OutputRecord struct {
	Metadata           OutputMetadata      `json:"metadata" yaml:"metadata"`
	ExtractedSections  []ExtractedSection  `json:"extracted_sections" yaml:"extracted_sections"`
	SubsectionAnalysis []SubsectionInsight `json:"subsection_analysis" yaml:"subsection_analysis"`
}
