// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Persona describes whose perspective determines relevance.
type Persona struct {
	Role       string   `json:"role" yaml:"role"`
	Expertise  []string `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	FocusAreas []string `json:"focus_areas,omitempty" yaml:"focus_areas,omitempty"`
}

// JobToBeDone is the task the persona is trying to accomplish.
type JobToBeDone struct {
	Task         string   `json:"task" yaml:"task"`
	Deliverables []string `json:"deliverables,omitempty" yaml:"deliverables,omitempty"`
}

// InputDocument is an optional entry of the collection's document list.
type InputDocument struct {
	Filename string `json:"filename" yaml:"filename"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
}

// CollectionInput is the metadata file that accompanies a collection.
type CollectionInput struct {
	Documents   []InputDocument `json:"documents,omitempty" yaml:"documents,omitempty"`
	Persona     Persona         `json:"persona" yaml:"persona"`
	JobToBeDone JobToBeDone     `json:"job_to_be_done" yaml:"job_to_be_done"`
}

// MissingField returns the dotted name of the first required field that is
// empty, or "" when the input is complete.
func (in CollectionInput) MissingField() string {
	if strings.TrimSpace(in.Persona.Role) == "" {
		return "persona.role"
	}
	if strings.TrimSpace(in.JobToBeDone.Task) == "" {
		return "job_to_be_done.task"
	}
	return ""
}
