// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/persona-engine/internal/docparse"
	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/internal/segment"
	"github.com/pdiddy/persona-engine/pkg/types"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <document>",
	Short: "Print the sections detected in one document",
	Long: `Segment parses a PDF or Markdown document, splits it into titled
sections the same way rank does, and prints one line per section with its
page, heading level, and body length. Use --json for the full sections.`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func runSegment(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig(cmd)
	if err != nil {
		return err
	}

	doc, err := docparse.NewRegistry().Parse(context.Background(), args[0])
	if err != nil {
		return err
	}
	res, err := segment.Segment(doc, cfg.Segment)
	if err != nil {
		return fmt.Errorf("segmenting %s: %w", doc.ID, err)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Sections)
	}
	formatSections(res)
	return nil
}

func formatSections(res segment.Result) {
	fmt.Fprintf(os.Stdout, "%-4s  %-5s  %-5s  %-50s  %s\n", "Page", "Level", "Words", "Title", "Flags")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))

	for _, s := range res.Sections {
		var flags []string
		if s.TitleFallback {
			flags = append(flags, "fallback-title")
		}
		if s.HeadingLevel == types.LevelNone {
			flags = append(flags, "page")
		}
		if s.EndPage > s.PageNumber {
			flags = append(flags, fmt.Sprintf("to-p%d", s.EndPage))
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-5d  %-5d  %-50s  %s\n",
			s.PageNumber, s.HeadingLevel, lexicon.WordCount(s.BodyText),
			lexicon.Truncate(s.Title, 50), strings.Join(flags, ","))
	}

	fmt.Fprintf(os.Stdout, "\n%d sections, %d blocks (%d headings, %d unclassified), body baseline %.1fpt\n",
		len(res.Sections), res.Blocks, res.Headings, res.Unclassified, res.Baseline)
}

func init() {
	segmentCmd.Flags().Float64("heading-size-ratio", types.DefaultEngineConfig().Segment.HeadingSizeRatio, "font-size multiple of the body baseline that marks a heading")
	segmentCmd.Flags().Bool("json", false, "print the sections as JSON")

	rootCmd.AddCommand(segmentCmd)
}
