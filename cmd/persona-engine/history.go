// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/persona-engine/internal/history"
	"github.com/pdiddy/persona-engine/internal/lexicon"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the run history (list, search, export)",
	Long: `History reads the SQLite run history that run and rank write with
--history-dir. Use subcommands to list past runs, search their refined
excerpts, or export the stored records.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), historyOpts(cmd, args))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-25s  %-8s  %s\n", "Run", "Collection", "Persona", "Sections", "Timestamp")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-25s  %-8d  %s\n",
			r.RunID, lexicon.Truncate(r.Collection, 20), lexicon.Truncate(r.Persona, 25), r.Sections, r.Timestamp)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over refined excerpts of past runs",
	Long: `Search matches an FTS5 query against the refined excerpts stored for
past runs and prints the best matches with their document and page.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistorySearch,
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(context.Background(), historyOpts(cmd, args))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return printJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-25s  %-4s  %s\n", "Rank", "Collection", "Document", "Page", "Excerpt")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for i, h := range hits {
		fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-25s  %-4d  %s\n",
			i+1, lexicon.Truncate(h.Collection, 20), lexicon.Truncate(h.Document, 25),
			h.PageNumber, lexicon.Truncate(h.RefinedText, 60))
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records as YAML or JSON",
	Long: `Export writes the stored output records of past runs, optionally
filtered by collection, to stdout or --output.`,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	opts := historyOpts(cmd, args)
	switch format {
	case "yaml", "":
		err = store.ExportYAML(context.Background(), w, opts)
	case "json":
		err = store.ExportJSON(context.Background(), w, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Printf("Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	if err := viper.BindPFlag("history_dir", cmd.Flags().Lookup("history-dir")); err != nil {
		return nil, err
	}
	dir := viper.GetString("history_dir")
	if dir == "" {
		dir = "history"
	}
	return history.NewStore(dir)
}

func historyOpts(cmd *cobra.Command, args []string) history.QueryOptions {
	collection, _ := cmd.Flags().GetString("collection")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.QueryOptions{
		Query:      strings.Join(args, " "),
		Collection: collection,
		Limit:      limit,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	historyCmd.PersistentFlags().String("history-dir", "history", "directory of the run history database")
	historyCmd.PersistentFlags().String("collection", "", "filter by collection name")
	historyCmd.PersistentFlags().Int("limit", 0, "maximum results (0 = default)")

	historyListCmd.Flags().Bool("json", false, "output runs as JSON")
	historySearchCmd.Flags().Bool("json", false, "output results as JSON")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().StringP("output", "o", "", "write the export to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
