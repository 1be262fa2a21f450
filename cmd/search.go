package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metricindex/internal/bktree"
	"metricindex/internal/models"
)

var (
	searchDistance  int
	searchJSON      bool
	searchNoHistory bool
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find stored terms within k edits of a term",
	Long: `Search the dictionary for terms whose edit distance to <term> is at most k.

Results are ordered by distance, then alphabetically. Every search is
recorded in the query history unless --no-history is set.

Example:
  metricindex search bokks           # k = 1
  metricindex search recieve -k 2
  metricindex search bokks --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchDistance, "distance", "k", 1, "Maximum edit distance")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	searchCmd.Flags().BoolVar(&searchNoHistory, "no-history", false, "Don't record the search")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	term := args[0]

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	dict, err := loadDictionary(store)
	if err != nil {
		return err
	}

	matches, err := dict.Lookup(term, searchDistance)
	if errors.Is(err, bktree.ErrNegativeDistance) {
		return fmt.Errorf("invalid distance %d: must not be negative", searchDistance)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if !searchNoHistory {
		if _, err := store.RecordQuery(term, searchDistance, len(matches)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	if searchJSON {
		if matches == nil {
			matches = []models.Match{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Printf("No terms within %d of %q (%d terms searched)\n", searchDistance, term, dict.Len())
		return nil
	}

	fmt.Printf("%d terms within %d of %q\n\n", len(matches), searchDistance, term)
	fmt.Printf("%-8s  %s\n", "Distance", "Term")
	for _, m := range matches {
		fmt.Printf("%-8d  %s\n", m.Distance, m.Term)
	}
	return nil
}
