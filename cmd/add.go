package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"metricindex/internal/corpus"
)

var (
	addFile   string
	addSource string
)

var addCmd = &cobra.Command{
	Use:   "add [term...]",
	Short: "Add terms to the dictionary",
	Long: `Add terms to the dictionary from the command line or from a word list.

Terms are trimmed and case-folded before they are stored, so "Books" and
"books" are the same term. A word list holds one term per line; blank lines
and lines starting with '#' are ignored.

Example:
  metricindex add books boots boobs
  metricindex add --file /usr/share/dict/words`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "Read terms from a word list")
	addCmd.Flags().StringVar(&addSource, "source", "", "Label stored with the terms (default: file name or \"cli\")")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	terms := args
	source := addSource
	if addFile != "" {
		fromFile, err := corpus.LoadFile(addFile)
		if err != nil {
			return err
		}
		terms = append(terms, fromFile...)
		if source == "" {
			source = filepath.Base(addFile)
		}
	}
	if len(terms) == 0 {
		return fmt.Errorf("no terms given: pass terms as arguments or use --file")
	}
	if source == "" {
		source = "cli"
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	dict, err := loadDictionary(store)
	if err != nil {
		return err
	}

	normalized := dict.Normalize(terms...)
	if _, err := store.SaveTerms(normalized, source); err != nil {
		return fmt.Errorf("failed to save terms: %w", err)
	}
	added := dict.Add(normalized...)

	fmt.Printf("Added %d new terms (%d given, %d total)\n", added, len(terms), dict.Len())
	return nil
}
