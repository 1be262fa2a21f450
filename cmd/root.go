package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"metricindex/internal/lookup"
	"metricindex/internal/match"
	"metricindex/internal/storage"
)

var (
	dbPath    string
	threshold int
	workers   int
)

var rootCmd = &cobra.Command{
	Use:   "metricindex",
	Short: "Fuzzy term lookup and near-duplicate search over BK-trees",
	Long: `metricindex keeps a dictionary of terms and answers "which stored terms are
within k edits of this one" using a Burkhard-Keller tree.

The same index finds near-duplicate images: each image gets a 64-bit
perceptual hash and images whose hashes differ in only a few bits are grouped.

Example usage:
  metricindex add books boots boobs     # Store terms
  metricindex add --file words.txt      # Store a word list
  metricindex search bokks -k 1         # Terms within 1 edit
  metricindex clusters -k 2             # Terms that are close to each other
  metricindex scan ./photos             # Group similar images
  metricindex serve                     # JSON API over the same database`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Default database path
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".metricindex", "index.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Path to SQLite database")
	rootCmd.PersistentFlags().IntVar(&threshold, "threshold", match.DefaultImageThreshold, "Image hash distance threshold (0-64, lower = stricter)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 8, "Number of parallel workers for scanning")
}

func openStorage() (*storage.Storage, error) {
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// loadDictionary rebuilds the in-memory tree from the stored terms
func loadDictionary(store *storage.Storage) (*lookup.Dictionary, error) {
	terms, err := store.GetTerms()
	if err != nil {
		return nil, fmt.Errorf("failed to load terms: %w", err)
	}
	dict := lookup.New()
	dict.Add(terms...)
	return dict, nil
}
