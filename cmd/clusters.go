package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"metricindex/internal/match"
	"metricindex/internal/models"
)

var (
	clustersDistance int
	clustersJSON     bool
	clustersLimit    int
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Group stored terms that are within k edits of each other",
	Long: `Group dictionary terms that are close to each other, directly or through
other terms. Useful for spotting misspellings and variants in a word list.

Example:
  metricindex clusters          # k = 1, first 20 clusters
  metricindex clusters -k 2 -n 0`,
	RunE: runClusters,
}

func init() {
	clustersCmd.Flags().IntVarP(&clustersDistance, "distance", "k", 1, "Maximum edit distance between neighbours")
	clustersCmd.Flags().BoolVar(&clustersJSON, "json", false, "Output in JSON format")
	clustersCmd.Flags().IntVarP(&clustersLimit, "limit", "n", 20, "Limit number of clusters to display (0 = all)")
	rootCmd.AddCommand(clustersCmd)
}

func runClusters(cmd *cobra.Command, args []string) error {
	if clustersDistance < 0 {
		return fmt.Errorf("invalid distance %d: must not be negative", clustersDistance)
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

	clusters := match.TermClusters(dict.Terms(), clustersDistance)
	total := len(clusters)
	if clustersLimit > 0 && clustersLimit < len(clusters) {
		clusters = clusters[:clustersLimit]
	}

	if clustersJSON {
		if clusters == nil {
			clusters = []*models.TermCluster{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(clusters)
	}

	if total == 0 {
		fmt.Printf("No clusters at distance %d (%d terms)\n", clustersDistance, dict.Len())
		return nil
	}

	fmt.Printf("Found %d clusters at distance %d\n\n", total, clustersDistance)
	for _, c := range clusters {
		fmt.Printf("#%-5d (%d)  %s\n", c.ID, len(c.Terms), strings.Join(c.Terms, ", "))
	}
	if len(clusters) < total {
		fmt.Printf("\nShowing %d of %d clusters (use -n 0 for all)\n", len(clusters), total)
	}
	return nil
}
