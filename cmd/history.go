package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metricindex/internal/models"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	Long: `Show the most recent searches, newest first.

Example:
  metricindex history
  metricindex history -n 50 --json`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of searches to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("invalid limit %d: must not be negative", historyLimit)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	queries, err := store.RecentQueries(historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		if queries == nil {
			queries = []*models.Query{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(queries)
	}

	if len(queries) == 0 {
		fmt.Println("No searches recorded.")
		return nil
	}

	fmt.Printf("%-19s  %-3s  %-7s  %s\n", "When", "k", "Results", "Term")
	for _, q := range queries {
		fmt.Printf("%-19s  %-3d  %-7d  %s\n",
			q.CreatedAt.Local().Format("2006-01-02 15:04:05"), q.MaxDistance, q.Results, q.Term)
	}
	return nil
}
