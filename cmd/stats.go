package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metricindex/internal/bktree"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dictionary and tree statistics",
	Long: `Show how many terms are stored and the shape of the BK-tree built from
them, along with image index counts.

Example:
  metricindex stats
  metricindex stats --json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}

type statsReport struct {
	Terms       int          `json:"terms"`
	Tree        bktree.Stats `json:"tree"`
	Images      int          `json:"images"`
	ImageGroups int          `json:"image_groups"`
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	dict, err := loadDictionary(store)
	if err != nil {
		return err
	}
	images, err := store.GetAllImages()
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}
	groups, err := store.GetGroupCount()
	if err != nil {
		return fmt.Errorf("failed to count groups: %w", err)
	}

	report := statsReport{
		Terms:       dict.Len(),
		Tree:        dict.Stats(),
		Images:      len(images),
		ImageGroups: groups,
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println("=== Dictionary ===")
	fmt.Printf("Terms:       %d\n", report.Terms)
	fmt.Printf("Tree depth:  %d\n", report.Tree.Depth)
	fmt.Printf("Leaves:      %d\n", report.Tree.Leaves)
	fmt.Printf("Max fan-out: %d\n", report.Tree.MaxFanout)
	fmt.Println()
	fmt.Println("=== Images ===")
	fmt.Printf("Indexed:          %d\n", report.Images)
	fmt.Printf("Duplicate groups: %d\n", report.ImageGroups)
	return nil
}
