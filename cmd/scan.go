package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"metricindex/internal/hash"
	"metricindex/internal/match"
	"metricindex/internal/models"
	"metricindex/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>...",
	Short: "Scan a folder for near-duplicate images",
	Long: `Scan a folder recursively for images and group near-duplicates.

The scan will:
1. Find all supported images (jpg, png, gif, webp, bmp, tiff)
2. Compute a 64-bit perceptual hash for each image
3. Group images whose hashes differ in at most --threshold bits
4. Store results in the database for later use

Example:
  metricindex scan ./photos
  metricindex scan ./photos ./backup --threshold 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	folders := make([]string, 0, len(args))
	for _, folder := range args {
		absFolder, err := filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}

		info, err := os.Stat(absFolder)
		if err != nil {
			return fmt.Errorf("folder not found: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("not a directory: %s", absFolder)
		}
		folders = append(folders, absFolder)
	}

	fmt.Printf("Scanning: %s\n", strings.Join(folders, ", "))
	var matcher match.Matcher = match.NewPerceptualMatcher(threshold)
	fmt.Printf("Threshold: %d (Hamming distance)\n", matcher.Threshold())
	fmt.Printf("Workers: %d\n\n", workers)

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create scanner with progress reporting
	lastLine := ""
	hasher := hash.NewHasher()
	s := scan.NewScanner[*models.ImageInfo](
		hasher.HashImage,
		hash.IsSupportedImage,
		scan.WithWorkers(workers),
		scan.WithProgress(func(scanned, total int, current string) {
			// Clear previous line
			if lastLine != "" {
				fmt.Print("\r" + strings.Repeat(" ", len(lastLine)) + "\r")
			}
			shortPath := current
			if len(shortPath) > 50 {
				shortPath = "..." + shortPath[len(shortPath)-47:]
			}
			lastLine = fmt.Sprintf("Progress: %d/%d  %s", scanned, total, shortPath)
			fmt.Print(lastLine)
		}),
	)

	// Scan folder
	images, err := s.ScanFolders(ctx, folders)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	// Clear progress line
	if lastLine != "" {
		fmt.Print("\r" + strings.Repeat(" ", len(lastLine)) + "\r")
	}

	fmt.Printf("Scanned: %d images\n", len(images))

	if len(images) == 0 {
		fmt.Println("No images found.")
		return nil
	}

	// Save images to database
	if err := store.SaveImages(images); err != nil {
		return fmt.Errorf("failed to save images: %w", err)
	}

	// Find duplicate groups
	fmt.Println("Finding duplicates...")
	groups := matcher.FindGroups(images)

	// Update groups in database
	if err := store.UpdateGroups(groups); err != nil {
		return fmt.Errorf("failed to update groups: %w", err)
	}

	// Record scan history
	totalDuplicates := 0
	for _, group := range groups {
		totalDuplicates += len(group.Remove)
	}
	if err := store.RecordScan(strings.Join(folders, ", "), len(images), len(groups), totalDuplicates); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record scan: %v\n", err)
	}

	// Print summary
	fmt.Println()
	fmt.Println("=== Scan Complete ===")
	fmt.Printf("Total images:     %d\n", len(images))
	fmt.Printf("Duplicate groups: %d\n", len(groups))
	fmt.Printf("Duplicates found: %d\n", totalDuplicates)

	if len(groups) > 0 {
		fmt.Println()
		fmt.Println("Run 'metricindex groups' to see duplicate groups")
	}

	return nil
}
