package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"metricindex/internal/server"
)

var (
	servePort    int
	serveTimeout time.Duration
	serveDebug   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a JSON API for searching the dictionary",
	Long: `Start a local HTTP server that answers fuzzy lookups against the stored
dictionary and exposes the image groups found by scan.

Routes:
  GET  /api/search?q=<term>&k=<n>   Terms within k edits
  POST /api/terms                   {"terms": [...]} adds terms
  GET  /api/stats                   Dictionary and tree statistics
  GET  /api/clusters?k=<n>          Groups of close terms
  GET  /api/history?n=<n>           Recent searches
  GET  /api/groups                  Near-duplicate image groups

The server stops on Ctrl+C, or after the idle timeout without requests.

Example:
  metricindex serve                  # Start on default port 8080
  metricindex serve -p 3000          # Use custom port
  metricindex serve --timeout 0      # Never stop on idle`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 30*time.Minute, "Idle timeout (0 to disable)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Log every request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if serveDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	dict, err := loadDictionary(store)
	if err != nil {
		return err
	}

	srv := server.New(store, dict, servePort, serveTimeout, logger)

	fmt.Printf("Starting server at http://localhost:%d\n", servePort)
	fmt.Printf("Terms loaded: %d\n", dict.Len())
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	return srv.Start()
}
