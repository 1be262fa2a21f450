package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// ProcessFunc turns one file into a result
type ProcessFunc[T any] func(ctx context.Context, path string) (T, error)

// Scanner walks folders and processes matching files in parallel
type Scanner[T any] struct {
	process    ProcessFunc[T]
	match      func(path string) bool
	workers    int
	timeout    time.Duration
	progressFn func(scanned, total int, current string)
}

// Option configures a Scanner
type Option func(*config)

type config struct {
	workers    int
	timeout    time.Duration
	progressFn func(scanned, total int, current string)
}

// WithWorkers sets the number of parallel workers
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithTimeout sets the time budget for processing each file
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithProgress sets a progress callback, called once per file whether it
// succeeded or was skipped. Calls never overlap.
func WithProgress(fn func(scanned, total int, current string)) Option {
	return func(c *config) {
		c.progressFn = fn
	}
}

// NewScanner creates a Scanner that runs process on every file accepted by
// match. A nil match accepts every file.
func NewScanner[T any](process ProcessFunc[T], match func(path string) bool, opts ...Option) *Scanner[T] {
	c := config{
		workers: 8,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if match == nil {
		match = func(string) bool { return true }
	}
	return &Scanner[T]{
		process:    process,
		match:      match,
		workers:    c.workers,
		timeout:    c.timeout,
		progressFn: c.progressFn,
	}
}

// ScanFolder processes every matching file below folder. Files that fail or
// time out are skipped. The result order is unspecified.
func (s *Scanner[T]) ScanFolder(ctx context.Context, folder string) ([]T, error) {
	var paths []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if !d.IsDir() && s.match(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk folder: %w", err)
	}

	if len(paths) == 0 {
		return nil, nil
	}

	var (
		results   []T
		resultsMu sync.Mutex
		wg        sync.WaitGroup
		scanned   int
		total     = len(paths)
	)

	work := make(chan string, len(paths))
	for _, p := range paths {
		work <- p
	}
	close(work)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				if ctx.Err() != nil {
					return
				}

				result, err := s.processWithTimeout(ctx, path)

				resultsMu.Lock()
				scanned++
				if err == nil {
					results = append(results, result)
				}
				if s.progressFn != nil {
					s.progressFn(scanned, total, path)
				}
				resultsMu.Unlock()
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("scan interrupted: %w", err)
	}
	return results, nil
}

// ScanFolders scans multiple folders and concatenates the results
func (s *Scanner[T]) ScanFolders(ctx context.Context, folders []string) ([]T, error) {
	var all []T
	for _, folder := range folders {
		results, err := s.ScanFolder(ctx, folder)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// processWithTimeout gives up waiting on a file after the configured timeout.
// A process func that ignores ctx keeps running in the background.
func (s *Scanner[T]) processWithTimeout(ctx context.Context, path string) (T, error) {
	if s.timeout <= 0 {
		return s.process(ctx, path)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.process(ctx, path)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("timeout processing %s: %w", path, ctx.Err())
	}
}
