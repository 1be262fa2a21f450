// Package corpus reads term lists: one term per line, blank lines and lines
// starting with '#' ignored.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/mmap"
)

// ErrEmptyCorpus is returned by LoadFile when a file holds no terms.
var ErrEmptyCorpus = errors.New("corpus: no terms found")

// maxLineSize bounds a single line; longer lines fail the read.
const maxLineSize = 1 << 20

// Parse reads terms from r.
func Parse(r io.Reader) ([]string, error) {
	var terms []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read terms: %w", err)
	}
	return terms, nil
}

// LoadFile memory-maps the file at path and parses its terms.
func LoadFile(path string) ([]string, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	defer r.Close()

	terms, err := Parse(io.NewSectionReader(r, 0, int64(r.Len())))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCorpus)
	}
	return terms, nil
}
