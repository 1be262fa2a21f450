// Package lookup provides a typo-tolerant term dictionary backed by a BK-tree
// over edit distance.
package lookup

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"metricindex/internal/bktree"
	"metricindex/internal/metric"
	"metricindex/internal/models"
)

// Dictionary is safe for concurrent use. Add takes an exclusive lock, every
// query a shared one.
type Dictionary struct {
	mu        sync.RWMutex
	tree      *bktree.Tree[string]
	normalize func(string) string
}

// Option configures a Dictionary
type Option func(*Dictionary)

// WithNormalizer sets the function applied to every term and query before it
// reaches the tree. Passing nil keeps terms as given, apart from trimming.
func WithNormalizer(fn func(string) string) Option {
	return func(d *Dictionary) {
		if fn == nil {
			fn = strings.TrimSpace
		}
		d.normalize = fn
	}
}

// New creates an empty Dictionary. Terms are normalized with
// metric.Normalize unless WithNormalizer says otherwise.
func New(opts ...Option) *Dictionary {
	d := &Dictionary{
		tree:      bktree.New(metric.Levenshtein),
		normalize: metric.Normalize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add stores terms and returns how many were new. Terms that normalize to
// the empty string are skipped.
func (d *Dictionary) Add(terms ...string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for _, term := range terms {
		term = d.normalize(term)
		if term == "" {
			continue
		}
		if d.tree.Insert(term) {
			added++
		}
	}
	return added
}

// Normalize applies the dictionary's normalizer to terms and drops the ones
// that end up empty
func (d *Dictionary) Normalize(terms ...string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = d.normalize(term); term != "" {
			out = append(out, term)
		}
	}
	return out
}

// Lookup returns the stored terms within maxDistance edits of term, closest
// first and alphabetical among equals. It fails with
// bktree.ErrNegativeDistance when maxDistance < 0.
func (d *Dictionary) Lookup(term string, maxDistance int) ([]models.Match, error) {
	term = d.normalize(term)

	d.mu.RLock()
	results, err := d.tree.Search(term, maxDistance)
	d.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = models.Match{Term: r.Item, Distance: r.Distance}
	}
	slices.SortFunc(matches, func(a, b models.Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})
	return matches, nil
}

// Contains reports whether the normalized term is stored
func (d *Dictionary) Contains(term string) bool {
	term = d.normalize(term)

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree.Count(term) == 1
}

// Len returns the number of distinct stored terms
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree.Size()
}

// Stats reports the shape of the underlying tree
func (d *Dictionary) Stats() bktree.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree.Stats()
}

// Terms returns every stored term, sorted
func (d *Dictionary) Terms() []string {
	d.mu.RLock()
	terms := slices.Collect(d.tree.All())
	d.mu.RUnlock()

	slices.Sort(terms)
	return terms
}
