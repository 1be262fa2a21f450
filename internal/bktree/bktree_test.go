package bktree

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"testing/quick"

	"metricindex/internal/metric"
)

func TestTree_Empty(t *testing.T) {
	tree := New(metric.Levenshtein)

	if tree.Size() != 0 {
		t.Errorf("expected size 0, got %d", tree.Size())
	}
	if !tree.Empty() {
		t.Error("expected new tree to be empty")
	}
	for k := 0; k <= 5; k++ {
		n, err := tree.GetWithinDistance("anything", k, nil)
		if err != nil {
			t.Fatalf("GetWithinDistance(k=%d) failed: %v", k, err)
		}
		if n != 0 {
			t.Errorf("GetWithinDistance(k=%d) = %d on empty tree, want 0", k, n)
		}
	}
	if tree.Count("anything") != 0 {
		t.Error("expected count 0 on empty tree")
	}
}

func TestTree_EditDistanceScenario(t *testing.T) {
	tree := New(metric.Levenshtein)

	within := func(center string, k int) int {
		t.Helper()
		n, err := tree.GetWithinDistance(center, k, nil)
		if err != nil {
			t.Fatalf("GetWithinDistance(%q, %d) failed: %v", center, k, err)
		}
		return n
	}

	tree.Insert("boobs")
	if tree.Size() != 1 {
		t.Errorf("size = %d, want 1", tree.Size())
	}
	if tree.Empty() {
		t.Error("tree should not be empty")
	}
	if tree.Count("boobs") != 1 {
		t.Error(`expected count("boobs") = 1`)
	}
	if tree.Count("books") != 0 {
		t.Error(`expected count("books") = 0`)
	}
	checks := []struct {
		center string
		k      int
		want   int
	}{
		{"boobs", 0, 1},
		{"boobs", 1, 1},
		{"books", 0, 0},
		{"books", 1, 1},
	}
	for _, c := range checks {
		if got := within(c.center, c.k); got != c.want {
			t.Errorf("GetWithinDistance(%q, %d) = %d, want %d", c.center, c.k, got, c.want)
		}
	}

	tree.Insert("books")
	if tree.Size() != 2 {
		t.Errorf("size = %d, want 2", tree.Size())
	}
	if tree.Count("boobs") != 1 || tree.Count("books") != 1 {
		t.Error("expected both inserted words to be counted")
	}
	if tree.Count("boots") != 0 {
		t.Error(`expected count("boots") = 0`)
	}
	checks = []struct {
		center string
		k      int
		want   int
	}{
		{"books", 0, 1},
		{"books", 1, 2},
		{"boots", 1, 2},
		{"boobs", 1, 2},
	}
	for _, c := range checks {
		if got := within(c.center, c.k); got != c.want {
			t.Errorf("GetWithinDistance(%q, %d) = %d, want %d", c.center, c.k, got, c.want)
		}
	}
}

func TestTree_NegativeDistance(t *testing.T) {
	tree := New(metric.Levenshtein)
	tree.Insert("books")

	if _, err := tree.GetWithinDistance("books", -1, nil); !errors.Is(err, ErrNegativeDistance) {
		t.Errorf("GetWithinDistance(k=-1) error = %v, want ErrNegativeDistance", err)
	}
	if _, err := tree.FindWithinDistance("books", -1); !errors.Is(err, ErrNegativeDistance) {
		t.Errorf("FindWithinDistance(k=-1) error = %v, want ErrNegativeDistance", err)
	}
	if _, err := tree.Search("books", -1); !errors.Is(err, ErrNegativeDistance) {
		t.Errorf("Search(k=-1) error = %v, want ErrNegativeDistance", err)
	}

	// Empty trees reject it too.
	empty := New(metric.Levenshtein)
	if _, err := empty.GetWithinDistance("x", -3, nil); !errors.Is(err, ErrNegativeDistance) {
		t.Errorf("empty GetWithinDistance(k=-3) error = %v, want ErrNegativeDistance", err)
	}
}

func TestTree_DuplicateInsert(t *testing.T) {
	tree := New(metric.Hamming)

	if !tree.Insert(0b1010) {
		t.Error("first insert should add a node")
	}
	if !tree.Insert(0b1011) {
		t.Error("distinct insert should add a node")
	}
	before, _ := tree.FindWithinDistance(0b1010, 4)

	if tree.Insert(0b1010) {
		t.Error("duplicate root insert should be a no-op")
	}
	if tree.Insert(0b1011) {
		t.Error("duplicate child insert should be a no-op")
	}
	if tree.Size() != 2 {
		t.Errorf("size = %d after duplicates, want 2", tree.Size())
	}

	after, _ := tree.FindWithinDistance(0b1010, 4)
	if !sameElements(before, after) {
		t.Errorf("results changed after duplicate insert: %v vs %v", before, after)
	}
}

func TestTree_Collector(t *testing.T) {
	tree := New(metric.Levenshtein)
	for _, w := range []string{"book", "books", "boot", "cook", "banana"} {
		tree.Insert(w)
	}

	collected := []string{"preexisting"}
	n, err := tree.GetWithinDistance("book", 1, &collected)
	if err != nil {
		t.Fatalf("GetWithinDistance failed: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}
	if collected[0] != "preexisting" {
		t.Error("collector contents before the call must be kept")
	}
	if !sameElements(collected[1:], []string{"book", "books", "boot", "cook"}) {
		t.Errorf("collected %v", collected[1:])
	}
}

func TestTree_Search(t *testing.T) {
	tree := New(metric.Levenshtein)
	for _, w := range []string{"kitten", "sitting", "mitten", "banana"} {
		tree.Insert(w)
	}

	results, err := tree.Search("kitten", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	got := make(map[string]int)
	for _, r := range results {
		got[r.Item] = r.Distance
	}
	want := map[string]int{"kitten": 0, "sitting": 3, "mitten": 1}
	if len(got) != len(want) {
		t.Fatalf("Search returned %v, want %v", got, want)
	}
	for w, d := range want {
		if got[w] != d {
			t.Errorf("distance for %q = %d, want %d", w, got[w], d)
		}
	}
}

func TestTree_ChildInvariant(t *testing.T) {
	tree := New(metric.Levenshtein)
	for _, w := range randomWords(rand.New(rand.NewPCG(7, 11)), 500, 6) {
		tree.Insert(w)
	}

	nodes := 0
	stack := []*node[string]{tree.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		for i, child := range n.children {
			if d := metric.Levenshtein(n.item, child.item); d != child.dist {
				t.Fatalf("child %q of %q keyed %d, actual distance %d", child.item, n.item, child.dist, d)
			}
			if i > 0 && n.children[i-1].dist >= child.dist {
				t.Fatalf("children of %q not strictly ordered by distance", n.item)
			}
		}
		stack = append(stack, n.children...)
	}
	if nodes != tree.Size() {
		t.Errorf("walked %d nodes, size is %d", nodes, tree.Size())
	}
	if tree.root.dist != rootDistance {
		t.Errorf("root dist = %d, want %d", tree.root.dist, rootDistance)
	}
}

// TestTree_MatchesBruteForce grows the tree one word at a time and checks every
// radius around the newest word against a linear scan.
func TestTree_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))
	const n, length = 100, 10
	pool := randomWords(rng, n, length)

	tree := New(metric.Levenshtein)
	for i, w := range pool {
		if tree.Size() != i {
			t.Fatalf("size = %d before insert %d", tree.Size(), i)
		}
		if tree.Count(w) != 0 {
			t.Fatalf("word %q counted before insertion", w)
		}
		tree.Insert(w)
		if tree.Count(w) != 1 {
			t.Fatalf("word %q not counted after insertion", w)
		}

		for d := 0; d <= length; d++ {
			want := 0
			for _, other := range pool[:i+1] {
				if metric.Levenshtein(w, other) <= d {
					want++
				}
			}
			got, err := tree.GetWithinDistance(w, d, nil)
			if err != nil {
				t.Fatalf("GetWithinDistance failed: %v", err)
			}
			if got != want {
				t.Fatalf("GetWithinDistance(%q, %d) = %d, want %d", w, d, got, want)
			}
		}
	}
	if tree.Size() != n {
		t.Errorf("size = %d, want %d", tree.Size(), n)
	}
}

func TestTree_RandomQueriesMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for round := 0; round < 20; round++ {
		corpus := randomWords(rng, 1+rng.IntN(200), 1+rng.IntN(8))
		tree := New(metric.Levenshtein)
		for _, w := range corpus {
			tree.Insert(w)
		}

		for q := 0; q < 25; q++ {
			center := randomWords(rng, 1, 1+rng.IntN(8))[0]
			k := rng.IntN(6)

			got, err := tree.FindWithinDistance(center, k)
			if err != nil {
				t.Fatalf("FindWithinDistance failed: %v", err)
			}
			want := bruteForce(corpus, center, k, metric.Levenshtein)
			if !sameElements(got, want) {
				t.Fatalf("round %d: FindWithinDistance(%q, %d) = %v, want %v", round, center, k, got, want)
			}
		}
	}
}

func TestTree_Properties(t *testing.T) {
	tests := []struct {
		scenario string
		property any
	}{
		{
			scenario: "size equals the number of distinct hashes inserted",
			property: func(hashes []uint64) bool {
				tree := New(metric.Hamming)
				distinct := make(map[uint64]struct{})
				for _, h := range hashes {
					tree.Insert(h)
					distinct[h] = struct{}{}
				}
				return tree.Size() == len(distinct) && tree.Empty() == (len(distinct) == 0)
			},
		},
		{
			scenario: "size does not depend on insertion order",
			property: func(hashes []uint64) bool {
				forward, backward := New(metric.Hamming), New(metric.Hamming)
				for i := range hashes {
					forward.Insert(hashes[i])
					backward.Insert(hashes[len(hashes)-1-i])
				}
				return forward.Size() == backward.Size()
			},
		},
		{
			scenario: "every inserted hash is counted exactly once",
			property: func(hashes []uint64) bool {
				tree := New(metric.Hamming)
				for _, h := range hashes {
					tree.Insert(h)
				}
				for _, h := range hashes {
					if tree.Count(h) != 1 {
						return false
					}
				}
				return true
			},
		},
		{
			scenario: "a radius-zero query equals count",
			property: func(hashes []uint64, center uint64) bool {
				tree := New(metric.Hamming)
				for _, h := range hashes {
					tree.Insert(h)
				}
				n, err := tree.GetWithinDistance(center, 0, nil)
				return err == nil && n == tree.Count(center)
			},
		},
		{
			scenario: "query results grow monotonically with the radius",
			property: func(hashes []uint64, center uint64) bool {
				tree := New(metric.Hamming)
				for _, h := range hashes {
					tree.Insert(h)
				}
				prev := 0
				for k := 0; k <= 64; k += 4 {
					n, err := tree.GetWithinDistance(center, k, nil)
					if err != nil || n < prev {
						return false
					}
					prev = n
				}
				return prev == tree.Size()
			},
		},
		{
			scenario: "query results equal a brute force scan",
			property: func(hashes []uint64, center uint64, radius uint8) bool {
				tree := New(metric.Hamming)
				for _, h := range hashes {
					tree.Insert(h)
				}
				k := int(radius % 65)
				got, err := tree.FindWithinDistance(center, k)
				return err == nil && sameElements(got, bruteForce(hashes, center, k, metric.Hamming))
			},
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			if err := quick.Check(test.property, nil); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestTree_Prunes(t *testing.T) {
	calls := 0
	tree := New(func(a, b int) int {
		calls++
		if a > b {
			return a - b
		}
		return b - a
	})
	for i := 0; i < 1000; i++ {
		tree.Insert(i * 7 % 1000)
	}

	calls = 0
	n, err := tree.GetWithinDistance(500, 2, nil)
	if err != nil {
		t.Fatalf("GetWithinDistance failed: %v", err)
	}
	if n != 5 {
		t.Errorf("found %d, want 5", n)
	}
	if calls >= tree.Size()/2 {
		t.Errorf("query measured %d of %d elements, expected pruning", calls, tree.Size())
	}
}

func TestTree_HugeRadius(t *testing.T) {
	abs := func(a, b int) int {
		if a > b {
			return a - b
		}
		return b - a
	}
	tree := New(abs)
	for i := 0; i < 5; i++ {
		tree.Insert(i)
	}

	tests := []struct {
		name   string
		center int
		k      int
	}{
		{"max from root", 0, math.MaxInt},
		{"max from middle", 2, math.MaxInt},
		{"max-1 from middle", 2, math.MaxInt - 1},
		{"max-1 from end", 4, math.MaxInt - 1},
		{"max-3 from end", 4, math.MaxInt - 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tree.GetWithinDistance(tt.center, tt.k, nil)
			if err != nil {
				t.Fatalf("GetWithinDistance failed: %v", err)
			}
			if n != tree.Size() {
				t.Errorf("found %d, want all %d", n, tree.Size())
			}
		})
	}
}

func TestTree_DeepChain(t *testing.T) {
	// The discrete metric puts every new element one level deeper.
	discrete := func(a, b int) int {
		if a == b {
			return 0
		}
		return 1
	}
	tree := New(discrete)
	const n = 5000
	for i := 0; i < n; i++ {
		tree.Insert(i)
	}

	stats := tree.Stats()
	if stats.Depth != n-1 {
		t.Errorf("depth = %d, want %d", stats.Depth, n-1)
	}
	if stats.Nodes != n || stats.Leaves != 1 || stats.MaxFanout != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	got, err := tree.GetWithinDistance(n/2, 1, nil)
	if err != nil {
		t.Fatalf("GetWithinDistance failed: %v", err)
	}
	if got != n {
		t.Errorf("GetWithinDistance(k=1) = %d, want %d", got, n)
	}

	seen := 0
	for range tree.All() {
		seen++
	}
	if seen != n {
		t.Errorf("All yielded %d elements, want %d", seen, n)
	}
}

func TestTree_AllStopsEarly(t *testing.T) {
	tree := New(metric.Hamming)
	for i := uint64(0); i < 64; i++ {
		tree.Insert(i)
	}

	seen := 0
	for range tree.All() {
		seen++
		if seen == 10 {
			break
		}
	}
	if seen != 10 {
		t.Errorf("iterated %d elements, want 10", seen)
	}

	all := slices.Collect(tree.All())
	if len(all) != 64 {
		t.Errorf("collected %d elements, want 64", len(all))
	}
}

func TestTree_StatsEmpty(t *testing.T) {
	if s := New(metric.Hamming).Stats(); s != (Stats{}) {
		t.Errorf("expected zero stats for empty tree, got %+v", s)
	}
}

func TestNew_NilDistance(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected New(nil) to panic")
		}
	}()
	New[string](nil)
}

func FuzzGetWithinDistance(f *testing.F) {
	f.Add("boobs books boots", "boots", 1)
	f.Add("kitten sitting mitten fitting bitten", "sitting", 2)
	f.Add("a b c ab abc abcd", "", 3)
	f.Add("", "query", 0)

	f.Fuzz(func(t *testing.T, words, center string, k int) {
		if k < 0 {
			tree := New(metric.Levenshtein)
			if _, err := tree.GetWithinDistance(center, k, nil); !errors.Is(err, ErrNegativeDistance) {
				t.Fatalf("k=%d: error = %v, want ErrNegativeDistance", k, err)
			}
			return
		}
		k %= 16

		corpus := strings.Fields(words)
		tree := New(metric.Levenshtein)
		for _, w := range corpus {
			tree.Insert(w)
		}

		var got []string
		n, err := tree.GetWithinDistance(center, k, &got)
		if err != nil {
			t.Fatalf("GetWithinDistance failed: %v", err)
		}
		want := bruteForce(corpus, center, k, metric.Levenshtein)
		if n != len(want) || !sameElements(got, want) {
			t.Fatalf("GetWithinDistance(%q, %d) = %v, want %v", center, k, got, want)
		}
	})
}

// bruteForce scans items and returns the distinct ones within k of center.
func bruteForce[T comparable](items []T, center T, k int, distance DistanceFunc[T]) []T {
	seen := make(map[T]bool)
	var out []T
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		if distance(item, center) <= k {
			out = append(out, item)
		}
	}
	return out
}

// sameElements reports whether a and b hold the same elements, ignoring order.
func sameElements[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[T]int)
	for _, x := range a {
		counts[x]++
	}
	for _, x := range b {
		counts[x]--
		if counts[x] < 0 {
			return false
		}
	}
	return true
}

func randomWords(rng *rand.Rand, n, length int) []string {
	words := make([]string, n)
	var sb strings.Builder
	for i := range words {
		sb.Reset()
		for sb.Len() < length {
			sb.WriteByte(byte('a' + rng.IntN(26)))
		}
		words[i] = sb.String()
	}
	return words
}

func BenchmarkTree_Insert(b *testing.B) {
	tree := New(metric.Hamming)
	for i := 0; i < b.N; i++ {
		tree.Insert(uint64(i * 12345))
	}
}

func BenchmarkTree_GetWithinDistance(b *testing.B) {
	tree := New(metric.Hamming)
	for i := 0; i < 10000; i++ {
		tree.Insert(uint64(i * 12345))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.GetWithinDistance(uint64(i*67890), 10, nil)
	}
}
