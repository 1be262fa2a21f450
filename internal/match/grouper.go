package match

import "metricindex/internal/bktree"

// Grouper clusters items whose distance is within a threshold. Clustering is
// transitive: a and c share a cluster when a-b and b-c are both close, even if
// a-c is not.
type Grouper[T comparable] struct {
	threshold int
	distance  bktree.DistanceFunc[T]
}

// NewGrouper creates a Grouper. A negative threshold falls back to 0, which
// only clusters items at distance zero.
func NewGrouper[T comparable](threshold int, distance bktree.DistanceFunc[T]) *Grouper[T] {
	if threshold < 0 {
		threshold = 0
	}
	return &Grouper[T]{threshold: threshold, distance: distance}
}

// Threshold returns the clustering distance
func (g *Grouper[T]) Threshold() int {
	return g.threshold
}

// Cluster returns the indices of items grouped by cluster. Each cluster lists
// indices in ascending order; clusters are ordered by their first index.
// Singletons are included.
func (g *Grouper[T]) Cluster(items []T) [][]int {
	n := len(items)
	if n == 0 {
		return nil
	}

	uf := newUnionFind(n)

	// The tree collapses equal items, so remember the first index per value
	// and union later copies onto it.
	tree := bktree.New(g.distance)
	first := make(map[T]int, n)

	for i, item := range items {
		if j, ok := first[item]; ok {
			uf.union(i, j)
			continue
		}

		neighbors, _ := tree.FindWithinDistance(item, g.threshold)
		for _, neighbor := range neighbors {
			uf.union(i, first[neighbor])
		}

		tree.Insert(item)
		first[item] = i
	}

	byRoot := make(map[int]int)
	var clusters [][]int
	for i := range items {
		root := uf.find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(clusters)
			byRoot[root] = idx
			clusters = append(clusters, nil)
		}
		clusters[idx] = append(clusters[idx], i)
	}
	return clusters
}

// Union-Find data structure for efficient grouping
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: rank}
}

// find uses path halving so long chains never recurse.
func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int) {
	px, py := uf.find(x), uf.find(y)
	if px == py {
		return
	}
	if uf.rank[px] < uf.rank[py] {
		px, py = py, px
	}
	uf.parent[py] = px
	if uf.rank[px] == uf.rank[py] {
		uf.rank[px]++
	}
}
