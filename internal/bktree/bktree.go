// Package bktree implements a Burkhard-Keller tree, a metric-space index for
// elements with an integer-valued distance function.
//
// Every node keeps its children keyed by their exact distance to it. A range
// query measures the distance d from the query to a node and only descends
// into children whose key lies in [d-k, d+k]; by the triangle inequality no
// element in any other subtree can be within k of the query.
//
// The tree is insert-and-query only. Its shape depends on insertion order and
// on how well the distance function discriminates between elements. A Tree is
// not safe for concurrent use: callers that share one between goroutines must
// serialize Insert against everything else (for example with a sync.RWMutex,
// taking the write lock for Insert and the read lock for queries).
package bktree

import (
	"cmp"
	"errors"
	"math"
	"slices"
)

// ErrNegativeDistance is returned by range queries called with k < 0.
var ErrNegativeDistance = errors.New("bktree: negative distance threshold")

// DistanceFunc measures the distance between two elements.
//
// It must be a metric: non-negative, symmetric, zero exactly when the two
// elements are equal, and satisfying the triangle inequality
// d(a, c) <= d(a, b) + d(b, c). The tree never checks this. A function that
// breaks the triangle inequality makes queries silently miss matches, and one
// that returns zero for distinct elements makes Insert drop them as
// duplicates. It must also be deterministic for the lifetime of the tree,
// since every node caches its distance to its parent.
type DistanceFunc[T any] func(a, b T) int

// rootDistance marks the root, which has no parent.
const rootDistance = -1

// Tree is a BK-tree holding distinct elements of type T.
type Tree[T any] struct {
	root     *node[T]
	size     int
	distance DistanceFunc[T]
}

type node[T any] struct {
	item T
	dist int // distance to parent, rootDistance for the root

	// children is sorted by dist; no two children share a dist.
	children []*node[T]
}

// Result is an element found by Search together with its distance to the query.
type Result[T any] struct {
	Item     T
	Distance int
}

// New creates an empty tree bound to the given distance function. The
// function cannot be changed afterwards. New panics if distance is nil.
func New[T any](distance DistanceFunc[T]) *Tree[T] {
	if distance == nil {
		panic("bktree: nil distance function")
	}
	return &Tree[T]{distance: distance}
}

// Insert adds item to the tree. If an element at distance 0 from item is
// already stored the tree is left unchanged and Insert returns false.
func (t *Tree[T]) Insert(item T) bool {
	if t.root == nil {
		t.root = &node[T]{item: item, dist: rootDistance}
		t.size = 1
		return true
	}

	current := t.root
	for {
		d := t.distance(current.item, item)
		if d == 0 {
			return false
		}

		i, found := slices.BinarySearchFunc(current.children, d, compareDist[T])
		if found {
			current = current.children[i]
			continue
		}

		current.children = slices.Insert(current.children, i, &node[T]{item: item, dist: d})
		t.size++
		return true
	}
}

// Size returns the number of elements in the tree.
func (t *Tree[T]) Size() int {
	return t.size
}

// Empty reports whether the tree holds no elements.
func (t *Tree[T]) Empty() bool {
	return t.size == 0
}

// Count returns 1 if an element at distance 0 from item is stored, 0 otherwise.
func (t *Tree[T]) Count(item T) int {
	n := 0
	t.search(item, 0, func(T, int) { n++ })
	return n
}

// GetWithinDistance counts the elements whose distance to center is at most k.
// When collector is non-nil every such element is appended to it. The order
// of the appended elements is unspecified.
func (t *Tree[T]) GetWithinDistance(center T, k int, collector *[]T) (int, error) {
	if k < 0 {
		return 0, ErrNegativeDistance
	}

	found := 0
	t.search(center, k, func(item T, _ int) {
		found++
		if collector != nil {
			*collector = append(*collector, item)
		}
	})
	return found, nil
}

// FindWithinDistance returns all elements within distance k of center, in
// unspecified order.
func (t *Tree[T]) FindWithinDistance(center T, k int) ([]T, error) {
	var results []T
	if _, err := t.GetWithinDistance(center, k, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Search returns all elements within distance k of center along with their
// distances, in unspecified order.
func (t *Tree[T]) Search(center T, k int) ([]Result[T], error) {
	if k < 0 {
		return nil, ErrNegativeDistance
	}

	var results []Result[T]
	t.search(center, k, func(item T, d int) {
		results = append(results, Result[T]{Item: item, Distance: d})
	})
	return results, nil
}

// search visits the tree breadth-first and calls emit for every element
// within k of center. k must be non-negative.
func (t *Tree[T]) search(center T, k int, emit func(item T, d int)) {
	if t.root == nil {
		return
	}

	queue := []*node[T]{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue[0] = nil
		queue = queue[1:]

		d := t.distance(n.item, center)
		if d <= k {
			emit(n.item, d)
		}

		// Children outside [d-k, d+k] cannot hold a match. d+k saturates
		// at math.MaxInt.
		hi := math.MaxInt
		if k < math.MaxInt-d {
			hi = d + k
		}
		lo, _ := slices.BinarySearchFunc(n.children, d-k, compareDist[T])
		for _, child := range n.children[lo:] {
			if child.dist > hi {
				break
			}
			queue = append(queue, child)
		}
	}
}

func compareDist[T any](n *node[T], d int) int {
	return cmp.Compare(n.dist, d)
}
