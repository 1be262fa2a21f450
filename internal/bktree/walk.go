package bktree

import "iter"

// Stats describes the shape of a tree.
type Stats struct {
	Nodes     int `json:"nodes"`
	Leaves    int `json:"leaves"`
	Depth     int `json:"depth"`      // edges on the longest root-to-leaf path
	MaxFanout int `json:"max_fanout"` // most children under a single node
}

// All returns an iterator over every element in the tree, in unspecified
// order. The tree must not be modified while the iteration is running.
func (t *Tree[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if t.root == nil {
			return
		}
		stack := []*node[T]{t.root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n.item) {
				return
			}
			stack = append(stack, n.children...)
		}
	}
}

// Stats walks the tree and reports its shape.
func (t *Tree[T]) Stats() Stats {
	var s Stats
	if t.root == nil {
		return s
	}

	type frame struct {
		n     *node[T]
		depth int
	}
	stack := []frame{{n: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		s.Nodes++
		s.Depth = max(s.Depth, f.depth)
		s.MaxFanout = max(s.MaxFanout, len(f.n.children))
		if len(f.n.children) == 0 {
			s.Leaves++
		}
		for _, child := range f.n.children {
			stack = append(stack, frame{n: child, depth: f.depth + 1})
		}
	}
	return s
}
