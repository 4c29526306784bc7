// Package interval implements an augmented interval tree: a binary search
// tree keyed by interval start, with every node additionally carrying the
// maximum end value anywhere in its subtree. That augmentation lets a
// point query prune whole subtrees instead of scanning every interval.
package interval

// Interval is anything with a half-open [Start, End) range. T carries
// whatever payload the caller wants attached to the range (a function,
// a module, ...).
type Interval[T any] struct {
	Start, End uint64
	Value      T
}

type node[T any] struct {
	iv          Interval[T]
	maxEnd      uint64
	left, right *node[T]
}

// Tree is immutable once built: Build constructs a balanced tree from a
// list of intervals and no further mutation is exposed.
type Tree[T any] struct {
	root *node[T]
}

// Build sorts ivs by Start (stably) and constructs a height-balanced
// augmented BST over them. Overlapping intervals are fully supported:
// PointQuery returns every interval containing the query point, not just
// one.
func Build[T any](ivs []Interval[T]) *Tree[T] {
	sorted := make([]Interval[T], len(ivs))
	copy(sorted, ivs)
	stableSortByStart(sorted)
	return &Tree[T]{root: buildBalanced(sorted)}
}

func buildBalanced[T any](ivs []Interval[T]) *node[T] {
	if len(ivs) == 0 {
		return nil
	}
	mid := len(ivs) / 2
	n := &node[T]{iv: ivs[mid], maxEnd: ivs[mid].End}
	n.left = buildBalanced(ivs[:mid])
	n.right = buildBalanced(ivs[mid+1:])
	if n.left != nil && n.left.maxEnd > n.maxEnd {
		n.maxEnd = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > n.maxEnd {
		n.maxEnd = n.right.maxEnd
	}
	return n
}

func stableSortByStart[T any](ivs []Interval[T]) {
	// insertion sort: the lists involved (per-function, per-module ranges)
	// are small enough that O(n^2) is not a concern, and it keeps equal
	// starts in their original relative order, which construction
	// idempotence (building twice from the same unordered list yields the
	// same tree) depends on once the caller has already stably ordered
	// duplicates upstream.
	for i := 1; i < len(ivs); i++ {
		v := ivs[i]
		j := i - 1
		for j >= 0 && ivs[j].Start > v.Start {
			ivs[j+1] = ivs[j]
			j--
		}
		ivs[j+1] = v
	}
}

// PointQuery returns every interval containing point, i.e. every Interval
// with Start <= point < End.
func (t *Tree[T]) PointQuery(point uint64) []Interval[T] {
	if t == nil || t.root == nil {
		return nil
	}
	var out []Interval[T]
	pointQuery(t.root, point, &out)
	return out
}

func pointQuery[T any](n *node[T], point uint64, out *[]Interval[T]) {
	if n == nil || point > n.maxEnd {
		return
	}
	pointQuery(n.left, point, out)
	if n.iv.Start <= point && point < n.iv.End {
		*out = append(*out, n.iv)
	}
	if point >= n.iv.Start {
		pointQuery(n.right, point, out)
	}
}

// RangeQuery returns every interval overlapping [start, end).
func (t *Tree[T]) RangeQuery(start, end uint64) []Interval[T] {
	if t == nil || t.root == nil {
		return nil
	}
	var out []Interval[T]
	rangeQuery(t.root, start, end, &out)
	return out
}

func rangeQuery[T any](n *node[T], start, end uint64, out *[]Interval[T]) {
	if n == nil || start >= n.maxEnd {
		return
	}
	rangeQuery(n.left, start, end, out)
	if n.iv.Start < end && start < n.iv.End {
		*out = append(*out, n.iv)
	}
	if end > n.iv.Start {
		rangeQuery(n.right, start, end, out)
	}
}
