// Package interaction keeps pairwise degrees of interaction between
// candidate indexes and turns them into a stable partitioning.
package interaction

import (
	"fmt"
	"sort"
)

// Comparison decides whether an interaction level joins two indexes into one group.
type Comparison int

const (
	// Strict joins two indexes when their interaction is strictly above the threshold.
	Strict Comparison = iota
	// Inclusive joins two indexes when their interaction reaches the threshold.
	Inclusive
)

// ParseComparison parses "strict" or "inclusive".
func ParseComparison(s string) (Comparison, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "inclusive":
		return Inclusive, nil
	}
	return Strict, fmt.Errorf("unknown threshold comparison %q", s)
}

// Exceeds returns whether level passes threshold under this comparison.
func (c Comparison) Exceeds(level, threshold float64) bool {
	if c == Inclusive {
		return level >= threshold
	}
	return level > threshold
}

// String implements fmt.Stringer.
func (c Comparison) String() string {
	if c == Inclusive {
		return "inclusive"
	}
	return "strict"
}

// Bank stores the maximum degree of interaction ever measured for every pair
// of indexes, and the best benefit ever measured for every index.
// Pairs are stored once in a lower-triangular matrix.
// A Bank is owned by a single goroutine.
type Bank struct {
	indexCount  int
	lowerTri    []float64 // (i, j) with i > j at i*(i-1)/2 + j
	bestBenefit []float64
}

// NewBank creates an empty bank for indexCount indexes.
func NewBank(indexCount int) *Bank {
	if indexCount < 0 {
		indexCount = 0
	}
	return &Bank{
		indexCount:  indexCount,
		lowerTri:    make([]float64, indexCount*(indexCount-1)/2+1),
		bestBenefit: make([]float64, indexCount),
	}
}

// IndexCount returns the number of indexes covered by this bank.
func (b *Bank) IndexCount() int {
	return b.indexCount
}

// Grow returns a bank covering indexCount indexes with all values of b.
// Ids are stable across snapshots, so values keep their positions.
func (b *Bank) Grow(indexCount int) *Bank {
	if indexCount <= b.indexCount {
		return b
	}
	nb := NewBank(indexCount)
	copy(nb.lowerTri, b.lowerTri)
	copy(nb.bestBenefit, b.bestBenefit)
	return nb
}

func (b *Bank) pos(i, j int) int {
	if i == j {
		panic(fmt.Sprintf("interaction: an index cannot interact with itself (%d)", i))
	}
	if i < j {
		i, j = j, i
	}
	if j < 0 || i >= b.indexCount {
		panic(fmt.Sprintf("interaction: pair (%d, %d) out of range [0, %d)", i, j, b.indexCount))
	}
	return i*(i-1)/2 + j
}

// AssignInteraction records an interaction level, keeping the maximum.
func (b *Bank) AssignInteraction(i, j int, value float64) {
	if value < 0 {
		panic(fmt.Sprintf("interaction: negative interaction %v between %d and %d", value, i, j))
	}
	p := b.pos(i, j)
	if value > b.lowerTri[p] {
		b.lowerTri[p] = value
	}
}

// AssignBenefit records a benefit of index i, keeping the maximum.
func (b *Bank) AssignBenefit(i int, value float64) {
	if value > b.bestBenefit[i] {
		b.bestBenefit[i] = value
	}
}

// InteractionLevel returns the interaction level of the pair, regardless of argument order.
func (b *Bank) InteractionLevel(i, j int) float64 {
	return b.lowerTri[b.pos(i, j)]
}

// BestBenefit returns the best benefit measured for index i.
func (b *Bank) BestBenefit(i int) float64 {
	return b.bestBenefit[i]
}

// StablePartitioning groups all indexes of the bank so that any two indexes
// whose interaction passes the threshold end up in the same group.
func (b *Bank) StablePartitioning(threshold float64, cmp Comparison) [][]int {
	ids := make([]int, b.indexCount)
	for i := range ids {
		ids[i] = i
	}
	return b.StablePartitioningOf(ids, threshold, cmp)
}

// StablePartitioningOf is StablePartitioning restricted to the given ids.
// Groups are sorted, and ordered by their smallest id.
func (b *Bank) StablePartitioningOf(ids []int, threshold float64, cmp Comparison) [][]int {
	uf := newUnionFind(len(ids))
	for x := 1; x < len(ids); x++ {
		for y := 0; y < x; y++ {
			if cmp.Exceeds(b.InteractionLevel(ids[x], ids[y]), threshold) {
				uf.union(x, y)
			}
		}
	}
	return uf.sets(ids)
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[x] != root { // path compression
		next := uf.parent[x]
		uf.parent[x] = root
		x = next
	}
	return root
}

func (uf *unionFind) union(x, y int) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}

// sets returns the disjoint sets with elements mapped through ids.
func (uf *unionFind) sets(ids []int) [][]int {
	byRoot := make(map[int][]int)
	var roots []int
	for i := range uf.parent {
		r := uf.find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], ids[i])
	}
	res := make([][]int, 0, len(roots))
	for _, r := range roots {
		g := byRoot[r]
		sort.Ints(g)
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i][0] < res[j][0]
	})
	return res
}
