package interaction

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInteractionSymmetric(t *testing.T) {
	b := NewBank(5)
	b.AssignInteraction(3, 1, 0.5)
	b.AssignInteraction(0, 4, 2)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i == j {
				continue
			}
			require.Equal(t, b.InteractionLevel(i, j), b.InteractionLevel(j, i))
		}
	}
	require.Equal(t, 0.5, b.InteractionLevel(1, 3))
	require.Equal(t, 2.0, b.InteractionLevel(4, 0))
	require.Equal(t, 0.0, b.InteractionLevel(2, 3))
}

func TestAssignKeepsMaximum(t *testing.T) {
	b := NewBank(3)
	b.AssignInteraction(0, 1, 3)
	b.AssignInteraction(1, 0, 1)
	b.AssignInteraction(0, 1, 3)
	require.Equal(t, 3.0, b.InteractionLevel(0, 1))
	b.AssignInteraction(1, 0, 4)
	require.Equal(t, 4.0, b.InteractionLevel(0, 1))

	b.AssignBenefit(2, 10)
	b.AssignBenefit(2, 5)
	b.AssignBenefit(2, 10)
	require.Equal(t, 10.0, b.BestBenefit(2))
}

func TestAssignContractViolations(t *testing.T) {
	b := NewBank(3)
	require.Panics(t, func() { b.AssignInteraction(1, 1, 0.1) })
	require.Panics(t, func() { b.AssignInteraction(0, 1, -0.1) })
	require.Panics(t, func() { b.InteractionLevel(2, 2) })
}

func TestGrowKeepsValues(t *testing.T) {
	b := NewBank(3)
	b.AssignInteraction(2, 1, 7)
	b.AssignBenefit(0, 3)
	nb := b.Grow(6)
	require.Equal(t, 6, nb.IndexCount())
	require.Equal(t, 7.0, nb.InteractionLevel(1, 2))
	require.Equal(t, 3.0, nb.BestBenefit(0))
	require.Equal(t, 0.0, nb.InteractionLevel(5, 4))
	require.Same(t, b, b.Grow(2))
}

func TestStablePartitioning(t *testing.T) {
	cases := []struct {
		n         int
		pairs     [][3]float64
		threshold float64
		cmp       Comparison
		groups    [][]int
	}{
		// two indexes without interaction stay apart
		{2, nil, 0.1, Strict, [][]int{{0}, {1}}},
		// A-B interact, C is alone
		{3, [][3]float64{{0, 1, 5}, {1, 2, 0}, {0, 2, 0}}, 1, Strict, [][]int{{0, 1}, {2}}},
		// transitivity
		{4, [][3]float64{{0, 1, 2}, {1, 3, 2}}, 1, Strict, [][]int{{0, 1, 3}, {2}}},
		// a level equal to the threshold only joins under the inclusive comparison
		{3, [][3]float64{{0, 2, 1}}, 1, Strict, [][]int{{0}, {1}, {2}}},
		{3, [][3]float64{{0, 2, 1}}, 1, Inclusive, [][]int{{0, 2}, {1}}},
		{0, nil, 1, Strict, [][]int{}},
	}
	for i, c := range cases {
		b := NewBank(c.n)
		for _, p := range c.pairs {
			b.AssignInteraction(int(p[0]), int(p[1]), p[2])
		}
		require.Equal(t, c.groups, b.StablePartitioning(c.threshold, c.cmp), "case %d", i)
	}
}

func TestStablePartitioningOfSubset(t *testing.T) {
	b := NewBank(6)
	b.AssignInteraction(1, 4, 3)
	b.AssignInteraction(4, 5, 3)
	b.AssignInteraction(0, 2, 3)
	require.Equal(t, [][]int{{1, 4}, {3}}, b.StablePartitioningOf([]int{4, 3, 1}, 1, Strict))
}

func TestStablePartitioningProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	n := 30
	b := NewBank(n)
	for k := 0; k < 120; k++ {
		i, j := r.Intn(n), r.Intn(n)
		if i == j {
			continue
		}
		b.AssignInteraction(i, j, r.Float64())
	}

	crossAbove := func(groups [][]int, threshold float64) int {
		groupOf := make(map[int]int)
		for g, ids := range groups {
			for _, id := range ids {
				groupOf[id] = g
			}
		}
		cnt := 0
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if groupOf[i] != groupOf[j] && b.InteractionLevel(i, j) > threshold {
					cnt++
				}
			}
		}
		return cnt
	}

	for _, threshold := range []float64{0, 0.2, 0.5, 0.8, 1} {
		groups := b.StablePartitioning(threshold, Strict)
		seen := make(map[int]bool)
		for _, g := range groups {
			for _, id := range g {
				require.False(t, seen[id], "index %d in two groups", id)
				seen[id] = true
			}
		}
		require.Len(t, seen, n)
		require.Equal(t, 0, crossAbove(groups, threshold))
	}
}

func TestParseComparison(t *testing.T) {
	c, err := ParseComparison("inclusive")
	require.NoError(t, err)
	require.Equal(t, Inclusive, c)
	c, err = ParseComparison("")
	require.NoError(t, err)
	require.Equal(t, Strict, c)
	_, err = ParseComparison(">=")
	require.Error(t, err)
}
