package advisor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qw4990/online_index_advisor/candidate"
)

func TestIndexStatisticsWindow(t *testing.T) {
	_, snap := prepareIndexes(10, 10)
	run := func(window int) *IndexStatistics {
		stats := NewIndexStatistics(window)
		queries := []map[int]float64{{0: 40}, {1: 5}, {0: 10}}
		for _, savings := range queries {
			q := profileQuery(t, snap, []int{0, 1}, savingsOracle(100, savings))
			require.NoError(t, stats.AddQuery(q, candidate.BitSet{}))
		}
		return stats
	}

	stats := run(2)
	require.Equal(t, 3, stats.NumQueries())
	// max(10/1, (10+40)/3)
	require.InDelta(t, 50.0/3, stats.Benefit(0), 1e-9)
	// max(5/2)
	require.InDelta(t, 2.5, stats.Benefit(1), 1e-9)

	require.InDelta(t, 10, run(1).Benefit(0), 1e-9)

	stats.Bias(0, 5)
	require.InDelta(t, 50.0/3+5, stats.Benefit(0), 1e-9)
	require.Equal(t, 0.0, stats.Benefit(7))
}

func TestIndexStatisticsCurrentConfiguration(t *testing.T) {
	_, snap := prepareIndexes(10, 10)
	stats := NewIndexStatistics(10)
	// both indexes serve the same predicate, only the best one counts
	oracle := &fakeOracle{cost: func(conf candidate.BitSet) (float64, candidate.BitSet) {
		switch {
		case conf.Contains(0):
			return 40, candidate.NewBitSet(0)
		case conf.Contains(1):
			return 60, candidate.NewBitSet(1)
		}
		return 100, candidate.BitSet{}
	}}
	q := profileQuery(t, snap, []int{0, 1}, oracle)
	require.NoError(t, stats.AddQuery(q, candidate.NewBitSet(0)))
	require.InDelta(t, 60, stats.Benefit(0), 1e-9)
	require.Equal(t, 0.0, stats.Benefit(1))
}

func TestIndexStatisticsFrequency(t *testing.T) {
	_, snap := prepareIndexes(10)
	stats := NewIndexStatistics(10)
	q := profileQuery(t, snap, []int{0}, savingsOracle(100, map[int]float64{0: 20}))
	q.Query.Frequency = 3
	require.NoError(t, stats.AddQuery(q, candidate.BitSet{}))
	require.InDelta(t, 60, stats.Benefit(0), 1e-9)
}
