package ibg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/utils"
)

func TestAnalyzeIndependentIndexes(t *testing.T) {
	_, cands := prepareCandidates(3)
	o := newFakeOracle(additiveCost(100, map[int]float64{0: 10, 1: 20}))
	g := New(utils.Query{Text: "select 1"}, cands, o)

	a, err := Analyze(g)
	require.NoError(t, err)
	require.Empty(t, a.Interactions)
	require.Equal(t, 10.0, a.Benefit(0))
	require.Equal(t, 20.0, a.Benefit(1))
	require.Equal(t, 0.0, a.Benefit(2))
}

func TestAnalyzeSubstituteIndexes(t *testing.T) {
	_, cands := prepareCandidates(3)
	// idx 0 and idx 1 serve the same predicate, the plan picks the lowest one
	o := newFakeOracle(func(conf candidate.BitSet) (float64, candidate.BitSet) {
		switch {
		case conf.Contains(0):
			return 40, candidate.NewBitSet(0)
		case conf.Contains(1):
			return 40, candidate.NewBitSet(1)
		}
		return 100, candidate.BitSet{}
	})
	g := New(utils.Query{Text: "select * from t where c0=1"}, cands, o)

	a, err := Analyze(g)
	require.NoError(t, err)
	require.Len(t, a.Interactions, 1)
	require.Equal(t, Interaction{A: 1, B: 0, Degree: 1.5}, a.Interactions[0])
	require.Equal(t, 60.0, a.Benefit(0))
	require.Equal(t, 60.0, a.Benefit(1))

	b, err := BenefitOf(g, candidate.NewBitSet(1), 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, b)
	b, err = BenefitOf(g, candidate.BitSet{}, 0)
	require.NoError(t, err)
	require.Equal(t, 60.0, b)
}

func TestAnalyzeComplementaryIndexes(t *testing.T) {
	_, cands := prepareCandidates(2)
	// a join only gets cheap when both sides are indexed
	o := newFakeOracle(func(conf candidate.BitSet) (float64, candidate.BitSet) {
		if conf.Contains(0) && conf.Contains(1) {
			return 20, candidate.NewBitSet(0, 1)
		}
		return 100, candidate.BitSet{}
	})
	g := New(utils.Query{Text: "select * from t1 join t2 on t1.c0=t2.c1"}, cands, o)

	a, err := Analyze(g)
	require.NoError(t, err)
	require.Len(t, a.Interactions, 1)
	require.Equal(t, 1, a.Interactions[0].A)
	require.Equal(t, 0, a.Interactions[0].B)
	require.InDelta(t, 4.0, a.Interactions[0].Degree, 1e-9) // |100-100-100+20|/20
	require.Equal(t, 80.0, a.Benefit(0))
	require.Equal(t, 80.0, a.Benefit(1))
}
