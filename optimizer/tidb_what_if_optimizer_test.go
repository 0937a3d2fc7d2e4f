package optimizer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/utils"
)

func requireTiDB(t *testing.T) string {
	if os.Getenv("INDEX_ADVISOR_TIDB_TEST") != "1" {
		t.Skip("set INDEX_ADVISOR_TIDB_TEST=1 to run tests against a TiDB, INDEX_ADVISOR_TIDB_DSN to pick it")
	}
	if dsn := os.Getenv("INDEX_ADVISOR_TIDB_DSN"); dsn != "" {
		return dsn
	}
	return "root:@tcp(127.0.0.1:4000)/test"
}

func TestWhatIfOptimizer(t *testing.T) {
	dsn := requireTiDB(t)
	o, err := NewTiDBWhatIfOptimizer(dsn)
	require.NoError(t, err)
	defer o.Close()
	require.NoError(t, o.Execute(`drop table if exists t`))
	require.NoError(t, o.Execute(`create table t (a int, b int)`))
	q := utils.Query{SchemaName: "test", Text: "select * from t where a=1"}
	p1, err := o.Explain(q)
	require.NoError(t, err)
	require.NoError(t, o.CreateHypoIndex(utils.NewIndex("test", "t", "idx_a", "a")))
	p2, err := o.Explain(q)
	require.NoError(t, err)
	require.NoError(t, o.DropHypoIndex(utils.NewIndex("test", "t", "idx_a", "a")))
	p3, err := o.Explain(q)
	require.NoError(t, err)

	c1, err := p1.PlanCost()
	require.NoError(t, err)
	c2, err := p2.PlanCost()
	require.NoError(t, err)
	c3, err := p3.PlanCost()
	require.NoError(t, err)
	require.Less(t, c2, c1)
	require.Equal(t, c1, c3)
	require.True(t, p2.UsedIndexNames().Contains(utils.LowerString("idx_a")))
	require.Equal(t, 3, o.Stats().Explains)
	require.Equal(t, 2, o.Stats().HypoIndexes)
}

func TestCostOracleOnTiDB(t *testing.T) {
	dsn := requireTiDB(t)
	o, err := NewTiDBWhatIfOptimizer(dsn)
	require.NoError(t, err)
	defer o.Close()
	require.NoError(t, o.Execute(`drop table if exists t`))
	require.NoError(t, o.Execute(`create table t (a int, b int)`))

	oracle, err := NewCostOracle(o, 2)
	require.NoError(t, err)
	defer oracle.Close()

	pool := candidate.NewPool()
	idxA, _ := pool.Add(utils.NewIndex("test", "t", "idx_a", "a"), candidate.Costs{})
	idxB, _ := pool.Add(utils.NewIndex("test", "t", "idx_b", "b"), candidate.Costs{})
	q := utils.Query{SchemaName: "test", Text: "select * from t where a=1"}

	base, err := oracle.Cost(q, candidate.NewConfiguration())
	require.NoError(t, err)
	res, err := oracle.Cost(q, candidate.NewConfiguration(idxA, idxB))
	require.NoError(t, err)
	require.Less(t, res.Cost, base.Cost)
	require.Equal(t, []int{idxA.ID}, res.Used.IDs())

	cost, _, err := oracle.ScanStats(idxA.Def)
	require.NoError(t, err)
	require.Greater(t, cost, 0.0)
}
