package profiler

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/config"
	"github.com/qw4990/online_index_advisor/ibg"
	"github.com/qw4990/online_index_advisor/utils"
)

// fakeEstimator saves 40 whenever an index leading with column a exists.
type fakeEstimator struct {
	mu    sync.Mutex
	scans int
}

func (e *fakeEstimator) Cost(_ utils.Query, conf *candidate.Configuration) (ibg.WhatIfResult, error) {
	for _, idx := range conf.Indexes() {
		if idx.Def.Columns[0].ColumnName == "a" {
			return ibg.WhatIfResult{Cost: 60, Used: candidate.NewBitSet(idx.ID)}, nil
		}
	}
	return ibg.WhatIfResult{Cost: 100}, nil
}

func (e *fakeEstimator) ScanStats(def utils.Index) (float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scans++
	return 50, 1000, nil
}

func prepareTables(t *testing.T, stmts ...string) utils.Set[utils.TableSchema] {
	tables := utils.NewSet[utils.TableSchema]()
	for _, stmt := range stmts {
		schema, err := utils.ParseCreateTableStmt("test", stmt)
		require.NoError(t, err)
		tables.Add(schema)
	}
	return tables
}

func columnKeys(cols utils.Set[utils.Column]) []string {
	var keys []string
	for _, c := range cols.ToList() {
		keys = append(keys, c.Key())
	}
	sort.Strings(keys)
	return keys
}

func TestIndexableColumns(t *testing.T) {
	tables := prepareTables(t,
		"create table t (a int, b int, c int, d int, e varchar(10), f text)",
		"create table t2 (a int, x int)")
	cases := []struct {
		sql  string
		cols []string
	}{
		{"select * from t where a < 1 and b > 1 and e like 'abc'", []string{"test.t.a", "test.t.b"}},
		{"select * from t where c in (1, 2, 3) order by d", []string{"test.t.c", "test.t.d"}},
		{"select a, count(*) from t where f = 'x' group by a", []string{"test.t.a"}},
		{"select * from t2 tx where tx.x between 1 and 10", []string{"test.t2.x"}},
		{"select * from t2 where t2.a = 1", []string{"test.t2.a"}},
		{"select * from t, t2 where t.c = t2.x", []string{"test.t.c", "test.t2.x"}},
	}
	for _, c := range cases {
		cols, err := IndexableColumns(tables, utils.Query{SchemaName: "test", Text: c.sql})
		require.NoError(t, err)
		require.Equal(t, c.cols, columnKeys(cols), c.sql)
	}

	_, err := IndexableColumns(tables, utils.Query{SchemaName: "test", Text: "select from where"})
	require.Error(t, err)
}

func TestProfileBuildsCandidatesAndGraph(t *testing.T) {
	tables := prepareTables(t, "create table t (a int, b int, c int, key idx_b (b))")
	pool := candidate.NewPool()
	est := &fakeEstimator{}
	cfg := config.DefaultConfig().Profiler
	p := New(tables, pool, est, cfg)

	q := utils.Query{Alias: "q1", SchemaName: "test", Text: "select * from t where a = 1 and b = 2", Frequency: 1}
	pq, err := p.Profile(q)
	require.NoError(t, err)
	require.Equal(t, "select", pq.Category)
	require.NotEmpty(t, pq.Digest)
	require.Equal(t, []string{"test.t.a", "test.t.b"}, columnKeys(pq.Query.IndexableColumns))

	// (b) is covered by idx_b, leaving (a) and (a, b)
	var keys []string
	for _, idx := range pq.Candidates.Indexes() {
		keys = append(keys, idx.Key())
	}
	require.Equal(t, []string{"test.t(a)", "test.t(a,b)"}, keys)
	require.Equal(t, 2, pq.Snapshot.Size())
	for _, idx := range pq.Candidates.Indexes() {
		require.Equal(t, 50.0, idx.CreateCost)
		require.InDelta(t, 0.5, idx.DropCost, 1e-9)
		require.Greater(t, idx.StorageCost, 0.0)
	}

	first := pq.Candidates.Indexes()[0]
	require.Equal(t, 40.0, pq.Analysis.Benefit(first.ID))
	c, err := pq.Graph.Cost(candidate.NewBitSet(first.ID))
	require.NoError(t, err)
	require.Equal(t, 60.0, c)

	// known candidates are reused without estimating them again
	pq2, err := p.Profile(utils.Query{SchemaName: "test", Text: "select * from t where a > 3 and b < 1"})
	require.NoError(t, err)
	require.Equal(t, 2, pool.Size())
	require.Equal(t, 2, est.scans)
	require.Same(t, first, pq2.Candidates.Indexes()[0])
}

func TestProfileCategories(t *testing.T) {
	tables := prepareTables(t, "create table t (a int, b int)")
	p := New(tables, candidate.NewPool(), &fakeEstimator{}, config.DefaultConfig().Profiler)
	cases := map[string]string{
		"update t set b = 1 where a = 2": "update",
		"delete from t where a = 2":      "delete",
		"insert into t values (1, 2)":    "insert",
	}
	for sql, category := range cases {
		pq, err := p.Profile(utils.Query{SchemaName: "test", Text: sql})
		require.NoError(t, err)
		require.Equal(t, category, pq.Category, sql)
	}
	_, err := p.Profile(utils.Query{SchemaName: "test", Text: "select from where"})
	require.Error(t, err)
}

func TestCompressByDigest(t *testing.T) {
	queries := []utils.Query{
		{Alias: "q1", Text: "select * from t where a = 1", Frequency: 1},
		{Alias: "q2", Text: "select * from t where b = 1", Frequency: 2},
		{Alias: "q3", Text: "select * from t where a = 5", Frequency: 3},
	}
	compressed := CompressByDigest(queries)
	require.Len(t, compressed, 2)
	require.Equal(t, "q1", compressed[0].Alias)
	require.Equal(t, 4, compressed[0].Frequency)
	require.Equal(t, "q2", compressed[1].Alias)
	require.Equal(t, 2, compressed[1].Frequency)
	require.Equal(t, 1, queries[0].Frequency)
}
