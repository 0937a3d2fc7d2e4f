package cmd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qw4990/online_index_advisor/advisor"
	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/config"
	"github.com/qw4990/online_index_advisor/ibg"
	"github.com/qw4990/online_index_advisor/profiler"
	"github.com/qw4990/online_index_advisor/utils"
)

// fakeEstimator halves the cost of a query filtering on the leading column of
// an index. Indexes on a cost 20 to build, any other 1000.
type fakeEstimator struct{}

func (fakeEstimator) Cost(q utils.Query, conf *candidate.Configuration) (ibg.WhatIfResult, error) {
	for _, idx := range conf.Indexes() {
		if strings.Contains(q.Text, idx.Def.Columns[0].ColumnName+" =") {
			return ibg.WhatIfResult{Cost: 50, Used: candidate.NewBitSet(idx.ID)}, nil
		}
	}
	return ibg.WhatIfResult{Cost: 100}, nil
}

func (fakeEstimator) ScanStats(def utils.Index) (float64, float64, error) {
	if def.Columns[0].ColumnName == "a" {
		return 20, 100, nil
	}
	return 1000, 100, nil
}

func prepareTuner(t *testing.T, follow bool) *tuner {
	schema, err := utils.ParseCreateTableStmt("test", "create table t (a int, b int)")
	require.NoError(t, err)
	tables := utils.ListToSet(schema)
	pool := candidate.NewPool()
	cfg := config.DefaultConfig()
	sel, err := advisor.NewSelector(cfg.Tuning)
	require.NoError(t, err)
	return &tuner{
		pool:     pool,
		profiler: profiler.New(tables, pool, fakeEstimator{}, cfg.Profiler),
		selector: sel,
		follow:   follow,
	}
}

func repeatQuery(text string, n int) []utils.Query {
	var queries []utils.Query
	for i := 0; i < n; i++ {
		queries = append(queries, utils.Query{Alias: "q" + string(rune('1'+i)), SchemaName: "test", Text: text, Frequency: 1})
	}
	return queries
}

func TestTunerFollowsRecommendation(t *testing.T) {
	tn := prepareTuner(t, true)
	report, err := tn.run(repeatQuery("select * from t where a = 1", 3))
	require.NoError(t, err)
	require.Len(t, report.Steps, 3)

	require.Equal(t, 100.0, report.Steps[0].Cost)
	require.Equal(t, 20.0, report.Steps[0].TransitionCost)
	require.True(t, report.Steps[0].Repartitioned)
	for _, s := range report.Steps[1:] {
		require.Equal(t, 50.0, s.Cost)
		require.Equal(t, 0.0, s.TransitionCost)
	}
	base, cost, transition := report.totals()
	require.Equal(t, 300.0, base)
	require.Equal(t, 200.0, cost)
	require.Equal(t, 20.0, transition)

	require.Equal(t, 1, report.Recommendation.Size())
	require.Equal(t, "test.t(a)", report.Recommendation.Indexes()[0].Key())
	require.Contains(t, report.DDL(), "CREATE INDEX")
	require.Contains(t, report.Summary(), "TotalTransitionCost: 20.00")
}

func TestTunerWithoutFollowing(t *testing.T) {
	tn := prepareTuner(t, false)
	report, err := tn.run(repeatQuery("select * from t where a = 1", 3))
	require.NoError(t, err)
	for _, s := range report.Steps {
		require.Equal(t, 100.0, s.Cost)
		require.Equal(t, 0.0, s.TransitionCost)
	}
	require.Equal(t, 1, report.Recommendation.Size())
	require.True(t, tn.selector.Materialized().IsEmpty())
}

func TestTunerWeightsByFrequency(t *testing.T) {
	tn := prepareTuner(t, true)
	q := utils.Query{Alias: "q1", SchemaName: "test", Text: "select * from t where b = 1", Frequency: 4}
	report, err := tn.run([]utils.Query{q})
	require.NoError(t, err)
	require.Equal(t, 400.0, report.Steps[0].BaseCost)
	require.Equal(t, 400.0, report.Steps[0].Cost)
	// saving 4*50 does not pay for 1000
	require.Equal(t, 0, report.Recommendation.Size())
}

func TestVoteHandler(t *testing.T) {
	tn := prepareTuner(t, true)
	queries := append(repeatQuery("select * from t where a = 1", 1), repeatQuery("select * from t where b = 1", 1)...)
	_, err := tn.run(queries)
	require.NoError(t, err)
	b := findCandidate(tn.pool.Snapshot(), "test.t(b)")
	require.NotNil(t, b)
	require.False(t, tn.selector.HotSet().Contains(b))

	mux := newAdvisorMux(tn.pool, tn.selector)
	do := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}
	require.Equal(t, http.StatusMethodNotAllowed, do(http.MethodGet, "/vote?index=test.t(b)&positive=true").Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/vote?index=test.t(b)&positive=maybe").Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodPost, "/vote?index=test.t(c)&positive=true").Code)

	rec := do(http.MethodPost, "/vote?index=test.t(b)&positive=true")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "test.t(b)")
	require.False(t, tn.selector.HotSet().Contains(b))
	tn.selector.FlushVotes()
	require.True(t, tn.selector.HotSet().Contains(b))

	require.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics").Code)
}

func TestOrderQueries(t *testing.T) {
	queries := utils.ListToSet(
		utils.Query{Alias: "q10", Text: "select 10"},
		utils.Query{Alias: "q2", Text: "select 2"},
		utils.Query{Alias: "q1", Text: "select 1"},
	)
	var aliases []string
	for _, q := range orderQueries(queries) {
		aliases = append(aliases, q.Alias)
	}
	require.Equal(t, []string{"q1", "q2", "q10"}, aliases)
}

func TestDBNameFromDSN(t *testing.T) {
	name, err := dbNameFromDSN("root:@tcp(127.0.0.1:4000)/tpch")
	require.NoError(t, err)
	require.Equal(t, "tpch", name)
	_, err = dbNameFromDSN("root:@tcp(127.0.0.1:4000)/")
	require.Error(t, err)
}

func TestGetStatsFileTableName(t *testing.T) {
	p := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"database_name": "tpch", "table_name": "lineitem", "columns": {}}`), 0644))
	name, err := getStatsFileTableName(p)
	require.NoError(t, err)
	require.Equal(t, utils.TableName{SchemaName: "tpch", TableName: "lineitem"}, name)
}

func TestFilterQueries(t *testing.T) {
	queries := utils.ListToSet(
		utils.Query{SchemaName: "test", Text: "select * from t where a = 1"},
		utils.Query{SchemaName: "test", Text: "select * from mysql.user"},
		utils.Query{SchemaName: "test", Text: "select @@version"},
		utils.Query{SchemaName: "test", Text: "select * from dropped where a = 1"},
	)
	filtered, err := filterQueries(queries, readsUserTables)
	require.NoError(t, err)
	require.Equal(t, []string{"select * from dropped where a = 1", "select * from t where a = 1"}, filtered.ToKeyList())

	schemas := utils.ListToSet(utils.TableSchema{SchemaName: "test", TableName: "t"})
	filtered, err = filterQueries(filtered, readsKnownTables(schemas))
	require.NoError(t, err)
	require.Equal(t, []string{"select * from t where a = 1"}, filtered.ToKeyList())

	_, err = filterQueries(utils.ListToSet(utils.Query{Text: "select from where"}), readsUserTables)
	require.Error(t, err)
}

func TestSummaryFilter(t *testing.T) {
	require.Equal(t, "stmt_type in ('Select', 'Insert', 'Update', 'Delete')", summaryFilter(nil, 0, 0))
	require.Equal(t, "stmt_type in ('Select', 'Insert', 'Update', 'Delete') and schema_name in ('tpch', 'test')"+
		" and avg_latency >= 300000000 and exec_count >= 20",
		summaryFilter([]string{"tpch", "test"}, 300, 20))
}

func TestLoadTuneConfig(t *testing.T) {
	cmd := NewTuneCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--max-hot-set-size", "7", "--log-level", "debug"}))
	cfg, err := loadTuneConfig(cmd, tuneCmdOpt{maxHotSetSize: 7, maxNumStates: 1, logLevel: "debug"})
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Tuning.MaxHotSetSize)
	require.Equal(t, 2000, cfg.Tuning.MaxNumStates) // not set on the command line
	require.Equal(t, "debug", cfg.LogLevel)

	require.NoError(t, cmd.Flags().Parse([]string{"--max-num-states", "1"}))
	_, err = loadTuneConfig(cmd, tuneCmdOpt{maxHotSetSize: 7, maxNumStates: 1, logLevel: "debug"})
	require.Error(t, err)
}
