// Package profiler turns incoming queries into candidate indexes and index
// benefit graphs.
package profiler

import (
	"sort"
	"strings"

	"github.com/pingcap/parser/ast"
	"github.com/pkg/errors"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/config"
	"github.com/qw4990/online_index_advisor/ibg"
	"github.com/qw4990/online_index_advisor/utils"
)

// dropCostRatio models dropping an index as a metadata change costing a
// small fraction of its build.
const dropCostRatio = 0.01

// Estimator answers what-if cost requests and estimates full scans, which
// are used to model index maintenance costs.
type Estimator interface {
	ibg.CostOracle
	ScanStats(def utils.Index) (cost, rows float64, err error)
}

// ProfiledQuery is a query together with its candidates and benefit graph.
type ProfiledQuery struct {
	Query      utils.Query
	Category   string // select, insert, update, delete or other
	Digest     string
	Snapshot   *candidate.Snapshot      // candidates known when the query was profiled
	Candidates *candidate.Configuration // candidates relevant to this query
	Graph      *ibg.Graph
	Analysis   *ibg.Analysis
}

// Profiler profiles queries against a set of table schemas.
// It is safe to call Profile from several goroutines.
type Profiler struct {
	tables    utils.Set[utils.TableSchema]
	pool      *candidate.Pool
	estimator Estimator
	cfg       config.Profiler
}

// New creates a profiler registering candidates into pool.
func New(tables utils.Set[utils.TableSchema], pool *candidate.Pool, estimator Estimator, cfg config.Profiler) *Profiler {
	return &Profiler{tables: tables, pool: pool, estimator: estimator, cfg: cfg}
}

// Profile finds the candidates of the query, builds its benefit graph and
// analyzes the interactions between its candidates.
func (p *Profiler) Profile(query utils.Query) (*ProfiledQuery, error) {
	stmt, err := utils.ParseOneSQL(query.Text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %v", query.Text)
	}
	_, digest := utils.NormalizeDigest(query.Text)
	cols, err := IndexableColumns(p.tables, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find indexable columns of %v", query.Text)
	}
	query.IndexableColumns = cols

	var indexes []*candidate.Index
	for _, comb := range p.candidateColumns(cols) {
		idx, err := p.register(comb)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	conf := candidate.NewConfiguration(indexes...)

	g := ibg.New(query, conf, p.estimator)
	if err := g.Expand(p.cfg.Parallelism); err != nil {
		return nil, err
	}
	analysis, err := ibg.Analyze(g)
	if err != nil {
		return nil, err
	}
	utils.Debugf("profile query %v: %v indexable columns, %v candidates, %v graph nodes, %v what-if calls",
		query.Alias, cols.Size(), conf.Size(), g.NumNodes(), g.WhatIfCalls())

	return &ProfiledQuery{
		Query:      query,
		Category:   category(stmt),
		Digest:     digest,
		Snapshot:   p.pool.Snapshot(),
		Candidates: conf,
		Graph:      g,
		Analysis:   analysis,
	}, nil
}

func category(stmt ast.StmtNode) string {
	switch stmt.(type) {
	case *ast.SelectStmt:
		return "select"
	case *ast.InsertStmt:
		return "insert"
	case *ast.UpdateStmt:
		return "update"
	case *ast.DeleteStmt:
		return "delete"
	}
	return "other"
}

// candidateColumns returns all combinations of up to MaxIndexWidth indexable
// columns of the same table, skipping those already covered by an existing index.
func (p *Profiler) candidateColumns(cols utils.Set[utils.Column]) [][]utils.Column {
	byTable := make(map[string]utils.Set[utils.Column])
	var tables []string
	for _, c := range cols.ToList() {
		k := utils.TableName{SchemaName: c.SchemaName, TableName: c.TableName}.Key()
		if _, ok := byTable[k]; !ok {
			byTable[k] = utils.NewSet[utils.Column]()
			tables = append(tables, k)
		}
		byTable[k].Add(c)
	}
	sort.Strings(tables)

	var combs [][]utils.Column
	for _, t := range tables {
		tableCols := byTable[t]
		for width := 1; width <= p.cfg.MaxIndexWidth && width <= tableCols.Size(); width++ {
			for _, comb := range utils.CombSet(tableCols, width) {
				if p.existing(comb.ToList()) {
					continue
				}
				combs = append(combs, comb.ToList())
			}
		}
	}
	return combs
}

func (p *Profiler) existing(cols []utils.Column) bool {
	def := utils.NewIndexWithColumns("", cols...)
	for _, t := range p.tables.ToList() {
		if !strings.EqualFold(t.SchemaName, def.SchemaName) || !strings.EqualFold(t.TableName, def.TableName) {
			continue
		}
		for _, idx := range t.Indexes {
			if idx.Key() == def.Key() {
				return true
			}
		}
	}
	return false
}

// register returns the pooled candidate on the columns, estimating its costs
// when it is new.
func (p *Profiler) register(cols []utils.Column) (*candidate.Index, error) {
	def := utils.NewIndexWithColumns(utils.TempIndexName(cols...), cols...)
	if idx, ok := p.pool.Find(def); ok {
		return idx, nil
	}
	cost, rows, err := p.estimator.ScanStats(def)
	if err != nil {
		return nil, err
	}
	width := 0
	for _, c := range cols {
		width += c.Width()
	}
	create := cost * p.cfg.CreateCostFactor
	idx, isNew := p.pool.Add(def, candidate.Costs{
		Create:  create,
		Drop:    create * dropCostRatio,
		Storage: rows * float64(width),
	})
	if isNew {
		utils.Debugf("new candidate %v: create cost %.2f, storage %.0f", idx, idx.CreateCost, idx.StorageCost)
	}
	return idx, nil
}
