package optimizer

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/qw4990/online_index_advisor/utils"
)

// TiDBWhatIfOptimizer is a what-if session on a TiDB cluster, relying on
// `create index ... type hypo` to cost plans without building indexes.
type TiDBWhatIfOptimizer struct {
	db          *sql.DB
	dsn         string
	sessionVars []string // set statements replayed on clones
	schema      string   // current schema of the session
	stats       SessionStats
}

// NewTiDBWhatIfOptimizer opens a single-connection session on the DSN.
func NewTiDBWhatIfOptimizer(dsn string) (*TiDBWhatIfOptimizer, error) {
	utils.Debugf("connecting to %v", dsn)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open what-if session")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %v", dsn)
	}
	// session variables and hypo indexes live on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &TiDBWhatIfOptimizer{db: db, dsn: dsn}, nil
}

// Stats returns the statistics of this session.
func (o *TiDBWhatIfOptimizer) Stats() SessionStats {
	return o.stats
}

func since(start time.Time, dur *time.Duration, counter *int) {
	*dur += time.Since(start)
	*counter++
}

// Query runs the specified statement and returns its rows.
func (o *TiDBWhatIfOptimizer) Query(sql string) (*sql.Rows, error) {
	utils.Debugf("query: %v", sql)
	rows, err := o.db.Query(sql)
	return rows, errors.Wrapf(err, "failed to run %v", sql)
}

// Execute executes the statement. Set statements are remembered for Clone,
// use statements switch the schema of the session.
func (o *TiDBWhatIfOptimizer) Execute(sql string) error {
	defer since(time.Now(), &o.stats.StatementTime, &o.stats.Statements)
	utils.Debugf("execute: %v", sql)
	if _, err := o.db.Exec(sql); err != nil {
		return errors.Wrapf(err, "failed to execute %v", sql)
	}
	// hypo index DDL is frequent and never changes the session
	lower := strings.ToLower(strings.TrimSpace(sql))
	if !strings.HasPrefix(lower, "set") && !strings.HasPrefix(lower, "use") {
		return nil
	}
	switch utils.GetStmtType(sql) {
	case utils.StmtSet:
		o.sessionVars = append(o.sessionVars, sql)
	case utils.StmtUseDB:
		o.schema = utils.GetStmtDBName(sql)
	}
	return nil
}

// Clone opens another session on the same DSN with the same session variables.
func (o *TiDBWhatIfOptimizer) Clone() (WhatIfOptimizer, error) {
	cloned, err := NewTiDBWhatIfOptimizer(o.dsn)
	if err != nil {
		return nil, err
	}
	for _, stmt := range o.sessionVars {
		if err := cloned.Execute(stmt); err != nil {
			cloned.Close()
			return nil, err
		}
	}
	return cloned, nil
}

// Close releases the underlying database connection.
func (o *TiDBWhatIfOptimizer) Close() error {
	return o.db.Close()
}

// CreateHypoIndex creates a hypothetical index visible to this session only.
func (o *TiDBWhatIfOptimizer) CreateHypoIndex(index utils.Index) error {
	defer since(time.Now(), &o.stats.HypoIndexTime, &o.stats.HypoIndexes)
	return o.Execute(fmt.Sprintf("create index %v type hypo on %v.%v (%v)",
		index.IndexName, index.SchemaName, index.TableName, strings.Join(index.ColumnNames(), ", ")))
}

// DropHypoIndex drops a hypothetical index.
func (o *TiDBWhatIfOptimizer) DropHypoIndex(index utils.Index) error {
	defer since(time.Now(), &o.stats.HypoIndexTime, &o.stats.HypoIndexes)
	return o.Execute(fmt.Sprintf("drop hypo index %v on %v.%v", index.IndexName, index.SchemaName, index.TableName))
}

// Explain returns the verbose plan of the query, switching to its schema first.
func (o *TiDBWhatIfOptimizer) Explain(query utils.Query) (utils.Plan, error) {
	if query.SchemaName != "" && !strings.EqualFold(query.SchemaName, o.schema) {
		if err := o.Execute("use " + query.SchemaName); err != nil {
			return nil, err
		}
	}
	defer since(time.Now(), &o.stats.ExplainTime, &o.stats.Explains)
	rows, err := o.Query("explain format = 'verbose' " + query.Text)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var plan utils.Plan
	for rows.Next() {
		// | id | estRows | estCost | task | access object | operator info |
		row := make([]string, 6)
		if err := rows.Scan(&row[0], &row[1], &row[2], &row[3], &row[4], &row[5]); err != nil {
			return nil, errors.Wrapf(err, "unexpected plan of %v", query.Text)
		}
		plan = append(plan, row)
	}
	return plan, rows.Err()
}
