package optimizer

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/qw4990/online_index_advisor/utils"
)

// SessionStats counts the work done by one what-if session.
type SessionStats struct {
	Statements    int           // executed statements, hypo index DDL included
	StatementTime time.Duration // time spent in executed statements
	HypoIndexes   int           // created or dropped hypothetical indexes
	HypoIndexTime time.Duration // time spent creating or dropping hypothetical indexes
	Explains      int           // explained queries
	ExplainTime   time.Duration // time spent explaining queries
}

// Add returns the sum of both statistics.
func (s SessionStats) Add(o SessionStats) SessionStats {
	return SessionStats{
		Statements:    s.Statements + o.Statements,
		StatementTime: s.StatementTime + o.StatementTime,
		HypoIndexes:   s.HypoIndexes + o.HypoIndexes,
		HypoIndexTime: s.HypoIndexTime + o.HypoIndexTime,
		Explains:      s.Explains + o.Explains,
		ExplainTime:   s.ExplainTime + o.ExplainTime,
	}
}

// Format formats the statistics.
func (s SessionStats) Format() string {
	return fmt.Sprintf("statements(count/time): %v/%v, hypo indexes: %v/%v, explains: %v/%v",
		s.Statements, s.StatementTime, s.HypoIndexes, s.HypoIndexTime, s.Explains, s.ExplainTime)
}

// WhatIfOptimizer is a session able to cost queries under hypothetical indexes.
// A session is used by one goroutine at a time, Clone opens another one.
type WhatIfOptimizer interface {
	Query(sql string) (*sql.Rows, error) // run the specified query and return its rows
	Execute(sql string) error            // execute the specified SQL statement
	Close() error                        // release the underlying database connection
	Clone() (WhatIfOptimizer, error)     // open another session with the same session variables

	CreateHypoIndex(index utils.Index) error // create a hypothetical index
	DropHypoIndex(index utils.Index) error   // drop a hypothetical index

	Explain(query utils.Query) (utils.Plan, error) // explain the query under its schema

	Stats() SessionStats
}
