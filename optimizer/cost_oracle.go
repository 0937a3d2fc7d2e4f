package optimizer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/ibg"
	"github.com/qw4990/online_index_advisor/utils"
)

// CostOracle answers what-if cost requests on a pool of optimizer sessions.
// Each request creates the hypothetical indexes of the configuration on one
// session, explains the query and drops them again, so requests can run
// concurrently on different sessions.
type CostOracle struct {
	sessions chan WhatIfOptimizer
	size     int
	clones   []WhatIfOptimizer
}

// NewCostOracle creates an oracle using base and parallelism-1 clones of it.
func NewCostOracle(base WhatIfOptimizer, parallelism int) (*CostOracle, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	o := &CostOracle{sessions: make(chan WhatIfOptimizer, parallelism), size: 1}
	o.sessions <- base
	for i := 1; i < parallelism; i++ {
		cloned, err := base.Clone()
		if err != nil {
			o.Close()
			return nil, errors.Wrap(err, "failed to open what-if session")
		}
		o.clones = append(o.clones, cloned)
		o.sessions <- cloned
		o.size++
	}
	return o, nil
}

func (o *CostOracle) acquire() WhatIfOptimizer {
	return <-o.sessions
}

func (o *CostOracle) release(sess WhatIfOptimizer) {
	o.sessions <- sess
}

// Cost returns the cost of the query under the configuration and the
// candidate indexes used by its plan.
func (o *CostOracle) Cost(query utils.Query, conf *candidate.Configuration) (ibg.WhatIfResult, error) {
	sess := o.acquire()
	defer o.release(sess)

	var created []utils.Index
	defer func() {
		for _, def := range created {
			if err := sess.DropHypoIndex(def); err != nil {
				utils.Errorf("failed to drop hypo index %v: %v", def.Key(), err)
			}
		}
	}()
	for _, idx := range conf.Indexes() {
		if err := sess.CreateHypoIndex(idx.Def); err != nil {
			return ibg.WhatIfResult{}, errors.Wrapf(err, "failed to create hypo index %v", idx.Def.Key())
		}
		created = append(created, idx.Def)
	}

	plan, err := sess.Explain(query)
	if err != nil {
		return ibg.WhatIfResult{}, errors.Wrapf(err, "failed to explain %v", query.Text)
	}
	cost, err := plan.PlanCost()
	if err != nil {
		return ibg.WhatIfResult{}, err
	}
	usedNames := plan.UsedIndexNames()
	var used candidate.BitSet
	for _, idx := range conf.Indexes() {
		if usedNames.Contains(utils.LowerString(strings.ToLower(idx.Def.IndexName))) {
			used.Set(idx.ID)
		}
	}
	return ibg.WhatIfResult{Cost: cost, Used: used}, nil
}

// ScanStats returns the cost and the estimated number of rows of reading the
// columns of the index from its table without any index.
func (o *CostOracle) ScanStats(def utils.Index) (cost, rows float64, err error) {
	sess := o.acquire()
	defer o.release(sess)

	q := utils.Query{
		SchemaName: def.SchemaName,
		Text: fmt.Sprintf("select /*+ use_index(%v) */ %v from %v.%v",
			def.TableName, strings.Join(def.ColumnNames(), ", "), def.SchemaName, def.TableName),
	}
	plan, err := sess.Explain(q)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to explain scan of %v", def.Key())
	}
	if cost, err = plan.PlanCost(); err != nil {
		return 0, 0, err
	}
	return cost, plan.EstRows(), nil
}

// Stats sums the statistics of all sessions, waiting for running requests.
func (o *CostOracle) Stats() SessionStats {
	var stats SessionStats
	held := make([]WhatIfOptimizer, 0, o.size)
	for i := 0; i < o.size; i++ {
		sess := o.acquire()
		stats = stats.Add(sess.Stats())
		held = append(held, sess)
	}
	for _, sess := range held {
		o.release(sess)
	}
	return stats
}

// Close releases all cloned sessions. The base session is owned by the caller.
func (o *CostOracle) Close() error {
	var firstErr error
	for _, c := range o.clones {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.clones = nil
	return firstErr
}
