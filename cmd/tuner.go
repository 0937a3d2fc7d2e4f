package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qw4990/online_index_advisor/advisor"
	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/profiler"
	"github.com/qw4990/online_index_advisor/utils"
)

// tuneStep is the outcome of one query in the stream.
type tuneStep struct {
	Alias          string
	BaseCost       float64 // weighted cost without any candidate
	Cost           float64 // weighted cost under the materialized indexes
	TransitionCost float64 // cost of following the recommendation after this query
	Recommendation string
	Repartitioned  bool
}

type tuneReport struct {
	Steps          []tuneStep
	Recommendation *candidate.Configuration
}

func (r *tuneReport) totals() (base, cost, transition float64) {
	for _, s := range r.Steps {
		base += s.BaseCost
		cost += s.Cost
		transition += s.TransitionCost
	}
	return
}

// Summary formats the report.
func (r *tuneReport) Summary() string {
	var b strings.Builder
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "%v\tbase %.2f\tcost %.2f\ttransition %.2f\trecommendation %v", s.Alias, s.BaseCost, s.Cost, s.TransitionCost, s.Recommendation)
		if s.Repartitioned {
			b.WriteString("\trepartitioned")
		}
		b.WriteString("\n")
	}
	base, cost, transition := r.totals()
	fmt.Fprintf(&b, "TotalBaseCost: %.2f\n", base)
	fmt.Fprintf(&b, "TotalCost: %.2f\n", cost)
	fmt.Fprintf(&b, "TotalTransitionCost: %.2f\n", transition)
	fmt.Fprintf(&b, "Recommendation: %v\n", r.Recommendation)
	return b.String()
}

// DDL returns the statements creating the recommended indexes.
func (r *tuneReport) DDL() string {
	var b strings.Builder
	for _, idx := range r.Recommendation.Indexes() {
		b.WriteString(idx.Def.DDL())
		b.WriteString(";\n")
	}
	return b.String()
}

// tuner streams queries through the profiler and the selector. When follow
// is set, the recommendation is treated as materialized after every query.
type tuner struct {
	pool     *candidate.Pool
	profiler *profiler.Profiler
	selector *advisor.Selector
	follow   bool
}

func (t *tuner) run(queries []utils.Query) (*tuneReport, error) {
	report := new(tuneReport)
	for _, q := range queries {
		pq, err := t.profiler.Profile(q)
		if err != nil {
			return nil, err
		}
		aq, err := t.selector.AnalyzeQuery(pq)
		if err != nil {
			return nil, err
		}
		weight := float64(max(q.Frequency, 1))
		step := tuneStep{
			Alias:          q.Alias,
			BaseCost:       aq.BaseCost * weight,
			Cost:           aq.MaterializedCost * weight,
			Recommendation: aq.Recommendation.String(),
			Repartitioned:  aq.Repartitioned,
		}
		if t.follow {
			step.TransitionCost = t.materialize(aq.Recommendation)
		}
		utils.Logger().WithFields(logrus.Fields{
			"query":          q.Alias,
			"cost":           step.Cost,
			"transition":     step.TransitionCost,
			"hot":            aq.HotSet.Size(),
			"partitioning":   aq.Partitioning.String(),
			"recommendation": step.Recommendation,
		}).Info("query analyzed")
		report.Steps = append(report.Steps, step)
	}
	report.Recommendation = t.selector.Recommendation()
	return report, nil
}

// materialize moves the materialized indexes to the recommendation and
// returns the cost of doing so.
func (t *tuner) materialize(rec *candidate.Configuration) float64 {
	materialized := t.selector.Materialized()
	snapshot := t.pool.Snapshot()
	cost := 0.0
	rec.Bits().Minus(materialized).ForEach(func(id int) {
		cost += t.selector.Create(snapshot.Get(id))
	})
	materialized.Minus(rec.Bits()).ForEach(func(id int) {
		cost += t.selector.Drop(snapshot.Get(id))
	})
	return cost
}
