// Package advisor recommends indexes online: it keeps statistics about
// candidate indexes, picks the hot set, partitions it by interaction and
// runs a work function algorithm on every partition.
package advisor

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/config"
	"github.com/qw4990/online_index_advisor/interaction"
	"github.com/qw4990/online_index_advisor/metrics"
	"github.com/qw4990/online_index_advisor/profiler"
	"github.com/qw4990/online_index_advisor/utils"
)

// AnalyzedQuery summarizes how the selector processed one query.
type AnalyzedQuery struct {
	Query            *profiler.ProfiledQuery
	HotSet           *candidate.Configuration
	Partitioning     Partitioning
	Recommendation   *candidate.Configuration
	Repartitioned    bool
	BaseCost         float64 // cost without any candidate
	MaterializedCost float64 // cost under the materialized candidates
	RecommendedCost  float64 // cost under the recommendation
}

type vote struct {
	index    *candidate.Index
	positive bool
}

// Selector processes queries one at a time and maintains the recommendation.
// AnalyzeQuery, FlushVotes, Create and Drop must be called from one goroutine.
// Votes may come from any goroutine; they are applied when the next query is
// analyzed or when FlushVotes is called.
type Selector struct {
	tuning        config.Tuning
	maxHotSetSize int
	ranking       RankingPolicy
	cmp           interaction.Comparison
	dropCost      DropCostPolicy

	snapshot     *candidate.Snapshot
	bank         *interaction.Bank
	stats        *IndexStatistics
	wfa          *WorkFunctionAlgorithm
	hotSet       *candidate.Configuration
	partitioning Partitioning
	materialized candidate.BitSet
	userHotSet   candidate.BitSet
	wfaVotes     []vote // votes waiting for the next repartition

	mu    sync.Mutex
	votes []vote
}

func validateTuning(t config.Tuning) config.Tuning {
	if t.MaxHotSetSize < 1 {
		utils.Warningf("max hot set size should be at least 1, set from %v to 1", t.MaxHotSetSize)
		t.MaxHotSetSize = 1
	}
	if t.MaxNumStates < 2 {
		utils.Warningf("max number of states should be at least 2, set from %v to 2", t.MaxNumStates)
		t.MaxNumStates = 2
	}
	if t.MaxNumStates > config.MaxNumStatesLimit {
		utils.Warningf("max number of states should be at most %v, set from %v to %v", config.MaxNumStatesLimit, t.MaxNumStates, config.MaxNumStatesLimit)
		t.MaxNumStates = config.MaxNumStatesLimit
	}
	if t.InteractionThreshold < 0 {
		utils.Warningf("interaction threshold should not be negative, set from %v to 0", t.InteractionThreshold)
		t.InteractionThreshold = 0
	}
	if t.StatsWindow < 1 {
		utils.Warningf("stats window should be at least 1, set from %v to 1", t.StatsWindow)
		t.StatsWindow = 1
	}
	return t
}

// NewSelector creates a selector without any known candidate.
func NewSelector(tuning config.Tuning) (*Selector, error) {
	tuning = validateTuning(tuning)
	ranking, err := ParseRankingPolicy(tuning.Ranking)
	if err != nil {
		return nil, err
	}
	dropCost, err := ParseDropCostPolicy(tuning.DropCostPolicy)
	if err != nil {
		return nil, err
	}
	decision, err := ParseDecisionPolicy(tuning.DecisionPolicy)
	if err != nil {
		return nil, err
	}
	cmp, err := tuning.Comparison()
	if err != nil {
		return nil, err
	}
	return &Selector{
		tuning:        tuning,
		maxHotSetSize: tuning.MaxHotSetSize,
		ranking:       ranking,
		cmp:           cmp,
		dropCost:      dropCost,
		snapshot:      candidate.NewPool().Snapshot(),
		bank:          interaction.NewBank(0),
		stats:         NewIndexStatistics(tuning.StatsWindow),
		wfa:           NewWorkFunctionAlgorithm(dropCost, decision),
		hotSet:        candidate.NewConfiguration(),
	}, nil
}

// AnalyzeQuery folds one profiled query into the statistics, refreshes the
// hot set and the partitioning, and updates the work function algorithm.
// Oracle errors are returned as is; the query is then only partially recorded.
func (s *Selector) AnalyzeQuery(q *profiler.ProfiledQuery) (*AnalyzedQuery, error) {
	aq, err := s.analyzeQuery(q)
	if err != nil {
		metrics.QueriesAnalyzed.WithLabelValues("error").Inc()
		return nil, errors.Wrapf(err, "failed to analyze query %v", q.Query.Alias)
	}
	metrics.QueriesAnalyzed.WithLabelValues("ok").Inc()
	return aq, nil
}

func (s *Selector) analyzeQuery(q *profiler.ProfiledQuery) (*AnalyzedQuery, error) {
	s.adoptSnapshot(q.Snapshot)
	s.applyVotes()

	for _, in := range q.Analysis.Interactions {
		s.bank.AssignInteraction(in.A, in.B, in.Degree)
	}
	for id, benefit := range q.Analysis.Benefits {
		s.bank.AssignBenefit(id, benefit)
	}
	if err := s.stats.AddQuery(q, s.materialized.Union(s.wfa.Recommendation())); err != nil {
		return nil, err
	}

	repartitioned := s.refresh()

	weight := queryWeight(q)
	if err := s.wfa.NewTask(func(state candidate.BitSet) (float64, error) {
		cost, err := q.Graph.Cost(state)
		return cost * weight, err
	}); err != nil {
		return nil, err
	}

	aq := &AnalyzedQuery{
		Query:          q,
		HotSet:         s.hotSet,
		Partitioning:   s.partitioning,
		Recommendation: s.Recommendation(),
		Repartitioned:  repartitioned,
	}
	var err error
	if aq.BaseCost, err = q.Graph.Cost(candidate.BitSet{}); err != nil {
		return nil, err
	}
	if aq.MaterializedCost, err = q.Graph.Cost(s.materialized); err != nil {
		return nil, err
	}
	if aq.RecommendedCost, err = q.Graph.Cost(aq.Recommendation.Bits()); err != nil {
		return nil, err
	}
	utils.Debugf("analyze query %v: cost %.2f, %.2f under materialized, %.2f under recommendation %v",
		q.Query.Alias, aq.BaseCost, aq.MaterializedCost, aq.RecommendedCost, aq.Recommendation)
	return aq, nil
}

func (s *Selector) adoptSnapshot(snapshot *candidate.Snapshot) {
	if snapshot == nil || snapshot.Size() <= s.snapshot.Size() {
		return
	}
	s.snapshot = snapshot
	s.bank = s.bank.Grow(snapshot.Size())
}

// refresh recomputes the hot set and the partitioning. The work function
// algorithm is repartitioned when the partitioning changed, and pending votes
// are relayed to it afterwards.
func (s *Selector) refresh() bool {
	recommendation := s.wfa.Recommendation()
	required := s.userHotSet.Union(s.materialized).Union(recommendation)
	if n := required.Count(); n > s.maxHotSetSize {
		utils.Warningf("%v required indexes exceed the max hot set size %v, raise it to %v", n, s.maxHotSetSize, n)
		s.maxHotSetSize = n
		metrics.HotSetOverflows.Inc()
	}

	s.hotSet = ChooseHotSet(s.snapshot, s.hotSet, required, s.stats, s.maxHotSetSize, s.ranking)
	metrics.HotSetSize.Set(float64(s.hotSet.Size()))

	p := ChoosePartitions(s.hotSet, s.partitioning, s.bank, s.tuning.MaxNumStates, s.tuning.InteractionThreshold, s.cmp)
	changed := !p.Equal(s.partitioning)
	if changed {
		discarded := s.wfa.Repartition(p, s.snapshot, s.materialized)
		metrics.Repartitions.Add(float64(discarded))
		utils.Infof("repartition %v hot indexes into %v, %v groups discarded", s.hotSet.Size(), p, discarded)
		s.partitioning = p
	}

	for _, v := range s.wfaVotes {
		if !s.wfa.Vote(v.index, v.positive) {
			utils.Debugf("vote on %v ignored, it is not monitored", v.index)
		}
	}
	s.wfaVotes = nil
	return changed
}

// Recommendation returns the union of the states decided for every group.
func (s *Selector) Recommendation() *candidate.Configuration {
	return s.snapshot.Configuration(s.wfa.Recommendation())
}

// HotSet returns the indexes currently monitored.
func (s *Selector) HotSet() *candidate.Configuration {
	return s.hotSet
}

// Partitioning returns the current partitioning of the hot set.
func (s *Selector) Partitioning() Partitioning {
	return s.partitioning
}

// Materialized returns the ids of the indexes tracked as materialized.
func (s *Selector) Materialized() candidate.BitSet {
	return s.materialized.Clone()
}

// PositiveVote pins the index into the hot set and biases the work function
// towards states containing it.
func (s *Selector) PositiveVote(idx *candidate.Index) {
	s.enqueueVote(vote{index: idx, positive: true})
}

// NegativeVote unpins the index and biases the work function towards states
// without it. It does nothing for an index that is not hot.
func (s *Selector) NegativeVote(idx *candidate.Index) {
	s.enqueueVote(vote{index: idx, positive: false})
}

func (s *Selector) enqueueVote(v vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, v)
}

// FlushVotes applies the queued votes without waiting for the next query.
func (s *Selector) FlushVotes() {
	if s.applyVotes() > 0 {
		s.refresh()
	}
}

func (s *Selector) applyVotes() int {
	s.mu.Lock()
	votes := s.votes
	s.votes = nil
	s.mu.Unlock()

	applied := 0
	for _, v := range votes {
		id := v.index.ID
		if v.positive {
			if id >= s.bank.IndexCount() {
				s.bank = s.bank.Grow(id + 1)
			}
			s.userHotSet.Set(id)
			s.stats.Bias(id, v.index.CreateCost)
			s.bank.AssignBenefit(id, s.bank.BestBenefit(id)+v.index.CreateCost)
		} else {
			if !s.hotSet.Contains(v.index) {
				utils.Debugf("negative vote on %v ignored, it is not hot", v.index)
				continue
			}
			s.userHotSet.Clear(id)
			s.stats.Bias(id, -v.index.CreateCost)
		}
		utils.Infof("apply vote on %v, positive: %v", v.index, v.positive)
		s.wfaVotes = append(s.wfaVotes, v)
		applied++
	}
	return applied
}

// Create records that the index was materialized outside the online loop and
// returns its creation cost.
func (s *Selector) Create(idx *candidate.Index) float64 {
	s.materialized.Set(idx.ID)
	return idx.CreateCost
}

// Drop records that the index was dropped outside the online loop and returns
// the drop cost under the configured policy.
func (s *Selector) Drop(idx *candidate.Index) float64 {
	s.materialized.Clear(idx.ID)
	return s.dropCost.Cost(idx)
}
