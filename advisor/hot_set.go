package advisor

import (
	"fmt"
	"sort"

	"github.com/qw4990/online_index_advisor/candidate"
)

// RankingPolicy decides how non-required candidates compete for the hot set.
type RankingPolicy int

const (
	// BenefitRanking scores an index by its benefit, minus its creation cost if it is not hot yet.
	BenefitRanking RankingPolicy = iota
	// BenefitPerStorageRanking divides the BenefitRanking score by the storage cost.
	BenefitPerStorageRanking
)

var rankingPolicies = map[string]RankingPolicy{
	"benefit":             BenefitRanking,
	"benefit_per_storage": BenefitPerStorageRanking,
}

// ParseRankingPolicy parses a ranking policy name.
func ParseRankingPolicy(name string) (RankingPolicy, error) {
	if name == "" {
		return BenefitRanking, nil
	}
	p, ok := rankingPolicies[name]
	if !ok {
		return BenefitRanking, fmt.Errorf("ranking policy %s not found", name)
	}
	return p, nil
}

func (p RankingPolicy) score(idx *candidate.Index, benefit float64, wasHot bool) float64 {
	score := benefit
	if !wasHot {
		score -= idx.CreateCost
	}
	if p == BenefitPerStorageRanking && score > 0 {
		storage := idx.StorageCost
		if storage < 1 {
			storage = 1
		}
		score /= storage
	}
	return score
}

// ChooseHotSet selects the indexes monitored by the work function algorithm.
// Required indexes are always included, even beyond maxSize. The remaining
// room is filled greedily with the best scored candidates whose score is positive.
func ChooseHotSet(snapshot *candidate.Snapshot, old *candidate.Configuration, required candidate.BitSet,
	stats *IndexStatistics, maxSize int, ranking RankingPolicy) *candidate.Configuration {
	chosen := candidate.BitSet{}
	required.ForEach(func(id int) {
		if id <= snapshot.MaxInternalID() {
			chosen.Set(id)
		}
	})

	type scored struct {
		id    int
		score float64
	}
	var candidates []scored
	for _, idx := range snapshot.Indexes() {
		if chosen.Contains(idx.ID) {
			continue
		}
		wasHot := old != nil && old.Contains(idx)
		if s := ranking.score(idx, stats.Benefit(idx.ID), wasHot); s > 0 {
			candidates = append(candidates, scored{idx.ID, s})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	for _, c := range candidates {
		if chosen.Count() >= maxSize {
			break
		}
		chosen.Set(c.id)
	}
	return snapshot.Configuration(chosen)
}
