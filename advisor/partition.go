package advisor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/interaction"
	"github.com/qw4990/online_index_advisor/utils"
)

// Partitioning is a set of disjoint groups of index ids.
// A normalized partitioning has every group sorted and groups ordered by their first id.
type Partitioning [][]int

func groupStates(size int) int {
	if size >= 62 {
		return math.MaxInt
	}
	return 1 << size
}

// States returns the sum of 2^|g| over all groups, saturated at math.MaxInt.
func (p Partitioning) States() int {
	total := 0
	for _, g := range p {
		s := groupStates(len(g))
		if total > math.MaxInt-s {
			return math.MaxInt
		}
		total += s
	}
	return total
}

// NumIndexes returns the number of indexes over all groups.
func (p Partitioning) NumIndexes() int {
	n := 0
	for _, g := range p {
		n += len(g)
	}
	return n
}

// Equal returns whether the two normalized partitionings are identical.
func (p Partitioning) Equal(other Partitioning) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if groupKey(p[i]) != groupKey(other[i]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (p Partitioning) String() string {
	groups := make([]string, 0, len(p))
	for _, g := range p {
		groups = append(groups, "{"+groupKey(g)+"}")
	}
	return "[" + strings.Join(groups, " ") + "]"
}

func groupKey(g []int) string {
	parts := make([]string, len(g))
	for i, id := range g {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

func normalize(groups [][]int) Partitioning {
	p := make(Partitioning, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		g = append([]int(nil), g...)
		sort.Ints(g)
		p = append(p, g)
	}
	sort.Slice(p, func(i, j int) bool { return p[i][0] < p[j][0] })
	return p
}

// valid returns whether p covers exactly ids, stays within maxStates and
// separates no pair whose interaction exceeds the threshold.
func (p Partitioning) valid(ids []int, bank *interaction.Bank, maxStates int, threshold float64, cmp interaction.Comparison) bool {
	if p == nil || p.NumIndexes() != len(ids) || p.States() > maxStates {
		return false
	}
	groupOf := make(map[int]int, len(ids))
	for g, members := range p {
		for _, id := range members {
			groupOf[id] = g
		}
	}
	for _, id := range ids {
		if _, ok := groupOf[id]; !ok {
			return false
		}
	}
	for x := 0; x < len(ids); x++ {
		for y := 0; y < x; y++ {
			a, b := ids[x], ids[y]
			if groupOf[a] != groupOf[b] && cmp.Exceeds(bank.InteractionLevel(a, b), threshold) {
				return false
			}
		}
	}
	return true
}

// ChoosePartitions splits the hot set into groups small enough for the work
// function algorithm. The old partitioning is returned unchanged when it is
// still valid for the hot set. Otherwise the stable partitioning at the
// threshold is used, raising the threshold while the state budget is exceeded,
// and then groups are merged greedily to recover interactions within the budget.
func ChoosePartitions(hot *candidate.Configuration, old Partitioning, bank *interaction.Bank,
	maxStates int, threshold float64, cmp interaction.Comparison) Partitioning {
	ids := hot.Bits().IDs()
	if old.valid(ids, bank, maxStates, threshold, cmp) {
		return old
	}

	groups := bank.StablePartitioningOf(ids, threshold, cmp)
	effective := threshold
	for Partitioning(groups).States() > maxStates {
		next, ok := nextInteractionLevel(bank, ids, effective)
		if !ok {
			groups = singletons(ids)
			break
		}
		utils.Debugf("%v states exceed the limit %v, raise the interaction threshold from %v to %v",
			Partitioning(groups).States(), maxStates, effective, next)
		effective = next
		groups = bank.StablePartitioningOf(ids, effective, interaction.Strict)
	}
	if states := Partitioning(groups).States(); states > maxStates {
		utils.Warningf("%v singleton partitions need %v states, exceeding the limit %v", len(groups), states, maxStates)
		return normalize(groups)
	}
	return normalize(mergeGroups(groups, bank, maxStates))
}

// nextInteractionLevel returns the smallest interaction level among ids that is above level.
func nextInteractionLevel(bank *interaction.Bank, ids []int, level float64) (float64, bool) {
	next, found := 0.0, false
	for x := 0; x < len(ids); x++ {
		for y := 0; y < x; y++ {
			v := bank.InteractionLevel(ids[x], ids[y])
			if v > level && (!found || v < next) {
				next, found = v, true
			}
		}
	}
	return next, found
}

func singletons(ids []int) [][]int {
	groups := make([][]int, len(ids))
	for i, id := range ids {
		groups[i] = []int{id}
	}
	return groups
}

// mergeGroups repeatedly merges the two groups losing the most interaction
// across them, as long as the merged partitioning fits into maxStates.
// Ties prefer the smaller merged group, then the smaller summed best benefit.
func mergeGroups(groups [][]int, bank *interaction.Bank, maxStates int) [][]int {
	groupBenefit := func(g []int) float64 {
		total := 0.0
		for _, id := range g {
			total += bank.BestBenefit(id)
		}
		return total
	}
	for {
		total := Partitioning(groups).States()
		bi, bj := -1, -1
		var bestLoss, bestBenefit float64
		var bestSize int
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				size := len(groups[i]) + len(groups[j])
				merged := total - groupStates(len(groups[i])) - groupStates(len(groups[j])) + groupStates(size)
				if size >= 62 || merged > maxStates {
					continue
				}
				loss := 0.0
				for _, a := range groups[i] {
					for _, b := range groups[j] {
						loss += bank.InteractionLevel(a, b)
					}
				}
				if loss <= 0 {
					continue
				}
				benefit := groupBenefit(groups[i]) + groupBenefit(groups[j])
				better := bi < 0 || loss > bestLoss ||
					(loss == bestLoss && size < bestSize) ||
					(loss == bestLoss && size == bestSize && benefit < bestBenefit)
				if better {
					bi, bj = i, j
					bestLoss, bestSize, bestBenefit = loss, size, benefit
				}
			}
		}
		if bi < 0 {
			return groups
		}
		merged := append(append([]int(nil), groups[bi]...), groups[bj]...)
		next := make([][]int, 0, len(groups)-1)
		for k, g := range groups {
			if k != bi && k != bj {
				next = append(next, g)
			}
		}
		groups = normalize(append(next, merged))
	}
}
