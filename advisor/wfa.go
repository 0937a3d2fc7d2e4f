package advisor

import (
	"fmt"
	"math"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/metrics"
	"github.com/qw4990/online_index_advisor/utils"
)

// DropCostPolicy decides the cost charged for dropping an index.
type DropCostPolicy int

const (
	// ZeroDropCost treats dropping an index as free.
	ZeroDropCost DropCostPolicy = iota
	// ModeledDropCost charges the modeled drop cost of the index.
	ModeledDropCost
)

// ParseDropCostPolicy parses "zero" or "modeled".
func ParseDropCostPolicy(name string) (DropCostPolicy, error) {
	switch name {
	case "", "zero":
		return ZeroDropCost, nil
	case "modeled":
		return ModeledDropCost, nil
	}
	return ZeroDropCost, fmt.Errorf("drop cost policy %s not found", name)
}

// Cost returns the cost of dropping idx.
func (p DropCostPolicy) Cost(idx *candidate.Index) float64 {
	if p == ModeledDropCost {
		return idx.DropCost
	}
	return 0
}

// DecisionPolicy decides which state a group moves to after an update.
type DecisionPolicy int

const (
	// ForwardDecision picks argmin W(s) + d(current, s), the cost of moving
	// from the current state to s.
	ForwardDecision DecisionPolicy = iota
	// AmortizedDecision picks argmin W(s) + d(s, current). Creation costs are
	// then paid off over the following queries when dropping is free.
	AmortizedDecision
)

// ParseDecisionPolicy parses "forward" or "amortized".
func ParseDecisionPolicy(name string) (DecisionPolicy, error) {
	switch name {
	case "", "forward":
		return ForwardDecision, nil
	case "amortized":
		return AmortizedDecision, nil
	}
	return ForwardDecision, fmt.Errorf("decision policy %s not found", name)
}

// MaxGroupWidth is the largest group whose 2^k states are enumerated.
const MaxGroupWidth = 30

// AccessCost returns the cost of the current query when exactly the given
// indexes of a group are materialized.
type AccessCost func(state candidate.BitSet) (float64, error)

// workFunction tracks the work function of one group over its 2^k states.
// Bit i of a state stands for indexes[i].
type workFunction struct {
	indexes []*candidate.Index
	values  []float64
	bias    []float64 // added by votes to the next update, nil when empty
	state   uint64
}

func (wf *workFunction) stateBits(state uint64) candidate.BitSet {
	var bits candidate.BitSet
	for i, idx := range wf.indexes {
		if state&(1<<i) != 0 {
			bits.Set(idx.ID)
		}
	}
	return bits
}

func (wf *workFunction) position(id int) int {
	for i, idx := range wf.indexes {
		if idx.ID == id {
			return i
		}
	}
	return -1
}

// WorkFunctionAlgorithm runs one work function per partition group and keeps
// the recommended state of each group.
// It is owned by a single goroutine.
type WorkFunctionAlgorithm struct {
	dropCost DropCostPolicy
	decision DecisionPolicy
	groups   []*workFunction
}

// NewWorkFunctionAlgorithm creates an algorithm without any group.
func NewWorkFunctionAlgorithm(dropCost DropCostPolicy, decision DecisionPolicy) *WorkFunctionAlgorithm {
	return &WorkFunctionAlgorithm{dropCost: dropCost, decision: decision}
}

// transition returns the cost of moving the group from state a to state b.
func (w *WorkFunctionAlgorithm) transition(wf *workFunction, a, b uint64) float64 {
	cost := 0.0
	for i, idx := range wf.indexes {
		bit := uint64(1) << i
		switch {
		case b&bit != 0 && a&bit == 0:
			cost += idx.CreateCost
		case a&bit != 0 && b&bit == 0:
			cost += w.dropCost.Cost(idx)
		}
	}
	return cost
}

// Repartition switches to a new partitioning. Groups whose membership did not
// change keep their work function. New groups start at the subset of the
// group found in initial, valued zero there and +Inf elsewhere.
// It returns the number of discarded groups and panics on a group wider than
// MaxGroupWidth.
func (w *WorkFunctionAlgorithm) Repartition(p Partitioning, snapshot *candidate.Snapshot, initial candidate.BitSet) int {
	old := make(map[string]*workFunction, len(w.groups))
	for _, wf := range w.groups {
		ids := make([]int, len(wf.indexes))
		for i, idx := range wf.indexes {
			ids[i] = idx.ID
		}
		old[groupKey(ids)] = wf
	}

	groups := make([]*workFunction, 0, len(p))
	kept := 0
	for _, g := range p {
		if len(g) > MaxGroupWidth {
			panic(fmt.Sprintf("advisor: group of %d indexes exceeds the max width %d", len(g), MaxGroupWidth))
		}
		if wf, ok := old[groupKey(g)]; ok {
			groups = append(groups, wf)
			kept++
			continue
		}
		wf := &workFunction{indexes: make([]*candidate.Index, len(g))}
		for i, id := range g {
			wf.indexes[i] = snapshot.Get(id)
			if initial.Contains(id) {
				wf.state |= 1 << i
			}
		}
		wf.values = make([]float64, groupStates(len(g)))
		for s := range wf.values {
			if uint64(s) != wf.state {
				wf.values[s] = math.Inf(1)
			}
		}
		groups = append(groups, wf)
	}
	discarded := len(w.groups) - kept
	w.groups = groups
	metrics.WorkFunctionStates.Set(float64(p.States()))
	return discarded
}

// NewTask folds the access costs of one query into every group and moves
// each group to the state chosen by the decision policy.
// Ties keep the current state, then pick the lowest state.
func (w *WorkFunctionAlgorithm) NewTask(access AccessCost) error {
	updated := make([][]float64, len(w.groups))
	for g, wf := range w.groups {
		values, err := w.update(wf, access)
		if err != nil {
			return err
		}
		updated[g] = values
	}
	for g, wf := range w.groups {
		wf.values, wf.bias = updated[g], nil
		best, bestValue := wf.state, wf.values[wf.state]
		for s := range wf.values {
			if v := wf.values[s] + w.decisionCost(wf, uint64(s)); v < bestValue {
				best, bestValue = uint64(s), v
			}
		}
		if best != wf.state {
			utils.Debugf("work function of group %v moves from %v to %v", wf.stateBits(1<<len(wf.indexes)-1), wf.stateBits(wf.state), wf.stateBits(best))
		}
		wf.state = best
	}
	return nil
}

func (w *WorkFunctionAlgorithm) decisionCost(wf *workFunction, s uint64) float64 {
	if w.decision == AmortizedDecision {
		return w.transition(wf, s, wf.state)
	}
	return w.transition(wf, wf.state, s)
}

// update computes min over s' of W(s') + d(s', s), plus the access cost and the vote bias of s.
// The transition cost is a sum over indexes, so the minimum is found by
// relaxing one dimension at a time.
func (w *WorkFunctionAlgorithm) update(wf *workFunction, access AccessCost) ([]float64, error) {
	values := append([]float64(nil), wf.values...)
	for i, idx := range wf.indexes {
		bit := uint64(1) << i
		create, drop := idx.CreateCost, w.dropCost.Cost(idx)
		for s := range values {
			st := uint64(s)
			if st&bit != 0 {
				values[s] = math.Min(values[s], values[st&^bit]+create)
			} else {
				values[s] = math.Min(values[s], values[st|bit]+drop)
			}
		}
	}
	for s := range values {
		cost, err := access(wf.stateBits(uint64(s)))
		if err != nil {
			return nil, err
		}
		values[s] += cost
		if wf.bias != nil {
			values[s] += wf.bias[s]
		}
	}
	return values, nil
}

// Vote biases the next update against the states disagreeing with the vote,
// charging them twice the create plus drop cost of the index plus one.
// The current state is not changed. It reports whether the index belongs to
// any group.
func (w *WorkFunctionAlgorithm) Vote(idx *candidate.Index, positive bool) bool {
	for _, wf := range w.groups {
		i := wf.position(idx.ID)
		if i < 0 {
			continue
		}
		penalty := 2*(idx.CreateCost+w.dropCost.Cost(idx)) + 1
		if wf.bias == nil {
			wf.bias = make([]float64, len(wf.values))
		}
		bit := uint64(1) << i
		for s := range wf.bias {
			if (uint64(s)&bit != 0) != positive {
				wf.bias[s] += penalty
			}
		}
		return true
	}
	return false
}

// Recommendation returns the union of the current states of all groups.
func (w *WorkFunctionAlgorithm) Recommendation() candidate.BitSet {
	var bits candidate.BitSet
	for _, wf := range w.groups {
		bits = bits.Union(wf.stateBits(wf.state))
	}
	return bits
}

// WorkValue returns the work value of state in the group whose members are group.
func (w *WorkFunctionAlgorithm) WorkValue(group []int, state candidate.BitSet) (float64, bool) {
	key := groupKey(group)
	for _, wf := range w.groups {
		ids := make([]int, len(wf.indexes))
		for i, idx := range wf.indexes {
			ids[i] = idx.ID
		}
		if groupKey(ids) != key {
			continue
		}
		var s uint64
		for i, idx := range wf.indexes {
			if state.Contains(idx.ID) {
				s |= 1 << i
			}
		}
		return wf.values[s], true
	}
	return 0, false
}

// NumStates returns the number of tracked states over all groups.
func (w *WorkFunctionAlgorithm) NumStates() int {
	n := 0
	for _, wf := range w.groups {
		n += len(wf.values)
	}
	return n
}
