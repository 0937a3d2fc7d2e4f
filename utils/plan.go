package utils

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Plan is the result of `explain format = 'verbose'`, one row per operator:
// | id | estRows | estCost | task | access object | operator info |
type Plan [][]string

const (
	planColID = iota
	planColEstRows
	planColEstCost
	planColTask
	planColAccessObject
)

func (p Plan) cell(row, col int) (string, bool) {
	if row >= len(p) || col >= len(p[row]) {
		return "", false
	}
	return p[row][col], true
}

// PlanCost returns the estimated cost of the plan. CTEs are listed after the
// main tree and their seed cost is not part of the root cost, so it is added.
func (p Plan) PlanCost() (float64, error) {
	root, ok := p.cell(0, planColEstCost)
	if !ok {
		return 0, errors.Errorf("invalid plan: %v", p)
	}
	cost, err := strconv.ParseFloat(root, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid plan cost %q", root)
	}
	for i := range p {
		if id, _ := p.cell(i, planColID); !strings.HasPrefix(id, "CTE_") {
			continue
		}
		seed, ok := p.cell(i+1, planColEstCost)
		if !ok {
			continue
		}
		c, err := strconv.ParseFloat(seed, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid CTE cost %q", seed)
		}
		cost += c
	}
	return cost, nil
}

// EstRows returns the estimated number of rows of the root operator, 0 if unknown.
func (p Plan) EstRows() float64 {
	v, ok := p.cell(0, planColEstRows)
	if !ok {
		return 0
	}
	rows, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return rows
}

// UsedIndexNames returns the lower-cased names of the indexes the plan reads,
// found in access objects like `table:t, index:idx_a(a)`.
func (p Plan) UsedIndexNames() Set[LowerString] {
	names := NewSet[LowerString]()
	for i := range p {
		obj, ok := p.cell(i, planColAccessObject)
		if !ok {
			continue
		}
		for _, part := range strings.Split(obj, ",") {
			name, found := strings.CutPrefix(strings.TrimSpace(part), "index:")
			if !found {
				continue
			}
			if paren := strings.IndexByte(name, '('); paren >= 0 {
				name = name[:paren]
			}
			if name = strings.TrimSpace(name); name != "" {
				names.Add(LowerString(strings.ToLower(name)))
			}
		}
	}
	return names
}
