package ibg

import (
	"math"
	"sort"

	"github.com/qw4990/online_index_advisor/candidate"
)

// Interaction is the degree of interaction measured between two indexes, A > B.
type Interaction struct {
	A, B   int
	Degree float64
}

// Analysis is what one statement tells about its candidate indexes.
type Analysis struct {
	Interactions []Interaction   // max degree of interaction per pair, only pairs with a positive degree
	Benefits     map[int]float64 // max benefit per index over all explored configurations
}

// Benefit returns the best benefit measured for the index, 0 if none.
func (a *Analysis) Benefit(id int) float64 {
	if a == nil {
		return 0
	}
	return a.Benefits[id]
}

type pairKey struct{ a, b int }

// Analyze derives benefits and degrees of interaction from every node of the graph.
//
// For a node Y, a ∈ used(Y) and a top configuration T (Y itself, or the
// smallest configuration used(Y) with the same plan):
//
//	benefit(a | T\{a}) = cost(T\{a}) - cost(T)
//	doi(a, b | X)      = |cost(X) - cost(X∪{a}) - cost(X∪{b}) + cost(X∪{a,b})| / cost(X∪{a,b})
//
// with X = T \ {a, b}. Indexes not used under Y cannot change its cost, so only
// pairs containing a used index are measured at Y.
func Analyze(g *Graph) (*Analysis, error) {
	benefits := make(map[int]float64)
	dois := make(map[pairKey]float64)

	err := g.Walk(func(n NodeView) error {
		members := n.Mask.IDs()
		for _, a := range n.Used.IDs() {
			for _, top := range []candidate.BitSet{n.Mask, n.Used} {
				benefit, err := BenefitOf(g, top, a)
				if err != nil {
					return err
				}
				if benefit > benefits[a] {
					benefits[a] = benefit
				}
			}
			for _, b := range members {
				if b == a || (n.Used.Contains(b) && b < a) { // pairs of two used indexes are measured once
					continue
				}
				k := pairKey{a, b}
				if b > a {
					k = pairKey{b, a}
				}
				for _, top := range []candidate.BitSet{n.Mask, n.Used.With(b)} {
					doi, err := degreeOfInteraction(g, top, a, b)
					if err != nil {
						return err
					}
					if doi > dois[k] {
						dois[k] = doi
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Analysis{Benefits: benefits}
	for k, v := range dois {
		res.Interactions = append(res.Interactions, Interaction{A: k.a, B: k.b, Degree: v})
	}
	sort.Slice(res.Interactions, func(i, j int) bool {
		x, y := res.Interactions[i], res.Interactions[j]
		if x.A != y.A {
			return x.A < y.A
		}
		return x.B < y.B
	})
	return res, nil
}

func degreeOfInteraction(g *Graph, top candidate.BitSet, a, b int) (float64, error) {
	costTop, err := g.Cost(top)
	if err != nil || costTop <= 0 {
		return 0, err
	}
	x := top.Without(a).Without(b)
	costX, err := g.Cost(x)
	if err != nil {
		return 0, err
	}
	costXA, err := g.Cost(x.With(a))
	if err != nil {
		return 0, err
	}
	costXB, err := g.Cost(x.With(b))
	if err != nil {
		return 0, err
	}
	return math.Abs(costX-costXA-costXB+costTop) / costTop, nil
}

// BenefitOf returns cost(X) - cost(X ∪ {id}) with X = base \ {id}.
func BenefitOf(g *Graph, base candidate.BitSet, id int) (float64, error) {
	without, err := g.Cost(base.Without(id))
	if err != nil {
		return 0, err
	}
	with, err := g.Cost(base.With(id))
	if err != nil {
		return 0, err
	}
	return without - with, nil
}
