// Package ibg implements the index benefit graph: a per-statement cache of
// what-if costs that shares one optimizer call among every configuration
// whose optimal plan uses the same indexes.
//
// A node represents a configuration Y together with the indexes used(Y) that
// the optimizer's plan actually uses under Y. For every X with
// used(Y) ⊆ X ⊆ Y, cost(X) = cost(Y). Children of Y are Y \ {u} for every
// u ∈ used(Y), so any subset of the root is reachable by dropping indexes.
package ibg

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/metrics"
	"github.com/qw4990/online_index_advisor/utils"
)

// WhatIfResult is the answer of a CostOracle.
type WhatIfResult struct {
	Cost float64
	Used candidate.BitSet // indexes used by the plan; the whole configuration if unknown
}

// CostOracle evaluates one statement under one hypothetical configuration.
// Implementations used with Graph.Expand and parallelism > 1 must be safe for concurrent use.
type CostOracle interface {
	Cost(query utils.Query, conf *candidate.Configuration) (WhatIfResult, error)
}

const noChild int32 = -1

type node struct {
	mask       candidate.BitSet
	used       candidate.BitSet
	cost       float64
	expanded   bool
	firstChild int32 // head of the sibling chain in Graph.children
}

type child struct {
	node  int32 // target node
	index int32 // the used index dropped along this edge
	next  int32 // next sibling
}

// Graph is the index benefit graph of one statement.
// It is not safe for concurrent use.
type Graph struct {
	query      utils.Query
	candidates *candidate.Configuration
	oracle     CostOracle

	nodes    []node
	children []child
	lookup   map[string]int32

	whatIfCalls int
	cacheHits   int
}

// New creates the graph of the given statement over the candidate indexes.
// No oracle call is issued until a cost is requested.
func New(query utils.Query, candidates *candidate.Configuration, oracle CostOracle) *Graph {
	g := &Graph{
		query:      query,
		candidates: candidates,
		oracle:     oracle,
		lookup:     make(map[string]int32),
	}
	g.nodeFor(candidates.Bits())
	return g
}

// Query returns the statement of this graph.
func (g *Graph) Query() utils.Query {
	return g.query
}

// Candidates returns the configuration of the root node.
func (g *Graph) Candidates() *candidate.Configuration {
	return g.candidates
}

// NumNodes returns the number of nodes created so far.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// WhatIfCalls returns the number of oracle calls issued by this graph.
func (g *Graph) WhatIfCalls() int {
	return g.whatIfCalls
}

// CacheHits returns the number of Cost calls answered without calling the oracle.
func (g *Graph) CacheHits() int {
	return g.cacheHits
}

func (g *Graph) nodeFor(mask candidate.BitSet) int32 {
	key := mask.Key()
	if id, ok := g.lookup[key]; ok {
		return id
	}
	id := int32(len(g.nodes))
	g.nodes = append(g.nodes, node{mask: mask, firstChild: noChild})
	g.lookup[key] = id
	return id
}

func (g *Graph) whatIf(id int32) (WhatIfResult, error) {
	mask := g.nodes[id].mask
	res, err := g.oracle.Cost(g.query, g.candidates.Subset(mask))
	if err != nil {
		return WhatIfResult{}, errors.Wrapf(err, "what-if cost of %v", g.candidates.Subset(mask))
	}
	res.Used = res.Used.Intersect(mask)
	return res, nil
}

// attach records the oracle result of a node and creates its children.
func (g *Graph) attach(id int32, res WhatIfResult) {
	g.whatIfCalls++
	metrics.WhatIfCalls.Inc()
	mask := g.nodes[id].mask
	g.nodes[id].cost = res.Cost
	g.nodes[id].used = res.Used
	g.nodes[id].expanded = true

	used := res.Used.IDs()
	// prepend in descending order so the chain lists children by ascending index id
	for i := len(used) - 1; i >= 0; i-- {
		target := g.nodeFor(mask.Without(used[i]))
		g.children = append(g.children, child{
			node:  target,
			index: int32(used[i]),
			next:  g.nodes[id].firstChild,
		})
		g.nodes[id].firstChild = int32(len(g.children) - 1)
	}
}

func (g *Graph) ensureExpanded(id int32) error {
	if g.nodes[id].expanded {
		return nil
	}
	res, err := g.whatIf(id)
	if err != nil {
		return err
	}
	g.attach(id, res)
	return nil
}

func (g *Graph) childVia(id int32, index int) int32 {
	for c := g.nodes[id].firstChild; c != noChild; c = g.children[c].next {
		if int(g.children[c].index) == index {
			return g.children[c].node
		}
	}
	panic("ibg: used index without child edge")
}

// Cost returns the cost of the statement under the given subset of candidates.
// Ids outside the candidate set are ignored.
func (g *Graph) Cost(mask candidate.BitSet) (float64, error) {
	mask = mask.Intersect(g.nodes[0].mask)
	calls := g.whatIfCalls
	cur := int32(0)
	for {
		if err := g.ensureExpanded(cur); err != nil {
			return 0, err
		}
		missing := g.nodes[cur].used.Minus(mask)
		if missing.IsEmpty() {
			break
		}
		cur = g.childVia(cur, missing.IDs()[0])
	}
	if calls == g.whatIfCalls {
		g.cacheHits++
		metrics.IBGCacheHits.Inc()
	}
	return g.nodes[cur].cost, nil
}

// UsedIndexes returns the indexes used by the plan of the given subset of candidates.
func (g *Graph) UsedIndexes(mask candidate.BitSet) (candidate.BitSet, error) {
	mask = mask.Intersect(g.nodes[0].mask)
	cur := int32(0)
	for {
		if err := g.ensureExpanded(cur); err != nil {
			return candidate.BitSet{}, err
		}
		missing := g.nodes[cur].used.Minus(mask)
		if missing.IsEmpty() {
			return g.nodes[cur].used.Clone(), nil
		}
		cur = g.childVia(cur, missing.IDs()[0])
	}
}

// Expand builds the whole graph. Oracle calls of the same level run on up to
// parallelism goroutines; the graph itself is only modified by the caller's goroutine.
func (g *Graph) Expand(parallelism int) error {
	if parallelism < 1 {
		parallelism = 1
	}
	for {
		var pending []int32
		for id := range g.nodes {
			if !g.nodes[id].expanded {
				pending = append(pending, int32(id))
			}
		}
		if len(pending) == 0 {
			return nil
		}

		results := make([]WhatIfResult, len(pending))
		var eg errgroup.Group
		eg.SetLimit(parallelism)
		for i, id := range pending {
			i, id := i, id
			eg.Go(func() error {
				res, err := g.whatIf(id)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		for i, id := range pending {
			g.attach(id, results[i])
		}
	}
}
