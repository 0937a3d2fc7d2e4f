package ibg

import (
	"github.com/qw4990/online_index_advisor/candidate"
)

// NodeView is a read-only view of an expanded node. Its sets must not be modified.
type NodeView struct {
	Mask candidate.BitSet
	Used candidate.BitSet
	Cost float64
}

type entryKind uint8

const (
	nodeEntry   entryKind = iota // visit a node
	cursorEntry                  // resume a sibling chain
)

type stackEntry struct {
	kind entryKind
	ref  int32 // node id for nodeEntry, child id for cursorEntry
}

// Walk visits every node reachable from the root exactly once, expanding nodes
// lazily. The traversal keeps an explicit stack so that wide candidate sets
// cannot exhaust the goroutine stack, and consumes sibling chains one child at
// a time. fn may call Cost on the same graph.
func (g *Graph) Walk(fn func(n NodeView) error) error {
	visited := make(map[int32]struct{}, len(g.nodes))
	stack := []stackEntry{{kind: nodeEntry, ref: 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch e.kind {
		case nodeEntry:
			if _, ok := visited[e.ref]; ok {
				continue
			}
			visited[e.ref] = struct{}{}
			if err := g.ensureExpanded(e.ref); err != nil {
				return err
			}
			n := g.nodes[e.ref]
			if err := fn(NodeView{Mask: n.mask, Used: n.used, Cost: n.cost}); err != nil {
				return err
			}
			if n.firstChild != noChild {
				stack = append(stack, stackEntry{kind: cursorEntry, ref: n.firstChild})
			}
		case cursorEntry:
			c := g.children[e.ref]
			if c.next != noChild {
				stack = append(stack, stackEntry{kind: cursorEntry, ref: c.next})
			}
			stack = append(stack, stackEntry{kind: nodeEntry, ref: c.node})
		}
	}
	return nil
}
