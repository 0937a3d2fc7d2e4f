package candidate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/qw4990/online_index_advisor/utils"
)

// Index is a candidate index known by the Pool.
// Indexes are created only by the Pool and are shared by pointer.
type Index struct {
	ID          int         // dense internal id, stable for the lifetime of the pool
	Def         utils.Index // schema, table, name and columns
	CreateCost  float64     // estimated cost of building this index
	DropCost    float64     // estimated cost of dropping this index
	StorageCost float64     // estimated size in bytes
}

// Key returns the key of the index definition.
func (i *Index) Key() string {
	return i.Def.Key()
}

// String returns the string representation of the index.
func (i *Index) String() string {
	return fmt.Sprintf("%v#%d", i.Def.Key(), i.ID)
}

// Costs holds the maintenance costs of a new candidate.
type Costs struct {
	Create  float64
	Drop    float64
	Storage float64
}

// Pool is the growing universe of candidate indexes.
// Ids are assigned in insertion order and never reused, so a later Snapshot
// always extends an earlier one.
type Pool struct {
	mu      sync.RWMutex
	indexes []*Index
	byKey   map[string]*Index
	current *Snapshot
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{byKey: make(map[string]*Index)}
}

// Add registers a new candidate, or returns the existing one with the same definition.
// The second return value reports whether the candidate is new.
func (p *Pool) Add(def utils.Index, costs Costs) (*Index, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.byKey[def.Key()]; ok {
		return idx, false
	}
	idx := &Index{
		ID:          len(p.indexes),
		Def:         def,
		CreateCost:  costs.Create,
		DropCost:    costs.Drop,
		StorageCost: costs.Storage,
	}
	p.indexes = append(p.indexes, idx)
	p.byKey[def.Key()] = idx
	p.current = nil
	return idx, true
}

// Find returns the candidate with the same definition.
func (p *Pool) Find(def utils.Index) (*Index, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.byKey[def.Key()]
	return idx, ok
}

// Size returns the number of candidates.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.indexes)
}

// Snapshot returns an immutable view of the current candidates.
// The same Snapshot is returned until a new candidate is added.
func (p *Pool) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		indexes := make([]*Index, len(p.indexes))
		copy(indexes, p.indexes)
		p.current = &Snapshot{indexes: indexes}
	}
	return p.current
}

// Snapshot is a point-in-time view of the Pool.
type Snapshot struct {
	indexes []*Index
}

// Size returns the number of indexes in this snapshot.
func (s *Snapshot) Size() int {
	return len(s.indexes)
}

// MaxInternalID returns the largest id, or -1 for an empty snapshot.
func (s *Snapshot) MaxInternalID() int {
	return len(s.indexes) - 1
}

// Get returns the index with the given id.
func (s *Snapshot) Get(id int) *Index {
	return s.indexes[id]
}

// Indexes returns all indexes ordered by id.
func (s *Snapshot) Indexes() []*Index {
	return s.indexes
}

// Configuration builds a configuration from ids of this snapshot.
func (s *Snapshot) Configuration(ids BitSet) *Configuration {
	var indexes []*Index
	ids.ForEach(func(id int) {
		indexes = append(indexes, s.indexes[id])
	})
	return &Configuration{indexes: indexes, bits: ids.Clone()}
}

// Configuration is an immutable set of indexes.
type Configuration struct {
	indexes []*Index // ordered by id
	bits    BitSet
}

// NewConfiguration creates a configuration from the given indexes.
func NewConfiguration(indexes ...*Index) *Configuration {
	c := &Configuration{}
	seen := make(map[int]struct{}, len(indexes))
	for _, idx := range indexes {
		if _, ok := seen[idx.ID]; ok {
			continue
		}
		seen[idx.ID] = struct{}{}
		c.indexes = append(c.indexes, idx)
		c.bits.Set(idx.ID)
	}
	sort.Slice(c.indexes, func(i, j int) bool {
		return c.indexes[i].ID < c.indexes[j].ID
	})
	return c
}

// Indexes returns the indexes ordered by id.
func (c *Configuration) Indexes() []*Index {
	return c.indexes
}

// Bits returns the ids of this configuration.
func (c *Configuration) Bits() BitSet {
	return c.bits.Clone()
}

// Contains returns whether the index is in this configuration.
func (c *Configuration) Contains(idx *Index) bool {
	return c.bits.Contains(idx.ID)
}

// Size returns the number of indexes.
func (c *Configuration) Size() int {
	return len(c.indexes)
}

// Subset returns the configuration restricted to the given ids.
func (c *Configuration) Subset(ids BitSet) *Configuration {
	var indexes []*Index
	for _, idx := range c.indexes {
		if ids.Contains(idx.ID) {
			indexes = append(indexes, idx)
		}
	}
	return &Configuration{indexes: indexes, bits: c.bits.Intersect(ids)}
}

// String returns the string representation of the configuration.
func (c *Configuration) String() string {
	keys := make([]string, 0, len(c.indexes))
	for _, idx := range c.indexes {
		keys = append(keys, idx.Key())
	}
	return fmt.Sprintf("{%v}", strings.Join(keys, ", "))
}
