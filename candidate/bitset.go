package candidate

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// BitSet is a set of internal index ids backed by a roaring bitmap.
// The zero value is an empty set. Copies share the bitmap: Set and Clear
// mutate it, use Clone before sharing a set that will be changed.
type BitSet struct {
	bm *roaring.Bitmap
}

// NewBitSet creates a bit set containing the given ids.
func NewBitSet(ids ...int) BitSet {
	var b BitSet
	for _, id := range ids {
		b.Set(id)
	}
	return b
}

func wrap(bm *roaring.Bitmap) BitSet {
	if bm.IsEmpty() {
		return BitSet{}
	}
	return BitSet{bm: bm}
}

// Set adds id to the set.
func (b *BitSet) Set(id int) {
	if b.bm == nil {
		b.bm = roaring.New()
	}
	b.bm.Add(uint32(id))
}

// Clear removes id from the set.
func (b *BitSet) Clear(id int) {
	if b.bm != nil && id >= 0 {
		b.bm.Remove(uint32(id))
	}
}

// Contains returns whether id is in the set.
func (b BitSet) Contains(id int) bool {
	return b.bm != nil && id >= 0 && b.bm.Contains(uint32(id))
}

// Count returns the number of ids in the set.
func (b BitSet) Count() int {
	if b.bm == nil {
		return 0
	}
	return int(b.bm.GetCardinality())
}

// IsEmpty returns whether the set has no ids.
func (b BitSet) IsEmpty() bool {
	return b.bm == nil || b.bm.IsEmpty()
}

// Clone returns a deep copy.
func (b BitSet) Clone() BitSet {
	if b.IsEmpty() {
		return BitSet{}
	}
	return BitSet{bm: b.bm.Clone()}
}

// SubsetOf returns whether every id of b is in other.
func (b BitSet) SubsetOf(other BitSet) bool {
	if b.IsEmpty() {
		return true
	}
	if other.IsEmpty() {
		return false
	}
	return b.bm.AndCardinality(other.bm) == b.bm.GetCardinality()
}

// Equal returns whether both sets contain the same ids.
func (b BitSet) Equal(other BitSet) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return b.IsEmpty() == other.IsEmpty()
	}
	return b.bm.Equals(other.bm)
}

// Union returns b ∪ other as a new set.
func (b BitSet) Union(other BitSet) BitSet {
	switch {
	case b.IsEmpty():
		return other.Clone()
	case other.IsEmpty():
		return b.Clone()
	}
	return wrap(roaring.Or(b.bm, other.bm))
}

// Intersect returns b ∩ other as a new set.
func (b BitSet) Intersect(other BitSet) BitSet {
	if b.IsEmpty() || other.IsEmpty() {
		return BitSet{}
	}
	return wrap(roaring.And(b.bm, other.bm))
}

// Minus returns b \ other as a new set.
func (b BitSet) Minus(other BitSet) BitSet {
	switch {
	case b.IsEmpty():
		return BitSet{}
	case other.IsEmpty():
		return b.Clone()
	}
	return wrap(roaring.AndNot(b.bm, other.bm))
}

// With returns a copy of b that also contains id.
func (b BitSet) With(id int) BitSet {
	res := b.Clone()
	res.Set(id)
	return res
}

// Without returns a copy of b that does not contain id.
func (b BitSet) Without(id int) BitSet {
	res := b.Clone()
	res.Clear(id)
	return res
}

// ForEach calls fn on every id in ascending order.
func (b BitSet) ForEach(fn func(id int)) {
	if b.bm == nil {
		return
	}
	it := b.bm.Iterator()
	for it.HasNext() {
		fn(int(it.Next()))
	}
}

// IDs returns all ids in ascending order.
func (b BitSet) IDs() []int {
	ids := make([]int, 0, b.Count())
	b.ForEach(func(id int) { ids = append(ids, id) })
	return ids
}

// Key returns a string that identifies the content of the set.
func (b BitSet) Key() string {
	if b.bm == nil {
		return ""
	}
	var sb strings.Builder
	for i, id := range b.bm.ToArray() {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(strconv.FormatUint(uint64(id), 16))
	}
	return sb.String()
}

// String returns the ids like `{1, 4, 7}`.
func (b BitSet) String() string {
	var items []string
	b.ForEach(func(id int) { items = append(items, strconv.Itoa(id)) })
	return "{" + strings.Join(items, ", ") + "}"
}
