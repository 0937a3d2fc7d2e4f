package utils

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SetKey identifies items of a Set.
type SetKey interface {
	Key() string
}

// Set holds items by their keys, adding an item with an existing key replaces it.
// Reads on a nil Set are fine, use NewSet before adding.
type Set[T SetKey] map[string]T

func NewSet[T SetKey]() Set[T] {
	return make(Set[T])
}

func ListToSet[T SetKey](items ...T) Set[T] {
	s := make(Set[T], len(items))
	s.AddList(items...)
	return s
}

func (s Set[T]) Add(item T) {
	s[item.Key()] = item
}

func (s Set[T]) AddList(items ...T) {
	for _, item := range items {
		s.Add(item)
	}
}

func (s Set[T]) AddSet(other Set[T]) {
	for k, item := range other {
		s[k] = item
	}
}

func (s Set[T]) Contains(item T) bool {
	_, ok := s[item.Key()]
	return ok
}

func (s Set[T]) Size() int {
	return len(s)
}

// ToKeyList returns the sorted keys.
func (s Set[T]) ToKeyList() []string {
	keys := maps.Keys(s)
	slices.Sort(keys)
	return keys
}

// ToList returns the items ordered by key.
func (s Set[T]) ToList() []T {
	keys := s.ToKeyList()
	list := make([]T, 0, len(keys))
	for _, k := range keys {
		list = append(list, s[k])
	}
	return list
}

func (s Set[T]) Clone() Set[T] {
	if s == nil {
		return NewSet[T]()
	}
	return maps.Clone(s)
}

func (s Set[T]) String() string {
	return "{" + strings.Join(s.ToKeyList(), ", ") + "}"
}

// CombSet returns every subset of s with k items, in lexicographic key order.
func CombSet[T SetKey](s Set[T], k int) []Set[T] {
	items := s.ToList()
	if k <= 0 || k > len(items) {
		return nil
	}
	var res []Set[T]
	pos := make([]int, k)
	for i := range pos {
		pos[i] = i
	}
	for {
		comb := make(Set[T], k)
		for _, p := range pos {
			comb.Add(items[p])
		}
		res = append(res, comb)

		// advance the rightmost position that still has room
		i := k - 1
		for i >= 0 && pos[i] == len(items)-k+i {
			i--
		}
		if i < 0 {
			return res
		}
		pos[i]++
		for j := i + 1; j < k; j++ {
			pos[j] = pos[j-1] + 1
		}
	}
}
