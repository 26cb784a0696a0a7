// Package omap provides a small generic facade over github.com/google/btree,
// the way the teacher's own ipv4.Table[T] is a generic facade over its
// non-generic ITable: an ordered key/value container that additionally
// supports the predecessor query the prefix trie cover needs.
package omap

import "github.com/google/btree"

const degree = 32

// LessFunc reports whether a sorts strictly before b.
type LessFunc[K any] func(a, b K) bool

type entry[K any, V any] struct {
	key K
	val V
}

// Map is an ordered map from K to V, iterated and range-queried in key
// order. It backs Network's sections, event queue and pending-merge tables.
type Map[K any, V any] struct {
	less LessFunc[K]
	tree *btree.BTreeG[entry[K, V]]
}

// New creates an empty Map ordered by less.
func New[K any, V any](less LessFunc[K]) *Map[K, V] {
	entryLess := func(a, b entry[K, V]) bool { return less(a.key, b.key) }
	return &Map[K, V]{less: less, tree: btree.NewG(degree, entryLess)}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// Get returns the value stored for key, if any.
func (m *Map[K, V]) Get(key K) (V, bool) {
	item, ok := m.tree.Get(entry[K, V]{key: key})
	return item.val, ok
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.tree.Get(entry[K, V]{key: key})
	return ok
}

// Set inserts or overwrites the value stored for key.
func (m *Map[K, V]) Set(key K, val V) {
	m.tree.ReplaceOrInsert(entry[K, V]{key: key, val: val})
}

// Delete removes key, returning its value if it was present.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	item, ok := m.tree.Delete(entry[K, V]{key: key})
	return item.val, ok
}

// Ascend visits every entry in ascending key order until fn returns false.
func (m *Map[K, V]) Ascend(fn func(K, V) bool) {
	m.tree.Ascend(func(e entry[K, V]) bool { return fn(e.key, e.val) })
}

// Keys returns every key in ascending order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.tree.Len())
	m.tree.Ascend(func(e entry[K, V]) bool {
		keys = append(keys, e.key)
		return true
	})
	return keys
}

// Predecessor returns the greatest key strictly less than pivot and its
// value, equivalent to range(..pivot).next_back() on an ordered map.
func (m *Map[K, V]) Predecessor(pivot K) (key K, val V, found bool) {
	m.tree.DescendLessOrEqual(entry[K, V]{key: pivot}, func(e entry[K, V]) bool {
		if m.less(e.key, pivot) {
			key, val, found = e.key, e.val, true
			return false
		}
		return true // skip an exact match on pivot itself, keep descending
	})
	return
}

// Swap atomically replaces the map's contents with an empty tree and
// returns a Map holding what used to be there, mirroring the
// snapshot-then-drain step at the top of Network.ProcessEvents.
func (m *Map[K, V]) Swap() *Map[K, V] {
	old := &Map[K, V]{less: m.less, tree: m.tree}
	entryLess := func(a, b entry[K, V]) bool { return m.less(a.key, b.key) }
	m.tree = btree.NewG(degree, entryLess)
	return old
}
