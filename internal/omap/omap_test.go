package omap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intLess(a, b int) bool { return a < b }

func TestSetGetDelete(t *testing.T) {
	m := New[int, string](intLess)
	m.Set(3, "three")
	m.Set(1, "one")
	m.Set(2, "two")

	v, ok := m.Get(2)
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Has(1))

	deleted, ok := m.Delete(1)
	assert.True(t, ok)
	assert.Equal(t, "one", deleted)
	assert.False(t, m.Has(1))
	assert.Equal(t, 2, m.Len())

	_, ok = m.Delete(99)
	assert.False(t, ok)
}

func TestAscendOrdersByKey(t *testing.T) {
	m := New[int, string](intLess)
	for _, k := range []int{5, 1, 3, 2, 4} {
		m.Set(k, "")
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, m.Keys())
}

func TestAscendStopsEarly(t *testing.T) {
	m := New[int, string](intLess)
	for _, k := range []int{1, 2, 3, 4, 5} {
		m.Set(k, "")
	}
	var seen []int
	m.Ascend(func(k int, _ string) bool {
		seen = append(seen, k)
		return k < 3
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestPredecessorSkipsExactMatch(t *testing.T) {
	m := New[int, string](intLess)
	m.Set(10, "ten")
	m.Set(20, "twenty")
	m.Set(30, "thirty")

	key, val, found := m.Predecessor(20)
	assert.True(t, found)
	assert.Equal(t, 10, key)
	assert.Equal(t, "ten", val)

	key, val, found = m.Predecessor(25)
	assert.True(t, found)
	assert.Equal(t, 20, key)
	assert.Equal(t, "twenty", val)

	_, _, found = m.Predecessor(10)
	assert.False(t, found)
}

func TestSwapDrainsAndResets(t *testing.T) {
	m := New[int, string](intLess)
	m.Set(1, "a")
	m.Set(2, "b")

	drained := m.Swap()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 2, drained.Len())

	v, ok := drained.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	m.Set(3, "c")
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, drained.Len())
}
