package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := New[int]()

	_, ok := r.Get("missing")
	assert.False(t, ok)

	r.Add("b", 2)
	r.Add("a", 1)
	v, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	r.Add("a", 10)
	v, _ = r.Get("a")
	assert.Equal(t, 10, v)

	r.Del("a")
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, r.Names())
}

func TestGetOrAdd(t *testing.T) {
	r := New[*int]()

	calls := 0
	compute := func() *int {
		calls++
		v := 42
		return &v
	}

	first, existed := r.GetOrAdd("shared", compute)
	assert.False(t, existed)
	second, existed := r.GetOrAdd("shared", compute)
	assert.True(t, existed)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}
