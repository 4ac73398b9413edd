// Package registry is a concurrent name to value map shared by the agent and
// model registries.
package registry

import (
	"slices"

	"github.com/alphadose/haxmap"
)

type Registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() *Registry[T] {
	return &Registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *Registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

// Add registers value under name, replacing any previous value.
func (r *Registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

// GetOrAdd returns the value registered under name, computing and storing it
// first when missing. The bool reports whether the value already existed.
func (r *Registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

func (r *Registry[T]) Del(name string) {
	r.values.Del(name)
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(name string, _ T) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}
