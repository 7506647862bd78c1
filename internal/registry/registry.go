// Package registry provides a small concurrent name-to-value table, used to
// hold the wire-dialect adapters the bridge dispatches to.
package registry

import "github.com/alphadose/haxmap"

// Registry maps names to values of type T. Reads and writes are safe from
// concurrent goroutines.
type Registry[T any] struct {
	values *haxmap.Map[string, T]
}

// New returns an empty Registry.
func New[T any]() Registry[T] {
	return Registry[T]{values: haxmap.New[string, T]()}
}

// Get returns the value registered under name, if any.
func (r Registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

// Add registers value under name, replacing any previous entry.
func (r Registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

// Del removes the entry under name.
func (r Registry[T]) Del(name string) {
	r.values.Del(name)
}

// Len reports how many entries are registered.
func (r Registry[T]) Len() int {
	return int(r.values.Len())
}
