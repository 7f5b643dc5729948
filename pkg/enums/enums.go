// Package enums holds the string enumerations stored in Postgres enum columns
// and carried in JSON.
package enums

import (
	"fmt"
	"slices"
)

// valueSet is the closed list of values for one enumeration.
type valueSet[T ~string] struct {
	label  string
	values []T
}

func newValueSet[T ~string](label string, values ...T) valueSet[T] {
	return valueSet[T]{label: label, values: values}
}

func (s valueSet[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

func (s valueSet[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.label, raw)
}

// all returns a copy so callers cannot reorder the set.
func (s valueSet[T]) all() []T {
	return slices.Clone(s.values)
}
