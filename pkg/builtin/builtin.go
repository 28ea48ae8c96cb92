// Package builtin provides the stock catalog of result types, casts and
// operator groups an engine can be configured with.
//
// # Types
//
//	bool     bool
//	int      int
//	double   float64
//	complex  complex128
//	string   string
//
// # Casts
//
// Only widening casts are provided: bool->int, int->double, int->complex and
// double->complex.
//
// # Operator groups
//
//   - arith   – + - * / on int, double and complex, % on int, unary neg
//   - compare – == and != on every type, < <= > >= on int, double and string
//   - logic   – && || on bool, unary !
//   - print   – the "print" suffix, rendering any type as a string
//
// Entries are plain [functions.Entry] values, so a group can be registered
// into any table whose registry configures the types it uses:
//
//	_, err := functions.RegisterSupported(table, builtin.Arith()...)
package builtin

import (
	"slices"
	"sort"

	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/functions"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Type names.
const (
	Bool    = "bool"
	Int     = "int"
	Double  = "double"
	Complex = "complex"
	String  = "string"
)

// Group names.
const (
	GroupArith   = "arith"
	GroupCompare = "compare"
	GroupLogic   = "logic"
	GroupPrint   = "print"
)

var specs = []registry.Spec{
	expr.Type[bool](Bool),
	expr.Type[int](Int),
	expr.Type[float64](Double),
	expr.Type[complex128](Complex),
	expr.Type[string](String),
}

var groups = map[string]func() []functions.Entry{
	GroupArith:   Arith,
	GroupCompare: Compare,
	GroupLogic:   Logic,
	GroupPrint:   Print,
}

// DefaultTypes lists the types configured when none are named.
var DefaultTypes = []string{Bool, Int, Double}

// Types returns the spec of every catalog type.
func Types() []registry.Spec {
	return slices.Clone(specs)
}

// TypeNames returns the catalog type names in catalog order.
func TypeNames() []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name()
	}
	return names
}

// Spec returns the catalog spec for name.
func Spec(name string) (registry.Spec, bool) {
	for _, s := range specs {
		if s.Name() == name {
			return s, true
		}
	}
	return registry.Spec{}, false
}

// Registry builds a registry over the named catalog types, in the given
// order. With no names it uses DefaultTypes.
func Registry(names ...string) (*registry.Registry, error) {
	if len(names) == 0 {
		names = DefaultTypes
	}
	selected := make([]registry.Spec, 0, len(names))
	for _, n := range names {
		s, ok := Spec(n)
		if !ok {
			return nil, types.Errorf(types.ErrCodeUnsupportedType, "no builtin type %q (have %v)", n, TypeNames())
		}
		selected = append(selected, s)
	}
	return registry.New(selected...)
}

// GroupNames returns the operator group names, sorted.
func GroupNames() []string {
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Group returns the entries of the named operator group.
func Group(name string) ([]functions.Entry, bool) {
	g, ok := groups[name]
	if !ok {
		return nil, false
	}
	return g(), true
}

// All returns every cast and every operator group.
func All() []functions.Entry {
	all := Casts()
	for _, n := range GroupNames() {
		all = append(all, groups[n]()...)
	}
	return all
}
