// Package functions provides definitions of casts, overloads and suffix
// operations that can be registered into a conversion table.
//
// Typed entries are built from plain Go functions; the registry tags they
// need are looked up when the entry is registered, so one entry can be
// registered into tables over different registries.
//
// # Example
//
//	err := functions.RegisterAll(table,
//	    functions.Cast(func(i int) float64 { return float64(i) }),
//	    functions.Binary("+", func(a, b int) int { return a + b }),
//	    functions.Suffix("print", strconv.Itoa),
//	)
//
// Definitions naming types by their registry names ([CastDef], [CallDef],
// [SuffixDef]) take an untyped [conversion.Func] instead.
package functions

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/mangle"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Entry is a registration for a conversion table.
type Entry interface {
	// Supported reports whether every type the entry uses is configured in r.
	Supported(r *registry.Registry) bool
	// Register adds the entry to t.
	Register(t *conversion.Table) error
	fmt.Stringer
}

// RegisterAll registers every entry, stopping at the first error.
func RegisterAll(t *conversion.Table, entries ...Entry) error {
	for _, e := range entries {
		if err := e.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", e, err)
		}
	}
	return nil
}

// RegisterSupported registers the entries whose types are all configured in
// the table's registry and skips the rest. It returns how many were
// registered.
func RegisterSupported(t *conversion.Table, entries ...Entry) (int, error) {
	n := 0
	for _, e := range entries {
		if !e.Supported(t.Registry()) {
			continue
		}
		if err := e.Register(t); err != nil {
			return n, fmt.Errorf("register %s: %w", e, err)
		}
		n++
	}
	return n, nil
}

// goSig is the Go-typed shape of an entry.
type goSig struct {
	kind   mangle.Kind
	name   string
	params []reflect.Type
	result reflect.Type
}

func (s goSig) supported(r *registry.Registry) bool {
	if r == nil {
		return false
	}
	for _, p := range append(append([]reflect.Type(nil), s.params...), s.result) {
		if _, err := r.TagOfType(p); err != nil {
			return false
		}
	}
	return true
}

func (s goSig) tags(r *registry.Registry) ([]registry.Tag, error) {
	if _, err := r.TagOfType(s.result); err != nil {
		return nil, err
	}
	tags := make([]registry.Tag, len(s.params))
	for i, p := range s.params {
		tag, err := r.TagOfType(p)
		if err != nil {
			return nil, err
		}
		tags[i] = tag
	}
	return tags, nil
}

func (s goSig) String() string {
	params := make([]string, len(s.params))
	for i, p := range s.params {
		params[i] = p.String()
	}
	switch s.kind {
	case mangle.KindCast:
		return fmt.Sprintf("cast %s -> %s", params[0], s.result)
	case mangle.KindSuffix:
		return fmt.Sprintf("%s %s -> %s", params[0], s.name, s.result)
	default:
		return fmt.Sprintf("%s(%s) %s", s.name, strings.Join(params, ", "), s.result)
	}
}

type typedEntry struct {
	sig goSig
	fn  conversion.Func
}

func (e typedEntry) Supported(r *registry.Registry) bool { return e.sig.supported(r) }

func (e typedEntry) Register(t *conversion.Table) error {
	tags, err := e.sig.tags(t.Registry())
	if err != nil {
		return err
	}
	switch e.sig.kind {
	case mangle.KindCast:
		to, _ := t.Registry().TagOfType(e.sig.result)
		return t.RegisterCast(tags[0], to, e.fn)
	case mangle.KindSuffix:
		return t.RegisterSuffix(e.sig.name, tags[0], e.fn)
	default:
		return t.RegisterCall(e.sig.name, tags, e.fn)
	}
}

func (e typedEntry) String() string { return e.sig.String() }

// Cast returns the entry for the cast from From to To.
func Cast[From, To any](fn func(From) To) Entry {
	return typedEntry{
		sig: goSig{kind: mangle.KindCast, params: []reflect.Type{reflect.TypeOf((*From)(nil)).Elem()}, result: reflect.TypeOf((*To)(nil)).Elem()},
		fn:  conversion.Cast(fn),
	}
}

// Unary returns the entry for the overload name(A).
func Unary[A, R any](name string, fn func(A) R) Entry {
	return typedEntry{
		sig: goSig{kind: mangle.KindCall, name: name, params: []reflect.Type{reflect.TypeOf((*A)(nil)).Elem()}, result: reflect.TypeOf((*R)(nil)).Elem()},
		fn:  conversion.Func1(fn),
	}
}

// Binary returns the entry for the overload name(A, B).
func Binary[A, B, R any](name string, fn func(A, B) R) Entry {
	return typedEntry{
		sig: goSig{kind: mangle.KindCall, name: name, params: []reflect.Type{reflect.TypeOf((*A)(nil)).Elem(), reflect.TypeOf((*B)(nil)).Elem()}, result: reflect.TypeOf((*R)(nil)).Elem()},
		fn:  conversion.Func2(fn),
	}
}

// BinaryFunc is like Binary but takes a prebuilt conversion function, for
// overloads that need to inspect their arguments before computing.
func BinaryFunc[A, B, R any](name string, fn conversion.Func) Entry {
	return typedEntry{
		sig: goSig{kind: mangle.KindCall, name: name, params: []reflect.Type{reflect.TypeOf((*A)(nil)).Elem(), reflect.TypeOf((*B)(nil)).Elem()}, result: reflect.TypeOf((*R)(nil)).Elem()},
		fn:  fn,
	}
}

// Suffix returns the entry for the suffix operation on A.
func Suffix[A, R any](suffix string, fn func(A) R) Entry {
	return typedEntry{
		sig: goSig{kind: mangle.KindSuffix, name: suffix, params: []reflect.Type{reflect.TypeOf((*A)(nil)).Elem()}, result: reflect.TypeOf((*R)(nil)).Elem()},
		fn:  conversion.Func1(fn),
	}
}

// CastDef is a cast between two types named as in the registry.
type CastDef struct {
	From string
	To   string
	Fn   conversion.Func
}

// Supported implements Entry.
func (d CastDef) Supported(r *registry.Registry) bool { return allNamed(r, d.From, d.To) }

// Register implements Entry.
func (d CastDef) Register(t *conversion.Table) error {
	tags, err := lookupNames(t.Registry(), d.From, d.To)
	if err != nil {
		return err
	}
	return t.RegisterCast(tags[0], tags[1], d.Fn)
}

func (d CastDef) String() string { return fmt.Sprintf("cast %s -> %s", d.From, d.To) }

// CallDef is an overload whose parameter types are named as in the registry.
type CallDef struct {
	Name   string
	Params []string
	Fn     conversion.Func
}

// Supported implements Entry.
func (d CallDef) Supported(r *registry.Registry) bool { return allNamed(r, d.Params...) }

// Register implements Entry.
func (d CallDef) Register(t *conversion.Table) error {
	tags, err := lookupNames(t.Registry(), d.Params...)
	if err != nil {
		return err
	}
	return t.RegisterCall(d.Name, tags, d.Fn)
}

func (d CallDef) String() string { return fmt.Sprintf("%s(%s)", d.Name, strings.Join(d.Params, ", ")) }

// SuffixDef is a suffix operation on a type named as in the registry.
type SuffixDef struct {
	Suffix string
	From   string
	Fn     conversion.Func
}

// Supported implements Entry.
func (d SuffixDef) Supported(r *registry.Registry) bool { return allNamed(r, d.From) }

// Register implements Entry.
func (d SuffixDef) Register(t *conversion.Table) error {
	tags, err := lookupNames(t.Registry(), d.From)
	if err != nil {
		return err
	}
	return t.RegisterSuffix(d.Suffix, tags[0], d.Fn)
}

func (d SuffixDef) String() string { return fmt.Sprintf("%s %s", d.From, d.Suffix) }

func allNamed(r *registry.Registry, names ...string) bool {
	if r == nil {
		return false
	}
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return false
		}
	}
	return true
}

func lookupNames(r *registry.Registry, names ...string) ([]registry.Tag, error) {
	tags := make([]registry.Tag, len(names))
	for i, n := range names {
		tag, ok := r.Lookup(n)
		if !ok {
			return nil, types.Errorf(types.ErrCodeUnsupportedType, "type %q is not configured", n)
		}
		tags[i] = tag
	}
	return tags, nil
}
