// Package registry assigns stable ordinals to the closed set of result types
// an engine instance works with.
//
// A Registry is built once from an ordered list of type specs and is
// immutable afterwards. Each configured Go type receives a dense Tag (its
// position in the list) and a human-readable name used in error messages and
// mangled signatures:
//
//	r, err := registry.New(
//	    registry.Type[bool]("bool"),
//	    registry.Type[int]("int"),
//	    registry.Type[float64]("double"),
//	)
//	tag, err := registry.TagOf[int](r) // 1
//
// Looking up a type that was not configured is an UnsupportedType error,
// never a silent default.
package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sandrolain/gometl/pkg/types"
)

// Separator is reserved by the signature mangler and may not appear in type
// names.
const Separator = '@'

// MaxTypes is the largest number of types a registry can hold.
const MaxTypes = 256

// Tag is the ordinal of a configured type. Tags are dense, starting at 0, in
// configuration order.
type Tag uint8

// Spec describes one configured result type.
type Spec struct {
	name  string
	rtype reflect.Type
	proto any
}

// Type returns the spec for Go type T under the given name.
func Type[T any](name string) Spec {
	return Spec{name: name, rtype: reflect.TypeOf((*T)(nil)).Elem()}
}

// WithProto attaches an opaque per-type prototype. The registry never
// inspects it; the expression layer uses it to build values of a type that
// is only known at runtime.
func (s Spec) WithProto(proto any) Spec {
	s.proto = proto
	return s
}

// Name returns the configured type name.
func (s Spec) Name() string { return s.name }

// GoType returns the Go type described by the spec.
func (s Spec) GoType() reflect.Type { return s.rtype }

// Registry maps configured Go types to tags and names. It is safe for
// concurrent use: nothing mutates it after New returns.
type Registry struct {
	specs  []Spec
	byType map[reflect.Type]Tag
	byName map[string]Tag
}

// New builds a registry from specs, in order. It fails on an empty list, a
// Go type or name configured twice, or an invalid name.
func New(specs ...Spec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, types.NewError(types.ErrCodeUnsupportedType, "registry needs at least one type")
	}
	if len(specs) > MaxTypes {
		return nil, types.Errorf(types.ErrCodeUnsupportedType, "registry holds at most %d types, got %d", MaxTypes, len(specs))
	}

	r := &Registry{
		specs:  make([]Spec, len(specs)),
		byType: make(map[reflect.Type]Tag, len(specs)),
		byName: make(map[string]Tag, len(specs)),
	}
	copy(r.specs, specs)

	for i, s := range r.specs {
		if err := validateName(s.name); err != nil {
			return nil, err
		}
		if s.rtype == nil {
			return nil, types.Errorf(types.ErrCodeUnsupportedType, "type %q has no Go type", s.name)
		}
		if prev, ok := r.byType[s.rtype]; ok {
			return nil, types.Errorf(types.ErrCodeDuplicateType, "Go type %s configured twice (%q and %q)", s.rtype, r.specs[prev].name, s.name)
		}
		if _, ok := r.byName[s.name]; ok {
			return nil, types.Errorf(types.ErrCodeDuplicateType, "type name %q configured twice", s.name)
		}
		r.byType[s.rtype] = Tag(i)
		r.byName[s.name] = Tag(i)
	}
	return r, nil
}

// MustNew is like New but panics on error. It suits engine start-up, where a
// bad type list must prevent the engine from running at all.
func MustNew(specs ...Spec) *Registry {
	r, err := New(specs...)
	if err != nil {
		panic(fmt.Sprintf("registry: MustNew: %v", err))
	}
	return r
}

func validateName(name string) error {
	if name == "" {
		return types.NewError(types.ErrCodeInvalidTypeName, "type name must not be empty")
	}
	if strings.ContainsRune(name, Separator) {
		return types.Errorf(types.ErrCodeInvalidTypeName, "type name %q contains reserved separator %q", name, Separator)
	}
	if strings.TrimSpace(name) != name {
		return types.Errorf(types.ErrCodeInvalidTypeName, "type name %q has surrounding whitespace", name)
	}
	return nil
}

// TagOf returns the tag of Go type T in r.
func TagOf[T any](r *Registry) (Tag, error) {
	return r.TagOfType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustTagOf is like TagOf but panics when T is not configured.
func MustTagOf[T any](r *Registry) Tag {
	tag, err := TagOf[T](r)
	if err != nil {
		panic(fmt.Sprintf("registry: MustTagOf: %v", err))
	}
	return tag
}

// TagOfType returns the tag of the given Go type.
func (r *Registry) TagOfType(t reflect.Type) (Tag, error) {
	if tag, ok := r.byType[t]; ok {
		return tag, nil
	}
	return 0, types.Errorf(types.ErrCodeUnsupportedType, "type %v is not configured (have %s)", t, strings.Join(r.Names(), ", "))
}

// Contains reports whether Go type T is configured.
func Contains[T any](r *Registry) bool {
	_, ok := r.byType[reflect.TypeOf((*T)(nil)).Elem()]
	return ok
}

// Lookup returns the tag registered under name.
func (r *Registry) Lookup(name string) (Tag, bool) {
	tag, ok := r.byName[name]
	return tag, ok
}

// Name returns the configured name of tag, or "<invalid>" when tag is out of
// range.
func (r *Registry) Name(tag Tag) string {
	if !r.Valid(tag) {
		return "<invalid>"
	}
	return r.specs[tag].name
}

// GoType returns the Go type of tag, or nil when tag is out of range.
func (r *Registry) GoType(tag Tag) reflect.Type {
	if !r.Valid(tag) {
		return nil
	}
	return r.specs[tag].rtype
}

// Proto returns the prototype attached with Spec.WithProto, if any.
func (r *Registry) Proto(tag Tag) any {
	if !r.Valid(tag) {
		return nil
	}
	return r.specs[tag].proto
}

// Valid reports whether tag belongs to r.
func (r *Registry) Valid(tag Tag) bool {
	return int(tag) < len(r.specs)
}

// Len returns the number of configured types.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Tags returns every tag in configuration order.
func (r *Registry) Tags() []Tag {
	tags := make([]Tag, len(r.specs))
	for i := range r.specs {
		tags[i] = Tag(i)
	}
	return tags
}

// Names returns every type name in configuration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.name
	}
	return names
}
