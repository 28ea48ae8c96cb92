// Package mangle encodes casts, overloaded calls and type-indexed suffix
// operations into comparable lookup keys.
//
// A key is built from type names taken from a registry and joined by the
// reserved separator '@'. Call names and suffixes are escaped so that the
// encoding stays injective for arbitrary names, and each kind of signature
// lives in its own namespace. Keys are opaque: callers compare them, they
// never parse them.
package mangle

import (
	"strings"

	"github.com/sandrolain/gometl/pkg/registry"
)

// Kind separates the key namespaces.
type Kind uint8

const (
	KindCast Kind = iota + 1
	KindCall
	KindSuffix
)

func (k Kind) String() string {
	switch k {
	case KindCast:
		return "cast"
	case KindCall:
		return "call"
	case KindSuffix:
		return "suffix"
	default:
		return "invalid"
	}
}

// Key is a mangled signature. The zero Key matches nothing registered.
type Key struct {
	kind Kind
	sig  string
}

// Kind returns the namespace of the key.
func (k Key) Kind() Kind { return k.kind }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.kind == 0 }

// String renders the key for logs and diagnostics only.
func (k Key) String() string {
	return k.kind.String() + ":" + k.sig
}

// Signature is the unmangled form of a key.
type Signature struct {
	Kind Kind
	Name string // call name or suffix; empty for casts
	Tags []registry.Tag
}

// Equal reports whether two signatures are identical.
func (s Signature) Equal(o Signature) bool {
	if s.Kind != o.Kind || s.Name != o.Name || len(s.Tags) != len(o.Tags) {
		return false
	}
	for i := range s.Tags {
		if s.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

// Typer is anything that reports a registry tag, such as an erased
// expression.
type Typer interface {
	Type() registry.Tag
}

const sep = string(registry.Separator)

var escaper = strings.NewReplacer(`\`, `\\`, sep, `\`+sep)

// Cast returns the key of a conversion from one type to another.
func Cast(r *registry.Registry, from, to registry.Tag) Key {
	return Key{kind: KindCast, sig: r.Name(from) + sep + r.Name(to)}
}

// Call returns the key of an overloaded call with the given argument types,
// in argument order.
func Call(r *registry.Registry, name string, tags ...registry.Tag) Key {
	var b strings.Builder
	b.WriteString(escaper.Replace(name))
	for _, t := range tags {
		b.WriteString(sep)
		b.WriteString(r.Name(t))
	}
	return Key{kind: KindCall, sig: b.String()}
}

// CallOf returns the key of a call whose arguments are the given values.
func CallOf[T Typer](r *registry.Registry, name string, args ...T) Key {
	return Call(r, name, TagsOf(args...)...)
}

// Suffix returns the key of a suffix operation specialized for one type.
func Suffix(r *registry.Registry, suffix string, from registry.Tag) Key {
	return Key{kind: KindSuffix, sig: r.Name(from) + sep + escaper.Replace(suffix)}
}

// TagsOf collects the tags of args.
func TagsOf[T Typer](args ...T) []registry.Tag {
	tags := make([]registry.Tag, len(args))
	for i, a := range args {
		tags[i] = a.Type()
	}
	return tags
}

// Describe returns the key of sig.
func Describe(r *registry.Registry, sig Signature) Key {
	switch sig.Kind {
	case KindCast:
		if len(sig.Tags) != 2 {
			return Key{}
		}
		return Cast(r, sig.Tags[0], sig.Tags[1])
	case KindCall:
		return Call(r, sig.Name, sig.Tags...)
	case KindSuffix:
		if len(sig.Tags) != 1 {
			return Key{}
		}
		return Suffix(r, sig.Name, sig.Tags[0])
	default:
		return Key{}
	}
}

// CastSignature is the signature of a cast.
func CastSignature(from, to registry.Tag) Signature {
	return Signature{Kind: KindCast, Tags: []registry.Tag{from, to}}
}

// CallSignature is the signature of a call.
func CallSignature(name string, tags ...registry.Tag) Signature {
	return Signature{Kind: KindCall, Name: name, Tags: append([]registry.Tag(nil), tags...)}
}

// SuffixSignature is the signature of a suffix operation.
func SuffixSignature(suffix string, from registry.Tag) Signature {
	return Signature{Kind: KindSuffix, Name: suffix, Tags: []registry.Tag{from}}
}
