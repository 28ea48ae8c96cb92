// Package expr implements typed and type-erased expressions.
//
// A Typed[T] is a strongly typed zero-argument computation. An Erased holds
// exactly one Typed[T] for a T drawn from a registry, together with the
// registry tag of T and a Category. The tag and the held computation are set
// together by the smart constructors in this package and can never disagree.
//
//	r := registry.MustNew(expr.Type[int]("int"), expr.Type[float64]("double"))
//	e, _ := expr.NewConstant(r, 7)
//	expr.IsType[int](e)          // true
//	_, err := expr.Get[float64](e) // types.ErrTypeMismatch
//	folded := e.Evaluated()      // Constant, same type
package expr

import (
	"fmt"
	"reflect"

	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Category tells whether an expression must be evaluated or is known to
// always yield the same value.
type Category uint8

const (
	// Dynamic expressions may depend on variables or external state.
	Dynamic Category = iota
	// Constant expressions always yield the same value and may be folded.
	Constant
)

func (c Category) String() string {
	switch c {
	case Dynamic:
		return "dynamic"
	case Constant:
		return "constant"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == Dynamic || c == Constant
}

// Join returns Constant when every category is Constant, Dynamic otherwise.
func Join(cats ...Category) Category {
	for _, c := range cats {
		if c != Constant {
			return Dynamic
		}
	}
	return Constant
}

// Type returns a registry spec for T carrying the prototype ConstantOf needs.
// Prefer it over registry.Type when building an engine registry.
func Type[T any](name string) registry.Spec {
	return registry.Type[T](name).WithProto(Typed[T]{})
}

// Erased is a type-erased expression. The zero value is invalid; build one
// with Wrap or one of the helpers below.
//
// Erased is an immutable value: Evaluated and conversions return new values.
// Concurrent reads of one Erased are safe.
type Erased struct {
	reg *registry.Registry
	tag registry.Tag
	cat Category
	v   variant
}

// Wrap erases t. It fails with an UnsupportedType error when T is not
// configured in r, and with an InvalidExpression error for a zero t or an
// unknown category.
func Wrap[T any](r *registry.Registry, t Typed[T], cat Category) (Erased, error) {
	if r == nil {
		return Erased{}, types.NewError(types.ErrCodeInvalidExpression, "nil registry")
	}
	if t.IsZero() {
		return Erased{}, types.NewError(types.ErrCodeInvalidExpression, "typed expression has no computation")
	}
	if !cat.Valid() {
		return Erased{}, types.Errorf(types.ErrCodeInvalidExpression, "unknown %s", cat)
	}
	tag, err := registry.TagOf[T](r)
	if err != nil {
		return Erased{}, err
	}
	return Erased{reg: r, tag: tag, cat: cat, v: t}, nil
}

// MustWrap is like Wrap but panics on error.
func MustWrap[T any](r *registry.Registry, t Typed[T], cat Category) Erased {
	e, err := Wrap(r, t, cat)
	if err != nil {
		panic(fmt.Sprintf("expr: MustWrap: %v", err))
	}
	return e
}

// NewConstant erases a constant value.
func NewConstant[T any](r *registry.Registry, v T) (Erased, error) {
	return Wrap(r, Const(v), Constant)
}

// NewDynamic erases fn as a dynamic expression.
func NewDynamic[T any](r *registry.Registry, fn func() T) (Erased, error) {
	return Wrap(r, NewTyped(fn), Dynamic)
}

// NewVariable erases a dynamic expression reading *p. See Var for the
// lifetime requirement on p.
func NewVariable[T any](r *registry.Registry, p *T) (Erased, error) {
	if p == nil {
		return Erased{}, types.NewError(types.ErrCodeInvalidExpression, "nil variable storage")
	}
	return Wrap(r, Var(p), Dynamic)
}

// ConstantOf erases the boxed value v as a constant. The registry entry for
// v's type must have been built with Type so that a prototype is available.
func ConstantOf(r *registry.Registry, v any) (Erased, error) {
	if r == nil {
		return Erased{}, types.NewError(types.ErrCodeInvalidExpression, "nil registry")
	}
	tag, err := r.TagOfType(reflect.TypeOf(v))
	if err != nil {
		return Erased{}, err
	}
	proto, ok := r.Proto(tag).(variant)
	if !ok {
		return Erased{}, types.Errorf(types.ErrCodeUnsupportedType, "type %q has no expression prototype", r.Name(tag))
	}
	held, ok := proto.fromAny(v)
	if !ok {
		return Erased{}, types.Errorf(types.ErrCodeUnsupportedType, "prototype of %q does not accept %T", r.Name(tag), v)
	}
	return Erased{reg: r, tag: tag, cat: Constant, v: held}, nil
}

// DynamicOf erases fn as a Dynamic expression of the type tagged tag, for
// callers that only know the type at run time. fn must return values of
// that Go type. Like ConstantOf, it needs a prototype registered with Type.
func DynamicOf(r *registry.Registry, tag registry.Tag, fn func() any) (Erased, error) {
	if r == nil {
		return Erased{}, types.NewError(types.ErrCodeInvalidExpression, "nil registry")
	}
	if fn == nil {
		return Erased{}, types.NewError(types.ErrCodeInvalidExpression, "nil computation")
	}
	if !r.Valid(tag) {
		return Erased{}, types.Errorf(types.ErrCodeUnsupportedType, "unknown type tag %d", tag)
	}
	proto, ok := r.Proto(tag).(variant)
	if !ok {
		return Erased{}, types.Errorf(types.ErrCodeUnsupportedType, "type %q has no expression prototype", r.Name(tag))
	}
	return Erased{reg: r, tag: tag, cat: Dynamic, v: proto.fromFunc(fn)}, nil
}

// IsValid reports whether e was built by a constructor.
func (e Erased) IsValid() bool {
	return e.v != nil
}

// Type returns the tag of the held type.
func (e Erased) Type() registry.Tag {
	return e.tag
}

// TypeName returns the registry name of the held type.
func (e Erased) TypeName() string {
	if e.reg == nil {
		return "<invalid>"
	}
	return e.reg.Name(e.tag)
}

// Category returns the category of e.
func (e Erased) Category() Category {
	return e.cat
}

// IsConstant reports whether e is Constant.
func (e Erased) IsConstant() bool {
	return e.cat == Constant
}

// Registry returns the registry e was built against.
func (e Erased) Registry() *registry.Registry {
	return e.reg
}

// IsType reports whether e holds a Typed[T]. It never panics.
func IsType[T any](e Erased) bool {
	if !e.IsValid() {
		return false
	}
	tag, err := registry.TagOf[T](e.reg)
	return err == nil && tag == e.tag
}

// Get returns the held computation as a Typed[T]. It fails with a
// TypeMismatch error when e does not hold a T.
func Get[T any](e Erased) (Typed[T], error) {
	if !e.IsValid() {
		return Typed[T]{}, types.NewError(types.ErrCodeInvalidExpression, "get from invalid expression")
	}
	want := reflect.TypeOf((*T)(nil)).Elem()
	tag, err := registry.TagOf[T](e.reg)
	if err != nil {
		return Typed[T]{}, types.Errorf(types.ErrCodeTypeMismatch, "expression holds %s, requested unconfigured type %v", e.TypeName(), want).WithCause(err)
	}
	if tag != e.tag {
		return Typed[T]{}, types.Errorf(types.ErrCodeTypeMismatch, "expression holds %s, requested %s", e.TypeName(), e.reg.Name(tag))
	}
	t, ok := e.v.(Typed[T])
	if !ok {
		// Tag and variant disagree: only reachable through a constructor bug.
		return Typed[T]{}, types.Errorf(types.ErrCodeTypeMismatch, "expression tagged %s holds %T", e.TypeName(), e.v)
	}
	return t, nil
}

// MustGet is like Get but panics on error.
func MustGet[T any](e Erased) Typed[T] {
	t, err := Get[T](e)
	if err != nil {
		panic(fmt.Sprintf("expr: MustGet: %v", err))
	}
	return t
}

// Evaluated folds e: it invokes the held computation exactly once and
// returns a Constant expression of the same type yielding that value.
// Folding a Constant expression invokes it again. An invalid e is returned
// unchanged.
func (e Erased) Evaluated() Erased {
	if !e.IsValid() {
		return e
	}
	return Erased{reg: e.reg, tag: e.tag, cat: Constant, v: e.v.folded()}
}

// Value invokes the held computation and returns its result boxed. It
// returns nil for an invalid e.
func (e Erased) Value() any {
	if !e.IsValid() {
		return nil
	}
	return e.v.invokeAny()
}

// String describes e as "<type>/<category>".
func (e Erased) String() string {
	if !e.IsValid() {
		return "<invalid>"
	}
	return e.TypeName() + "/" + e.cat.String()
}
