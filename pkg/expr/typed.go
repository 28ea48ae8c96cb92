package expr

// Typed is a zero-argument computation producing exactly one T.
//
// A Typed value is immutable once built; copies share the same underlying
// function. The function must be pure unless it deliberately reads caller
// storage, as Var does.
type Typed[T any] struct {
	fn func() T
}

// NewTyped wraps fn.
func NewTyped[T any](fn func() T) Typed[T] {
	return Typed[T]{fn: fn}
}

// Const returns a computation that always yields v.
func Const[T any](v T) Typed[T] {
	return Typed[T]{fn: func() T { return v }}
}

// Var returns a computation reading *p on every call. p is borrowed: the
// caller owns the storage and must keep it alive for as long as the
// expression may be invoked.
func Var[T any](p *T) Typed[T] {
	return Typed[T]{fn: func() T { return *p }}
}

// Invoke runs the computation.
func (t Typed[T]) Invoke() T {
	return t.fn()
}

// IsZero reports whether t wraps no computation.
func (t Typed[T]) IsZero() bool {
	return t.fn == nil
}

// variant is implemented by every instantiation of Typed. It lets Erased
// operate on whichever type it holds without naming it.
type variant interface {
	invokeAny() any
	folded() variant
	fromAny(v any) (variant, bool)
	fromFunc(fn func() any) variant
}

func (t Typed[T]) invokeAny() any { return t.fn() }

func (t Typed[T]) folded() variant {
	return Const(t.fn())
}

func (Typed[T]) fromAny(v any) (variant, bool) {
	x, ok := v.(T)
	if !ok {
		return nil, false
	}
	return Const(x), true
}

// fromFunc adapts a boxed computation. fn must yield T; a value of another
// type panics on invocation.
func (Typed[T]) fromFunc(fn func() any) variant {
	return NewTyped(func() T { return fn().(T) })
}
