package conversion

import (
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Cast adapts a plain Go conversion into a Func. The result keeps the
// category of its argument, so a cast of a Constant is Constant.
func Cast[From, To any](fn func(From) To) Func {
	return Func1(fn)
}

// Func1 adapts a unary Go function into a Func. The result keeps the
// category of its argument.
func Func1[A, R any](fn func(A) R) Func {
	return func(args ...expr.Erased) (expr.Erased, error) {
		if err := checkArity(args, 1); err != nil {
			return expr.Erased{}, err
		}
		a, err := expr.Get[A](args[0])
		if err != nil {
			return expr.Erased{}, err
		}
		return expr.Wrap(args[0].Registry(), expr.NewTyped(func() R {
			return fn(a.Invoke())
		}), args[0].Category())
	}
}

// Func2 adapts a binary Go function into a Func. The result is Constant
// only when both arguments are.
func Func2[A, B, R any](fn func(A, B) R) Func {
	return func(args ...expr.Erased) (expr.Erased, error) {
		if err := checkArity(args, 2); err != nil {
			return expr.Erased{}, err
		}
		a, err := expr.Get[A](args[0])
		if err != nil {
			return expr.Erased{}, err
		}
		b, err := expr.Get[B](args[1])
		if err != nil {
			return expr.Erased{}, err
		}
		return expr.Wrap(args[0].Registry(), expr.NewTyped(func() R {
			return fn(a.Invoke(), b.Invoke())
		}), expr.Join(args[0].Category(), args[1].Category()))
	}
}

func checkArity(args []expr.Erased, want int) error {
	if len(args) != want {
		return types.Errorf(types.ErrCodeArgumentCount, "expected %d argument(s), got %d", want, len(args))
	}
	return nil
}

// RegisterCastFunc registers fn as the cast from From to To.
func RegisterCastFunc[From, To any](t *Table, fn func(From) To) error {
	from, err := registry.TagOf[From](t.reg)
	if err != nil {
		return err
	}
	to, err := registry.TagOf[To](t.reg)
	if err != nil {
		return err
	}
	return t.RegisterCast(from, to, Cast(fn))
}

// RegisterFunc1 registers fn as the overload name(A).
func RegisterFunc1[A, R any](t *Table, name string, fn func(A) R) error {
	a, err := registry.TagOf[A](t.reg)
	if err != nil {
		return err
	}
	if _, err := registry.TagOf[R](t.reg); err != nil {
		return err
	}
	return t.RegisterCall(name, []registry.Tag{a}, Func1(fn))
}

// RegisterFunc2 registers fn as the overload name(A, B).
func RegisterFunc2[A, B, R any](t *Table, name string, fn func(A, B) R) error {
	a, err := registry.TagOf[A](t.reg)
	if err != nil {
		return err
	}
	b, err := registry.TagOf[B](t.reg)
	if err != nil {
		return err
	}
	if _, err := registry.TagOf[R](t.reg); err != nil {
		return err
	}
	return t.RegisterCall(name, []registry.Tag{a, b}, Func2(fn))
}

// RegisterSuffixFunc registers fn as the suffix operation for A.
func RegisterSuffixFunc[A, R any](t *Table, suffix string, fn func(A) R) error {
	a, err := registry.TagOf[A](t.reg)
	if err != nil {
		return err
	}
	if _, err := registry.TagOf[R](t.reg); err != nil {
		return err
	}
	return t.RegisterSuffix(suffix, a, Func1(fn))
}
