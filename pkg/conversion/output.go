package conversion

import (
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Output is the final expression handed to an embedding application. It
// answers type queries for the held type only, but extraction also accepts
// any type reachable through a registered cast.
type Output struct {
	e     expr.Erased
	table *Table
}

// NewOutput pairs e with the table used to convert it on extraction.
func NewOutput(e expr.Erased, t *Table) Output {
	return Output{e: e, table: t}
}

// Expr returns the held expression.
func (o Output) Expr() expr.Erased {
	return o.e
}

// Holds reports whether the output holds a T. Registered casts do not count.
func Holds[T any](o Output) bool {
	return expr.IsType[T](o.e)
}

// As returns the output as a Typed[T], casting first when the held type is
// not T. It fails with a TypeMismatch error when no cast to T exists.
func As[T any](o Output) (expr.Typed[T], error) {
	if expr.IsType[T](o.e) {
		return expr.Get[T](o.e)
	}
	if !o.e.IsValid() || o.table == nil {
		return expr.Get[T](o.e)
	}
	to, err := registry.TagOf[T](o.table.reg)
	if err != nil {
		return expr.Typed[T]{}, types.Errorf(types.ErrCodeTypeMismatch, "output holds %s", o.e.TypeName()).WithCause(err)
	}
	fn, ok := o.table.LookupCast(o.e.Type(), to)
	if !ok {
		return expr.Typed[T]{}, types.Errorf(types.ErrCodeTypeMismatch, "output holds %s and has no cast to %s", o.e.TypeName(), o.table.reg.Name(to)).
			WithCause(types.ErrConversionNotFound)
	}
	converted, err := o.table.Apply(fn, o.e)
	if err != nil {
		return expr.Typed[T]{}, err
	}
	return expr.Get[T](converted)
}
