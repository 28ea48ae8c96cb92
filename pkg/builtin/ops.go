package builtin

import (
	"cmp"
	"strconv"

	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/functions"
	"github.com/sandrolain/gometl/pkg/types"
)

type number interface {
	~int | ~float64 | ~complex128
}

func arith[T number]() []functions.Entry {
	return []functions.Entry{
		functions.Binary("+", func(a, b T) T { return a + b }),
		functions.Binary("-", func(a, b T) T { return a - b }),
		functions.Binary("*", func(a, b T) T { return a * b }),
		functions.Unary("neg", func(a T) T { return -a }),
	}
}

// Arith returns the arithmetic operators.
//
// Integer / and % fail with a DivisionByZero error when the divisor is a
// constant zero. A variable divisor that reads zero panics on evaluation,
// as Go integer division does.
func Arith() []functions.Entry {
	var out []functions.Entry
	out = append(out, arith[int]()...)
	out = append(out,
		functions.BinaryFunc[int, int, int]("/", checkedInt("/", func(a, b int) int { return a / b })),
		functions.BinaryFunc[int, int, int]("%", checkedInt("%", func(a, b int) int { return a % b })),
	)
	out = append(out, arith[float64]()...)
	out = append(out, functions.Binary("/", func(a, b float64) float64 { return a / b }))
	out = append(out, arith[complex128]()...)
	out = append(out, functions.Binary("/", func(a, b complex128) complex128 { return a / b }))
	out = append(out, functions.Binary("+", func(a, b string) string { return a + b }))
	return out
}

func checkedInt(op string, fn func(a, b int) int) conversion.Func {
	inner := conversion.Func2(fn)
	return func(args ...expr.Erased) (expr.Erased, error) {
		if len(args) == 2 && args[1].IsConstant() {
			if d, err := expr.Get[int](args[1]); err == nil && d.Invoke() == 0 {
				return expr.Erased{}, types.Errorf(types.ErrCodeDivisionByZero, "integer %s by constant zero", op)
			}
		}
		return inner(args...)
	}
}

func equality[T comparable]() []functions.Entry {
	return []functions.Entry{
		functions.Binary("==", func(a, b T) bool { return a == b }),
		functions.Binary("!=", func(a, b T) bool { return a != b }),
	}
}

func ordering[T cmp.Ordered]() []functions.Entry {
	return []functions.Entry{
		functions.Binary("<", func(a, b T) bool { return a < b }),
		functions.Binary("<=", func(a, b T) bool { return a <= b }),
		functions.Binary(">", func(a, b T) bool { return a > b }),
		functions.Binary(">=", func(a, b T) bool { return a >= b }),
	}
}

// Compare returns the comparison operators.
func Compare() []functions.Entry {
	var out []functions.Entry
	out = append(out, equality[bool]()...)
	out = append(out, equality[int]()...)
	out = append(out, equality[float64]()...)
	out = append(out, equality[complex128]()...)
	out = append(out, equality[string]()...)
	out = append(out, ordering[int]()...)
	out = append(out, ordering[float64]()...)
	out = append(out, ordering[string]()...)
	return out
}

// Logic returns the boolean operators. Both operands are always evaluated.
func Logic() []functions.Entry {
	return []functions.Entry{
		functions.Binary("&&", func(a, b bool) bool { return a && b }),
		functions.Binary("||", func(a, b bool) bool { return a || b }),
		functions.Unary("!", func(a bool) bool { return !a }),
	}
}

// Print returns the "print" suffix for every catalog type.
func Print() []functions.Entry {
	return []functions.Entry{
		functions.Suffix("print", strconv.FormatBool),
		functions.Suffix("print", strconv.Itoa),
		functions.Suffix("print", func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }),
		functions.Suffix("print", func(c complex128) string { return strconv.FormatComplex(c, 'g', -1, 128) }),
		functions.Suffix("print", strconv.Quote),
	}
}
