package conversion_test

import (
	"errors"
	"testing"

	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/types"
)

func TestOutputIsType(t *testing.T) {
	tbl := newTable(t)
	e, _ := expr.NewConstant(testRegistry, 0)
	out := conversion.NewOutput(e, tbl)

	if !conversion.Holds[int](out) {
		t.Error("Holds[int] = false")
	}
	if conversion.Holds[float64](out) || conversion.Holds[bool](out) {
		t.Error("casts made Holds report a reachable type")
	}
	if conversion.Holds[uint](out) || conversion.Holds[string](out) {
		t.Error("Holds accepted an unconfigured type")
	}
}

func TestOutputAs(t *testing.T) {
	tbl := newTable(t)
	e, _ := expr.NewConstant(testRegistry, 0)
	out := conversion.NewOutput(e, tbl)

	i, err := conversion.As[int](out)
	if err != nil || i.Invoke() != 0 {
		t.Errorf("As[int] = %v, %v", i, err)
	}
	d, err := conversion.As[float64](out)
	if err != nil || d.Invoke() != 0.0 {
		t.Errorf("As[float64] = %v, %v", d, err)
	}
	if _, err := conversion.As[bool](out); !errors.Is(err, types.ErrTypeMismatch) || !errors.Is(err, types.ErrConversionNotFound) {
		t.Errorf("As[bool] error = %v", err)
	}
	if _, err := conversion.As[string](out); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("As[string] error = %v", err)
	}
	if out.Expr().Type() != e.Type() {
		t.Error("Expr changed type")
	}
}

func TestOutputWithoutTable(t *testing.T) {
	e, _ := expr.NewConstant(testRegistry, 1)
	out := conversion.NewOutput(e, nil)
	if _, err := conversion.As[float64](out); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("As without table error = %v", err)
	}
}
