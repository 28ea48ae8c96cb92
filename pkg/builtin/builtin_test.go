package builtin_test

import (
	"errors"
	"testing"

	"github.com/sandrolain/gometl/pkg/builtin"
	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/functions"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

func fullTable(t *testing.T) *conversion.Table {
	t.Helper()
	r, err := builtin.Registry(builtin.TypeNames()...)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	tbl := conversion.New(r)
	if err := functions.RegisterAll(tbl, builtin.All()...); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return tbl
}

func constant[T any](t *testing.T, tbl *conversion.Table, v T) expr.Erased {
	t.Helper()
	e, err := expr.NewConstant(tbl.Registry(), v)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRegistry(t *testing.T) {
	r, err := builtin.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != len(builtin.DefaultTypes) {
		t.Errorf("default registry has %d types", r.Len())
	}
	if !registry.Contains[float64](r) || registry.Contains[complex128](r) {
		t.Errorf("default registry types = %v", r.Names())
	}
	if _, err := builtin.Registry("int", "decimal"); !errors.Is(err, types.ErrUnsupportedType) {
		t.Errorf("unknown type error = %v", err)
	}
	if _, err := builtin.Registry("int", "int"); !errors.Is(err, types.ErrDuplicateType) {
		t.Errorf("duplicate type error = %v", err)
	}
}

func TestArith(t *testing.T) {
	tbl := fullTable(t)
	tests := []struct {
		name string
		op   string
		a, b expr.Erased
		want any
	}{
		{"int add", "+", constant(t, tbl, 2), constant(t, tbl, 3), 5},
		{"int div", "/", constant(t, tbl, 7), constant(t, tbl, 2), 3},
		{"int mod", "%", constant(t, tbl, 7), constant(t, tbl, 2), 1},
		{"double mul", "*", constant(t, tbl, 1.5), constant(t, tbl, 2.0), 3.0},
		{"mixed promotes", "+", constant(t, tbl, 1), constant(t, tbl, 0.5), 1.5},
		{"complex sub", "-", constant(t, tbl, complex(1, 1)), constant(t, tbl, 1), complex(0, 1)},
		{"string concat", "+", constant(t, tbl, "a"), constant(t, tbl, "b"), "ab"},
		{"bool promotes", "+", constant(t, tbl, true), constant(t, tbl, 1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tbl.ResolveCall(tt.op, tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.Value(); got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestIntDivisionByZero(t *testing.T) {
	tbl := fullTable(t)
	for _, op := range []string{"/", "%"} {
		_, err := tbl.Call(op, constant(t, tbl, 1), constant(t, tbl, 0))
		if !errors.Is(err, types.ErrDivisionByZero) {
			t.Errorf("1 %s 0 error = %v", op, err)
		}
	}
	x := 0
	v, _ := expr.NewVariable(tbl.Registry(), &x)
	if _, err := tbl.Call("/", constant(t, tbl, 1), v); err != nil {
		t.Errorf("dynamic divisor rejected at build time: %v", err)
	}
}

func TestCompareAndLogic(t *testing.T) {
	tbl := fullTable(t)
	lt, err := tbl.ResolveCall("<", constant(t, tbl, 1), constant(t, tbl, 1.5))
	if err != nil {
		t.Fatal(err)
	}
	eq, err := tbl.Call("==", constant(t, tbl, "x"), constant(t, tbl, "x"))
	if err != nil {
		t.Fatal(err)
	}
	and, err := tbl.Call("&&", lt, eq)
	if err != nil {
		t.Fatal(err)
	}
	if !expr.MustGet[bool](and).Invoke() {
		t.Error("1 < 1.5 && x == x is false")
	}
	not, err := tbl.Call("!", and)
	if err != nil || expr.MustGet[bool](not).Invoke() {
		t.Errorf("!true = %v, %v", not, err)
	}
	if _, err := tbl.Call("<", constant(t, tbl, complex(1, 0)), constant(t, tbl, complex(2, 0))); !errors.Is(err, types.ErrConversionNotFound) {
		t.Errorf("complex ordering error = %v", err)
	}
}

func TestPrint(t *testing.T) {
	tbl := fullTable(t)
	tests := []struct {
		in   expr.Erased
		want string
	}{
		{constant(t, tbl, true), "true"},
		{constant(t, tbl, 42), "42"},
		{constant(t, tbl, 0.25), "0.25"},
		{constant(t, tbl, complex(1, 2)), "(1+2i)"},
		{constant(t, tbl, "hi"), `"hi"`},
	}
	for _, tt := range tests {
		out, err := tbl.Suffix("print", tt.in)
		if err != nil {
			t.Fatalf("print %s: %v", tt.in, err)
		}
		if got := expr.MustGet[string](out).Invoke(); got != tt.want {
			t.Errorf("print %s = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupsOnPartialRegistry(t *testing.T) {
	r, _ := builtin.Registry(builtin.Int, builtin.Double)
	tbl := conversion.New(r)
	g, ok := builtin.Group(builtin.GroupArith)
	if !ok {
		t.Fatal("arith group missing")
	}
	n, err := functions.RegisterSupported(tbl, g...)
	if err != nil {
		t.Fatal(err)
	}
	// int: + - * neg / %, double: + - * neg /
	if n != 11 {
		t.Errorf("registered %d arith entries, want 11", n)
	}
	if err := functions.RegisterAll(tbl, g...); !errors.Is(err, types.ErrUnsupportedType) {
		t.Errorf("RegisterAll on partial registry error = %v", err)
	}
	if _, ok := builtin.Group("bitwise"); ok {
		t.Error("unknown group found")
	}
}

func TestCastFor(t *testing.T) {
	if _, ok := builtin.CastFor(builtin.Int, builtin.Double); !ok {
		t.Error("int -> double missing")
	}
	if _, ok := builtin.CastFor(builtin.Double, builtin.Int); ok {
		t.Error("narrowing cast double -> int present")
	}
	if got := len(builtin.CastPairs()); got != len(builtin.Casts()) {
		t.Errorf("CastPairs has %d entries, Casts %d", got, len(builtin.Casts()))
	}
}
