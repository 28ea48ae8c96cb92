package conversion_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/mangle"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

var testRegistry = registry.MustNew(
	expr.Type[bool]("bool"),
	expr.Type[int]("int"),
	expr.Type[float64]("double"),
)

var (
	tBool   = registry.MustTagOf[bool](testRegistry)
	tInt    = registry.MustTagOf[int](testRegistry)
	tDouble = registry.MustTagOf[float64](testRegistry)
)

func newTable(t *testing.T, opts ...conversion.Option) *conversion.Table {
	t.Helper()
	tbl := conversion.New(testRegistry, opts...)
	if err := conversion.RegisterCastFunc(tbl, func(i int) float64 { return float64(i) }); err != nil {
		t.Fatalf("RegisterCastFunc: %v", err)
	}
	return tbl
}

func TestLookupCast(t *testing.T) {
	tbl := newTable(t)

	fn, ok := tbl.LookupCast(tInt, tDouble)
	if !ok {
		t.Fatal("LookupCast(int, double) not found")
	}
	five, _ := expr.NewConstant(testRegistry, 5)
	out, err := tbl.Apply(fn, five)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !expr.IsType[float64](out) {
		t.Fatalf("cast produced %s", out)
	}
	if got := expr.MustGet[float64](out).Invoke(); got != 5.0 {
		t.Errorf("cast value = %v, want 5.0", got)
	}

	if fn, ok := tbl.LookupCast(tDouble, tInt); ok || fn != nil {
		t.Error("LookupCast(double, int) found an unregistered cast")
	}
}

func TestCastPreservesCategory(t *testing.T) {
	tbl := newTable(t)
	fn, _ := tbl.LookupCast(tInt, tDouble)

	c, _ := expr.NewConstant(testRegistry, 2)
	out, err := tbl.Apply(fn, c)
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsConstant() {
		t.Errorf("cast of constant is %s", out.Category())
	}

	x := 3
	v, _ := expr.NewVariable(testRegistry, &x)
	out, err = tbl.Apply(fn, v)
	if err != nil {
		t.Fatal(err)
	}
	if out.IsConstant() {
		t.Error("cast of variable is constant")
	}
	x = 4
	if got := expr.MustGet[float64](out).Invoke(); got != 4 {
		t.Errorf("cast of variable read %v after update", got)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	tbl := newTable(t)
	if err := conversion.RegisterCastFunc(tbl, func(i int) float64 { return float64(i) * 10 }); err != nil {
		t.Fatal(err)
	}
	e, _ := expr.NewConstant(testRegistry, 2)
	out, err := tbl.Convert(e, tDouble)
	if err != nil {
		t.Fatal(err)
	}
	if got := expr.MustGet[float64](out).Invoke(); got != 20 {
		t.Errorf("value = %v, want 20", got)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tbl.Len())
	}
}

func TestConvert(t *testing.T) {
	tbl := newTable(t)
	d, _ := expr.NewConstant(testRegistry, 1.5)

	same, err := tbl.Convert(d, tDouble)
	if err != nil || expr.MustGet[float64](same).Invoke() != 1.5 {
		t.Errorf("Convert to own type = %v, %v", same, err)
	}
	if _, err := tbl.Convert(d, tInt); !errors.Is(err, types.ErrConversionNotFound) {
		t.Errorf("Convert(double->int) error = %v", err)
	}
	if _, err := tbl.Convert(expr.Erased{}, tInt); !errors.Is(err, types.ErrInvalidExpression) {
		t.Errorf("Convert(invalid) error = %v", err)
	}
}

func TestCallAndSuffix(t *testing.T) {
	tbl := newTable(t)
	if err := conversion.RegisterFunc2(tbl, "<", func(a, b int) bool { return a < b }); err != nil {
		t.Fatal(err)
	}
	if err := conversion.RegisterFunc1(tbl, "-", func(a float64) float64 { return -a }); err != nil {
		t.Fatal(err)
	}
	if err := conversion.RegisterSuffixFunc(tbl, "half", func(a int) float64 { return float64(a) / 2 }); err != nil {
		t.Fatal(err)
	}

	one, _ := expr.NewConstant(testRegistry, 1)
	two, _ := expr.NewConstant(testRegistry, 2)
	lt, err := tbl.Call("<", one, two)
	if err != nil {
		t.Fatal(err)
	}
	if !expr.MustGet[bool](lt).Invoke() || !lt.IsConstant() {
		t.Errorf("1 < 2 = %s", lt)
	}

	if _, ok := tbl.LookupCall("<", tInt, tInt); !ok {
		t.Error("LookupCall(<, int, int) missing")
	}
	if _, ok := tbl.LookupCall("<", tDouble, tDouble); ok {
		t.Error("LookupCall(<, double, double) found")
	}
	if _, err := tbl.Call("<", one); !errors.Is(err, types.ErrConversionNotFound) {
		t.Errorf("Call(<, int) error = %v", err)
	}

	half, err := tbl.Suffix("half", two)
	if err != nil {
		t.Fatal(err)
	}
	if got := expr.MustGet[float64](half).Invoke(); got != 1 {
		t.Errorf("2 half = %v", got)
	}
	if _, err := tbl.Suffix("half", lt); !errors.Is(err, types.ErrConversionNotFound) {
		t.Errorf("Suffix on bool error = %v", err)
	}
}

func TestFuncArgumentChecks(t *testing.T) {
	fn := conversion.Func2(func(a, b int) int { return a + b })
	one, _ := expr.NewConstant(testRegistry, 1)
	if _, err := fn(one); !errors.Is(err, types.ErrArgumentCount) {
		t.Errorf("arity error = %v", err)
	}
	d, _ := expr.NewConstant(testRegistry, 1.0)
	if _, err := fn(one, d); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("type error = %v", err)
	}
	x := 1
	v, _ := expr.NewVariable(testRegistry, &x)
	out, err := fn(one, v)
	if err != nil {
		t.Fatal(err)
	}
	if out.IsConstant() {
		t.Error("constant + variable is constant")
	}
}

func TestRegisterValidation(t *testing.T) {
	tbl := conversion.New(testRegistry)
	if err := conversion.RegisterCastFunc(tbl, func(s string) int { return len(s) }); !errors.Is(err, types.ErrUnsupportedType) {
		t.Errorf("cast from string error = %v", err)
	}
	if err := tbl.RegisterCast(tInt, 99, conversion.Cast(func(i int) int { return i })); !errors.Is(err, types.ErrUnsupportedType) {
		t.Errorf("unknown tag error = %v", err)
	}
	if err := tbl.RegisterCall("f", []registry.Tag{tInt}, nil); !errors.Is(err, types.ErrInvalidExpression) {
		t.Errorf("nil func error = %v", err)
	}
	if err := tbl.Register(mangle.Signature{Kind: mangle.KindCast, Tags: []registry.Tag{tInt}}, conversion.Cast(func(i int) int { return i })); !errors.Is(err, types.ErrInvalidExpression) {
		t.Errorf("malformed signature error = %v", err)
	}
}

func TestFreeze(t *testing.T) {
	tbl := newTable(t)
	tbl.Freeze()
	if !tbl.Frozen() {
		t.Fatal("Frozen = false")
	}
	err := conversion.RegisterCastFunc(tbl, func(b bool) int {
		if b {
			return 1
		}
		return 0
	})
	if !errors.Is(err, types.ErrTableFrozen) {
		t.Errorf("register after freeze error = %v", err)
	}
	if _, ok := tbl.LookupCast(tInt, tDouble); !ok {
		t.Error("lookup after freeze failed")
	}
}

func TestSignatures(t *testing.T) {
	tbl := newTable(t)
	_ = conversion.RegisterCastFunc(tbl, func(b bool) int { return 0 })
	_ = conversion.RegisterFunc2(tbl, "-", func(a, b float64) float64 { return a - b })
	_ = conversion.RegisterFunc2(tbl, "+", func(a, b float64) float64 { return a + b })
	_ = conversion.RegisterFunc2(tbl, "+", func(a, b int) int { return a + b })
	casts := tbl.Signatures(mangle.KindCast)
	if len(casts) != 2 || casts[0].Tags[0] != tBool || casts[1].Tags[0] != tInt || casts[1].Tags[1] != tDouble {
		t.Errorf("cast signatures = %+v", casts)
	}
	calls := tbl.Signatures(mangle.KindCall)
	want := []mangle.Signature{
		mangle.CallSignature("+", tInt, tInt),
		mangle.CallSignature("+", tDouble, tDouble),
		mangle.CallSignature("-", tDouble, tDouble),
	}
	if len(calls) != len(want) {
		t.Fatalf("call signatures = %+v", calls)
	}
	for i := range want {
		if !calls[i].Equal(want[i]) {
			t.Errorf("calls[%d] = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestApplyRejectsForeignRegistry(t *testing.T) {
	tbl := newTable(t)
	other := registry.MustNew(expr.Type[int]("int"), expr.Type[float64]("double"))
	e, _ := expr.NewConstant(other, 1)
	fn, _ := tbl.LookupCast(tInt, tDouble)
	if _, err := tbl.Apply(fn, e); !errors.Is(err, types.ErrInvalidExpression) {
		t.Errorf("foreign registry error = %v", err)
	}
	if _, err := tbl.Apply(nil, e); !errors.Is(err, types.ErrConversionNotFound) {
		t.Errorf("nil func error = %v", err)
	}
}

func TestApplyRejectsForeignResult(t *testing.T) {
	tbl := newTable(t)
	other := registry.MustNew(expr.Type[int]("int"), expr.Type[float64]("double"))
	leak := func(args ...expr.Erased) (expr.Erased, error) {
		return expr.NewConstant(other, 2.0)
	}
	one, _ := expr.NewConstant(testRegistry, 1)
	if _, err := tbl.Apply(leak, one); !errors.Is(err, types.ErrInvalidExpression) {
		t.Errorf("foreign result error = %v", err)
	}
}

func TestConcurrentLookups(t *testing.T) {
	tbl := newTable(t)
	e, _ := expr.NewConstant(testRegistry, 3)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				out, err := tbl.Convert(e, tDouble)
				if err != nil || expr.MustGet[float64](out).Invoke() != 3 {
					t.Errorf("Convert = %v, %v", out, err)
					return
				}
			}
		}()
	}
	// Registration concurrent with lookups is guarded by the table lock.
	_ = conversion.RegisterFunc1(tbl, "not", func(b bool) bool { return !b })
	wg.Wait()
}
