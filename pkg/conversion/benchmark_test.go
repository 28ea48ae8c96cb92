package conversion_test

// Run with:
//
//	go test -bench=. -benchmem ./pkg/conversion/...

import (
	"testing"

	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
)

func benchTable(b *testing.B, opts ...conversion.Option) *conversion.Table {
	b.Helper()
	tbl := conversion.New(testRegistry, opts...)
	if err := conversion.RegisterCastFunc(tbl, func(i int) float64 { return float64(i) }); err != nil {
		b.Fatal(err)
	}
	if err := conversion.RegisterFunc2(tbl, "+", func(a, c float64) float64 { return a + c }); err != nil {
		b.Fatal(err)
	}
	if err := conversion.RegisterFunc2(tbl, "+", func(a, c int) int { return a + c }); err != nil {
		b.Fatal(err)
	}
	return tbl
}

func BenchmarkLookupCast(b *testing.B) {
	tbl := benchTable(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := tbl.LookupCast(tInt, tDouble); !ok {
			b.Fatal("cast not found")
		}
	}
}

func BenchmarkResolveCached(b *testing.B) {
	tbl := benchTable(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tbl.Resolve("+", tInt, tDouble); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolveUncached(b *testing.B) {
	tbl := benchTable(b, conversion.WithCacheSize(1))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Alternating signatures evict each other from a one-entry cache.
		if i%2 == 0 {
			_, _ = tbl.Resolve("+", tInt, tDouble)
		} else {
			_, _ = tbl.Resolve("+", tDouble, tInt)
		}
	}
}

func BenchmarkResolveCallAndInvoke(b *testing.B) {
	tbl := benchTable(b)
	x := 1
	v, _ := expr.NewVariable(testRegistry, &x)
	half, _ := expr.NewConstant(testRegistry, 0.5)
	sum, err := tbl.ResolveCall("+", v, half)
	if err != nil {
		b.Fatal(err)
	}
	typed := expr.MustGet[float64](sum)

	b.Run("build", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = tbl.ResolveCall("+", v, half)
		}
	})
	b.Run("invoke", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			x = i
			_ = typed.Invoke()
		}
	})
}
