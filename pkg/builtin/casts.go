package builtin

import "github.com/sandrolain/gometl/pkg/functions"

type castDef struct {
	from, to string
	entry    func() functions.Entry
}

var casts = []castDef{
	{Bool, Int, func() functions.Entry {
		return functions.Cast(func(b bool) int {
			if b {
				return 1
			}
			return 0
		})
	}},
	{Int, Double, func() functions.Entry {
		return functions.Cast(func(i int) float64 { return float64(i) })
	}},
	{Int, Complex, func() functions.Entry {
		return functions.Cast(func(i int) complex128 { return complex(float64(i), 0) })
	}},
	{Double, Complex, func() functions.Entry {
		return functions.Cast(func(f float64) complex128 { return complex(f, 0) })
	}},
}

// Casts returns every catalog cast.
func Casts() []functions.Entry {
	out := make([]functions.Entry, len(casts))
	for i, c := range casts {
		out[i] = c.entry()
	}
	return out
}

// CastFor returns the catalog cast between two named types.
func CastFor(from, to string) (functions.Entry, bool) {
	for _, c := range casts {
		if c.from == from && c.to == to {
			return c.entry(), true
		}
	}
	return nil, false
}

// CastPairs returns the (from, to) type names of every catalog cast.
func CastPairs() [][2]string {
	out := make([][2]string, len(casts))
	for i, c := range casts {
		out[i] = [2]string{c.from, c.to}
	}
	return out
}
