package gometl_test

import (
	"errors"
	"testing"

	"github.com/sandrolain/gometl"
	"github.com/sandrolain/gometl/pkg/types"
)

func TestParseLiteral(t *testing.T) {
	full := gometl.MustNew(gometl.WithTypes("bool", "int", "double", "complex", "string"))
	doubles := gometl.MustNew(gometl.WithTypes("double"))

	tests := []struct {
		name string
		eng  *gometl.Engine
		in   string
		want any
	}{
		{"bool", full, "true", true},
		{"int", full, "42", 42},
		{"negative int", full, " -7 ", -7},
		{"hex int", full, "0x1f", 31},
		{"double", full, "2.5", 2.5},
		{"exponent", full, "1e3", 1000.0},
		{"complex", full, "(1+2i)", complex(1, 2)},
		{"imaginary", full, "3i", complex(0, 3)},
		{"string", full, `"a b"`, "a b"},
		{"int widened to double", doubles, "4", 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.eng.ParseLiteral(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !e.IsConstant() {
				t.Error("literal is not constant")
			}
			if got := e.Value(); got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParseLiteralErrors(t *testing.T) {
	eng := gometl.MustNew(gometl.WithTypes("int"))
	for _, in := range []string{"2.5", "true", `"x"`, "abc", `"unterminated`} {
		if _, err := eng.ParseLiteral(in); !errors.Is(err, types.ErrUnsupportedType) {
			t.Errorf("ParseLiteral(%q) error = %v", in, err)
		}
	}
}
