package gometl

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/types"
)

// ParseLiteral parses s as a constant of the narrowest configured type
// that can hold it:
//
//	true, false        bool
//	42, -7, 0x1f       int, else double, else complex
//	2.5, 1e3, Inf      double, else complex
//	(1+2i), 3i         complex
//	"text"             string (Go quoting)
func (e *Engine) ParseLiteral(s string) (expr.Erased, error) {
	s = strings.TrimSpace(s)
	for _, v := range literalCandidates(s) {
		if _, err := e.reg.TagOfType(reflect.TypeOf(v)); err == nil {
			return expr.ConstantOf(e.reg, v)
		}
	}
	return expr.Erased{}, types.Errorf(types.ErrCodeUnsupportedType, "literal %q does not fit any configured type (have %v)", s, e.reg.Names())
}

func literalCandidates(s string) []any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return []any{b}
	}
	if strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "`") {
		if u, err := strconv.Unquote(s); err == nil {
			return []any{u}
		}
		return nil
	}
	var out []any
	if i, err := strconv.ParseInt(s, 0, strconv.IntSize); err == nil {
		out = append(out, int(i))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		out = append(out, f)
	}
	if c, err := strconv.ParseComplex(s, 128); err == nil {
		out = append(out, c)
	}
	return out
}
