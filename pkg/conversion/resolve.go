package conversion

import (
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/mangle"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Resolution is the outcome of resolving a call against argument types: the
// overload to run and, per argument, the cast to apply first (nil when the
// argument already has the parameter type).
type Resolution struct {
	Name   string
	Params []registry.Tag
	Casts  []Func
	Fn     Func
}

// NumCasts returns how many arguments need a cast.
func (res *Resolution) NumCasts() int {
	n := 0
	for _, c := range res.Casts {
		if c != nil {
			n++
		}
	}
	return n
}

// Apply casts args as needed and runs the overload.
func (res *Resolution) Apply(t *Table, args ...expr.Erased) (expr.Erased, error) {
	if len(args) != len(res.Params) {
		return expr.Erased{}, types.Errorf(types.ErrCodeArgumentCount, "%s expects %d argument(s), got %d", res.Name, len(res.Params), len(args))
	}
	converted := make([]expr.Erased, len(args))
	for i, a := range args {
		if res.Casts[i] == nil {
			converted[i] = a
			continue
		}
		c, err := t.Apply(res.Casts[i], a)
		if err != nil {
			return expr.Erased{}, err
		}
		converted[i] = c
	}
	return t.Apply(res.Fn, converted...)
}

// Resolve finds the overload of name to call for the given argument types.
//
// An overload matching the types exactly always wins. Otherwise, when
// implicit casts are enabled, every combination of single registered casts
// on the arguments is tried and the overload needing the fewest casts is
// chosen. Two overloads tied at that minimum make the call ambiguous.
// Results are cached per argument-type signature.
func (t *Table) Resolve(name string, tags ...registry.Tag) (*Resolution, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := CacheKey{table: t, call: mangle.Call(t.reg, name, tags...)}
	return t.cache.GetOrCompute(key, func() (*Resolution, error) {
		return t.resolveLocked(name, tags)
	})
}

// resolveLocked must be called with t.mu held.
func (t *Table) resolveLocked(name string, tags []registry.Tag) (*Resolution, error) {
	if e, ok := t.entries[mangle.Call(t.reg, name, tags...)]; ok {
		return &Resolution{
			Name:   name,
			Params: append([]registry.Tag(nil), tags...),
			Casts:  make([]Func, len(tags)),
			Fn:     e.fn,
		}, nil
	}
	if !t.opts.ImplicitCasts {
		return nil, types.Errorf(types.ErrCodeConversionNotFound, "no overload %s", t.describeCall(name, tags))
	}

	// Candidate parameter types per argument: its own type, then every
	// registered cast target other than itself.
	candidates := make([][]registry.Tag, len(tags))
	for i, tag := range tags {
		candidates[i] = []registry.Tag{tag}
		for _, to := range t.castsFrom[tag] {
			if to != tag {
				candidates[i] = append(candidates[i], to)
			}
		}
	}

	var (
		best      *Resolution
		bestCasts = -1
		tied      []string
	)
	params := make([]registry.Tag, len(tags))
	var walk func(i int)
	walk = func(i int) {
		if i == len(tags) {
			e, ok := t.entries[mangle.Call(t.reg, name, params...)]
			if !ok {
				return
			}
			res := &Resolution{
				Name:   name,
				Params: append([]registry.Tag(nil), params...),
				Casts:  make([]Func, len(tags)),
				Fn:     e.fn,
			}
			for j := range tags {
				if params[j] != tags[j] {
					res.Casts[j] = t.entries[mangle.Cast(t.reg, tags[j], params[j])].fn
				}
			}
			n := res.NumCasts()
			switch {
			case bestCasts < 0 || n < bestCasts:
				best, bestCasts = res, n
				tied = tied[:0]
			case n == bestCasts:
				tied = append(tied, t.describeCall(name, res.Params))
			}
			return
		}
		for _, c := range candidates[i] {
			params[i] = c
			walk(i + 1)
		}
	}
	walk(0)

	if best == nil {
		return nil, types.Errorf(types.ErrCodeConversionNotFound, "no overload %s", t.describeCall(name, tags))
	}
	if len(tied) > 0 {
		return nil, types.Errorf(types.ErrCodeAmbiguousCall, "call %s matches %s and %v", t.describeCall(name, tags), t.describeCall(name, best.Params), tied)
	}
	if t.opts.Debug {
		t.logger.Debug("resolved call with implicit casts",
			"call", t.describeCall(name, tags),
			"overload", t.describeCall(name, best.Params),
			"casts", bestCasts)
	}
	return best, nil
}

// ResolveCall resolves and applies the overload of name for args. When the
// table folds constants and the result is Constant, the folded expression
// is returned.
func (t *Table) ResolveCall(name string, args ...expr.Erased) (expr.Erased, error) {
	for i, a := range args {
		if !a.IsValid() {
			return expr.Erased{}, types.Errorf(types.ErrCodeInvalidExpression, "argument %d of %s is invalid", i, name)
		}
	}
	res, err := t.Resolve(name, mangle.TagsOf(args...)...)
	if err != nil {
		return expr.Erased{}, err
	}
	out, err := res.Apply(t, args...)
	if err != nil {
		return expr.Erased{}, err
	}
	if t.opts.FoldConstants && out.IsConstant() {
		return out.Evaluated(), nil
	}
	return out, nil
}
