// Package conversion implements the signature-keyed table that resolves
// casts and overloaded calls between type-erased expressions.
//
// The table stands in for native overload resolution: the set of result
// types is only known once a registry is configured, so every cast and
// every overload is registered under a mangled signature and found by
// lookup.
//
//	t := conversion.New(r)
//	_ = conversion.RegisterCastFunc(t, func(i int) float64 { return float64(i) })
//	fn, ok := t.LookupCast(intTag, doubleTag)
//	d, err := t.Apply(fn, e)
//
// A lookup miss is (nil, false), never an error. The table is meant to be
// filled during set-up and then only read; Freeze enforces that discipline.
// All methods are safe for concurrent use.
package conversion

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/sandrolain/gometl/pkg/cache"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/mangle"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Func converts or combines erased expressions into a new one.
type Func func(args ...expr.Erased) (expr.Erased, error)

// Options configures a Table.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
	// Debug enables debug logging of registrations, misses and resolutions.
	Debug bool
	// ImplicitCasts lets Resolve insert registered casts on arguments when
	// no overload matches the argument types exactly.
	ImplicitCasts bool
	// FoldConstants makes ResolveCall fold results whose arguments are all
	// constant.
	FoldConstants bool
	// CacheSize sets the capacity of the resolution cache. Defaults to 256.
	CacheSize int
	// Cache is an externally owned resolution cache. Tables may share one:
	// entries are keyed by table.
	Cache *cache.Cache[CacheKey, *Resolution]
}

// CacheKey identifies a cached resolution by owning table and mangled call.
type CacheKey struct {
	table *Table
	call  mangle.Key
}

// Option configures a Table.
type Option func(*Options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) Option {
	return func(opts *Options) {
		opts.Debug = enabled
	}
}

// WithImplicitCasts enables or disables cast insertion during resolution.
func WithImplicitCasts(enabled bool) Option {
	return func(opts *Options) {
		opts.ImplicitCasts = enabled
	}
}

// WithFoldConstants enables or disables folding of all-constant calls.
func WithFoldConstants(enabled bool) Option {
	return func(opts *Options) {
		opts.FoldConstants = enabled
	}
}

// WithCacheSize sets the maximum number of cached resolutions.
func WithCacheSize(size int) Option {
	return func(opts *Options) {
		opts.CacheSize = size
	}
}

// WithCache attaches an external resolution cache.
func WithCache(c *cache.Cache[CacheKey, *Resolution]) Option {
	return func(opts *Options) {
		opts.Cache = c
	}
}

type entry struct {
	sig mangle.Signature
	fn  Func
}

// Table maps mangled signatures to conversion functions.
type Table struct {
	mu      sync.RWMutex
	reg     *registry.Registry
	opts    Options
	logger  *slog.Logger
	entries map[mangle.Key]entry
	// castsFrom lists cast targets per source type, in registration order.
	castsFrom map[registry.Tag][]registry.Tag
	frozen    bool
	cache     *cache.Cache[CacheKey, *Resolution]
}

// New creates an empty table over r.
func New(r *registry.Registry, opts ...Option) *Table {
	options := Options{
		ImplicitCasts: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	c := options.Cache
	if c == nil {
		c = cache.New[CacheKey, *Resolution](options.CacheSize)
	}

	return &Table{
		reg:       r,
		opts:      options,
		logger:    options.Logger,
		entries:   make(map[mangle.Key]entry),
		castsFrom: make(map[registry.Tag][]registry.Tag),
		cache:     c,
	}
}

// Registry returns the registry the table resolves against.
func (t *Table) Registry() *registry.Registry {
	return t.reg
}

// Register adds or overwrites the entry for sig. The last registration for
// a signature wins. Registering after Freeze fails with a TableFrozen error.
//
// Register panics with a MangleCollision error if a different signature
// already owns the same key: that can only be a mangler defect.
func (t *Table) Register(sig mangle.Signature, fn Func) error {
	if fn == nil {
		return types.Errorf(types.ErrCodeInvalidExpression, "nil function for %s signature %q", sig.Kind, sig.Name)
	}
	for _, tag := range sig.Tags {
		if !t.reg.Valid(tag) {
			return types.Errorf(types.ErrCodeUnsupportedType, "%s signature %q uses unknown type tag %d", sig.Kind, sig.Name, tag)
		}
	}
	key := mangle.Describe(t.reg, sig)
	if key.IsZero() {
		return types.Errorf(types.ErrCodeInvalidExpression, "malformed %s signature %q with %d types", sig.Kind, sig.Name, len(sig.Tags))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return types.Errorf(types.ErrCodeTableFrozen, "cannot register %s after freeze", key)
	}
	if prev, ok := t.entries[key]; ok {
		if !prev.sig.Equal(sig) {
			panic(types.Errorf(types.ErrCodeMangleCollision, "signatures %+v and %+v share key %s", prev.sig, sig, key))
		}
		if t.opts.Debug {
			t.logger.Debug("overwriting conversion", "key", key.String())
		}
	} else if sig.Kind == mangle.KindCast {
		from, to := sig.Tags[0], sig.Tags[1]
		t.castsFrom[from] = append(t.castsFrom[from], to)
	}

	t.entries[key] = entry{sig: mangle.Signature{Kind: sig.Kind, Name: sig.Name, Tags: append([]registry.Tag(nil), sig.Tags...)}, fn: fn}
	// Earlier resolutions may no longer be the best match.
	t.cache.Clear()

	if t.opts.Debug {
		t.logger.Debug("registered conversion", "key", key.String())
	}
	return nil
}

// RegisterCast registers a conversion from one type to another.
func (t *Table) RegisterCast(from, to registry.Tag, fn Func) error {
	return t.Register(mangle.CastSignature(from, to), fn)
}

// RegisterCall registers an overload of name for the given argument types.
func (t *Table) RegisterCall(name string, tags []registry.Tag, fn Func) error {
	return t.Register(mangle.CallSignature(name, tags...), fn)
}

// RegisterSuffix registers a suffix operation specialized for one type.
func (t *Table) RegisterSuffix(suffix string, from registry.Tag, fn Func) error {
	return t.Register(mangle.SuffixSignature(suffix, from), fn)
}

// Freeze makes the table read-only. Later registrations fail.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Signatures returns the unmangled signature of every entry of the given
// kind, ordered by name and then by argument tags.
func (t *Table) Signatures(kind mangle.Kind) []mangle.Signature {
	t.mu.RLock()
	var sigs []mangle.Signature
	for _, e := range t.entries {
		if e.sig.Kind == kind {
			sigs = append(sigs, e.sig)
		}
	}
	t.mu.RUnlock()
	slices.SortFunc(sigs, func(a, b mangle.Signature) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return slices.Compare(a.Tags, b.Tags)
	})
	return sigs
}

// Lookup returns the function registered under key.
func (t *Table) Lookup(key mangle.Key) (Func, bool) {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		if t.opts.Debug {
			t.logger.Debug("conversion not found", "key", key.String())
		}
		return nil, false
	}
	return e.fn, true
}

// LookupCast returns the cast from one type to another.
func (t *Table) LookupCast(from, to registry.Tag) (Func, bool) {
	return t.Lookup(mangle.Cast(t.reg, from, to))
}

// LookupCall returns the overload of name for exactly the given argument
// types. Use Resolve to allow implicit casts.
func (t *Table) LookupCall(name string, tags ...registry.Tag) (Func, bool) {
	return t.Lookup(mangle.Call(t.reg, name, tags...))
}

// LookupSuffix returns the suffix operation specialized for from.
func (t *Table) LookupSuffix(suffix string, from registry.Tag) (Func, bool) {
	return t.Lookup(mangle.Suffix(t.reg, suffix, from))
}

// Apply runs fn on args and checks that it produced a valid expression
// built against the table's registry.
func (t *Table) Apply(fn Func, args ...expr.Erased) (expr.Erased, error) {
	if fn == nil {
		return expr.Erased{}, types.NewError(types.ErrCodeConversionNotFound, "no conversion function")
	}
	for i, a := range args {
		if !a.IsValid() {
			return expr.Erased{}, types.Errorf(types.ErrCodeInvalidExpression, "argument %d is invalid", i)
		}
		if a.Registry() != t.reg {
			return expr.Erased{}, types.Errorf(types.ErrCodeInvalidExpression, "argument %d was built against another registry", i)
		}
	}
	out, err := fn(args...)
	if err != nil {
		return expr.Erased{}, err
	}
	if !out.IsValid() {
		return expr.Erased{}, types.NewError(types.ErrCodeInvalidExpression, "conversion produced an invalid expression")
	}
	if out.Registry() != t.reg {
		return expr.Erased{}, types.NewError(types.ErrCodeInvalidExpression, "conversion produced an expression of another registry")
	}
	return out, nil
}

// Convert returns e converted to type to. It returns e itself when it
// already has that type, and a ConversionNotFound error when no cast is
// registered.
func (t *Table) Convert(e expr.Erased, to registry.Tag) (expr.Erased, error) {
	if !e.IsValid() {
		return expr.Erased{}, types.NewError(types.ErrCodeInvalidExpression, "convert invalid expression")
	}
	if e.Type() == to {
		return e, nil
	}
	fn, ok := t.LookupCast(e.Type(), to)
	if !ok {
		return expr.Erased{}, types.Errorf(types.ErrCodeConversionNotFound, "no cast from %s to %s", e.TypeName(), t.reg.Name(to))
	}
	return t.Apply(fn, e)
}

// Call applies the overload of name matching the argument types exactly.
// It returns a ConversionNotFound error when there is none.
func (t *Table) Call(name string, args ...expr.Erased) (expr.Erased, error) {
	fn, ok := t.Lookup(mangle.CallOf(t.reg, name, args...))
	if !ok {
		return expr.Erased{}, types.Errorf(types.ErrCodeConversionNotFound, "no overload %s", t.describeCall(name, mangle.TagsOf(args...)))
	}
	return t.Apply(fn, args...)
}

// Suffix applies the suffix operation specialized for e's type.
func (t *Table) Suffix(suffix string, e expr.Erased) (expr.Erased, error) {
	fn, ok := t.LookupSuffix(suffix, e.Type())
	if !ok {
		return expr.Erased{}, types.Errorf(types.ErrCodeConversionNotFound, "no suffix %q for %s", suffix, e.TypeName())
	}
	return t.Apply(fn, e)
}

func (t *Table) describeCall(name string, tags []registry.Tag) string {
	s := name + "("
	for i, tag := range tags {
		if i > 0 {
			s += ", "
		}
		s += t.reg.Name(tag)
	}
	return s + ")"
}
