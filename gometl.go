// Package gometl provides the type-erased expression core of an expression
// engine: a closed, configurable set of result types, expressions that hide
// which of those types they produce, and a conversion table that resolves
// casts and overloaded calls between them.
//
// # Quick Start
//
//	eng, err := gometl.New(ctx,
//	    gometl.WithTypes("bool", "int", "double"),
//	    gometl.WithAllCasts(),
//	    gometl.WithOperators("arith", "compare"),
//	)
//	seven, _ := eng.Constant(7)
//	half, _ := eng.Constant(0.5)
//	sum, err := eng.Call("+", seven, half) // int promoted to double
//	v, err := gometl.Evaluate[float64](sum) // 7.5
//
// # Configuration
//
// An engine can also be built from a gometl.yaml file:
//
//	cfg, err := config.LoadConfig("gometl.yaml")
//	eng, err := gometl.NewFromConfig(ctx, cfg)
//
// # More Information
//
// For detailed documentation, see:
//   - Registry: github.com/sandrolain/gometl/pkg/registry
//   - Expressions: github.com/sandrolain/gometl/pkg/expr
//   - Conversion table: github.com/sandrolain/gometl/pkg/conversion
//   - Builtin catalog: github.com/sandrolain/gometl/pkg/builtin
//   - WebAssembly functions: github.com/sandrolain/gometl/pkg/wasmfn
//   - Types: github.com/sandrolain/gometl/pkg/types
package gometl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sandrolain/gometl/pkg/builtin"
	"github.com/sandrolain/gometl/pkg/config"
	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/functions"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
	"github.com/sandrolain/gometl/pkg/wasmfn"
)

// Version returns the current version of gometl.
func Version() string {
	return "v0.1.0-dev"
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
	// Debug enables debug logging.
	Debug bool
	// Types names the builtin types to configure. Ignored when Registry is set.
	Types []string
	// Registry is a prebuilt registry to use instead of builtin types.
	Registry *registry.Registry
	// AllCasts registers every builtin cast whose types are configured.
	AllCasts bool
	// Casts lists builtin casts as (from, to) type names.
	Casts [][2]string
	// Operators lists builtin operator groups.
	Operators []string
	// Functions holds extra table entries.
	Functions []functions.Entry
	// ImplicitCasts lets Call insert casts. Defaults to true.
	ImplicitCasts bool
	// FoldConstants folds all-constant calls.
	FoldConstants bool
	// CacheSize sets the resolution cache capacity.
	CacheSize int
	// Freeze makes the table read-only once the engine is built.
	Freeze bool
	// Wasm lists WebAssembly modules to load.
	Wasm []config.WasmModule
}

// EngineOption configures an Engine.
type EngineOption func(*EngineOptions)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(opts *EngineOptions) {
		opts.Logger = logger
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) EngineOption {
	return func(opts *EngineOptions) {
		opts.Debug = enabled
	}
}

// WithTypes selects builtin types by name, in tag order.
func WithTypes(names ...string) EngineOption {
	return func(opts *EngineOptions) {
		opts.Types = names
	}
}

// WithRegistry uses r instead of builtin types. Expressions handed to the
// engine must be built against r.
func WithRegistry(r *registry.Registry) EngineOption {
	return func(opts *EngineOptions) {
		opts.Registry = r
	}
}

// WithAllCasts registers every applicable builtin cast.
func WithAllCasts() EngineOption {
	return func(opts *EngineOptions) {
		opts.AllCasts = true
	}
}

// WithCast registers the builtin cast between two named types.
func WithCast(from, to string) EngineOption {
	return func(opts *EngineOptions) {
		opts.Casts = append(opts.Casts, [2]string{from, to})
	}
}

// WithOperators registers builtin operator groups.
func WithOperators(groups ...string) EngineOption {
	return func(opts *EngineOptions) {
		opts.Operators = append(opts.Operators, groups...)
	}
}

// WithFunctions registers extra casts, overloads or suffix operations.
func WithFunctions(entries ...functions.Entry) EngineOption {
	return func(opts *EngineOptions) {
		opts.Functions = append(opts.Functions, entries...)
	}
}

// WithImplicitCasts enables or disables cast insertion in Call.
func WithImplicitCasts(enabled bool) EngineOption {
	return func(opts *EngineOptions) {
		opts.ImplicitCasts = enabled
	}
}

// WithFoldConstants enables or disables folding of all-constant calls.
func WithFoldConstants(enabled bool) EngineOption {
	return func(opts *EngineOptions) {
		opts.FoldConstants = enabled
	}
}

// WithCacheSize sets the resolution cache capacity.
func WithCacheSize(size int) EngineOption {
	return func(opts *EngineOptions) {
		opts.CacheSize = size
	}
}

// WithFreeze makes the conversion table read-only once the engine is built.
func WithFreeze(enabled bool) EngineOption {
	return func(opts *EngineOptions) {
		opts.Freeze = enabled
	}
}

// WithWasm loads a WebAssembly module and registers its exports.
func WithWasm(m config.WasmModule) EngineOption {
	return func(opts *EngineOptions) {
		opts.Wasm = append(opts.Wasm, m)
	}
}

// Engine bundles a registry with the conversion table built over it.
// It is safe for concurrent use.
type Engine struct {
	id      uuid.UUID
	opts    EngineOptions
	logger  *slog.Logger
	reg     *registry.Registry
	table   *conversion.Table
	modules []*wasmfn.Module
}

// New builds an engine. Construction errors, such as an unknown type or
// an unusable WebAssembly module, prevent the engine from starting.
func New(ctx context.Context, opts ...EngineOption) (*Engine, error) {
	options := EngineOptions{
		ImplicitCasts: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	reg := options.Registry
	if reg == nil {
		var err error
		if reg, err = builtin.Registry(options.Types...); err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	logger := options.Logger.With("engine", id.String())
	table := conversion.New(reg,
		conversion.WithLogger(logger),
		conversion.WithDebug(options.Debug),
		conversion.WithImplicitCasts(options.ImplicitCasts),
		conversion.WithFoldConstants(options.FoldConstants),
		conversion.WithCacheSize(options.CacheSize),
	)

	e := &Engine{
		id:     id,
		opts:   options,
		logger: logger,
		reg:    reg,
		table:  table,
	}
	if err := e.setup(ctx); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	if options.Freeze {
		table.Freeze()
	}
	if options.Debug {
		logger.Debug("engine ready",
			"types", reg.Names(),
			"entries", table.Len(),
			"wasm_modules", len(e.modules))
	}
	return e, nil
}

func (e *Engine) setup(ctx context.Context) error {
	if e.opts.AllCasts {
		if _, err := functions.RegisterSupported(e.table, builtin.Casts()...); err != nil {
			return err
		}
	}
	for _, c := range e.opts.Casts {
		entry, ok := builtin.CastFor(c[0], c[1])
		if !ok {
			return types.Errorf(types.ErrCodeInvalidConfig, "no builtin cast %s -> %s", c[0], c[1])
		}
		if err := functions.RegisterAll(e.table, entry); err != nil {
			return err
		}
	}
	for _, name := range e.opts.Operators {
		group, ok := builtin.Group(name)
		if !ok {
			return types.Errorf(types.ErrCodeInvalidConfig, "unknown operator group %q (have %v)", name, builtin.GroupNames())
		}
		if _, err := functions.RegisterSupported(e.table, group...); err != nil {
			return err
		}
	}
	if err := functions.RegisterAll(e.table, e.opts.Functions...); err != nil {
		return err
	}
	for _, w := range e.opts.Wasm {
		m, err := wasmfn.LoadFile(ctx, e.reg, w.Path,
			wasmfn.WithLogger(e.logger),
			wasmfn.WithDebug(e.opts.Debug),
			wasmfn.WithName(w.Path),
			wasmfn.WithPrefix(w.Prefix),
			wasmfn.WithFunctions(w.Functions...),
		)
		if err != nil {
			return fmt.Errorf("wasm module %s: %w", w.Path, err)
		}
		e.modules = append(e.modules, m)
		if err := m.Register(e.table); err != nil {
			return fmt.Errorf("wasm module %s: %w", w.Path, err)
		}
	}
	return nil
}

// NewFromConfig builds an engine from a parsed configuration. Extra options
// are applied after the configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	base := []EngineOption{
		WithTypes(cfg.Types...),
		WithOperators(cfg.Operators...),
		WithImplicitCasts(cfg.Implicit()),
		WithFoldConstants(cfg.FoldConstants),
		WithCacheSize(cfg.CacheSize),
		WithFreeze(cfg.Freeze),
		WithDebug(cfg.Debug),
	}
	if cfg.AllCasts {
		base = append(base, WithAllCasts())
	}
	for _, c := range cfg.Casts {
		base = append(base, WithCast(c.From, c.To))
	}
	for _, w := range cfg.Wasm {
		base = append(base, WithWasm(w))
	}
	return New(ctx, append(base, opts...)...)
}

// MustNew is like New but panics if the engine cannot be built.
// It simplifies safe initialization of global variables.
func MustNew(opts ...EngineOption) *Engine {
	e, err := New(context.Background(), opts...)
	if err != nil {
		panic(fmt.Sprintf("gometl: New: %v", err))
	}
	return e
}

// ID returns the engine instance ID attached to its log records.
func (e *Engine) ID() uuid.UUID { return e.id }

// Registry returns the engine's type registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Table returns the engine's conversion table.
func (e *Engine) Table() *conversion.Table { return e.table }

// Constant wraps v as a constant expression. v's type must be configured.
func (e *Engine) Constant(v any) (expr.Erased, error) {
	return expr.ConstantOf(e.reg, v)
}

// Call resolves and applies the overload of name for args, inserting
// implicit casts when enabled.
func (e *Engine) Call(name string, args ...expr.Erased) (expr.Erased, error) {
	return e.table.ResolveCall(name, args...)
}

// Suffix applies the suffix operation specialized for x's type.
func (e *Engine) Suffix(suffix string, x expr.Erased) (expr.Erased, error) {
	return e.table.Suffix(suffix, x)
}

// Convert casts x to the type named to.
func (e *Engine) Convert(x expr.Erased, to string) (expr.Erased, error) {
	tag, ok := e.reg.Lookup(to)
	if !ok {
		return expr.Erased{}, types.Errorf(types.ErrCodeUnsupportedType, "type %q is not configured", to)
	}
	return e.table.Convert(x, tag)
}

// Output wraps x for extraction with EvaluateAs.
func (e *Engine) Output(x expr.Erased) conversion.Output {
	return conversion.NewOutput(x, e.table)
}

// Close releases loaded WebAssembly modules.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	for _, m := range e.modules {
		errs = append(errs, m.Close(ctx))
	}
	e.modules = nil
	return errors.Join(errs...)
}

// Evaluate extracts T from x and runs it.
func Evaluate[T any](x expr.Erased) (T, error) {
	t, err := expr.Get[T](x)
	if err != nil {
		var zero T
		return zero, err
	}
	return invoke(t)
}

// EvaluateAs is like Evaluate but casts x to T first when it holds another
// type and a cast is registered.
func EvaluateAs[T any](e *Engine, x expr.Erased) (T, error) {
	t, err := conversion.As[T](e.Output(x))
	if err != nil {
		var zero T
		return zero, err
	}
	return invoke(t)
}

// EvaluateValue runs x and returns its result boxed.
func EvaluateValue(x expr.Erased) (v any, err error) {
	if !x.IsValid() {
		return nil, types.NewError(types.ErrCodeInvalidExpression, "evaluate invalid expression")
	}
	defer recoverEngineError(&err)
	return x.Value(), nil
}

func invoke[T any](t expr.Typed[T]) (v T, err error) {
	defer recoverEngineError(&err)
	return t.Invoke(), nil
}

// recoverEngineError turns a *types.Error panic raised during evaluation,
// such as a WebAssembly trap, into an error. Other panics propagate.
func recoverEngineError(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(*types.Error); ok {
		*err = e
		return
	}
	panic(r)
}
