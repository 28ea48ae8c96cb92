// Package wasmfn binds functions exported by a WebAssembly module as call
// overloads of a conversion table.
//
// Every export whose parameters and single result are numeric WebAssembly
// values (i32, i64, f32, f64) is mapped onto configured registry types:
//
//	i32  int32, else int, else bool
//	i64  int64, else int
//	f32  float32, else float64
//	f64  float64
//
// Calls with only constant arguments run eagerly when the overload is
// applied, so traps surface as errors. Calls with dynamic arguments run on
// every evaluation; a trap there panics with a *types.Error (W5002).
//
//	m, err := wasmfn.LoadFile(ctx, reg, "ops.wasm", wasmfn.WithPrefix("wasm."))
//	defer m.Close(ctx)
//	err = m.Register(table)
package wasmfn

import (
	"context"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/gometl/pkg/conversion"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/registry"
	"github.com/sandrolain/gometl/pkg/types"
)

// Options configures module loading.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
	// Debug enables debug logging of skipped exports.
	Debug bool
	// Name is the module instance name inside the runtime.
	Name string
	// Prefix is prepended to export names to form call names.
	Prefix string
	// Functions restricts binding to the listed exports. Listed exports
	// that are missing or have unsupported signatures are errors.
	Functions []string
}

// Option configures module loading.
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

// WithName sets the module instance name.
func WithName(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

// WithPrefix sets the call-name prefix.
func WithPrefix(prefix string) Option {
	return func(opts *Options) {
		opts.Prefix = prefix
	}
}

// WithFunctions restricts binding to the named exports.
func WithFunctions(names ...string) Option {
	return func(opts *Options) {
		opts.Functions = append(opts.Functions, names...)
	}
}

// Export describes a bound export.
type Export struct {
	// Name is the export name in the module.
	Name string
	// Call is the overload name: the prefix followed by Name.
	Call   string
	Params []registry.Tag
	Result registry.Tag
}

type codec struct {
	rtype  reflect.Type
	encode func(v any) uint64
	decode func(raw uint64) any
}

var codecs = map[api.ValueType][]codec{
	api.ValueTypeI32: {
		{reflect.TypeOf((*int32)(nil)).Elem(), func(v any) uint64 { return api.EncodeI32(v.(int32)) }, func(raw uint64) any { return api.DecodeI32(raw) }},
		{reflect.TypeOf((*int)(nil)).Elem(), func(v any) uint64 { return api.EncodeI32(int32(v.(int))) }, func(raw uint64) any { return int(api.DecodeI32(raw)) }},
		{reflect.TypeOf((*bool)(nil)).Elem(), encodeBool, func(raw uint64) any { return uint32(raw) != 0 }},
	},
	api.ValueTypeI64: {
		{reflect.TypeOf((*int64)(nil)).Elem(), func(v any) uint64 { return api.EncodeI64(v.(int64)) }, func(raw uint64) any { return int64(raw) }},
		{reflect.TypeOf((*int)(nil)).Elem(), func(v any) uint64 { return api.EncodeI64(int64(v.(int))) }, func(raw uint64) any { return int(int64(raw)) }},
	},
	api.ValueTypeF32: {
		{reflect.TypeOf((*float32)(nil)).Elem(), func(v any) uint64 { return api.EncodeF32(v.(float32)) }, func(raw uint64) any { return api.DecodeF32(raw) }},
		{reflect.TypeOf((*float64)(nil)).Elem(), func(v any) uint64 { return api.EncodeF32(float32(v.(float64))) }, func(raw uint64) any { return float64(api.DecodeF32(raw)) }},
	},
	api.ValueTypeF64: {
		{reflect.TypeOf((*float64)(nil)).Elem(), func(v any) uint64 { return api.EncodeF64(v.(float64)) }, func(raw uint64) any { return api.DecodeF64(raw) }},
	},
}

func encodeBool(v any) uint64 {
	if v.(bool) {
		return 1
	}
	return 0
}

type binding struct {
	export Export
	fn     api.Function
	params []codec
	result codec
}

// Module is an instantiated WebAssembly module with its bound exports.
// Calls are serialized.
type Module struct {
	reg      *registry.Registry
	opts     Options
	logger   *slog.Logger
	runtime  wazero.Runtime
	mod      api.Module
	mu       sync.Mutex
	closed   bool
	bindings map[string]*binding
	exports  []Export
}

// LoadFile reads and loads the module at path.
func LoadFile(ctx context.Context, r *registry.Registry, path string, opts ...Option) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Errorf(types.ErrCodeWasmModule, "reading %s", path).WithCause(err)
	}
	return Load(ctx, r, data, opts...)
}

// Load compiles and instantiates a WebAssembly binary and binds its exports
// to types configured in r.
func Load(ctx context.Context, r *registry.Registry, wasm []byte, opts ...Option) (*Module, error) {
	if r == nil {
		return nil, types.NewError(types.ErrCodeWasmModule, "nil registry")
	}
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	rt := wazero.NewRuntime(ctx)
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, types.NewError(types.ErrCodeWasmModule, "compile module").WithCause(err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(options.Name))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, types.NewError(types.ErrCodeWasmModule, "instantiate module").WithCause(err)
	}

	m := &Module{
		reg:      r,
		opts:     options,
		logger:   options.Logger,
		runtime:  rt,
		mod:      mod,
		bindings: make(map[string]*binding),
	}
	if err := m.bind(compiled.ExportedFunctions()); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Module) bind(defs map[string]api.FunctionDefinition) error {
	wanted := make(map[string]bool, len(m.opts.Functions))
	for _, name := range m.opts.Functions {
		if _, ok := defs[name]; !ok {
			return types.Errorf(types.ErrCodeWasmModule, "module does not export function %q", name)
		}
		wanted[name] = true
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		b, err := m.binding(name, defs[name])
		if err != nil {
			if len(wanted) > 0 {
				return err
			}
			if m.opts.Debug {
				m.logger.Debug("skipping wasm export", "name", name, "error", err)
			}
			continue
		}
		m.bindings[name] = b
		m.exports = append(m.exports, b.export)
	}
	return nil
}

func (m *Module) binding(name string, def api.FunctionDefinition) (*binding, error) {
	results := def.ResultTypes()
	if len(results) != 1 {
		return nil, types.Errorf(types.ErrCodeWasmModule, "export %q returns %d values, want 1", name, len(results))
	}
	b := &binding{
		export: Export{Name: name, Call: m.opts.Prefix + name},
		fn:     m.mod.ExportedFunction(name),
	}
	for _, vt := range def.ParamTypes() {
		c, tag, err := m.pick(name, vt)
		if err != nil {
			return nil, err
		}
		b.params = append(b.params, c)
		b.export.Params = append(b.export.Params, tag)
	}
	c, tag, err := m.pick(name, results[0])
	if err != nil {
		return nil, err
	}
	b.result, b.export.Result = c, tag
	return b, nil
}

// pick returns the first codec for vt whose Go type is configured.
func (m *Module) pick(name string, vt api.ValueType) (codec, registry.Tag, error) {
	for _, c := range codecs[vt] {
		if tag, err := m.reg.TagOfType(c.rtype); err == nil {
			return c, tag, nil
		}
	}
	return codec{}, 0, types.Errorf(types.ErrCodeWasmModule, "export %q uses %s, which maps to no configured type", name, api.ValueTypeName(vt))
}

// Exports returns the bound exports sorted by name.
func (m *Module) Exports() []Export {
	return append([]Export(nil), m.exports...)
}

// Register adds every bound export to t as a call overload. t must use the
// registry the module was loaded against.
func (m *Module) Register(t *conversion.Table) error {
	if t.Registry() != m.reg {
		return types.NewError(types.ErrCodeInvalidExpression, "table was built against another registry")
	}
	for _, e := range m.exports {
		if err := t.RegisterCall(e.Call, e.Params, m.overload(m.bindings[e.Name])); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) overload(b *binding) conversion.Func {
	return func(args ...expr.Erased) (expr.Erased, error) {
		if len(args) != len(b.params) {
			return expr.Erased{}, types.Errorf(types.ErrCodeArgumentCount, "%s expects %d argument(s), got %d", b.export.Call, len(b.params), len(args))
		}
		cats := make([]expr.Category, len(args))
		for i, a := range args {
			if a.Type() != b.export.Params[i] {
				return expr.Erased{}, types.Errorf(types.ErrCodeTypeMismatch, "%s argument %d is %s, want %s", b.export.Call, i, a.TypeName(), m.reg.Name(b.export.Params[i]))
			}
			cats[i] = a.Category()
		}
		call := func() (any, error) {
			vals := make([]any, len(args))
			for i, a := range args {
				vals[i] = a.Value()
			}
			return m.invoke(context.Background(), b, vals)
		}

		// A nullary export may read module state, so it is never constant.
		if len(args) > 0 && expr.Join(cats...) == expr.Constant {
			v, err := call()
			if err != nil {
				return expr.Erased{}, err
			}
			return expr.ConstantOf(m.reg, v)
		}
		return expr.DynamicOf(m.reg, b.export.Result, func() any {
			v, err := call()
			if err != nil {
				panic(err)
			}
			return v
		})
	}
}

// Call invokes the export name directly with Go values of the bound types.
func (m *Module) Call(ctx context.Context, name string, args ...any) (any, error) {
	b, ok := m.bindings[name]
	if !ok {
		return nil, types.Errorf(types.ErrCodeWasmCall, "no bound export %q", name)
	}
	if len(args) != len(b.params) {
		return nil, types.Errorf(types.ErrCodeArgumentCount, "%s expects %d argument(s), got %d", name, len(b.params), len(args))
	}
	for i, a := range args {
		if reflect.TypeOf(a) != b.params[i].rtype {
			return nil, types.Errorf(types.ErrCodeTypeMismatch, "%s argument %d is %T, want %s", name, i, a, b.params[i].rtype)
		}
	}
	return m.invoke(ctx, b, args)
}

func (m *Module) invoke(ctx context.Context, b *binding, vals []any) (any, error) {
	raw := make([]uint64, len(vals))
	for i, v := range vals {
		raw[i] = b.params[i].encode(v)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, types.Errorf(types.ErrCodeWasmCall, "%s: module is closed", b.export.Name)
	}
	res, err := b.fn.Call(ctx, raw...)
	if err != nil {
		return nil, types.Errorf(types.ErrCodeWasmCall, "%s: call failed", b.export.Name).WithCause(err)
	}
	if len(res) != 1 {
		return nil, types.Errorf(types.ErrCodeWasmCall, "%s returned %d values", b.export.Name, len(res))
	}
	return b.result.decode(res[0]), nil
}

// Close releases the runtime. Later calls fail with a WasmCall error.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.runtime.Close(ctx)
}
