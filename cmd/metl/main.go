// Command metl inspects a gometl engine configuration and evaluates calls
// against it.
//
//	metl [flags] types
//	metl [flags] casts
//	metl [flags] calls
//	metl [flags] call <name> <literal>...
//	metl [flags] convert <type> <literal>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/sandrolain/gometl"
	"github.com/sandrolain/gometl/pkg/config"
	"github.com/sandrolain/gometl/pkg/expr"
	"github.com/sandrolain/gometl/pkg/mangle"
)

const usage = `usage: metl [flags] <command> [args]

Commands:
  types                      list configured types and their tags
  casts                      list registered casts
  calls                      list registered call overloads
  call <name> <literal>...   resolve and evaluate a call
  convert <type> <literal>   cast a literal to a type

Flags:
`

// errUsage marks command errors caused by malformed arguments.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("metl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath string
		logLevel   string
		debug      bool
		version    bool
	)
	fs.StringVar(&configPath, "config", "", "Path to gometl.yaml (default: search from the working directory)")
	fs.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging of registrations and resolutions")
	fs.BoolVar(&version, "version", false, "Display version information and exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if version {
		fmt.Fprintf(stdout, "metl %s\n", gometl.Version())
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level := logLevelFromString(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	logger := newLogger(stderr, level)

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "metl: %v\n", err)
		return 1
	}
	eng, err := gometl.NewFromConfig(ctx, cfg,
		gometl.WithLogger(logger),
		gometl.WithDebug(debug || cfg.Debug),
	)
	if err != nil {
		fmt.Fprintf(stderr, "metl: %v\n", err)
		return 1
	}
	defer eng.Close(ctx)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "types":
		err = listTypes(eng, stdout)
	case "casts":
		err = listSignatures(eng, mangle.KindCast, stdout)
	case "calls":
		err = listSignatures(eng, mangle.KindCall, stdout)
	case "call":
		err = call(eng, rest, stdout)
	case "convert":
		err = convert(eng, rest, stdout)
	default:
		fmt.Fprintf(stderr, "metl: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "metl: %s: %v\n", cmd, err)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "metl: %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

// newLogger writes text records to terminals and JSON records otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func logLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.Default(), nil
		}
		path = found
	}
	return config.LoadConfig(path)
}

func listTypes(eng *gometl.Engine, w io.Writer) error {
	r := eng.Registry()
	for _, tag := range r.Tags() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", tag, r.Name(tag), r.GoType(tag))
	}
	return nil
}

func listSignatures(eng *gometl.Engine, kind mangle.Kind, w io.Writer) error {
	r := eng.Registry()
	var lines []string
	for _, sig := range eng.Table().Signatures(kind) {
		names := make([]string, len(sig.Tags))
		for i, tag := range sig.Tags {
			names[i] = r.Name(tag)
		}
		if kind == mangle.KindCast {
			lines = append(lines, names[0]+" -> "+names[1])
		} else {
			lines = append(lines, sig.Name+"("+strings.Join(names, ", ")+")")
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}

func call(eng *gometl.Engine, args []string, w io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: call needs a function name", errUsage)
	}
	operands, err := parseLiterals(eng, args[1:])
	if err != nil {
		return err
	}
	out, err := eng.Call(args[0], operands...)
	if err != nil {
		return err
	}
	return printResult(eng, out, w)
}

func convert(eng *gometl.Engine, args []string, w io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: convert needs a type and a literal, got %d argument(s)", errUsage, len(args))
	}
	operands, err := parseLiterals(eng, args[1:])
	if err != nil {
		return err
	}
	out, err := eng.Convert(operands[0], args[0])
	if err != nil {
		return err
	}
	return printResult(eng, out, w)
}

func parseLiterals(eng *gometl.Engine, literals []string) ([]expr.Erased, error) {
	out := make([]expr.Erased, len(literals))
	for i, l := range literals {
		e, err := eng.ParseLiteral(l)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// printResult renders e with its "print" suffix when one is registered.
func printResult(eng *gometl.Engine, e expr.Erased, w io.Writer) error {
	if s, err := eng.Suffix("print", e); err == nil {
		e = s
	}
	v, err := gometl.EvaluateValue(e)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", v)
	return nil
}
