// Package sandbox turns generated source text into invocable units and runs
// them against a single input.
//
// Loading is compile-then-bind: the preamble and body are joined, executed in
// a fresh interpreter namespace, and the required entry point is looked up and
// checked for a one-argument call signature. Every failure is an *Error with a
// distinct Kind. Invocation is bounded by a wall-clock timeout and, for
// Starlark, an execution step budget.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Languages supported by the default loader.
const (
	LangStarlark = "starlark"
	LangGo       = "go"
)

// Default execution limits.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxSteps = 10_000_000
)

// Source is the text of one generated unit section.
type Source struct {
	Language string // "starlark" (default) or "go"
	Filename string // used in error positions
	Preamble string // dependency setup: loads or imports
	Body     string // generated functions
}

// Text joins preamble and body with a blank line between them so the last
// preamble token can never fuse with the first body token.
func (s Source) Text() string {
	return s.Preamble + "\n\n" + s.Body
}

func (s Source) filename(entry string) string {
	if s.Filename != "" {
		return s.Filename
	}
	return entry
}

// Limits bound a single invocation.
type Limits struct {
	Timeout  time.Duration
	MaxSteps uint64
}

func (l Limits) withDefaults() Limits {
	if l.Timeout <= 0 {
		l.Timeout = DefaultTimeout
	}
	if l.MaxSteps == 0 {
		l.MaxSteps = DefaultMaxSteps
	}
	return l
}

// Func is a bound entry point produced by a Runtime.
type Func interface {
	// Call invokes the entry point once with a single string argument and
	// returns its result converted to plain Go values.
	Call(ctx context.Context, arg string) (any, error)
}

// Runtime compiles source text in one language.
type Runtime interface {
	Language() string
	Compile(ctx context.Context, src Source, entry string) (Func, error)
}

// Loader resolves the runtime for a source and loads entry points from it.
type Loader struct {
	runtimes    map[string]Runtime
	defaultLang string
	limits      Limits
	logger      *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLimits sets the execution limits applied to every invocation.
func WithLimits(l Limits) Option {
	return func(ld *Loader) {
		ld.limits = l.withDefaults()
	}
}

// WithLogger sets the logger used for interpreter output and diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(ld *Loader) {
		if logger != nil {
			ld.logger = logger
		}
	}
}

// WithDefaultLanguage sets the language used when a Source leaves it empty.
func WithDefaultLanguage(lang string) Option {
	return func(ld *Loader) {
		if lang != "" {
			ld.defaultLang = lang
		}
	}
}

// WithRuntime registers an additional runtime, replacing any runtime with the
// same language name.
func WithRuntime(rt Runtime) Option {
	return func(ld *Loader) {
		ld.runtimes[rt.Language()] = rt
	}
}

// NewLoader creates a loader with the Starlark and Go runtimes registered.
func NewLoader(opts ...Option) *Loader {
	ld := &Loader{
		runtimes:    make(map[string]Runtime),
		defaultLang: LangStarlark,
		limits:      Limits{}.withDefaults(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(ld)
	}
	if _, ok := ld.runtimes[LangStarlark]; !ok {
		ld.runtimes[LangStarlark] = NewStarlarkRuntime(ld.limits, ld.logger)
	}
	if _, ok := ld.runtimes[LangGo]; !ok {
		ld.runtimes[LangGo] = NewGoRuntime(ld.logger)
	}
	return ld
}

// Languages lists the registered runtime names.
func (ld *Loader) Languages() []string {
	names := make([]string, 0, len(ld.runtimes))
	for name := range ld.runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load compiles src in a fresh namespace and binds the named entry point.
// Each call is independent; nothing is cached between loads.
func (ld *Loader) Load(ctx context.Context, src Source, entry string) (*Unit, error) {
	lang := strings.ToLower(strings.TrimSpace(src.Language))
	if lang == "" {
		lang = ld.defaultLang
	}
	rt, ok := ld.runtimes[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q (supported: %s)", src.Language, strings.Join(ld.Languages(), ", "))
	}

	// Top-level code can loop too, so loading is bounded like an invocation.
	ctx, cancel := context.WithTimeout(ctx, ld.limits.Timeout)
	defer cancel()

	fn, err := rt.Compile(ctx, src, entry)
	if err != nil {
		return nil, err
	}

	ld.logger.Debug("loaded generated unit", "language", lang, "entry", entry)
	return &Unit{
		Entry:    entry,
		Language: lang,
		fn:       fn,
		limits:   ld.limits,
	}, nil
}
