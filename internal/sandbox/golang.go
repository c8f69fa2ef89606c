package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/parser"
	gotoken "go/token"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// GoImports is the set of standard library packages generated Go code may import.
var GoImports = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"fmt",
	"math",
	"net",
	"net/netip",
	"net/url",
	"path",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
}

// GoRuntime loads generated code written in Go and runs it with the yaegi
// interpreter. Only the packages in GoImports are visible to the code.
type GoRuntime struct {
	logger  *slog.Logger
	allowed map[string]bool
	symbols interp.Exports
}

// NewGoRuntime creates a Go runtime restricted to GoImports.
func NewGoRuntime(logger *slog.Logger) *GoRuntime {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	allowed := make(map[string]bool, len(GoImports))
	for _, p := range GoImports {
		allowed[p] = true
	}

	// stdlib.Symbols is keyed "import/path/pkgname".
	symbols := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		idx := strings.LastIndex(key, "/")
		if idx < 0 {
			continue
		}
		if allowed[key[:idx]] {
			symbols[key] = syms
		}
	}

	return &GoRuntime{logger: logger, allowed: allowed, symbols: symbols}
}

// Language implements Runtime.
func (r *GoRuntime) Language() string {
	return LangGo
}

// Compile implements Runtime.
func (r *GoRuntime) Compile(ctx context.Context, src Source, entry string) (Func, error) {
	text := src.Text()
	if !hasPackageClause(text) {
		text = "package main\n\n" + text
	}

	if err := r.checkImports(src.filename(entry), text); err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.Entry = entry
			return nil, se
		}
		return nil, newError(KindInvalidSyntax, entry, err, "Syntax error in the %s logic: %v", entry, err)
	}

	out := &logWriter{logger: r.logger, entry: entry}
	i := interp.New(interp.Options{Stdout: out, Stderr: out})
	if err := i.Use(r.symbols); err != nil {
		return nil, fmt.Errorf("failed to register interpreter symbols: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, text); err != nil {
		var p interp.Panic
		switch {
		case ctx.Err() != nil:
			return nil, newError(KindTimeout, entry, err, "The '%s' logic did not finish in time: %v", entry, ctx.Err())
		case errors.As(err, &p):
			return nil, newError(KindModuleInit, entry, err, "Executing the top level of the %s logic failed: %v", entry, p.Value)
		}
		return nil, newError(KindInvalidSyntax, entry, err, "Syntax error in the %s logic: %v", entry, err)
	}

	v, ok := lookupEntry(i, entry)
	if !ok {
		return nil, newError(KindMissingEntryPoint, entry, nil, "The %s logic does not contain a member named '%s'", entry, entry)
	}
	if v.Kind() != reflect.Func {
		return nil, newError(KindNotCallable, entry, nil, "The '%s' attribute must be an executable function, got %s", entry, v.Type())
	}
	if err := checkGoSignature(v.Type()); err != nil {
		return nil, newError(KindBadSignature, entry, nil, "The '%s' function must have the signature func(string) (T, error): %v", entry, err)
	}

	return &goFunc{entry: entry, fn: v}, nil
}

func hasPackageClause(text string) bool {
	fset := gotoken.NewFileSet()
	f, err := parser.ParseFile(fset, "", text, parser.PackageClauseOnly)
	return err == nil && f.Name != nil
}

// checkImports rejects imports outside the allow-list before the interpreter
// sees the code.
func (r *GoRuntime) checkImports(filename, text string) error {
	fset := gotoken.NewFileSet()
	f, err := parser.ParseFile(fset, filename, text, parser.ImportsOnly)
	if err != nil {
		return err
	}

	var forbidden []string
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return err
		}
		if !r.allowed[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) == 0 {
		return nil
	}
	sort.Strings(forbidden)
	return newError(KindModuleNotAllowed, "", ErrModuleNotAllowed,
		"The logic imports packages that are not allowed: %s (allowed: %s)",
		strings.Join(forbidden, ", "), strings.Join(GoImports, ", "))
}

// lookupEntry resolves entry as written, then in exported form, so both
// "extract" and "Extract" satisfy an entry point named extract.
func lookupEntry(i *interp.Interpreter, entry string) (reflect.Value, bool) {
	for _, name := range []string{entry, exported(entry)} {
		v, err := i.Eval("main." + name)
		if err == nil && v.IsValid() {
			return v, true
		}
	}
	return reflect.Value{}, false
}

func exported(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func checkGoSignature(t reflect.Type) error {
	switch {
	case t.NumIn() != 1:
		return fmt.Errorf("takes %d parameters", t.NumIn())
	case t.In(0).Kind() != reflect.String:
		return fmt.Errorf("parameter is %s, not string", t.In(0))
	case t.NumOut() == 0 || t.NumOut() > 2:
		return fmt.Errorf("returns %d values", t.NumOut())
	case t.NumOut() == 2 && !t.Out(1).Implements(errorType):
		return fmt.Errorf("second result is %s, not error", t.Out(1))
	}
	return nil
}

type goFunc struct {
	entry string
	fn    reflect.Value
}

type goResult struct {
	out []reflect.Value
	err error
}

// Call implements Func. Interpreted Go cannot be preempted, so on timeout the
// call is abandoned and its goroutine finishes in the background.
func (f *goFunc) Call(ctx context.Context, arg string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindTimeout, f.entry, err, "The '%s' logic did not finish in time: %v", f.entry, err)
	}

	done := make(chan goResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- goResult{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		done <- goResult{out: f.fn.Call([]reflect.Value{reflect.ValueOf(arg)})}
	}()

	select {
	case <-ctx.Done():
		return nil, newError(KindTimeout, f.entry, ctx.Err(), "The '%s' logic did not finish in time: %v", f.entry, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, newError(KindInvocation, f.entry, res.err, "%v", res.err)
		}
		if len(res.out) == 2 && !res.out[1].IsNil() {
			err, _ := res.out[1].Interface().(error)
			return nil, newError(KindInvocation, f.entry, err, "%v", err)
		}
		out, err := normalizeGo(res.out[0].Interface())
		if err != nil {
			return nil, newError(KindInvocation, f.entry, err, "The '%s' logic returned a value that cannot be represented: %v", f.entry, err)
		}
		return out, nil
	}
}

// logWriter forwards interpreter output to the logger one line at a time.
type logWriter struct {
	logger *slog.Logger
	entry  string

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.logger.Debug("generated code print", "entry", w.entry, "msg", strings.TrimSuffix(line, "\n"))
	}
}
