package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// fileOptions enables the Python features generated code commonly relies on.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// StarlarkRuntime loads generated code written in Starlark, a Python dialect.
//
// The namespace of every load starts from the Starlark universe plus
// "struct"; further modules are only reachable through load() and only if
// they are on the allow-list (see Modules). Python type annotations are
// blanked before parsing (see stripAnnotations).
//
// Module globals are frozen once the top level has run. An entry point that
// appends to a module-level list or writes to a module-level dict fails with
// "cannot append to frozen list" or "cannot insert into frozen hash table";
// state an invocation mutates has to be created inside the function.
type StarlarkRuntime struct {
	limits  Limits
	logger  *slog.Logger
	modules map[string]starlark.StringDict
}

// NewStarlarkRuntime creates a Starlark runtime with the default module allow-list.
func NewStarlarkRuntime(limits Limits, logger *slog.Logger) *StarlarkRuntime {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StarlarkRuntime{
		limits:  limits.withDefaults(),
		logger:  logger,
		modules: Modules(),
	}
}

// Language implements Runtime.
func (r *StarlarkRuntime) Language() string {
	return LangStarlark
}

// predeclared returns a fresh predeclared dict for one load.
func (r *StarlarkRuntime) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

// newThread creates a thread for one load or one call. Threads are never
// pooled: a thread carries cancellation and step state.
func (r *StarlarkRuntime) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			r.logger.Debug("generated code print", "thread", t.Name, "msg", msg)
		},
		Load: r.load,
	}
	thread.SetMaxExecutionSteps(r.limits.MaxSteps)
	return thread
}

// load resolves load() statements against the allow-list.
func (r *StarlarkRuntime) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	if m, ok := r.modules[module]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrModuleNotAllowed, module)
}

// Compile implements Runtime.
func (r *StarlarkRuntime) Compile(ctx context.Context, src Source, entry string) (Func, error) {
	thread := r.newThread("load:" + entry)

	var globals starlark.StringDict
	err := r.run(ctx, thread, func() error {
		var execErr error
		globals, execErr = starlark.ExecFileOptions(fileOptions, thread, src.filename(entry), stripAnnotations(src.Text()), r.predeclared())
		return execErr
	})
	if err != nil {
		return nil, r.classifyLoad(ctx, thread, entry, err)
	}

	v, ok := globals[entry]
	if !ok {
		return nil, newError(KindMissingEntryPoint, entry, nil, "The %s logic does not contain a member named '%s'", entry, entry)
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, newError(KindNotCallable, entry, nil, "The '%s' attribute must be an executable function, got %s", entry, v.Type())
	}
	if err := checkArity(fn); err != nil {
		return nil, newError(KindBadSignature, entry, nil, "The '%s' function must accept exactly one positional argument: %v", entry, err)
	}

	return &starlarkFunc{runtime: r, entry: entry, fn: fn}, nil
}

func (r *StarlarkRuntime) classifyLoad(ctx context.Context, thread *starlark.Thread, entry string, err error) *Error {
	var synErr syntax.Error
	var resErr resolve.ErrorList
	switch {
	case errors.As(err, &synErr), errors.As(err, &resErr):
		return newError(KindInvalidSyntax, entry, err, "Syntax error in the %s logic: %v", entry, err)
	case errors.Is(err, ErrModuleNotAllowed):
		return newError(KindModuleNotAllowed, entry, err, "The %s logic loads a module that is not allowed: %v", entry, err)
	}
	if lim := r.limitError(ctx, thread, entry, err); lim != nil {
		return lim
	}
	return newError(KindModuleInit, entry, err, "Executing the top level of the %s logic failed: %v", entry, err)
}

// limitError reports a timeout or step exhaustion, or nil if neither applies.
func (r *StarlarkRuntime) limitError(ctx context.Context, thread *starlark.Thread, entry string, err error) *Error {
	if ctx.Err() != nil {
		return newError(KindTimeout, entry, err, "The '%s' logic did not finish in time: %v", entry, ctx.Err())
	}
	if thread.ExecutionSteps() >= r.limits.MaxSteps {
		return newError(KindStepLimit, entry, err, "The '%s' logic exceeded the limit of %d execution steps", entry, r.limits.MaxSteps)
	}
	return nil
}

// run executes fn on the calling goroutine and cancels the thread if ctx is
// done first. The watcher goroutine always exits before run returns.
func (r *StarlarkRuntime) run(ctx context.Context, thread *starlark.Thread, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	err := fn()
	close(done)
	<-stopped
	return err
}

type starlarkFunc struct {
	runtime *StarlarkRuntime
	entry   string
	fn      starlark.Callable
}

// Call implements Func.
func (f *starlarkFunc) Call(ctx context.Context, arg string) (any, error) {
	thread := f.runtime.newThread("call:" + f.entry)

	var result starlark.Value
	err := f.runtime.run(ctx, thread, func() error {
		var callErr error
		result, callErr = starlark.Call(thread, f.fn, starlark.Tuple{starlark.String(arg)}, nil)
		return callErr
	})
	if err != nil {
		if lim := f.runtime.limitError(ctx, thread, f.entry, err); lim != nil {
			return nil, lim
		}
		return nil, newError(KindInvocation, f.entry, err, "%s", invocationMessage(err))
	}

	out, err := ToGo(result)
	if err != nil {
		return nil, newError(KindInvocation, f.entry, err, "The '%s' logic returned a value that cannot be represented: %v", f.entry, err)
	}
	return out, nil
}

// invocationMessage returns the error message with the Starlark backtrace,
// which points the next generation round at the failing line.
func invocationMessage(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}

// checkArity verifies fn can be called with a single positional argument.
// Builtins are accepted as-is.
func checkArity(c starlark.Callable) error {
	fn, ok := c.(*starlark.Function)
	if !ok {
		return nil
	}

	extra := 0
	if fn.HasVarargs() {
		extra++
	}
	if fn.HasKwargs() {
		extra++
	}
	positional := fn.NumParams() - fn.NumKwonlyParams() - extra

	required := 0
	for i := 0; i < positional; i++ {
		if fn.ParamDefault(i) == nil {
			required++
		}
	}
	for i := positional; i < positional+fn.NumKwonlyParams(); i++ {
		if fn.ParamDefault(i) == nil {
			name, _ := fn.Param(i)
			return fmt.Errorf("keyword-only parameter %q has no default", name)
		}
	}

	switch {
	case required > 1:
		return fmt.Errorf("%d required parameters", required)
	case positional == 0 && !fn.HasVarargs():
		return fmt.Errorf("no parameters")
	}
	return nil
}
