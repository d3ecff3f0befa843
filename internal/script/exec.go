// Package script loads the model and engine units of a module. Both are
// Starlark files; every load executes the file on a fresh thread with a
// freshly built set of predeclared names, and the resulting globals are
// frozen, so two loads never share mutable state.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vk/modanalysis/internal/ctxlog"
	starmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

const contextKey = "modanalysis.context"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// newThread returns a thread whose print output goes to the context logger.
// Threads have no load handler, so units cannot pull in other files.
func newThread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			ctxlog.FromContext(ctx).Info("Module output.", "thread", t.Name, "message", msg)
		},
	}
	thread.SetLocal(contextKey, ctx)
	return thread
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// predeclared builds the names every unit can see without defining them.
func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"stats":  newStatsModule(),
		"math":   starmath.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

// execUnit runs the unit at path and returns its frozen globals.
func execUnit(ctx context.Context, name, path string) (starlark.StringDict, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit: %w", err)
	}

	thread := newThread(ctx, name)
	globals, err := starlark.ExecFileOptions(fileOptions, thread, path, src, predeclared())
	if err != nil {
		return nil, newModuleError(name, err)
	}
	return globals, nil
}

// call invokes fn on a new thread and converts any failure into a
// *ModuleError.
func call(ctx context.Context, fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	thread := newThread(ctx, fn.Name())
	v, err := starlark.Call(thread, fn, starlark.Tuple(args), nil)
	if err != nil {
		return nil, newModuleError(fn.Name(), err)
	}
	return v, nil
}

// ModuleError is an error raised by module code, either while its file was
// executed or while one of its functions ran.
type ModuleError struct {
	Function  string
	Msg       string
	Backtrace string
	Err       error
}

// Error returns the message exactly as the module raised it.
func (e *ModuleError) Error() string { return e.Msg }

func (e *ModuleError) Unwrap() error { return e.Err }

func newModuleError(function string, err error) *ModuleError {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return &ModuleError{
			Function:  function,
			Msg:       strings.TrimPrefix(evalErr.Msg, "fail: "),
			Backtrace: evalErr.Backtrace(),
			Err:       err,
		}
	}
	return &ModuleError{Function: function, Msg: err.Error(), Err: err}
}
