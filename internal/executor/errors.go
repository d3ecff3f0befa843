package executor

import (
	"errors"
	"fmt"

	"github.com/vk/modanalysis/internal/module"
)

// Kind classifies why a module execution failed.
type Kind string

const (
	KindLoadFailure       Kind = "load failure"
	KindContractViolation Kind = "contract violation"
	KindEngineFailure     Kind = "engine failure"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrLoadFailure       = errors.New("load failure")
	ErrContractViolation = errors.New("contract violation")
	ErrEngineFailure     = errors.New("engine failure")
)

// Error is a failed module execution.
type Error struct {
	Module string
	Kind   Kind
	Unit   module.Unit
	Err    error
}

func (e *Error) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("module %q: %s in %s unit: %s", e.Module, e.Kind, e.Unit, e.Message())
	}
	return fmt.Sprintf("module %q: %s: %s", e.Module, e.Kind, e.Message())
}

// Message returns the underlying error text without the module prefix. For
// engine failures this is the message raised by the module code.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrLoadFailure:
		return e.Kind == KindLoadFailure
	case ErrContractViolation:
		return e.Kind == KindContractViolation
	case ErrEngineFailure:
		return e.Kind == KindEngineFailure
	}
	return false
}
