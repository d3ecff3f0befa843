// Package executor runs a single analysis module against a dataset: it loads
// the module's units fresh from disk, checks the engine's entry point,
// enforces the model's input preconditions, invokes the engine and shapes
// its output into a result mapping tagged with the module's identity.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/dataset"
	"github.com/vk/modanalysis/internal/module"
)

// Result keys with a fixed meaning.
const (
	KeyModuleName        = "module_name"
	KeyModuleDescription = "module_description"
	KeyResult            = "result"
	KeyError             = "error"
)

// Result is the output of one successful module execution.
type Result map[string]any

// Executor executes modules. It keeps no state between executions.
type Executor struct {
	loader contract.Loader
}

// New creates an Executor that loads units with l.
func New(l contract.Loader) *Executor {
	return &Executor{loader: l}
}

// Execute runs the module described by desc against ds. Failures are
// returned as *Error; no partial result is ever returned alongside one.
func (e *Executor) Execute(ctx context.Context, desc *module.Descriptor, ds *dataset.Dataset) (Result, error) {
	ctx = ctxlog.With(ctx, "module", desc.Name)
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Running module")
	start := time.Now()

	loaded, err := contract.Load(ctx, e.loader, desc)
	if err != nil {
		return nil, loadError(desc.Name, err)
	}

	analyze, ok := loaded.Engine.Analyzer()
	if !ok {
		return nil, &Error{
			Module: desc.Name,
			Kind:   KindContractViolation,
			Unit:   module.UnitEngine,
			Err:    fmt.Errorf("engine unit does not define %s", contract.EntryPoint),
		}
	}

	if err := checkPreconditions(ctx, desc.Name, loaded.Model, ds); err != nil {
		return nil, err
	}

	raw, err := analyze(ctx, ds, loaded.Model, loaded.Config)
	if err != nil {
		return nil, &Error{Module: desc.Name, Kind: KindEngineFailure, Unit: module.UnitEngine, Err: err}
	}

	result := normalize(raw)

	valid, checked, err := loaded.Model.ValidateOutput(ctx, result)
	switch {
	case err != nil:
		return nil, &Error{Module: desc.Name, Kind: KindEngineFailure, Unit: module.UnitModel, Err: fmt.Errorf("%s: %w", contract.HookValidateOutput, err)}
	case !checked:
		logger.Debug("Model declares no output validation, skipping.")
	case !valid:
		return nil, &Error{
			Module: desc.Name,
			Kind:   KindContractViolation,
			Unit:   module.UnitModel,
			Err:    fmt.Errorf("result rejected by %s", contract.HookValidateOutput),
		}
	}

	result[KeyModuleName] = desc.Name
	result[KeyModuleDescription] = desc.Description

	logger.Info("✅ Module finished", "duration", time.Since(start), "keys", len(result))
	return result, nil
}

// checkPreconditions rejects inputs the model refuses: validate_input must
// accept the dataset and prepare_data must leave at least one row.
func checkPreconditions(ctx context.Context, name string, model contract.Model, ds *dataset.Dataset) error {
	ok, err := model.ValidateInput(ctx, ds)
	if err != nil {
		return hookError(name, contract.HookValidateInput, err)
	}
	if !ok {
		return &Error{Module: name, Kind: KindEngineFailure, Unit: module.UnitModel, Err: fmt.Errorf("input validation failed: %s rejected a dataset with %d rows and columns [%s]", contract.HookValidateInput, ds.Len(), strings.Join(ds.Columns(), ", "))}
	}

	prepared, err := model.PrepareData(ctx, ds)
	if err != nil {
		return hookError(name, contract.HookPrepareData, err)
	}
	if prepared == nil || prepared.IsEmpty() {
		return &Error{Module: name, Kind: KindEngineFailure, Unit: module.UnitModel, Err: fmt.Errorf("no valid data after preparation: %s kept 0 of %d rows", contract.HookPrepareData, ds.Len())}
	}
	return nil
}

func hookError(name, hook string, err error) *Error {
	kind := KindEngineFailure
	var memberErr *contract.MemberError
	if errors.As(err, &memberErr) {
		kind = KindContractViolation
	}
	return &Error{Module: name, Kind: kind, Unit: module.UnitModel, Err: fmt.Errorf("%s: %w", hook, err)}
}

func loadError(name string, err error) *Error {
	out := &Error{Module: name, Kind: KindLoadFailure, Err: err}
	var loadErr *contract.LoadError
	if errors.As(err, &loadErr) {
		out.Unit = loadErr.Unit
	}
	var memberErr *contract.MemberError
	if errors.As(err, &memberErr) {
		out.Kind = KindContractViolation
	}
	return out
}

// normalize returns mapping outputs as they are and wraps anything else
// under the "result" key.
func normalize(raw any) Result {
	if m, ok := raw.(map[string]any); ok {
		out := make(Result, len(m)+2)
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	if r, ok := raw.(Result); ok {
		return normalize(map[string]any(r))
	}
	return Result{KeyResult: raw}
}
