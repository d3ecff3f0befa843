package script

import (
	"context"
	"fmt"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/dataset"
	"github.com/vk/modanalysis/internal/module"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Model is a data-model unit loaded from a Starlark file.
type Model struct {
	path           string
	globals        starlark.StringDict
	validateInput  starlark.Callable
	prepareData    starlark.Callable
	validateOutput starlark.Callable
}

var _ contract.Model = (*Model)(nil)

// LoadModel executes the model unit at path. The unit must define
// validate_input and prepare_data; validate_output is optional.
func LoadModel(ctx context.Context, path string) (*Model, error) {
	globals, err := execUnit(ctx, string(module.UnitModel), path)
	if err != nil {
		return nil, err
	}

	m := &Model{path: path, globals: globals}
	if m.validateInput, err = requireCallable(globals, module.UnitModel, contract.HookValidateInput); err != nil {
		return nil, err
	}
	if m.prepareData, err = requireCallable(globals, module.UnitModel, contract.HookPrepareData); err != nil {
		return nil, err
	}
	if v, ok := globals[contract.HookValidateOutput]; ok {
		fn, ok := v.(starlark.Callable)
		if !ok {
			return nil, &contract.MemberError{Unit: module.UnitModel, Member: contract.HookValidateOutput, Reason: fmt.Sprintf("is a %s, not a function", v.Type())}
		}
		m.validateOutput = fn
	}

	ctxlog.FromContext(ctx).Debug("Model unit ready.", "path", path, "validates_output", m.validateOutput != nil)
	return m, nil
}

func requireCallable(globals starlark.StringDict, unit module.Unit, name string) (starlark.Callable, error) {
	v, ok := globals[name]
	if !ok {
		return nil, &contract.MemberError{Unit: unit, Member: name}
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, &contract.MemberError{Unit: unit, Member: name, Reason: fmt.Sprintf("is a %s, not a function", v.Type())}
	}
	return fn, nil
}

// ValidateInput calls validate_input(dataset) and returns its truth value.
func (m *Model) ValidateInput(ctx context.Context, ds *dataset.Dataset) (bool, error) {
	v, err := call(ctx, m.validateInput, NewDataset(ds))
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

// PrepareData calls prepare_data(dataset), which must return a dataset.
func (m *Model) PrepareData(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	v, err := call(ctx, m.prepareData, NewDataset(ds))
	if err != nil {
		return nil, err
	}
	out, ok := v.(*Dataset)
	if !ok {
		return nil, &contract.MemberError{Unit: module.UnitModel, Member: contract.HookPrepareData, Reason: fmt.Sprintf("returned %s, want dataset", v.Type())}
	}
	return out.ds, nil
}

// ValidateOutput calls validate_output(result) when the unit defines it.
func (m *Model) ValidateOutput(ctx context.Context, result map[string]any) (bool, bool, error) {
	if m.validateOutput == nil {
		return false, false, nil
	}
	arg, err := ToStarlark(result)
	if err != nil {
		return false, true, fmt.Errorf("failed to pass result to %s: %w", contract.HookValidateOutput, err)
	}
	arg.Freeze()
	v, err := call(ctx, m.validateOutput, arg)
	if err != nil {
		return false, true, err
	}
	return bool(v.Truth()), true, nil
}

// StarlarkValue exposes the unit's globals as the `model` argument of
// analyze.
func (m *Model) StarlarkValue() starlark.Value {
	return &starlarkstruct.Module{Name: "model", Members: m.globals}
}

// Engine is an engine unit loaded from a Starlark file.
type Engine struct {
	path    string
	analyze starlark.Callable
}

var _ contract.Engine = (*Engine)(nil)

// LoadEngine executes the engine unit at path. A missing entry point is not a
// load failure; callers detect it through Analyzer.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	globals, err := execUnit(ctx, string(module.UnitEngine), path)
	if err != nil {
		return nil, err
	}
	e := &Engine{path: path}
	if fn, ok := globals[contract.EntryPoint].(starlark.Callable); ok {
		e.analyze = fn
	}
	ctxlog.FromContext(ctx).Debug("Engine unit ready.", "path", path, "has_entry_point", e.analyze != nil)
	return e, nil
}

// Analyzer returns the unit's analyze function.
func (e *Engine) Analyzer() (contract.AnalyzeFunc, bool) {
	if e.analyze == nil {
		return nil, false
	}
	return e.run, true
}

func (e *Engine) run(ctx context.Context, ds *dataset.Dataset, model contract.Model, config contract.Config) (any, error) {
	mv, err := Expose(model)
	if err != nil {
		return nil, err
	}
	cv, err := ConfigValue(config)
	if err != nil {
		return nil, err
	}
	v, err := call(ctx, e.analyze, NewDataset(ds), mv, cv)
	if err != nil {
		return nil, err
	}
	out, err := FromStarlark(v)
	if err != nil {
		return nil, fmt.Errorf("%s returned an unsupported value: %w", contract.EntryPoint, err)
	}
	return out, nil
}

// Exposer is implemented by units that have a native Starlark form.
type Exposer interface {
	StarlarkValue() starlark.Value
}

// Expose returns the Starlark form of a model. Models without one are
// wrapped so their hooks can still be called from module code.
func Expose(model contract.Model) (starlark.Value, error) {
	if model == nil {
		return nil, fmt.Errorf("no model unit")
	}
	if e, ok := model.(Exposer); ok {
		return e.StarlarkValue(), nil
	}

	members := starlark.StringDict{
		contract.HookValidateInput: starlark.NewBuiltin(contract.HookValidateInput, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var d *Dataset
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &d); err != nil {
				return nil, err
			}
			ok, err := model.ValidateInput(threadContext(thread), d.ds)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(ok), nil
		}),
		contract.HookPrepareData: starlark.NewBuiltin(contract.HookPrepareData, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var d *Dataset
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &d); err != nil {
				return nil, err
			}
			out, err := model.PrepareData(threadContext(thread), d.ds)
			if err != nil {
				return nil, err
			}
			return NewDataset(out), nil
		}),
	}
	return &starlarkstruct.Module{Name: "model", Members: members}, nil
}

// ConfigValue exposes a configuration unit as the `config` argument of
// analyze, with DESCRIPTION, VERSION, AUTHOR and PARAMETERS members.
func ConfigValue(config contract.Config) (starlark.Value, error) {
	if config == nil {
		return nil, fmt.Errorf("no configuration unit")
	}
	params, err := ToStarlark(config.Parameters())
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	mod := &starlarkstruct.Module{
		Name: "config",
		Members: starlark.StringDict{
			"DESCRIPTION": starlark.String(config.Description()),
			"VERSION":     starlark.String(config.Version()),
			"AUTHOR":      starlark.String(config.Author()),
			"PARAMETERS":  params,
		},
	}
	mod.Freeze()
	return mod, nil
}
