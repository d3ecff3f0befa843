// Package contract defines the structural contract an analysis module must
// satisfy and the loader abstraction that turns a module directory into
// callable units.
//
// Three units make up a module:
//
//	Config: static parameters and an optional description.
//	Model:  input validation, data preparation and optional output validation.
//	Engine: the analysis entry point.
//
// A Loader produces fresh, isolated instances of each unit on every call;
// nothing loaded for one execution is visible to another.
package contract

import (
	"context"

	"github.com/vk/modanalysis/internal/dataset"
)

// EntryPoint is the name of the analysis function an engine unit must expose.
const EntryPoint = "analyze"

// Model hook names.
const (
	HookValidateInput  = "validate_input"
	HookPrepareData    = "prepare_data"
	HookValidateOutput = "validate_output"
)

// Config is a loaded configuration unit.
type Config interface {
	Description() string
	Version() string
	Author() string
	// Parameters returns a copy of the flat parameter set.
	Parameters() map[string]any
}

// Model is a loaded data-model unit.
type Model interface {
	ValidateInput(ctx context.Context, ds *dataset.Dataset) (bool, error)
	PrepareData(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error)
	// ValidateOutput checks a normalized result. ok is false when the unit
	// declares no output validation.
	ValidateOutput(ctx context.Context, result map[string]any) (valid bool, ok bool, err error)
}

// AnalyzeFunc is an engine's analysis entry point.
type AnalyzeFunc func(ctx context.Context, ds *dataset.Dataset, model Model, config Config) (any, error)

// Engine is a loaded engine unit.
type Engine interface {
	// Analyzer returns the entry point, or false when the unit does not
	// declare a callable one.
	Analyzer() (AnalyzeFunc, bool)
}

// Loader loads the units of a module from their source files.
type Loader interface {
	LoadConfig(ctx context.Context, path string) (Config, error)
	LoadModel(ctx context.Context, path string) (Model, error)
	LoadEngine(ctx context.Context, path string) (Engine, error)
}

// StaticConfig is a Config backed by plain values.
type StaticConfig struct {
	Desc   string
	Ver    string
	Auth   string
	Params map[string]any
}

func (c *StaticConfig) Description() string { return c.Desc }
func (c *StaticConfig) Version() string     { return c.Ver }
func (c *StaticConfig) Author() string      { return c.Auth }

func (c *StaticConfig) Parameters() map[string]any {
	out := make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		out[k] = v
	}
	return out
}
