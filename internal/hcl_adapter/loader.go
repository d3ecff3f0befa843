// Package hcl_adapter loads a module's configuration unit from HCL. The unit
// is declarative: attribute expressions may use literals and a fixed set of
// pure functions, nothing else, so loading it can neither perform I/O nor
// observe another module's state.
package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// configFile is the decoding target for a config.hcl file.
type configFile struct {
	Description string         `hcl:"description,optional"`
	Version     string         `hcl:"version,optional"`
	Author      string         `hcl:"author,optional"`
	Parameters  hcl.Expression `hcl:"parameters,optional"`
}

// Config is a loaded configuration unit.
type Config struct {
	Path   string
	desc   string
	ver    string
	author string
	params map[string]any
}

var _ contract.Config = (*Config)(nil)

func (c *Config) Description() string { return c.desc }
func (c *Config) Version() string     { return c.ver }
func (c *Config) Author() string      { return c.author }

// Parameters returns a shallow copy of the parameter set.
func (c *Config) Parameters() map[string]any {
	out := make(map[string]any, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// LoadConfig parses and decodes the configuration unit at path. Every call
// uses a fresh parser, so repeated loads never share state.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing configuration unit.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	evalCtx := newEvalContext()

	var raw configFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	params := map[string]any{}
	if isExprDefined(ctx, raw.Parameters, "parameters") {
		val, diags := raw.Parameters.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate parameters in %s: %w", path, diags)
		}
		decoded, err := decodeParameters(val)
		if err != nil {
			return nil, fmt.Errorf("invalid parameters in %s: %w", path, err)
		}
		params = decoded
	}

	logger.Debug("Configuration unit decoded.", "path", path, "parameters", len(params))
	return &Config{
		Path:   path,
		desc:   raw.Description,
		ver:    raw.Version,
		author: raw.Author,
		params: params,
	}, nil
}

// decodeParameters turns the parameters object into a flat map of native
// values. Nested lists and objects are allowed as values.
func decodeParameters(val cty.Value) (map[string]any, error) {
	if val.IsNull() {
		return map[string]any{}, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("parameters must be an object, got %s", ty.FriendlyName())
	}
	native, err := ctyToNative(val)
	if err != nil {
		return nil, err
	}
	return native.(map[string]any), nil
}

// newEvalContext exposes only side-effect free functions to configuration
// expressions.
func newEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"abs":    stdlib.AbsoluteFunc,
			"ceil":   stdlib.CeilFunc,
			"concat": stdlib.ConcatFunc,
			"floor":  stdlib.FloorFunc,
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"lower":  stdlib.LowerFunc,
			"max":    stdlib.MaxFunc,
			"min":    stdlib.MinFunc,
			"upper":  stdlib.UpperFunc,
		},
	}
}

// isExprDefined reports whether an optional attribute was actually written
// in the source. gohcl fills omitted optional expressions with zero-width
// placeholders, so a nil check alone is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	defined := rng.End.Byte > rng.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checked optional attribute.", "attribute", attrName, "hcl_range", rng.String(), "is_defined", defined)
	return defined
}
