package contract

import (
	"context"
	"fmt"

	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/module"
)

// LoadError identifies which unit of a module could not be loaded.
type LoadError struct {
	Unit module.Unit
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s unit %s: %v", e.Unit, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MemberError reports a unit that loaded but lacks a required member.
type MemberError struct {
	Unit   module.Unit
	Member string
	Reason string
}

func (e *MemberError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is not defined"
	}
	return fmt.Sprintf("%s unit: %s %s", e.Unit, e.Member, reason)
}

// Loaded holds the freshly loaded units of one module.
type Loaded struct {
	Config Config
	Model  Model
	Engine Engine
}

// Load loads the three units of desc in order: config, model, engine. The
// first failure is returned as a *LoadError naming the unit; member errors
// are wrapped too and remain reachable with errors.As.
func Load(ctx context.Context, l Loader, desc *module.Descriptor) (*Loaded, error) {
	logger := ctxlog.FromContext(ctx)
	out := &Loaded{}
	var err error

	if out.Config, err = l.LoadConfig(ctx, desc.ConfigPath); err != nil {
		return nil, &LoadError{Unit: module.UnitConfig, Path: desc.ConfigPath, Err: err}
	}
	logger.Debug("Configuration unit loaded.", "path", desc.ConfigPath)

	if out.Model, err = l.LoadModel(ctx, desc.ModelPath); err != nil {
		return nil, &LoadError{Unit: module.UnitModel, Path: desc.ModelPath, Err: err}
	}
	logger.Debug("Model unit loaded.", "path", desc.ModelPath)

	if out.Engine, err = l.LoadEngine(ctx, desc.EnginePath); err != nil {
		return nil, &LoadError{Unit: module.UnitEngine, Path: desc.EnginePath, Err: err}
	}
	logger.Debug("Engine unit loaded.", "path", desc.EnginePath)

	return out, nil
}
