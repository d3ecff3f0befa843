// Package loader provides the contract.Loader used by the application:
// configuration units come from HCL, model and engine units from Starlark.
package loader

import (
	"context"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/hcl_adapter"
	"github.com/vk/modanalysis/internal/script"
)

// Loader loads module units from source on every call. It holds no state.
type Loader struct{}

var _ contract.Loader = (*Loader)(nil)

// New creates a Loader.
func New() *Loader {
	return &Loader{}
}

func (l *Loader) LoadConfig(ctx context.Context, path string) (contract.Config, error) {
	cfg, err := hcl_adapter.LoadConfig(ctx, path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) LoadModel(ctx context.Context, path string) (contract.Model, error) {
	m, err := script.LoadModel(ctx, path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (l *Loader) LoadEngine(ctx context.Context, path string) (contract.Engine, error) {
	e, err := script.LoadEngine(ctx, path)
	if err != nil {
		return nil, err
	}
	return e, nil
}
