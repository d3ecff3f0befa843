package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/dataset"
	"github.com/vk/modanalysis/internal/module"
)

// FakeModel is an in-memory model unit.
type FakeModel struct {
	Reject     bool
	InputErr   error
	Prepared   *dataset.Dataset // nil passes the input through
	PrepareErr error
	// OutputValid, when non-nil, enables output validation with this answer.
	OutputValid *bool
}

func (m *FakeModel) ValidateInput(context.Context, *dataset.Dataset) (bool, error) {
	if m.InputErr != nil {
		return false, m.InputErr
	}
	return !m.Reject, nil
}

func (m *FakeModel) PrepareData(_ context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if m.PrepareErr != nil {
		return nil, m.PrepareErr
	}
	if m.Prepared != nil {
		return m.Prepared, nil
	}
	return ds, nil
}

func (m *FakeModel) ValidateOutput(context.Context, map[string]any) (bool, bool, error) {
	if m.OutputValid == nil {
		return false, false, nil
	}
	return *m.OutputValid, true, nil
}

// FakeEngine is an in-memory engine unit. A nil Fn means no entry point.
type FakeEngine struct {
	Fn contract.AnalyzeFunc
}

func (e *FakeEngine) Analyzer() (contract.AnalyzeFunc, bool) {
	return e.Fn, e.Fn != nil
}

// Returning builds an engine whose entry point returns v.
func Returning(v any) *FakeEngine {
	return &FakeEngine{Fn: func(context.Context, *dataset.Dataset, contract.Model, contract.Config) (any, error) {
		return v, nil
	}}
}

// Failing builds an engine whose entry point fails with err.
func Failing(err error) *FakeEngine {
	return &FakeEngine{Fn: func(context.Context, *dataset.Dataset, contract.Model, contract.Config) (any, error) {
		return nil, err
	}}
}

// FakeUnits are the units served for one module directory. Errs makes the
// loader fail for the given unit.
type FakeUnits struct {
	Config contract.Config
	Model  contract.Model
	Engine contract.Engine
	Errs   map[module.Unit]error
}

// FakeLoader serves units from memory, keyed by module root directory, and
// counts loads per unit path.
type FakeLoader struct {
	mu    sync.Mutex
	units map[string]FakeUnits
	loads map[string]int
}

var _ contract.Loader = (*FakeLoader)(nil)

// NewFakeLoader creates an empty FakeLoader.
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{units: make(map[string]FakeUnits), loads: make(map[string]int)}
}

// Set registers the units for the module rooted at root.
func (l *FakeLoader) Set(root string, u FakeUnits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.units[root] = u
}

// Loads returns how many times the unit file at path was loaded.
func (l *FakeLoader) Loads(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[path]
}

func (l *FakeLoader) lookup(path string, unit module.Unit) (FakeUnits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[path]++
	u, ok := l.units[filepath.Dir(path)]
	if !ok {
		return FakeUnits{}, fmt.Errorf("no fake module at %s", filepath.Dir(path))
	}
	if err := u.Errs[unit]; err != nil {
		return FakeUnits{}, err
	}
	return u, nil
}

func (l *FakeLoader) LoadConfig(_ context.Context, path string) (contract.Config, error) {
	u, err := l.lookup(path, module.UnitConfig)
	if err != nil {
		return nil, err
	}
	if u.Config == nil {
		return &contract.StaticConfig{}, nil
	}
	return u.Config, nil
}

func (l *FakeLoader) LoadModel(_ context.Context, path string) (contract.Model, error) {
	u, err := l.lookup(path, module.UnitModel)
	if err != nil {
		return nil, err
	}
	if u.Model == nil {
		return &FakeModel{}, nil
	}
	return u.Model, nil
}

func (l *FakeLoader) LoadEngine(_ context.Context, path string) (contract.Engine, error) {
	u, err := l.lookup(path, module.UnitEngine)
	if err != nil {
		return nil, err
	}
	if u.Engine == nil {
		return &FakeEngine{}, nil
	}
	return u.Engine, nil
}
