package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/fsutil"
	"github.com/vk/modanalysis/internal/module"
)

// ErrNotFound is returned by Get for names absent from the latest pass.
var ErrNotFound = errors.New("module not found")

// ConfigLoader reads a configuration unit; Discover uses it to extract
// module descriptions.
type ConfigLoader interface {
	LoadConfig(ctx context.Context, path string) (contract.Config, error)
}

// DiscoveryWarning records a candidate directory that was not registered.
type DiscoveryWarning struct {
	Name    string
	Path    string
	Missing []module.Unit
}

func (w DiscoveryWarning) String() string {
	return fmt.Sprintf("%s: missing %v", w.Name, w.Missing)
}

// Registry holds the modules found by the most recent discovery pass.
type Registry struct {
	root     string
	configs  ConfigLoader
	modules  map[string]*module.Descriptor
	order    []string
	warnings []DiscoveryWarning
}

// New creates an empty registry rooted at root.
func New(root string, configs ConfigLoader) *Registry {
	return &Registry{
		root:    root,
		configs: configs,
		modules: make(map[string]*module.Descriptor),
	}
}

// Root returns the directory scanned by Discover.
func (r *Registry) Root() string { return r.root }

// Discover scans the root directory, creating it when absent, and replaces
// the registry's contents with the valid modules found. It returns the
// registered descriptors in order.
func (r *Registry) Discover(ctx context.Context) ([]*module.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Discovering modules...", "path", r.root)

	if err := fsutil.EnsureDir(r.root); err != nil {
		return nil, err
	}
	dirs, err := fsutil.Subdirectories(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules directory %s: %w", r.root, err)
	}

	modules := make(map[string]*module.Descriptor, len(dirs))
	var order []string
	var warnings []DiscoveryWarning

	for _, dir := range dirs {
		desc := module.NewDescriptor(dir)
		if missing := desc.MissingUnits(); len(missing) > 0 {
			logger.Warn("Skipping invalid module.", "module", desc.Name, "path", dir, "missing", missing)
			warnings = append(warnings, DiscoveryWarning{Name: desc.Name, Path: dir, Missing: missing})
			continue
		}
		desc.Description = r.describe(ctx, desc)
		modules[desc.Name] = desc
		order = append(order, desc.Name)
		logger.Info("Discovered module.", "module", desc.Name)
	}

	r.modules = modules
	r.order = order
	r.warnings = warnings

	logger.Info("Module discovery complete.", "registered", len(order), "skipped", len(warnings))
	return r.Descriptors(), nil
}

// describe loads only the configuration unit to read its description. Any
// failure, including a panic in the loader, yields an empty description.
func (r *Registry) describe(ctx context.Context, desc *module.Descriptor) (description string) {
	if r.configs == nil {
		return ""
	}
	logger := ctxlog.FromContext(ctx).With("module", desc.Name)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("Could not load module description.", "error", fmt.Sprint(rec))
			description = ""
		}
	}()

	cfg, err := r.configs.LoadConfig(ctx, desc.ConfigPath)
	if err != nil {
		logger.Warn("Could not load module description.", "error", err)
		return ""
	}
	return cfg.Description()
}

// Get returns a copy of the descriptor registered under name.
func (r *Registry) Get(name string) (*module.Descriptor, error) {
	desc, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	c := *desc
	return &c, nil
}

// Names returns the registered module names in discovery order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Descriptors returns copies of the registered descriptors in discovery
// order. Only Discover changes what is registered.
func (r *Registry) Descriptors() []*module.Descriptor {
	out := make([]*module.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		c := *r.modules[name]
		out = append(out, &c)
	}
	return out
}

// Warnings returns the candidates skipped by the latest pass.
func (r *Registry) Warnings() []DiscoveryWarning {
	return slices.Clone(r.warnings)
}

// Len returns the number of registered modules.
func (r *Registry) Len() int { return len(r.order) }
