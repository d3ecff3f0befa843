package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
)

// Validate loads every registered module without running it and checks that
// each engine exposes its entry point. All problems are reported together.
func (r *Registry) Validate(ctx context.Context, l contract.Loader) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, desc := range r.Descriptors() {
		loaded, err := contract.Load(ctxlog.With(ctx, "module", desc.Name), l, desc)
		if err != nil {
			errs = append(errs, fmt.Sprintf("module '%s': %v", desc.Name, err))
			continue
		}
		if _, ok := loaded.Engine.Analyzer(); !ok {
			errs = append(errs, fmt.Sprintf("module '%s': engine unit does not define %s", desc.Name, contract.EntryPoint))
			continue
		}
		logger.Debug("Module satisfies the contract.", "module", desc.Name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
