package report

import (
	"context"
	"slices"

	"github.com/vk/modanalysis/internal/batch"
	"github.com/vk/modanalysis/internal/ctxlog"
)

// LogSummary logs one line per module: INFO with the result's top-level keys
// for successes, ERROR with the message for failures.
func LogSummary(ctx context.Context, r *batch.Report) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("=== Analysis results ===", "run_id", r.RunID)
	for _, o := range r.Outcomes {
		if o.Failed() {
			logger.Error("Module FAILED.", "module", o.Module, "error", o.ErrorMessage())
			continue
		}
		keys := make([]string, 0, len(o.Result))
		for k := range o.Result {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		logger.Info("Module SUCCESS.", "module", o.Module, "keys", keys, "duration", o.Duration)
	}
}
