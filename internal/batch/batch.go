// Package batch runs every registered module against one dataset, one after
// another, and collects a result or an error record per module. A failing
// module never stops its siblings.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/dataset"
	"github.com/vk/modanalysis/internal/executor"
	"github.com/vk/modanalysis/internal/module"
)

// Source lists the modules of one batch in execution order.
type Source interface {
	Descriptors() []*module.Descriptor
}

// Executor runs a single module.
type Executor interface {
	Execute(ctx context.Context, desc *module.Descriptor, ds *dataset.Dataset) (executor.Result, error)
}

// Outcome is the captured result of one module. Exactly one of Result and
// Err is set.
type Outcome struct {
	Module      string
	Description string
	Result      executor.Result
	Err         error
	Duration    time.Duration
}

// Failed reports whether the module failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// ErrorMessage returns the text stored in the module's error record.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	var execErr *executor.Error
	if errors.As(o.Err, &execErr) {
		return execErr.Message()
	}
	return o.Err.Error()
}

// Report aggregates one batch.
type Report struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	DatasetRecords int
	Outcomes       []Outcome
	// Interrupted is set when the context was cancelled before every module
	// had run.
	Interrupted bool
}

// Succeeded returns the number of modules that produced a result.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Failed() {
			n++
		}
	}
	return n
}

// Failed returns the number of modules that produced an error record.
func (r *Report) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Records returns results keyed by module name: the success result as is,
// or {"error": message} for a failed module.
func (r *Report) Records() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Failed() {
			out[o.Module] = map[string]any{executor.KeyError: o.ErrorMessage()}
			continue
		}
		out[o.Module] = map[string]any(o.Result)
	}
	return out
}

// Option configures a Runner.
type Option func(*Runner)

// WithOnly restricts the batch to the named modules. Names that are not
// registered are logged and ignored.
func WithOnly(names ...string) Option {
	return func(r *Runner) { r.only = names }
}

// WithObserver registers a callback invoked after each module completes.
func WithObserver(fn func(ctx context.Context, runID string, o Outcome)) Option {
	return func(r *Runner) { r.observe = fn }
}

// Runner executes batches.
type Runner struct {
	source  Source
	exec    Executor
	only    []string
	observe func(context.Context, string, Outcome)
}

// New creates a Runner over the modules of source.
func New(source Source, exec Executor, opts ...Option) *Runner {
	r := &Runner{source: source, exec: exec}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the selected modules sequentially against ds. Cancellation is
// honoured between modules only; a running module is never interrupted.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset) *Report {
	report := &Report{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now(),
		DatasetRecords: ds.Len(),
	}
	ctx = ctxlog.With(ctx, "run_id", report.RunID)
	logger := ctxlog.FromContext(ctx)

	descs := r.selected(ctx)
	logger.Info("Starting analysis batch.", "modules", len(descs), "records", report.DatasetRecords)

	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			logger.Warn("Batch interrupted, remaining modules skipped.", "error", err)
			report.Interrupted = true
			break
		}
		outcome := r.runOne(ctx, desc, ds)
		report.Outcomes = append(report.Outcomes, outcome)
		if r.observe != nil {
			r.observe(ctx, report.RunID, outcome)
		}
	}

	report.FinishedAt = time.Now()
	logger.Info("Analysis batch finished.",
		"successful", report.Succeeded(),
		"failed", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report
}

func (r *Runner) selected(ctx context.Context) []*module.Descriptor {
	all := r.source.Descriptors()
	if len(r.only) == 0 {
		return all
	}
	var out []*module.Descriptor
	for _, desc := range all {
		if slices.Contains(r.only, desc.Name) {
			out = append(out, desc)
		}
	}
	for _, name := range r.only {
		if !slices.ContainsFunc(all, func(d *module.Descriptor) bool { return d.Name == name }) {
			ctxlog.FromContext(ctx).Warn("Requested module is not registered.", "module", name)
		}
	}
	return out
}

// runOne executes a single module, converting any error or panic into an
// outcome.
func (r *Runner) runOne(ctx context.Context, desc *module.Descriptor, ds *dataset.Dataset) (out Outcome) {
	start := time.Now()
	out = Outcome{Module: desc.Name, Description: desc.Description}
	defer func() {
		if rec := recover(); rec != nil {
			out.Result = nil
			out.Err = &executor.Error{
				Module: desc.Name,
				Kind:   executor.KindEngineFailure,
				Err:    fmt.Errorf("panic: %v", rec),
			}
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			ctxlog.FromContext(ctx).Error("Module failed.", "module", desc.Name, "error", out.Err)
		}
	}()

	out.Result, out.Err = r.exec.Execute(ctx, desc, ds)
	return out
}
