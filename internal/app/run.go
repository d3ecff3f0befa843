package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/vk/modanalysis/internal/batch"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/dataset"
	"github.com/vk/modanalysis/internal/report"
)

// Run executes one analysis batch: it loads the dataset, discovers modules,
// runs them, writes the report file and logs a summary. The returned report
// is complete even when individual modules failed.
func (a *App) Run(ctx context.Context) (*batch.Report, error) {
	ctx = a.context(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Starting modular analysis.")

	ds, err := a.loadDataset(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset loaded.", "records", ds.Len(), "columns", ds.Columns())

	descs, err := a.registry.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("module discovery failed: %w", err)
	}
	if len(descs) == 0 {
		logger.Warn("No modules found, the report will be empty.", "modules_path", a.config.ModulesPath)
	}

	format, err := report.ParseFormat(a.config.OutputFormat, a.config.Output)
	if err != nil {
		return nil, err
	}

	pub := a.openPublisher(ctx)
	defer pub.Close()

	runner := batch.New(a.registry, a.executor,
		batch.WithOnly(a.config.Only...),
		batch.WithObserver(func(ctx context.Context, runID string, o batch.Outcome) {
			if err := pub.PublishModule(ctx, runID, o); err != nil {
				ctxlog.FromContext(ctx).Warn("Failed to publish module result.", "module", o.Module, "error", err)
			}
		}),
	)
	rep := runner.Run(ctx, ds)

	doc := report.Build(rep)
	if err := report.WriteFile(a.config.Output, format, doc); err != nil {
		return rep, err
	}
	logger.Info("Results saved.", "path", a.config.Output, "format", format)

	report.LogSummary(ctx, rep)
	if err := pub.PublishBatch(ctx, doc); err != nil {
		logger.Warn("Failed to publish batch summary.", "error", err)
	}

	logger.Info("🏁 Modular analysis finished.", "successful", rep.Succeeded(), "failed", rep.Failed())
	return rep, nil
}

// loadDataset reads the configured dataset file, or the persisted sample
// dataset when none is configured.
func (a *App) loadDataset(ctx context.Context) (*dataset.Dataset, error) {
	if a.config.Dataset != "" {
		ds, err := dataset.Load(a.config.Dataset)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		return ds, nil
	}
	ds, err := dataset.LoadOrCreateSample(ctx, a.config.DataPath, a.config.SampleRows, a.config.SampleSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to load sample dataset: %w", err)
	}
	return ds, nil
}

// openPublisher connects the live result publisher when one is configured.
// A publisher that cannot connect is logged and replaced by a no-op one.
func (a *App) openPublisher(ctx context.Context) report.Publisher {
	if a.config.PublishURL == "" {
		return report.NopPublisher{}
	}
	pub, err := a.dial(ctx, report.PublishOptions{
		URL:       a.config.PublishURL,
		Namespace: a.config.PublishNamespace,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Result publisher unavailable, continuing without it.", "url", a.config.PublishURL, "error", err)
		return report.NopPublisher{}
	}
	return pub
}

// List discovers modules and prints the registered ones followed by the
// candidates that were skipped.
func (a *App) List(ctx context.Context) error {
	ctx = a.context(ctx)
	descs, err := a.registry.Discover(ctx)
	if err != nil {
		return fmt.Errorf("module discovery failed: %w", err)
	}

	tw := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION\tPATH")
	for _, d := range descs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Description, d.RootPath)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, w := range a.registry.Warnings() {
		missing := make([]string, 0, len(w.Missing))
		for _, u := range w.Missing {
			missing = append(missing, u.FileName())
		}
		fmt.Fprintf(a.outW, "skipped %s: missing %s\n", w.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Validate discovers modules and loads each of them without running it.
func (a *App) Validate(ctx context.Context) error {
	ctx = a.context(ctx)
	descs, err := a.registry.Discover(ctx)
	if err != nil {
		return fmt.Errorf("module discovery failed: %w", err)
	}
	if err := a.registry.Validate(ctx, a.loader); err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "%d module(s) valid\n", len(descs))
	return nil
}

// Sample generates the sample dataset and writes it under the data path,
// replacing an existing one. It returns the file written.
func (a *App) Sample(ctx context.Context) (string, error) {
	ctx = a.context(ctx)
	path := filepath.Join(a.config.DataPath, dataset.SampleFile)
	ds := dataset.Sample(a.config.SampleRows, a.config.SampleSeed)
	if err := dataset.WriteJSON(path, ds); err != nil {
		return "", err
	}
	ctxlog.FromContext(ctx).Info("Sample dataset written.", "path", path, "rows", ds.Len())
	return path, nil
}
