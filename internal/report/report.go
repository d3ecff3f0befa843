// Package report turns a finished batch into the analysis document written
// to disk, logged as a summary and optionally published to a live listener.
package report

import (
	"math"
	"time"

	"github.com/vk/modanalysis/internal/batch"
)

// Module statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Metadata describes the batch as a whole.
type Metadata struct {
	RunID             string `json:"run_id" yaml:"run_id"`
	Timestamp         string `json:"timestamp" yaml:"timestamp"`
	DatasetRecords    int    `json:"dataset_records" yaml:"dataset_records"`
	ModulesExecuted   int    `json:"modules_executed" yaml:"modules_executed"`
	ModulesSuccessful int    `json:"modules_successful" yaml:"modules_successful"`
	ModulesFailed     int    `json:"modules_failed" yaml:"modules_failed"`
	Interrupted       bool   `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// ModuleEntry is the outcome of one module. Error is nil on success and
// Result is nil on failure.
type ModuleEntry struct {
	Status string         `json:"status" yaml:"status"`
	Error  *string        `json:"error" yaml:"error"`
	Result map[string]any `json:"result" yaml:"result"`
}

// Document is the full analysis report.
type Document struct {
	Metadata Metadata               `json:"analysis_metadata" yaml:"analysis_metadata"`
	Modules  map[string]ModuleEntry `json:"modules" yaml:"modules"`
}

// Build converts a batch report into a Document. Non-finite floats in module
// results become nulls.
func Build(r *batch.Report) Document {
	doc := Document{
		Metadata: Metadata{
			RunID:             r.RunID,
			Timestamp:         r.FinishedAt.Format(time.RFC3339Nano),
			DatasetRecords:    r.DatasetRecords,
			ModulesExecuted:   len(r.Outcomes),
			ModulesSuccessful: r.Succeeded(),
			ModulesFailed:     r.Failed(),
			Interrupted:       r.Interrupted,
		},
		Modules: make(map[string]ModuleEntry, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		doc.Modules[o.Module] = Entry(o)
	}
	return doc
}

// Entry converts a single outcome.
func Entry(o batch.Outcome) ModuleEntry {
	if o.Failed() {
		msg := o.ErrorMessage()
		return ModuleEntry{Status: StatusFailed, Error: &msg}
	}
	result, _ := Sanitize(map[string]any(o.Result)).(map[string]any)
	return ModuleEntry{Status: StatusSuccess, Result: result}
}

// Sanitize returns a copy of v in which NaN and infinite floats are replaced
// by nil, so the value can be encoded as JSON.
func Sanitize(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return Sanitize(float64(x))
	case map[string]any:
		if x == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Sanitize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Sanitize(e)
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Sanitize(e)
		}
		return out
	default:
		return v
	}
}
