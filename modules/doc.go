// Package modules holds the analysis modules that ship with modanalysis.
// Each subdirectory is one module made of config.hcl, model.star and
// engine.star; there is no Go code here besides the tests that run the
// bundled modules against the sample dataset.
package modules
