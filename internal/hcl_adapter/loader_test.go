package hcl_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_FullUnit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeConfig(t, `
description = "Calculates basic statistics"
version     = "1.0.0"
author      = upper("analysis team")

parameters = {
  precision          = 3
  ratio              = 1.5
  include_outliers   = true
  columns_to_analyze = concat(["value"], ["score", "count"])
  method             = "pearson"
}
`)

	// --- Act ---
	cfg, err := LoadConfig(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "Calculates basic statistics", cfg.Description())
	assert.Equal(t, "1.0.0", cfg.Version())
	assert.Equal(t, "ANALYSIS TEAM", cfg.Author())

	want := map[string]any{
		"precision":          int64(3),
		"ratio":              1.5,
		"include_outliers":   true,
		"columns_to_analyze": []any{"value", "score", "count"},
		"method":             "pearson",
	}
	if diff := cmp.Diff(want, cfg.Parameters()); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_OptionalAttributes(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(context.Background(), writeConfig(t, ""))

	require.NoError(t, err)
	assert.Empty(t, cfg.Description())
	assert.Empty(t, cfg.Parameters())
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "syntax error", content: `description = "open`, wantErr: "failed to parse HCL file"},
		{name: "unknown attribute", content: `colour = "red"`, wantErr: "failed to decode HCL file"},
		{name: "parameters not an object", content: `parameters = [1, 2]`, wantErr: "parameters must be an object"},
		{name: "variables are not available", content: `parameters = { home = env.HOME }`, wantErr: "failed to evaluate parameters"},
		{name: "description wrong type", content: `description = ["a"]`, wantErr: "failed to decode HCL file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfig(context.Background(), writeConfig(t, tc.content))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.hcl"))
	require.ErrorContains(t, err, "failed to parse HCL file")
}

func TestLoadConfig_FreshInstancePerLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `parameters = { n = 1 }`)
	a, err := LoadConfig(context.Background(), path)
	require.NoError(t, err)
	b, err := LoadConfig(context.Background(), path)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	p := a.Parameters()
	p["n"] = int64(2)
	assert.Equal(t, int64(1), b.Parameters()["n"])
	assert.Equal(t, int64(1), a.Parameters()["n"])
}

func TestCtyToNative(t *testing.T) {
	t.Parallel()

	got, err := ctyToNative(cty.ObjectVal(map[string]cty.Value{
		"big":   cty.NumberFloatVal(1e300),
		"frac":  cty.NumberFloatVal(0.25),
		"null":  cty.NullVal(cty.String),
		"set":   cty.SetVal([]cty.Value{cty.StringVal("x")}),
		"whole": cty.NumberIntVal(-7),
	}))
	require.NoError(t, err)

	m := got.(map[string]any)
	assert.Equal(t, 0.25, m["frac"])
	assert.Equal(t, int64(-7), m["whole"])
	assert.Nil(t, m["null"])
	assert.Equal(t, []any{"x"}, m["set"])
	assert.Equal(t, 1e300, m["big"])
}
