package script

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/dataset"
)

func writeUnit(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New([]string{"value", "score", "label"}, [][]any{
		{1.0, 10, "a"},
		{2.0, nil, "b"},
		{3.0, 30, "c"},
		{nil, 40, "d"},
	})
	require.NoError(t, err)
	return ds
}

const validModel = `
REQUIRED = ["value", "score"]

def validate_input(data):
    return all([data.has_column(c) for c in REQUIRED])

def prepare_data(data):
    return data.select(REQUIRED).dropna()

def validate_output(result):
    return "mean" in result
`

func TestLoadModel_Hooks(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	m, err := LoadModel(ctx, writeUnit(t, "model.star", validModel))
	require.NoError(t, err)
	ds := testDataset(t)

	// --- Act ---
	ok, err := m.ValidateInput(ctx, ds)
	require.NoError(t, err)
	prepared, err := m.PrepareData(ctx, ds)
	require.NoError(t, err)
	valid, present, err := m.ValidateOutput(ctx, map[string]any{"mean": 1.0})
	require.NoError(t, err)
	invalid, _, err := m.ValidateOutput(ctx, map[string]any{"other": 1.0})
	require.NoError(t, err)

	// --- Assert ---
	assert.True(t, ok)
	assert.Equal(t, []string{"value", "score"}, prepared.Columns())
	assert.Equal(t, []int{0, 2}, prepared.Index())
	assert.Equal(t, 4, ds.Len(), "caller's dataset is untouched")
	assert.True(t, present)
	assert.True(t, valid)
	assert.False(t, invalid)
}

func TestLoadModel_ContractViolations(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		src    string
		member string
	}{
		{name: "missing validate_input", src: "def prepare_data(d):\n    return d\n", member: contract.HookValidateInput},
		{name: "missing prepare_data", src: "def validate_input(d):\n    return True\n", member: contract.HookPrepareData},
		{name: "non-callable hook", src: "validate_input = 1\ndef prepare_data(d):\n    return d\n", member: contract.HookValidateInput},
		{name: "non-callable validate_output", src: "def validate_input(d):\n    return True\ndef prepare_data(d):\n    return d\nvalidate_output = True\n", member: contract.HookValidateOutput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadModel(context.Background(), writeUnit(t, "model.star", tc.src))

			var memberErr *contract.MemberError
			require.ErrorAs(t, err, &memberErr)
			assert.Equal(t, tc.member, memberErr.Member)
		})
	}
}

func TestLoadModel_WithoutOutputValidation(t *testing.T) {
	t.Parallel()

	m, err := LoadModel(context.Background(), writeUnit(t, "model.star", "def validate_input(d):\n    return True\ndef prepare_data(d):\n    return d\n"))
	require.NoError(t, err)

	_, present, err := m.ValidateOutput(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, present)
}

func TestModel_PrepareDataMustReturnDataset(t *testing.T) {
	t.Parallel()

	m, err := LoadModel(context.Background(), writeUnit(t, "model.star", "def validate_input(d):\n    return True\ndef prepare_data(d):\n    return [1]\n"))
	require.NoError(t, err)

	_, err = m.PrepareData(context.Background(), testDataset(t))

	var memberErr *contract.MemberError
	require.ErrorAs(t, err, &memberErr)
	assert.Contains(t, err.Error(), "returned list, want dataset")
}

func TestExecUnit_LoadFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "syntax error", src: "def broken(:\n", wantErr: "model.star"},
		{name: "top-level failure", src: "fail(\"cannot import\")\n", wantErr: "cannot import"},
		{name: "load statement", src: "load(\"other.star\", \"x\")\n", wantErr: "load"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadModel(context.Background(), writeUnit(t, "model.star", tc.src))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}

	_, err := LoadModel(context.Background(), filepath.Join(t.TempDir(), "absent.star"))
	require.ErrorContains(t, err, "failed to read unit")
}

func TestLoadEngine_EntryPoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	withEntry, err := LoadEngine(ctx, writeUnit(t, "engine.star", "def analyze(d, m, c):\n    return 42\n"))
	require.NoError(t, err)
	_, ok := withEntry.Analyzer()
	assert.True(t, ok)

	without, err := LoadEngine(ctx, writeUnit(t, "engine.star", "def helper():\n    return 1\n"))
	require.NoError(t, err)
	_, ok = without.Analyzer()
	assert.False(t, ok)

	notCallable, err := LoadEngine(ctx, writeUnit(t, "engine.star", "analyze = 5\n"))
	require.NoError(t, err)
	_, ok = notCallable.Analyzer()
	assert.False(t, ok)
}

func TestEngine_AnalyzeSeesModelAndConfig(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	model, err := LoadModel(ctx, writeUnit(t, "model.star", validModel))
	require.NoError(t, err)
	engine, err := LoadEngine(ctx, writeUnit(t, "engine.star", `
def analyze(data, model, config):
    if not model.validate_input(data):
        fail("input validation failed")
    prepared = model.prepare_data(data)
    precision = config.PARAMETERS.get("precision", 3)
    return {
        "mean": stats.round(stats.mean(prepared.column("value")), precision),
        "rows": len(prepared),
        "description": config.DESCRIPTION,
        "columns": prepared.columns,
    }
`))
	require.NoError(t, err)
	cfg := &contract.StaticConfig{Desc: "demo", Params: map[string]any{"precision": int64(1)}}

	// --- Act ---
	analyze, ok := engine.Analyzer()
	require.True(t, ok)
	out, err := analyze(ctx, testDataset(t), model, cfg)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"mean":        2.0,
		"rows":        int64(2),
		"description": "demo",
		"columns":     []any{"value", "score"},
	}, out)
}

func TestEngine_FailMessageIsVerbatim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, err := LoadEngine(ctx, writeUnit(t, "engine.star", "def analyze(d, m, c):\n    fail(\"bad input\")\n"))
	require.NoError(t, err)

	analyze, _ := engine.Analyzer()
	_, err = analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{})

	var modErr *ModuleError
	require.ErrorAs(t, err, &modErr)
	assert.Equal(t, "bad input", modErr.Error())
	assert.Equal(t, "analyze", modErr.Function)
	assert.Contains(t, modErr.Backtrace, "engine.star")
}

func TestEngine_ConfigIsReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, err := LoadEngine(ctx, writeUnit(t, "engine.star", "def analyze(d, m, c):\n    c.PARAMETERS[\"x\"] = 1\n    return 0\n"))
	require.NoError(t, err)

	analyze, _ := engine.Analyzer()
	_, err = analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{Params: map[string]any{}})

	require.ErrorContains(t, err, "frozen")
}

func TestEngine_PrintGoesToLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	engine, err := LoadEngine(ctx, writeUnit(t, "engine.star", "def analyze(d, m, c):\n    print(\"rows\", len(d))\n    return None\n"))
	require.NoError(t, err)

	analyze, _ := engine.Analyzer()
	out, err := analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{})

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Contains(t, buf.String(), `message="rows 4"`)
}

func TestUnitsAreIsolatedBetweenLoads(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	path := writeUnit(t, "engine.star", `
CACHE = {}

def analyze(d, m, c):
    CACHE["seen"] = True
    return len(CACHE)
`)
	first, err := LoadEngine(ctx, path)
	require.NoError(t, err)
	second, err := LoadEngine(ctx, path)
	require.NoError(t, err)

	// --- Act ---
	analyze, _ := first.Analyzer()
	_, errFirst := analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{})
	analyze, _ = second.Analyzer()
	_, errSecond := analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{})

	// --- Assert ---
	require.ErrorContains(t, errFirst, "frozen", "module globals are frozen after load")
	require.ErrorContains(t, errSecond, "frozen")
}

type stubModel struct{}

func (stubModel) ValidateInput(context.Context, *dataset.Dataset) (bool, error) { return false, nil }
func (stubModel) PrepareData(_ context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	return ds.Head(1), nil
}
func (stubModel) ValidateOutput(context.Context, map[string]any) (bool, bool, error) {
	return false, false, nil
}

func TestExpose_WrapsNativeModel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, err := LoadEngine(ctx, writeUnit(t, "engine.star", `
def analyze(d, m, c):
    return {"valid": m.validate_input(d), "rows": len(m.prepare_data(d))}
`))
	require.NoError(t, err)

	analyze, _ := engine.Analyzer()
	out, err := analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"valid": false, "rows": int64(1)}, out)
}

func TestStatsModule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, err := LoadEngine(ctx, writeUnit(t, "engine.star", `
def analyze(d, m, c):
    xs = [1, 2, None, 3, 4]
    return {
        "mean": stats.mean(xs),
        "median": stats.median(xs),
        "std": stats.round(stats.std(xs), 4),
        "pvar": stats.var(xs, ddof=0),
        "q25": stats.quantile(xs, 0.25),
        "count": stats.count(xs),
        "corr": stats.corr([1, 2, 3], [2, 4, 7]) > 0.9,
        "empty": stats.isnan(stats.mean([])),
        "z": stats.zscores([1, 2, 3]),
        "sqrt": math.sqrt(16),
    }
`))
	require.NoError(t, err)

	analyze, _ := engine.Analyzer()
	out, err := analyze(ctx, testDataset(t), stubModel{}, &contract.StaticConfig{})
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, 2.5, m["mean"])
	assert.Equal(t, 2.5, m["median"])
	assert.Equal(t, 1.291, math.Round(m["std"].(float64)*1000)/1000)
	assert.Equal(t, 1.25, m["pvar"])
	assert.Equal(t, 1.75, m["q25"])
	assert.Equal(t, int64(4), m["count"])
	assert.Equal(t, true, m["corr"])
	assert.Equal(t, true, m["empty"])
	assert.Equal(t, []any{-1.0, 0.0, 1.0}, m["z"])
	assert.Equal(t, 4.0, m["sqrt"])
}
