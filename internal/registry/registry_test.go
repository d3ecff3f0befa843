package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/loader"
	"github.com/vk/modanalysis/internal/module"
	"github.com/vk/modanalysis/internal/testutil"
)

const answerEngine = "def analyze(d, m, c):\n    return 42\n"

func sampleTree(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, testutil.Merge(
		testutil.ModuleFiles("stats", `description = "Summary statistics"`, testutil.PassthroughModel, answerEngine),
		testutil.ModuleFiles("beta", `version = "2.0"`, testutil.PassthroughModel, answerEngine),
		map[string]string{
			"mod_a/config.hcl":    `description = "no model"`,
			"mod_a/engine.star":   answerEngine,
			".hidden/config.hcl":  `description = "hidden"`,
			".hidden/model.star":  testutil.PassthroughModel,
			".hidden/engine.star": answerEngine,
			"notes.txt":           "not a module",
		},
	))
}

func TestDiscover_RegistersValidModulesOnly(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, logs := testutil.Context(t)
	reg := New(sampleTree(t), loader.New())

	// --- Act ---
	descs, err := reg.Discover(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "stats"}, reg.Names())
	require.Len(t, descs, 2)
	for _, d := range descs {
		assert.True(t, d.IsValid())
	}

	warnings := reg.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "mod_a", warnings[0].Name)
	assert.Equal(t, []module.Unit{module.UnitModel}, warnings[0].Missing)
	assert.Contains(t, logs.String(), "Skipping invalid module.")

	_, err = reg.Get("mod_a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Get(".hidden")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiscover_ExtractsDescriptions(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	reg := New(sampleTree(t), loader.New())
	_, err := reg.Discover(ctx)
	require.NoError(t, err)

	stats, err := reg.Get("stats")
	require.NoError(t, err)
	assert.Equal(t, "Summary statistics", stats.Description)

	beta, err := reg.Get("beta")
	require.NoError(t, err)
	assert.Empty(t, beta.Description, "a config without description leaves it empty")
}

func TestDiscover_DescriptionFailureDoesNotInvalidate(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, logs := testutil.Context(t)
	root := testutil.WriteTree(t, testutil.ModuleFiles("broken_config", `description = `, testutil.PassthroughModel, answerEngine))
	reg := New(root, loader.New())

	// --- Act ---
	_, err := reg.Discover(ctx)

	// --- Assert ---
	require.NoError(t, err)
	desc, err := reg.Get("broken_config")
	require.NoError(t, err)
	assert.Empty(t, desc.Description)
	assert.Contains(t, logs.String(), "Could not load module description.")
}

type panickingConfigs struct{}

func (panickingConfigs) LoadConfig(context.Context, string) (contract.Config, error) {
	panic("config exploded")
}

func TestDiscover_RecoversFromPanickingDescriptionLoad(t *testing.T) {
	t.Parallel()

	ctx, logs := testutil.Context(t)
	reg := New(sampleTree(t), panickingConfigs{})

	_, err := reg.Discover(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.Contains(t, logs.String(), "config exploded")
}

func TestDiscover_CreatesMissingRoot(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	root := filepath.Join(t.TempDir(), "modules")
	reg := New(root, loader.New())

	descs, err := reg.Discover(ctx)

	require.NoError(t, err)
	assert.Empty(t, descs)
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDiscover_IsIdempotentAndReplacesContents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	root := sampleTree(t)
	reg := New(root, loader.New())
	_, err := reg.Discover(ctx)
	require.NoError(t, err)
	first := reg.Names()

	// --- Act ---
	_, err = reg.Discover(ctx)
	require.NoError(t, err)
	second := reg.Names()
	require.NoError(t, os.RemoveAll(filepath.Join(root, "beta")))
	_, err = reg.Discover(ctx)
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"stats"}, reg.Names())
	_, err = reg.Get("beta")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsCopies(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	reg := New(sampleTree(t), loader.New())
	_, err := reg.Discover(ctx)
	require.NoError(t, err)

	// --- Act ---
	got, err := reg.Get("stats")
	require.NoError(t, err)
	got.Description = "changed"
	got.EnginePath = "/elsewhere"
	for _, d := range reg.Descriptors() {
		d.Name = "renamed"
	}

	// --- Assert ---
	again, err := reg.Get("stats")
	require.NoError(t, err)
	assert.Equal(t, "Summary statistics", again.Description)
	assert.NotEqual(t, "/elsewhere", again.EnginePath)
	assert.Equal(t, []string{"beta", "stats"}, namesOf(reg.Descriptors()))
}

func namesOf(descs []*module.Descriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Name)
	}
	return out
}

func TestGet_UnknownName(t *testing.T) {
	t.Parallel()

	reg := New(t.TempDir(), nil)

	_, err := reg.Get("nonexistent")

	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"nonexistent"`)
}

func TestValidate_ReportsEveryBrokenModule(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	root := testutil.WriteTree(t, testutil.Merge(
		testutil.ModuleFiles("good", `description = "ok"`, testutil.PassthroughModel, answerEngine),
		testutil.ModuleFiles("no_entry", `description = "ok"`, testutil.PassthroughModel, "def helper():\n    return 1\n"),
		testutil.ModuleFiles("bad_model", `description = "ok"`, "def validate_input(d):\n    return True\n", answerEngine),
	))
	reg := New(root, loader.New())
	_, err := reg.Discover(ctx)
	require.NoError(t, err)

	// --- Act ---
	err = reg.Validate(ctx, loader.New())

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module 'no_entry': engine unit does not define analyze")
	assert.Contains(t, err.Error(), "module 'bad_model'")
	assert.Contains(t, err.Error(), "prepare_data is not defined")
	assert.NotContains(t, err.Error(), "module 'good'")
}

func TestValidate_AllGood(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	reg := New(sampleTree(t), loader.New())
	_, err := reg.Discover(ctx)
	require.NoError(t, err)

	require.NoError(t, reg.Validate(ctx, loader.New()))
}
