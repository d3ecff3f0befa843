package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/modanalysis/internal/ctxlog"
)

// SampleFile is the file name the sample dataset is persisted under.
const SampleFile = "sample_data.json"

// SampleColumns are the columns of the generated sample dataset.
var SampleColumns = []string{"id", "value", "category", "score", "count", "flag", "timestamp"}

var sampleStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Sample generates a deterministic dataset of n rows: value ~ N(50, 15),
// category in {A, B, C}, score ~ U(0, 100), count ~ Poisson(10), a random
// flag and one timestamp per day starting 2024-01-01.
func Sample(n int, seed uint64) *Dataset {
	rng := rand.New(rand.NewPCG(seed, seed))
	categories := []string{"A", "B", "C"}

	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{
			int64(i + 1),
			50 + 15*rng.NormFloat64(),
			categories[rng.IntN(len(categories))],
			100 * rng.Float64(),
			poisson(rng, 10),
			rng.IntN(2) == 0,
			sampleStart.AddDate(0, 0, i).Format(TimestampLayout),
		}
	}
	ds, err := New(SampleColumns, rows)
	if err != nil {
		panic(fmt.Sprintf("dataset: sample generation produced invalid rows: %v", err))
	}
	return ds
}

// poisson draws from a Poisson distribution with Knuth's multiplication method.
func poisson(rng *rand.Rand, lambda float64) int64 {
	limit := math.Exp(-lambda)
	var k int64
	for p := rng.Float64(); p > limit; p *= rng.Float64() {
		k++
	}
	return k
}

// LoadOrCreateSample loads dir/sample_data.json, generating and persisting a
// new sample when the file does not exist yet.
func LoadOrCreateSample(ctx context.Context, dir string, n int, seed uint64) (*Dataset, error) {
	logger := ctxlog.FromContext(ctx)
	path := filepath.Join(dir, SampleFile)

	if _, err := os.Stat(path); err == nil {
		logger.Info("Loading existing sample data.", "path", path)
		return LoadJSON(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat sample data: %w", err)
	}

	logger.Info("Creating new sample dataset.", "rows", n, "seed", seed)
	ds := Sample(n, seed)
	if err := WriteJSON(path, ds); err != nil {
		return nil, err
	}
	logger.Info("Sample dataset created and saved.", "path", path)
	return ds, nil
}
