package script

import (
	"errors"
	"fmt"
	"math"

	"github.com/vk/modanalysis/internal/stats"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// newStatsModule builds the `stats` module. Functions taking a sequence skip
// None and NaN elements; an empty sample yields NaN.
func newStatsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "stats",
		Members: starlark.StringDict{
			"corr":     starlark.NewBuiltin("corr", statsCorr),
			"count":    starlark.NewBuiltin("count", statsCount),
			"isnan":    starlark.NewBuiltin("isnan", statsIsNaN),
			"max":      unary("max", stats.Max),
			"mean":     unary("mean", stats.Mean),
			"median":   unary("median", stats.Median),
			"min":      unary("min", stats.Min),
			"quantile": starlark.NewBuiltin("quantile", statsQuantile),
			"round":    starlark.NewBuiltin("round", statsRound),
			"std":      withDDOF("std", stats.StdDev),
			"sum":      starlark.NewBuiltin("sum", statsSum),
			"var":      withDDOF("var", stats.Variance),
			"zscores":  starlark.NewBuiltin("zscores", statsZScores),
		},
	}
}

// sample collects the numeric elements of a Starlark sequence.
func sample(fn string, v starlark.Value) ([]float64, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: want sequence, got %s", fn, v.Type())
	}
	iter := iterable.Iterate()
	defer iter.Done()

	var out []float64
	var elem starlark.Value
	for i := 0; iter.Next(&elem); i++ {
		f, ok, err := toFloat(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: element %d: %w", fn, i, err)
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func result(f float64, err error) (starlark.Value, error) {
	if errors.Is(err, stats.ErrEmpty) {
		return starlark.Float(math.NaN()), nil
	}
	if err != nil {
		return nil, err
	}
	return starlark.Float(f), nil
}

func unary(name string, fn func([]float64) (float64, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var seq starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &seq); err != nil {
			return nil, err
		}
		xs, err := sample(b.Name(), seq)
		if err != nil {
			return nil, err
		}
		return result(fn(xs))
	})
}

func withDDOF(name string, fn func([]float64, int) (float64, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var seq starlark.Value
		ddof := 1
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &seq, "ddof?", &ddof); err != nil {
			return nil, err
		}
		xs, err := sample(b.Name(), seq)
		if err != nil {
			return nil, err
		}
		v, err := fn(xs, ddof)
		if err != nil && !errors.Is(err, stats.ErrEmpty) {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return result(v, err)
	})
}

func statsQuantile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq, qv starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &seq, "q", &qv); err != nil {
		return nil, err
	}
	q, ok := starlark.AsFloat(qv)
	if !ok {
		return nil, fmt.Errorf("%s: q: want number, got %s", b.Name(), qv.Type())
	}
	xs, err := sample(b.Name(), seq)
	if err != nil {
		return nil, err
	}
	v, err := stats.Quantile(xs, q)
	if err != nil && !errors.Is(err, stats.ErrEmpty) {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return result(v, err)
}

func statsSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &seq); err != nil {
		return nil, err
	}
	xs, err := sample(b.Name(), seq)
	if err != nil {
		return nil, err
	}
	return starlark.Float(stats.Sum(xs)), nil
}

func statsCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &seq); err != nil {
		return nil, err
	}
	xs, err := sample(b.Name(), seq)
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(len(xs)), nil
}

// statsCorr correlates two sequences over the positions where both hold a
// number.
func statsCorr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xv, yv starlark.Indexable
	method := string(stats.Pearson)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &xv, "ys", &yv, "method?", &method); err != nil {
		return nil, err
	}
	if xv.Len() != yv.Len() {
		return nil, fmt.Errorf("%s: sequences differ in length: %d != %d", b.Name(), xv.Len(), yv.Len())
	}

	var xs, ys []float64
	for i := 0; i < xv.Len(); i++ {
		x, xok, err := toFloat(xv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%s: xs[%d]: %w", b.Name(), i, err)
		}
		y, yok, err := toFloat(yv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%s: ys[%d]: %w", b.Name(), i, err)
		}
		if xok && yok {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}

	r, err := stats.Correlation(xs, ys, stats.Method(method))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Float(r), nil
}

func statsZScores(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &seq); err != nil {
		return nil, err
	}
	xs, err := sample(b.Name(), seq)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return starlark.NewList(nil), nil
	}
	z, err := stats.ZScores(xs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return ToStarlark(z)
}

// statsRound rounds a number to ndigits decimals. None passes through.
func statsRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	ndigits := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	if x == starlark.None {
		return starlark.None, nil
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: want number, got %s", b.Name(), x.Type())
	}
	return starlark.Float(stats.Round(f, ndigits)), nil
}

func statsIsNaN(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	if x == starlark.None {
		return starlark.False, nil
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: want number, got %s", b.Name(), x.Type())
	}
	return starlark.Bool(math.IsNaN(f)), nil
}
