package script

import (
	"fmt"
	"math"
	"sort"

	"github.com/vk/modanalysis/internal/dataset"
	"go.starlark.net/starlark"
)

// ToStarlark converts a Go value into a Starlark value. Maps become dicts
// with sorted keys.
func ToStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, s := range x {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems), nil
	case []float64:
		elems := make([]starlark.Value, len(x))
		for i, f := range x {
			elems[i] = starlark.Float(f)
		}
		return starlark.NewList(elems), nil
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := ToStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(x))
		for _, k := range keys {
			sv, err := ToStarlark(x[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case *dataset.Dataset:
		return NewDataset(x), nil
	}
	return nil, fmt.Errorf("cannot convert %T to a module value", v)
}

// FromStarlark converts a Starlark value into plain Go data: nil, bool,
// int64, float64, string, []any and map[string]any. Datasets become lists of
// row records.
func FromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return float64(x.Float()), nil
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Bytes:
		return string(x), nil
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key := item[0].String()
			if s, ok := starlark.AsString(item[0]); ok {
				key = s
			}
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("dict keys %s collide as %q", item[0].String(), key)
			}
			val, err := FromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = val
		}
		return out, nil
	case *Dataset:
		ds := x.ds
		records := make([]any, ds.Len())
		for i := range records {
			records[i] = ds.Row(i)
		}
		return records, nil
	case starlark.Callable:
		return nil, fmt.Errorf("cannot convert %s %s to data", x.Type(), x.Name())
	case starlark.Iterable:
		return fromIterable(x)
	case starlark.HasAttrs:
		out := make(map[string]any)
		for _, name := range x.AttrNames() {
			attr, err := x.Attr(name)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", name, err)
			}
			if attr == nil {
				continue
			}
			val, err := FromStarlark(attr)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", name, err)
			}
			out[name] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %s to data", v.Type())
}

func fromIterable(x starlark.Iterable) ([]any, error) {
	iter := x.Iterate()
	defer iter.Done()

	out := []any{}
	var elem starlark.Value
	for iter.Next(&elem) {
		val, err := FromStarlark(elem)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", len(out), err)
		}
		out = append(out, val)
	}
	return out, nil
}

// toFloat returns the numeric value of v, with ok false for None, NaN and
// non-numeric values.
func toFloat(v starlark.Value) (f float64, ok bool, err error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return 0, false, nil
	case starlark.Int:
		return float64(x.Float()), true, nil
	case starlark.Float:
		if math.IsNaN(float64(x)) {
			return 0, false, nil
		}
		return float64(x), true, nil
	}
	return 0, false, fmt.Errorf("want number, got %s", v.Type())
}
