package script

import (
	"fmt"
	"sort"

	"github.com/vk/modanalysis/internal/dataset"
	"go.starlark.net/starlark"
)

// Dataset exposes a *dataset.Dataset to module code as a read-only value.
// It supports len(), indexing (a row dict), iteration over rows and the
// methods listed in datasetMethods. Every method returns new values; the
// wrapped dataset is never modified.
type Dataset struct {
	ds *dataset.Dataset
}

var (
	_ starlark.Indexable = (*Dataset)(nil)
	_ starlark.Sequence  = (*Dataset)(nil)
	_ starlark.HasAttrs  = (*Dataset)(nil)
)

// NewDataset wraps ds.
func NewDataset(ds *dataset.Dataset) *Dataset { return &Dataset{ds: ds} }

// Unwrap returns the wrapped dataset.
func (d *Dataset) Unwrap() *dataset.Dataset { return d.ds }

func (d *Dataset) String() string {
	return fmt.Sprintf("<dataset %d rows x %d columns>", d.ds.Len(), len(d.ds.Columns()))
}
func (d *Dataset) Type() string          { return "dataset" }
func (d *Dataset) Freeze()               {}
func (d *Dataset) Truth() starlark.Bool  { return starlark.Bool(!d.ds.IsEmpty()) }
func (d *Dataset) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: dataset") }
func (d *Dataset) Len() int              { return d.ds.Len() }

func (d *Dataset) Index(i int) starlark.Value {
	return rowDict(d.ds, i)
}

func (d *Dataset) Iterate() starlark.Iterator {
	return &rowIterator{ds: d.ds}
}

type rowIterator struct {
	ds  *dataset.Dataset
	pos int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.pos >= it.ds.Len() {
		return false
	}
	*p = rowDict(it.ds, it.pos)
	it.pos++
	return true
}

func (it *rowIterator) Done() {}

func rowDict(ds *dataset.Dataset, i int) *starlark.Dict {
	row := ds.Row(i)
	dict := starlark.NewDict(len(row))
	for _, name := range ds.Columns() {
		v, _ := ToStarlark(row[name])
		_ = dict.SetKey(starlark.String(name), v)
	}
	dict.Freeze()
	return dict
}

func (d *Dataset) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		v, _ := ToStarlark(d.ds.Columns())
		return v, nil
	case "index":
		ids := d.ds.Index()
		elems := make([]starlark.Value, len(ids))
		for i, id := range ids {
			elems[i] = starlark.MakeInt(id)
		}
		return starlark.NewList(elems), nil
	}
	if b, ok := datasetMethods[name]; ok {
		return b.BindReceiver(d), nil
	}
	return nil, nil
}

func (d *Dataset) AttrNames() []string {
	names := []string{"columns", "index"}
	for name := range datasetMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var datasetMethods = map[string]*starlark.Builtin{
	"column":          starlark.NewBuiltin("column", datasetColumn),
	"dropna":          starlark.NewBuiltin("dropna", datasetDropNA),
	"has_column":      starlark.NewBuiltin("has_column", datasetHasColumn),
	"head":            starlark.NewBuiltin("head", datasetHead),
	"numeric_columns": starlark.NewBuiltin("numeric_columns", datasetNumericColumns),
	"row":             starlark.NewBuiltin("row", datasetRow),
	"select":          starlark.NewBuiltin("select", datasetSelect),
	"to_numeric":      starlark.NewBuiltin("to_numeric", datasetToNumeric),
}

func receiver(b *starlark.Builtin) *dataset.Dataset {
	return b.Receiver().(*Dataset).ds
}

func datasetColumn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	col, err := receiver(b).Column(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return ToStarlark(col)
}

func datasetHasColumn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	return starlark.Bool(receiver(b).HasColumn(name)), nil
}

func datasetNumericColumns(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return ToStarlark(receiver(b).NumericColumns())
}

func datasetRow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var i int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &i); err != nil {
		return nil, err
	}
	ds := receiver(b)
	if i < 0 {
		i += ds.Len()
	}
	if i < 0 || i >= ds.Len() {
		return nil, fmt.Errorf("%s: index out of range", b.Name())
	}
	return rowDict(ds, i), nil
}

func datasetHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return NewDataset(receiver(b).Head(n)), nil
}

func datasetSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	names, err := columnNames(b.Name(), args)
	if err != nil {
		return nil, err
	}
	out, err := receiver(b).Select(names...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewDataset(out), nil
}

func datasetDropNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var subset starlark.Value = starlark.None
	how := "any"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "subset?", &subset, "how?", &how); err != nil {
		return nil, err
	}
	var names []string
	if subset != starlark.None {
		var err error
		if names, err = columnNames(b.Name(), starlark.Tuple{subset}); err != nil {
			return nil, err
		}
	}

	ds := receiver(b)
	var (
		out *dataset.Dataset
		err error
	)
	switch how {
	case "any":
		out, err = ds.DropNA(names...)
	case "all":
		out, err = ds.DropAllNA(names...)
	default:
		return nil, fmt.Errorf("%s: how must be \"any\" or \"all\", got %q", b.Name(), how)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewDataset(out), nil
}

func datasetToNumeric(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	names, err := columnNames(b.Name(), args)
	if err != nil {
		return nil, err
	}
	out, err := receiver(b).ToNumeric(names...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewDataset(out), nil
}

// columnNames accepts either string arguments or a single list/tuple of
// strings.
func columnNames(fn string, args starlark.Tuple) ([]string, error) {
	if len(args) == 1 {
		if _, isStr := args[0].(starlark.String); !isStr {
			if it, ok := args[0].(starlark.Iterable); ok {
				var list starlark.Tuple
				iter := it.Iterate()
				var elem starlark.Value
				for iter.Next(&elem) {
					list = append(list, elem)
				}
				iter.Done()
				args = list
			}
		}
	}
	names := make([]string, 0, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: column %d: want string, got %s", fn, i, a.Type())
		}
		names = append(names, s)
	}
	return names, nil
}
