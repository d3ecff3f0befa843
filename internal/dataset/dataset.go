// Package dataset implements the tabular data every analysis module receives.
// A Dataset is immutable: every transformation returns a new value and the
// receiver is never modified, so one dataset can be handed to any number of
// modules in sequence.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Dataset is a column-major table. Cells hold nil, int64, float64, bool or
// string. Rows keep the identifier they were created with across filtering.
type Dataset struct {
	columns []string
	pos     map[string]int
	data    [][]any
	index   []int
}

// New builds a dataset from row-major values. Row identifiers are 0..n-1.
func New(columns []string, rows [][]any) (*Dataset, error) {
	ds, err := empty(columns, len(rows))
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(columns))
		}
		for c, v := range row {
			nv, err := Normalize(v)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", r, columns[c], err)
			}
			ds.data[c] = append(ds.data[c], nv)
		}
		ds.index = append(ds.index, r)
	}
	return ds, nil
}

// FromRecords builds a dataset from keyed records. When columns is empty the
// sorted union of all record keys is used; keys absent from a record become
// nil cells.
func FromRecords(columns []string, records []map[string]any) (*Dataset, error) {
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, rec := range records {
			for k := range rec {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
		slices.Sort(columns)
	}
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for c, name := range columns {
			row[c] = rec[name]
		}
		rows[i] = row
	}
	return New(columns, rows)
}

func empty(columns []string, capacity int) (*Dataset, error) {
	ds := &Dataset{
		columns: slices.Clone(columns),
		pos:     make(map[string]int, len(columns)),
		data:    make([][]any, len(columns)),
		index:   make([]int, 0, capacity),
	}
	for i, name := range columns {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := ds.pos[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		ds.pos[name] = i
		ds.data[i] = make([]any, 0, capacity)
	}
	return ds, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.index) }

// IsEmpty reports whether the dataset has no rows.
func (d *Dataset) IsEmpty() bool { return len(d.index) == 0 }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.pos[name]
	return ok
}

// Index returns the stable row identifiers.
func (d *Dataset) Index() []int { return slices.Clone(d.index) }

// Column returns a copy of the named column's cells.
func (d *Dataset) Column(name string) ([]any, error) {
	c, ok := d.pos[name]
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	return slices.Clone(d.data[c]), nil
}

// Cell returns the value at row position i of the named column.
func (d *Dataset) Cell(i int, name string) (any, error) {
	c, ok := d.pos[name]
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	if i < 0 || i >= len(d.index) {
		return nil, fmt.Errorf("row %d out of range [0, %d)", i, len(d.index))
	}
	return d.data[c][i], nil
}

// Row returns row position i as a column-keyed map.
func (d *Dataset) Row(i int) map[string]any {
	row := make(map[string]any, len(d.columns))
	for c, name := range d.columns {
		row[name] = d.data[c][i]
	}
	return row
}

// NumericColumns returns the columns whose non-null cells are all int64 or
// float64. Columns without any non-null cell are not numeric.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for c, name := range d.columns {
		numeric, seen := true, false
		for _, v := range d.data[c] {
			if v == nil {
				continue
			}
			seen = true
			if _, ok := AsFloat(v); !ok {
				numeric = false
				break
			}
		}
		if numeric && seen {
			out = append(out, name)
		}
	}
	return out
}

// Select returns a dataset with only the named columns, in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	out, err := empty(names, len(d.index))
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		c, ok := d.pos[name]
		if !ok {
			return nil, &ColumnError{Column: name}
		}
		out.data[i] = slices.Clone(d.data[c])
	}
	out.index = slices.Clone(d.index)
	return out, nil
}

// DropNA removes every row holding a null in any of the named columns, or in
// any column when no names are given.
func (d *Dataset) DropNA(names ...string) (*Dataset, error) {
	cols, err := d.positions(names)
	if err != nil {
		return nil, err
	}
	return d.filter(func(r int) bool {
		for _, c := range cols {
			if d.data[c][r] == nil {
				return false
			}
		}
		return true
	}), nil
}

// DropAllNA removes the rows whose cells are null in every named column, or
// in every column when no names are given.
func (d *Dataset) DropAllNA(names ...string) (*Dataset, error) {
	cols, err := d.positions(names)
	if err != nil {
		return nil, err
	}
	return d.filter(func(r int) bool {
		for _, c := range cols {
			if d.data[c][r] != nil {
				return true
			}
		}
		return false
	}), nil
}

// ToNumeric coerces the named columns to numbers. Booleans become 0/1,
// numeric strings are parsed, anything else becomes null.
func (d *Dataset) ToNumeric(names ...string) (*Dataset, error) {
	cols, err := d.positions(names)
	if err != nil {
		return nil, err
	}
	out := d.clone()
	for _, c := range cols {
		col := make([]any, len(out.data[c]))
		for r, v := range out.data[c] {
			col[r] = coerceNumber(v)
		}
		out.data[c] = col
	}
	return out, nil
}

// Head returns the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	return d.filter(func(r int) bool { return r < n })
}

func (d *Dataset) positions(names []string) ([]int, error) {
	if len(names) == 0 {
		all := make([]int, len(d.columns))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	out := make([]int, 0, len(names))
	for _, name := range names {
		c, ok := d.pos[name]
		if !ok {
			return nil, &ColumnError{Column: name}
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *Dataset) filter(keep func(r int) bool) *Dataset {
	out, _ := empty(d.columns, len(d.index))
	for r, id := range d.index {
		if !keep(r) {
			continue
		}
		for c := range d.columns {
			out.data[c] = append(out.data[c], d.data[c][r])
		}
		out.index = append(out.index, id)
	}
	return out
}

func (d *Dataset) clone() *Dataset {
	out, _ := empty(d.columns, len(d.index))
	for c := range d.columns {
		out.data[c] = slices.Clone(d.data[c])
	}
	out.index = slices.Clone(d.index)
	return out
}

// ColumnError reports a reference to a column the dataset does not have.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

// AsFloat returns v as a float64 when it is an int64 or float64 cell.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Normalize converts a Go value into one of the cell types.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64:
		return x, nil
	case float64:
		if math.IsNaN(x) {
			return nil, nil
		}
		return x, nil
	case float32:
		return Normalize(float64(x))
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", x.String())
		}
		return f, nil
	case time.Time:
		return x.Format(TimestampLayout), nil
	}
	return nil, fmt.Errorf("unsupported cell type %T", v)
}

func coerceNumber(v any) any {
	switch x := v.(type) {
	case int64, float64:
		return x
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return f
		}
	}
	return nil
}
