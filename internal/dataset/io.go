package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TimestampLayout is the ISO layout used for timestamp cells.
const TimestampLayout = "2006-01-02T15:04:05.000"

// Load reads a dataset from a .json (array of records) or .csv file.
func Load(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".csv":
		return LoadCSV(path)
	}
	return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
}

// LoadJSON reads a JSON array of records from path.
func LoadJSON(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadJSON(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return ds, nil
}

// ReadJSON decodes a JSON array of records. Column order follows the order in
// which keys first appear.
func ReadJSON(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	var columns []string
	seen := make(map[string]struct{})
	var records []map[string]any

	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		rec := make(map[string]any)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("record %d: expected object key, got %v", len(records), tok)
			}
			var val any
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("record %d, key %q: %w", len(records), key, err)
			}
			if _, nested := val.(map[string]any); nested {
				return nil, fmt.Errorf("record %d, key %q: nested objects are not supported", len(records), key)
			}
			if _, nested := val.([]any); nested {
				return nil, fmt.Errorf("record %d, key %q: arrays are not supported", len(records), key)
			}
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
			rec[key] = val
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return New(nil, nil)
	}
	return FromRecords(columns, records)
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// LoadCSV reads a CSV file whose first row is the header.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV decodes CSV with a header row. Empty cells are null; other cells
// become int64, float64 or bool when they parse as such, strings otherwise.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv input has no header row")
		}
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows [][]any
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = inferCell(cell)
		}
		rows = append(rows, row)
	}
	return New(header, rows)
}

func inferCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// WriteJSON writes the dataset to path as an indented array of records,
// keeping column order.
func WriteJSON(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	data, err := MarshalRecords(ds)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

// MarshalRecords encodes the dataset as a JSON array of records.
func MarshalRecords(ds *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for r := 0; r < ds.Len(); r++ {
		if r > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for c, name := range ds.columns {
			if c > 0 {
				buf.WriteString(",")
			}
			key, _ := json.Marshal(name)
			val, err := json.Marshal(ds.data[c][r])
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", r, name, err)
			}
			buf.WriteString("\n    ")
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("\n  }")
	}
	if ds.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}
