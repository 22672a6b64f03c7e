// Package table normalizes heterogeneous backend result rows into a uniform
// column/row view. Rows arrive either positional (JSON arrays) or named
// (JSON objects); no other package inspects row shape.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"

	"SQLChat/internal/session"
)

// Table is a normalized result set ready for rendering.
type Table struct {
	Columns []string
	Cells   [][]string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Cells)
}

// Normalize converts backend rows into columns and string cells.
//
// A nil row slice yields a nil table (no table section at all); a present
// but empty slice yields an empty table. Positional rows get synthesized
// "Col N" headers sized to the first row; named rows use the first row's
// keys in backend order. Later named rows missing a key render an empty
// cell and extra keys are dropped. Malformed rows degrade to a single cell
// holding their raw text rather than failing the whole set.
func Normalize(rows []session.Row) *Table {
	if rows == nil {
		return nil
	}
	t := &Table{}
	if len(rows) == 0 {
		return t
	}

	first := bytes.TrimSpace(rows[0])
	switch {
	case len(first) > 0 && first[0] == '{':
		normalizeNamed(rows, t)
	default:
		normalizePositional(rows, t)
	}
	return t
}

func normalizePositional(rows []session.Row, t *Table) {
	var firstValues []json.RawMessage
	if err := json.Unmarshal(rows[0], &firstValues); err != nil {
		// Scalar or malformed first row: one column, raw cells.
		t.Columns = []string{"Col 1"}
		for _, row := range rows {
			t.Cells = append(t.Cells, []string{stringifyCell(row)})
		}
		return
	}

	for i := range firstValues {
		t.Columns = append(t.Columns, fmt.Sprintf("Col %d", i+1))
	}

	for _, row := range rows {
		var values []json.RawMessage
		if err := json.Unmarshal(row, &values); err != nil {
			t.Cells = append(t.Cells, []string{stringifyCell(row)})
			continue
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = stringifyCell(v)
		}
		t.Cells = append(t.Cells, cells)
	}
}

func normalizeNamed(rows []session.Row, t *Table) {
	keys, err := orderedKeys(rows[0])
	if err != nil {
		t.Columns = []string{"Col 1"}
		for _, row := range rows {
			t.Cells = append(t.Cells, []string{stringifyCell(row)})
		}
		return
	}
	t.Columns = keys

	for _, row := range rows {
		var values map[string]json.RawMessage
		if err := json.Unmarshal(row, &values); err != nil {
			t.Cells = append(t.Cells, []string{stringifyCell(row)})
			continue
		}
		cells := make([]string, len(keys))
		for i, key := range keys {
			if v, ok := values[key]; ok {
				cells[i] = stringifyCell(v)
			}
		}
		t.Cells = append(t.Cells, cells)
	}
}

// stringifyCell renders one JSON value: null becomes the literal "null",
// composites keep their JSON text (compacted, key order preserved), strings
// lose their quotes and every other scalar keeps its direct form.
func stringifyCell(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "null"
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

// orderedKeys extracts an object's keys in document order, which the
// stdlib map decoding would lose.
func orderedKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '[' && d != '{') {
		return nil
	}
	for dec.More() {
		if d == '{' {
			if _, err := dec.Token(); err != nil {
				return err
			}
		}
		if err := skipValue(dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
