// Package dataset loads the raw survey and incident CSV exports into memory
// and resolves their loosely named columns against a small vocabulary.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Table is one input CSV held wholly in memory. Rows are keyed by the exact
// header strings; cells missing from short rows are present as "".
type Table struct {
	Path    string
	Headers []string
	Rows    []map[string]string
}

// ColumnNotFoundError reports that no header matched a vocabulary token set.
// Callers treat it as fatal for required columns (coordinates, street names,
// neighborhood) and as "no contribution" for optional per-problem columns.
type ColumnNotFoundError struct {
	Tokens []string
	Path   string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("no column matching %q in %s", strings.Join(e.Tokens, "+"), e.Path)
}

// Load reads a whole CSV file into a Table. The survey exports carry a UTF-8
// BOM and occasionally ragged rows, so both are tolerated here rather than at
// every call site.
func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse %s: missing header row", path)
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Path: path, Headers: headers, Rows: rows}, nil
}

// Match returns, in original header order, the columns whose lowercase name
// contains every token as a substring.
func (t *Table) Match(tokens ...string) []string {
	var out []string
	for _, h := range t.Headers {
		if containsAll(strings.ToLower(h), tokens) {
			out = append(out, h)
		}
	}
	return out
}

// MatchAny returns, in original header order, the columns whose lowercase
// name contains at least one of the tokens.
func (t *Table) MatchAny(tokens ...string) []string {
	var out []string
	for _, h := range t.Headers {
		lower := strings.ToLower(h)
		for _, tok := range tokens {
			if strings.Contains(lower, strings.ToLower(tok)) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// Column resolves the first header matching all tokens, or a
// ColumnNotFoundError if none does. When several headers match, the first in
// original column order wins.
func (t *Table) Column(tokens ...string) (string, error) {
	if cols := t.Match(tokens...); len(cols) > 0 {
		return cols[0], nil
	}
	return "", &ColumnNotFoundError{Tokens: tokens, Path: t.Path}
}

// Values returns the named column's cells in row order.
func (t *Table) Values(col string) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[col]
	}
	return out
}

func containsAll(lower string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(lower, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}
