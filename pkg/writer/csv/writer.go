// Package csv writes unified PSM tables as delimited text and reads them back.
package csv

import (
	enccsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
)

// DelimiterFor returns tab for .tsv and .txt paths and comma otherwise.
func DelimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		return '\t'
	}
	return ','
}

// Write writes the header and rows of t.
func Write(w io.Writer, t *sanitize.Table, delimiter rune) error {
	cw := enccsv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes t to path, choosing the delimiter from its extension.
func WriteFile(path string, t *sanitize.Table) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(fh, t, DelimiterFor(path)); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// Read parses a unified table and sanitizes it, so tables written by other
// tools come back in canonical form.
func Read(r io.Reader, delimiter rune) (*sanitize.Table, error) {
	cr := enccsv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty table")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &sanitize.Table{Header: header, Rows: records[1:]}
	t.Sanitize()
	return t, nil
}

// ReadFile reads a unified table from path.
func ReadFile(path string) (*sanitize.Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer fh.Close()
	return Read(fh, DelimiterFor(path))
}
