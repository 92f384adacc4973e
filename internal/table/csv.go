package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadCSV parses a table with a header row. Empty cells are read as null.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := New()
	for _, h := range header {
		t.AddColumn(h)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", t.Len()+1, err)
		}

		row := make(Row, len(header))
		for i, cell := range record {
			if i >= len(header) || cell == "" {
				continue
			}
			row[header[i]] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteCSV writes the header and all rows. Null cells are written empty.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := t.writeRows(writer, t.Columns); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func (t *Table) writeRows(writer *csv.Writer, columns []string) error {
	record := make([]string, len(columns))
	for i, r := range t.Rows {
		for j, c := range columns {
			record[j] = r[c]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	return nil
}

// LoadFile reads a CSV table from path
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// SaveFile writes the table to path, replacing any existing file
func (t *Table) SaveFile(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// AppendFile appends the rows to path. The header is written only when the file is new
// or empty; otherwise rows follow the existing header's column order.
func (t *Table) AppendFile(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	columns := t.Columns
	writeHeader := true
	if existing, err := os.Open(path); err == nil {
		header, err := csv.NewReader(existing).Read()
		existing.Close()
		if err == nil {
			columns = header
			writeHeader = false
		} else if !errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: reading header: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(f)
	if writeHeader {
		if err := writer.Write(columns); err != nil {
			f.Close()
			return fmt.Errorf("%s: writing header: %w", path, err)
		}
	}
	if err := t.writeRows(writer, columns); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
