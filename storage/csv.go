package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"pricewatch/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource reads a raw observation table from a CSV file whose first record
// is the header.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading path on every Fetch.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Fetch(ctx context.Context) (*models.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", s.path, err)
	}
	return ParseCSV(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
}

func (s *CSVSource) Close() error { return nil }

// ParseCSV reads a header + rows table. Records may have differing lengths.
func ParseCSV(r io.Reader) (*models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv: no header row")
	}
	return &models.RawTable{Header: records[0], Rows: records[1:]}, nil
}

// CSVWriter appends canonical raw rows to a CSV file. It is safe for
// concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens (or creates) the CSV file at the given path for
// appending, writing the header row when the file is empty. Intermediate
// directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(models.CanonicalHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRows appends rows and flushes.
func (c *CSVWriter) WriteRows(_ context.Context, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range rows {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
