package storage

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"pricewatch/models"
)

// XLSXSource reads a raw observation table from one sheet of a workbook,
// such as a spreadsheet export of the price sheet.
type XLSXSource struct {
	path  string
	sheet string
}

// NewXLSXSource creates a source reading sheet from the workbook at path.
func NewXLSXSource(path, sheet string) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet}
}

func (s *XLSXSource) Fetch(ctx context.Context) (*models.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %q: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", s.sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx: sheet %q has no header row", s.sheet)
	}
	return &models.RawTable{Header: rows[0], Rows: rows[1:]}, nil
}

func (s *XLSXSource) Close() error { return nil }
