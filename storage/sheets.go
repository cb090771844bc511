package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"pricewatch/models"
)

// SheetsSource reads the raw observation table from a Google Sheets range.
type SheetsSource struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheetsSource authenticates with a service-account JSON key file.
func NewSheetsSource(ctx context.Context, credentialsFile, spreadsheetID, readRange string) (*SheetsSource, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets: read credentials: %w", err)
	}
	return newSheetsSource(ctx, spreadsheetID, readRange,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
}

func newSheetsSource(ctx context.Context, spreadsheetID, readRange string, opts ...option.ClientOption) (*SheetsSource, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &SheetsSource{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

func (s *SheetsSource) Fetch(ctx context.Context) (*models.RawTable, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: get %s: %w", s.readRange, err)
	}
	return valuesToTable(resp.Values)
}

func (s *SheetsSource) Close() error { return nil }

// valuesToTable stringifies a Sheets value grid. The API omits trailing
// empty cells, so rows may be shorter than the header.
func valuesToTable(values [][]interface{}) (*models.RawTable, error) {
	if len(values) == 0 {
		return nil, errors.New("sheets: range has no header row")
	}
	table := &models.RawTable{
		Header: stringifyRow(values[0]),
		Rows:   make([][]string, 0, len(values)-1),
	}
	for _, row := range values[1:] {
		table.Rows = append(table.Rows, stringifyRow(row))
	}
	return table, nil
}

func stringifyRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
