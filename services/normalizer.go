package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pricewatch/models"
	"pricewatch/utils"
)

// ExcludedRetailer is dropped from every dataset at load time.
const ExcludedRetailer = "Costco"

// timestampLayouts are tried in order when parsing the timestamp column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
	"01/02/2006",
}

// columnAliases maps lower-cased header names onto canonical columns.
var columnAliases = map[string]string{
	"fecha_hora":       models.ColTimestamp,
	"timestamp":        models.ColTimestamp,
	"retailer":         models.ColRetailer,
	"modelo":           models.ColModel,
	"model":            models.ColModel,
	"producto":         models.ColProductName,
	"product_name":     models.ColProductName,
	"precio":           models.ColPrice,
	"price":            models.ColPrice,
	"precio_descuento": models.ColDiscountPrice,
	"discount_price":   models.ColDiscountPrice,
	"cantidad":         models.ColQuantity,
	"quantity":         models.ColQuantity,
}

// Normalizer types raw sheet rows into Observations.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize maps every data row of table onto an Observation. The first
// failing row aborts the whole load with a *SchemaError. Rows of the excluded
// retailer are dropped after they have been validated. The input is not
// modified.
func (n *Normalizer) Normalize(table *models.RawTable) ([]models.Observation, error) {
	if table == nil {
		return []models.Observation{}, nil
	}

	idx, err := resolveColumns(table.Header)
	if err != nil {
		return nil, err
	}

	result := make([]models.Observation, 0, len(table.Rows))
	excluded := 0
	for i, row := range table.Rows {
		obs, err := parseRow(i, row, idx)
		if err != nil {
			return nil, err
		}
		if obs.Retailer == ExcludedRetailer {
			excluded++
			continue
		}
		result = append(result, obs)
	}

	n.logger.Info("[normalizer] Normalized %d rows → %d observations (excluded %d %s rows)",
		len(table.Rows), len(result), excluded, ExcludedRetailer)
	return result, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(models.CanonicalHeader))
	for i, name := range header {
		canon, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, dup := idx[canon]; !dup {
			idx[canon] = i
		}
	}
	for _, col := range models.CanonicalHeader {
		if _, ok := idx[col]; !ok {
			return nil, &SchemaError{Row: -1, Column: col, Err: ErrMissingColumn}
		}
	}
	return idx, nil
}

func parseRow(i int, row []string, idx map[string]int) (models.Observation, error) {
	cell := func(col string) string {
		j := idx[col]
		if j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}
	fail := func(col string, err error) error {
		return &SchemaError{Row: i, Column: col, Value: cell(col), Err: err}
	}

	var obs models.Observation
	var err error

	if obs.Timestamp, err = parseTimestamp(cell(models.ColTimestamp)); err != nil {
		return obs, fail(models.ColTimestamp, err)
	}
	if obs.Retailer = cell(models.ColRetailer); obs.Retailer == "" {
		return obs, fail(models.ColRetailer, ErrEmptyValue)
	}
	if obs.Model = cell(models.ColModel); obs.Model == "" {
		return obs, fail(models.ColModel, ErrEmptyValue)
	}
	obs.ProductName = cell(models.ColProductName)
	if obs.Price, err = parseAmount(cell(models.ColPrice)); err != nil {
		return obs, fail(models.ColPrice, err)
	}
	if obs.DiscountPrice, err = parseAmount(cell(models.ColDiscountPrice)); err != nil {
		return obs, fail(models.ColDiscountPrice, err)
	}
	if obs.Quantity, err = parseQuantity(cell(models.ColQuantity)); err != nil {
		return obs, fail(models.ColQuantity, err)
	}
	return obs, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, ErrEmptyValue
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

// parseAmount parses a non-negative, finite decimal.
func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, ErrEmptyValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Unwrap(err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount")
	}
	return v, nil
}

// parseQuantity accepts integral values, including spreadsheet-style "2.0".
func parseQuantity(raw string) (int, error) {
	v, err := parseAmount(raw)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, fmt.Errorf("not a whole number")
	}
	return int(v), nil
}
