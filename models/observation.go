package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Canonical column names of the price sheet. The first row of every raw
// table is matched against these (or their English aliases).
const (
	ColTimestamp     = "Fecha_Hora"
	ColRetailer      = "Retailer"
	ColModel         = "Modelo"
	ColProductName   = "Producto"
	ColPrice         = "Precio"
	ColDiscountPrice = "Precio_Descuento"
	ColQuantity      = "Cantidad"
)

// CanonicalHeader is the column order used when writing raw rows.
var CanonicalHeader = []string{
	ColTimestamp, ColRetailer, ColModel, ColProductName,
	ColPrice, ColDiscountPrice, ColQuantity,
}

// RawTable is an untyped header + rows table as delivered by a data source.
// Rows may be shorter than the header (spreadsheet APIs drop trailing blanks).
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Observation is one normalized price point scraped from a retailer.
type Observation struct {
	Timestamp     time.Time `json:"timestamp"`
	Retailer      string    `json:"retailer"`
	Model         string    `json:"model"`
	ProductName   string    `json:"product_name"`
	Price         float64   `json:"price"`
	DiscountPrice float64   `json:"discount_price"`
	Quantity      int       `json:"quantity"`
}

// Date returns the calendar date of the observation as midnight UTC.
func (o Observation) Date() time.Time {
	return DateOf(o.Timestamp)
}

// DateOf drops the time-of-day component of t, keeping its wall-clock date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Snapshot is an immutable, normalized observation set. A refresh builds a
// new Snapshot; nothing mutates one after construction.
type Snapshot struct {
	ID           uuid.UUID
	LoadedAt     time.Time
	Observations []Observation
}

// NewSnapshot wraps observations in a snapshot with a fresh ID.
func NewSnapshot(obs []Observation, loadedAt time.Time) *Snapshot {
	return &Snapshot{
		ID:           uuid.New(),
		LoadedAt:     loadedAt,
		Observations: obs,
	}
}

// Models returns the sorted distinct model identifiers.
func (s *Snapshot) Models() []string {
	return distinct(s.Observations, func(o Observation) string { return o.Model })
}

// Retailers returns the sorted distinct retailer identifiers.
func (s *Snapshot) Retailers() []string {
	return distinct(s.Observations, func(o Observation) string { return o.Retailer })
}

// MaxTimestamp returns the latest observation timestamp; ok is false when the
// snapshot is empty.
func (s *Snapshot) MaxTimestamp() (max time.Time, ok bool) {
	for i, o := range s.Observations {
		if i == 0 || o.Timestamp.After(max) {
			max = o.Timestamp
		}
	}
	return max, len(s.Observations) > 0
}

// DateBounds returns the first and last calendar dates present.
func (s *Snapshot) DateBounds() (first, last time.Time, ok bool) {
	if len(s.Observations) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = s.Observations[0].Date(), s.Observations[0].Date()
	for _, o := range s.Observations[1:] {
		d := o.Date()
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

func distinct(obs []Observation, key func(Observation) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, o := range obs {
		k := key(o)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
