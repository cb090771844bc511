package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pricewatch/models"
)

var validate = validator.New()

// Set is a string membership predicate. An empty Set matches nothing.
type Set map[string]struct{}

// NewSet builds a Set from values.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Query carries the per-invocation parameters. Dates are compared on their
// calendar component only and both bounds are inclusive.
type Query struct {
	StartDate        time.Time `validate:"required"`
	EndDate          time.Time `validate:"required,gtefield=StartDate"`
	Models           []string
	Retailers        []string
	CompareRetailers []string
}

// Validate rejects zero dates and inverted ranges.
func (q Query) Validate() error {
	q.StartDate, q.EndDate = normalizeDate(q.StartDate), normalizeDate(q.EndDate)
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return nil
}

// Key is a canonical encoding of q: equal keys mean equal results on the
// same snapshot.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(models.DateOf(q.StartDate).Format(time.DateOnly))
	b.WriteByte('|')
	b.WriteString(models.DateOf(q.EndDate).Format(time.DateOnly))
	for _, part := range [][]string{q.Models, q.Retailers, q.CompareRetailers} {
		b.WriteByte('|')
		for i, name := range NewSet(part...).Sorted() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(name))
		}
	}
	return b.String()
}

// DefaultQuery selects the whole snapshot: every date, model and retailer,
// comparing the first two retailers in sorted order. An empty snapshot gets
// the single day it was loaded on, so the query still validates.
func DefaultQuery(snap *models.Snapshot) Query {
	first, last, ok := snap.DateBounds()
	if !ok {
		loaded := snap.LoadedAt
		if loaded.IsZero() {
			loaded = time.Now()
		}
		first = models.DateOf(loaded)
		last = first
	}
	retailers := snap.Retailers()
	compare := retailers
	if len(compare) > 2 {
		compare = compare[:2]
	}
	return Query{
		StartDate:        first,
		EndDate:          last,
		Models:           snap.Models(),
		Retailers:        retailers,
		CompareRetailers: append([]string(nil), compare...),
	}
}

// Filter keeps observations dated within [start, end] whose model and
// retailer are members of the given sets. Input order is preserved.
func Filter(obs []models.Observation, start, end time.Time, modelSet, retailerSet Set) []models.Observation {
	start, end = models.DateOf(start), models.DateOf(end)
	out := make([]models.Observation, 0)
	for _, o := range obs {
		d := o.Date()
		if d.Before(start) || d.After(end) {
			continue
		}
		if !modelSet.Has(o.Model) || !retailerSet.Has(o.Retailer) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return models.DateOf(t)
}
