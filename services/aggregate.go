package services

import (
	"sort"
	"strings"
	"time"

	"pricewatch/models"
)

const (
	// TopRetailerCount is how many cheapest retailers the bar chart keeps.
	TopRetailerCount = 5
	// ComparisonWindow is the trailing span of the daily comparison and of
	// the recent-offers selector.
	ComparisonWindow = 7 * 24 * time.Hour
)

// DefaultPackSizeTokens are product-name fragments that mark multi-liter or
// multi-unit variants. Both decimal separators are listed explicitly.
func DefaultPackSizeTokens() []string {
	return []string{
		"1,5", "1.5", "1,4", "1.4", "1,2", "1.2",
		"2l", "2 l", "3l", "3 l", "5l", "5 l", "6l", "6 l",
	}
}

// PackSizeFilter matches product names against pack-size tokens,
// case-insensitively and treating "," and "." as the same decimal separator,
// so the token "1.5" also matches "1,5 L". It is a plain substring
// heuristic: "12 l" matches "2 l", and a product spelled "1½ L" slips through.
type PackSizeFilter struct {
	tokens []string
}

// NewPackSizeFilter builds a filter from tokens; blank and duplicate tokens
// are ignored.
func NewPackSizeFilter(tokens []string) *PackSizeFilter {
	f := &PackSizeFilter{}
	seen := NewSet()
	for _, t := range tokens {
		t = foldPackSize(strings.TrimSpace(t))
		if t == "" || seen.Has(t) {
			continue
		}
		seen[t] = struct{}{}
		f.tokens = append(f.tokens, t)
	}
	return f
}

// Excludes reports whether productName contains any token.
func (f *PackSizeFilter) Excludes(productName string) bool {
	name := foldPackSize(productName)
	for _, t := range f.tokens {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

func foldPackSize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), ",", ".")
}

type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v float64) {
	a.sum += v
	a.n++
}

func (a *meanAcc) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

type pairKey struct {
	retailer string
	model    string
}

// BuildPriceMatrix averages prices per (retailer, model) over the rows the
// pack-size filter keeps, rounding to whole units. Rows and columns are
// sorted; absent combinations hold zero.
func BuildPriceMatrix(obs []models.Observation, packSize *PackSizeFilter) models.PriceMatrix {
	groups := make(map[pairKey]*meanAcc)
	retailers, modelSet := NewSet(), NewSet()
	for _, o := range obs {
		if packSize != nil && packSize.Excludes(o.ProductName) {
			continue
		}
		k := pairKey{o.Retailer, o.Model}
		acc, ok := groups[k]
		if !ok {
			acc = &meanAcc{}
			groups[k] = acc
		}
		acc.add(o.Price)
		retailers[o.Retailer] = struct{}{}
		modelSet[o.Model] = struct{}{}
	}

	m := models.PriceMatrix{
		Retailers: retailers.Sorted(),
		Models:    modelSet.Sorted(),
	}
	m.Cells = make([][]int, len(m.Retailers))
	for i, r := range m.Retailers {
		m.Cells[i] = make([]int, len(m.Models))
		for j, md := range m.Models {
			if acc, ok := groups[pairKey{r, md}]; ok {
				m.Cells[i][j] = int(roundHalfEven(acc.mean(), 0))
			}
		}
	}
	return m
}

// CheapestRetailers returns up to n retailers with the lowest mean price.
// Equal means keep the order in which the retailers first appear.
func CheapestRetailers(obs []models.Observation, n int) []string {
	var order []string
	groups := make(map[string]*meanAcc)
	for _, o := range obs {
		acc, ok := groups[o.Retailer]
		if !ok {
			acc = &meanAcc{}
			groups[o.Retailer] = acc
			order = append(order, o.Retailer)
		}
		acc.add(o.Price)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]].mean() < groups[order[j]].mean()
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// TopRetailers restricts obs to the TopRetailerCount cheapest retailers and
// averages price per (retailer, model), rounded to cents.
func TopRetailers(obs []models.Observation) []models.RetailerModelPrice {
	top := NewSet(CheapestRetailers(obs, TopRetailerCount)...)

	groups := make(map[pairKey]*meanAcc)
	var keys []pairKey
	for _, o := range obs {
		if !top.Has(o.Retailer) {
			continue
		}
		k := pairKey{o.Retailer, o.Model}
		acc, ok := groups[k]
		if !ok {
			acc = &meanAcc{}
			groups[k] = acc
			keys = append(keys, k)
		}
		acc.add(o.Price)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].retailer != keys[j].retailer {
			return keys[i].retailer < keys[j].retailer
		}
		return keys[i].model < keys[j].model
	})

	out := make([]models.RetailerModelPrice, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.RetailerModelPrice{
			Retailer:  k.retailer,
			Model:     k.model,
			MeanPrice: roundHalfEven(groups[k].mean(), 2),
		})
	}
	return out
}

// comparisonSet validates that exactly two distinct retailers were chosen.
func comparisonSet(retailers []string) (Set, error) {
	set := NewSet(retailers...)
	if len(set) != 2 {
		return nil, ErrInvalidComparisonSelection
	}
	return set, nil
}

type seriesKey struct {
	bucket   int64
	model    string
	retailer string
}

func lessSeries(a, b seriesKey) bool {
	if a.bucket != b.bucket {
		return a.bucket < b.bucket
	}
	if a.model != b.model {
		return a.model < b.model
	}
	return a.retailer < b.retailer
}

// groupSeries averages price per (bucket, model, retailer) for the compared
// retailers, returning keys in ascending order.
func groupSeries(obs []models.Observation, compare Set, bucket func(models.Observation) int64) ([]seriesKey, map[seriesKey]*meanAcc) {
	groups := make(map[seriesKey]*meanAcc)
	var keys []seriesKey
	for _, o := range obs {
		if !compare.Has(o.Retailer) {
			continue
		}
		k := seriesKey{bucket(o), o.Model, o.Retailer}
		acc, ok := groups[k]
		if !ok {
			acc = &meanAcc{}
			groups[k] = acc
			keys = append(keys, k)
		}
		acc.add(o.Price)
	}
	sort.Slice(keys, func(i, j int) bool { return lessSeries(keys[i], keys[j]) })
	return keys, groups
}

// HourlyComparison averages price per hour of day, model and retailer for
// the two compared retailers.
func HourlyComparison(obs []models.Observation, compareRetailers []string) ([]models.HourlyPoint, error) {
	compare, err := comparisonSet(compareRetailers)
	if err != nil {
		return nil, err
	}
	keys, groups := groupSeries(obs, compare, func(o models.Observation) int64 {
		return int64(o.Timestamp.Hour())
	})

	out := make([]models.HourlyPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.HourlyPoint{
			Hour:      int(k.bucket),
			Model:     k.model,
			Retailer:  k.retailer,
			MeanPrice: groups[k].mean(),
			Label:     seriesLabel(k.model, k.retailer),
		})
	}
	return out, nil
}

// DailyComparison averages price per calendar date, model and retailer for
// the two compared retailers over the ComparisonWindow ending at the latest
// compared observation.
func DailyComparison(obs []models.Observation, compareRetailers []string) ([]models.DailyPoint, error) {
	compare, err := comparisonSet(compareRetailers)
	if err != nil {
		return nil, err
	}

	var latest time.Time
	for _, o := range obs {
		if compare.Has(o.Retailer) && o.Timestamp.After(latest) {
			latest = o.Timestamp
		}
	}
	cutoff := latest.Add(-ComparisonWindow)

	recent := make([]models.Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Timestamp.Before(cutoff) {
			recent = append(recent, o)
		}
	}
	keys, groups := groupSeries(recent, compare, func(o models.Observation) int64 {
		return o.Date().Unix()
	})

	out := make([]models.DailyPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.DailyPoint{
			Date:      time.Unix(k.bucket, 0).UTC(),
			Model:     k.model,
			Retailer:  k.retailer,
			MeanPrice: groups[k].mean(),
			Label:     seriesLabel(k.model, k.retailer),
		})
	}
	return out, nil
}
