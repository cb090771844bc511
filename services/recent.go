package services

import (
	"sort"
	"time"

	"pricewatch/models"
)

const (
	// LeaderboardSize caps the package and discount leaderboards.
	LeaderboardSize = 5
	// DiscountChartSize caps the top-discount chart.
	DiscountChartSize = 10
	// NoOffersMessage is shown when the window holds no observations.
	NoOffersMessage = "No recent offers in this date range."
)

// RecentOffers builds the leaderboards and discount chart from filtered
// observations no older than ComparisonWindow before anchor. Callers pass the
// latest timestamp of the full dataset as anchor, not of the filtered subset.
func RecentOffers(filtered []models.Observation, anchor time.Time) models.RecentOffers {
	cutoff := anchor.Add(-ComparisonWindow)
	window := make([]models.Observation, 0, len(filtered))
	for _, o := range filtered {
		if !o.Timestamp.Before(cutoff) {
			window = append(window, o)
		}
	}
	if len(window) == 0 {
		return NoOffers()
	}

	return models.RecentOffers{
		Packages:  packageLeaderboard(window),
		Discounts: discountLeaderboard(window),
		TopRanks:  discountRanking(window),
	}
}

// NoOffers is the sentinel returned for an empty window.
func NoOffers() models.RecentOffers {
	return models.RecentOffers{
		Empty:     true,
		Message:   NoOffersMessage,
		Packages:  []models.PackageOffer{},
		Discounts: []models.DiscountOffer{},
		TopRanks:  []models.DiscountRank{},
	}
}

// windowDiscountPct is the two-decimal variant of DiscountPct used by the
// recent-offers views.
func windowDiscountPct(o models.Observation) (float64, bool) {
	pct, ok := DiscountPct(o)
	if !ok {
		return 0, false
	}
	return roundHalfEven(pct, 2), true
}

func packageLeaderboard(window []models.Observation) []models.PackageOffer {
	seen := make(map[pairKey]struct{})
	out := make([]models.PackageOffer, 0, LeaderboardSize)
	for _, o := range window {
		if len(out) == LeaderboardSize {
			break
		}
		offer, ok := Classify(o)
		if !ok || offer.Kind != PackageOffer {
			continue
		}
		k := pairKey{o.Retailer, o.Model}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, models.PackageOffer{
			Model:    offer.Model,
			Retailer: offer.Retailer,
			Quantity: offer.Quantity,
			Price:    offer.Price,
			Label:    packageLabel(offer.Quantity, offer.Price, offer.Model, offer.Retailer),
		})
	}
	return out
}

func discountLeaderboard(window []models.Observation) []models.DiscountOffer {
	type candidate struct {
		obs models.Observation
		pct float64
	}
	var candidates []candidate
	for _, o := range window {
		if o.Quantity != 1 {
			continue
		}
		if pct, ok := windowDiscountPct(o); ok {
			candidates = append(candidates, candidate{o, pct})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].pct > candidates[j].pct
	})

	seen := make(map[pairKey]struct{})
	out := make([]models.DiscountOffer, 0, LeaderboardSize)
	for _, c := range candidates {
		if len(out) == LeaderboardSize {
			break
		}
		k := pairKey{c.obs.Retailer, c.obs.Model}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, models.DiscountOffer{
			Model:       c.obs.Model,
			Retailer:    c.obs.Retailer,
			DiscountPct: c.pct,
			Label:       discountLabel(c.pct, c.obs.Model, c.obs.Retailer),
		})
	}
	return out
}

// discountRanking keeps the best discount per (model, retailer) over every
// discounted row, bundles included.
func discountRanking(window []models.Observation) []models.DiscountRank {
	best := make(map[pairKey]float64)
	var keys []pairKey
	for _, o := range window {
		pct, ok := windowDiscountPct(o)
		if !ok {
			continue
		}
		k := pairKey{o.Retailer, o.Model}
		cur, seen := best[k]
		if !seen {
			keys = append(keys, k)
			best[k] = pct
			continue
		}
		if pct > cur {
			best[k] = pct
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].model != keys[j].model {
			return keys[i].model < keys[j].model
		}
		return keys[i].retailer < keys[j].retailer
	})
	sort.SliceStable(keys, func(i, j int) bool {
		return best[keys[i]] > best[keys[j]]
	})
	if len(keys) > DiscountChartSize {
		keys = keys[:DiscountChartSize]
	}

	out := make([]models.DiscountRank, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.DiscountRank{
			Model:       k.model,
			Retailer:    k.retailer,
			DiscountPct: best[k],
			Key:         rankKey(k.model, k.retailer),
		})
	}
	return out
}
