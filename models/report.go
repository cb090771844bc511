package models

import "time"

// PriceMatrix is the retailer x model heatmap of rounded mean prices.
// Cells[i][j] belongs to Retailers[i] and Models[j]; missing pairs are zero.
type PriceMatrix struct {
	Retailers []string `json:"retailers"`
	Models    []string `json:"models"`
	Cells     [][]int  `json:"cells"`
}

// Value returns the cell for (retailer, model), or 0 when either is absent.
func (m PriceMatrix) Value(retailer, model string) int {
	for i, r := range m.Retailers {
		if r != retailer {
			continue
		}
		for j, md := range m.Models {
			if md == model {
				return m.Cells[i][j]
			}
		}
	}
	return 0
}

// RetailerModelPrice is one bar of the top-retailers chart.
type RetailerModelPrice struct {
	Retailer  string  `json:"retailer"`
	Model     string  `json:"model"`
	MeanPrice float64 `json:"mean_price"`
}

// HourlyPoint is the mean price of one model at one retailer for an hour of day.
type HourlyPoint struct {
	Hour      int     `json:"hour"`
	Model     string  `json:"model"`
	Retailer  string  `json:"retailer"`
	MeanPrice float64 `json:"mean_price"`
	Label     string  `json:"label"`
}

// DailyPoint is the mean price of one model at one retailer on a calendar date.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	Model     string    `json:"model"`
	Retailer  string    `json:"retailer"`
	MeanPrice float64   `json:"mean_price"`
	Label     string    `json:"label"`
}

// PackageOffer is a multi-unit bundle listed on the package leaderboard.
type PackageOffer struct {
	Model    string  `json:"model"`
	Retailer string  `json:"retailer"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Label    string  `json:"label"`
}

// DiscountOffer is a single-unit markdown listed on the discount leaderboard.
type DiscountOffer struct {
	Model       string  `json:"model"`
	Retailer    string  `json:"retailer"`
	DiscountPct float64 `json:"discount_pct"`
	Label       string  `json:"label"`
}

// DiscountRank is one bar of the top-10 discount chart.
type DiscountRank struct {
	Model       string  `json:"model"`
	Retailer    string  `json:"retailer"`
	DiscountPct float64 `json:"discount_pct"`
	Key         string  `json:"key"`
}

// RecentOffers bundles the leaderboards and the discount chart. When Empty is
// set, Message carries the informational label and every list is empty.
type RecentOffers struct {
	Empty     bool            `json:"empty"`
	Message   string          `json:"message,omitempty"`
	Packages  []PackageOffer  `json:"packages"`
	Discounts []DiscountOffer `json:"discounts"`
	TopRanks  []DiscountRank  `json:"top_discounts"`
}

// ComparisonStatus reports whether the two-retailer comparison could run.
type ComparisonStatus struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Report holds the five result sets produced for one query.
type Report struct {
	SnapshotID   string               `json:"snapshot_id"`
	PriceMatrix  PriceMatrix          `json:"price_matrix"`
	TopRetailers []RetailerModelPrice `json:"top_retailers"`
	Comparison   ComparisonStatus     `json:"comparison"`
	Hourly       []HourlyPoint        `json:"hourly"`
	Daily        []DailyPoint         `json:"daily"`
	Offers       RecentOffers         `json:"offers"`
}
