package services

import (
	"fmt"
	"io"
	"strings"

	"pricewatch/models"
)

// ReportPrinter renders a report as colored terminal text.
type ReportPrinter struct {
	w io.Writer
}

// NewReportPrinter creates a printer writing to w.
func NewReportPrinter(w io.Writer) *ReportPrinter {
	return &ReportPrinter{w: w}
}

func (p *ReportPrinter) Print(r *models.Report) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Fprintf(p.w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(p.w, "\033[1;35m  📊 RETAIL PRICE REPORT  (snapshot %s)\033[0m\n", r.SnapshotID)
	fmt.Fprintf(p.w, "\033[1;35m%s\033[0m\n\n", sep)

	// Recent offers
	fmt.Fprintf(p.w, "\033[1;33m  Recent Offers (last 7 days)\033[0m\n")
	fmt.Fprintf(p.w, "  %s\n", thin)
	if r.Offers.Empty {
		fmt.Fprintf(p.w, "  %s\n", r.Offers.Message)
	} else {
		fmt.Fprintf(p.w, "  📦 Package deals\n")
		for _, o := range r.Offers.Packages {
			fmt.Fprintf(p.w, "     %s\n", o.Label)
		}
		fmt.Fprintf(p.w, "  💸 Single-unit discounts\n")
		for _, o := range r.Offers.Discounts {
			fmt.Fprintf(p.w, "     %s\n", o.Label)
		}
		fmt.Fprintln(p.w)
		fmt.Fprintf(p.w, "  Top discounts by product and retailer\n")
		for i, rk := range r.Offers.TopRanks {
			fmt.Fprintf(p.w, "  \033[1m%2d.\033[0m %-40s \033[1;32m%6.2f%%\033[0m\n",
				i+1, truncate(rk.Key, 38), rk.DiscountPct)
		}
	}
	fmt.Fprintln(p.w)

	// Heatmap
	fmt.Fprintf(p.w, "\033[1;33m  Mean Price by Retailer and Model\033[0m\n")
	fmt.Fprintf(p.w, "  %s\n", thin)
	m := r.PriceMatrix
	if len(m.Retailers) == 0 {
		fmt.Fprintf(p.w, "  No price data available\n")
	} else {
		fmt.Fprintf(p.w, "  %-16s", "")
		for _, md := range m.Models {
			fmt.Fprintf(p.w, " %10s", truncate(md, 10))
		}
		fmt.Fprintln(p.w)
		for i, ret := range m.Retailers {
			fmt.Fprintf(p.w, "  %-16s", truncate(ret, 16))
			for j := range m.Models {
				fmt.Fprintf(p.w, " %10d", m.Cells[i][j])
			}
			fmt.Fprintln(p.w)
		}
	}
	fmt.Fprintln(p.w)

	// Top retailers
	fmt.Fprintf(p.w, "\033[1;33m  Top Retailers by Mean Price\033[0m\n")
	fmt.Fprintf(p.w, "  %s\n", thin)
	if len(r.TopRetailers) == 0 {
		fmt.Fprintf(p.w, "  No price data available\n")
	}
	for _, b := range r.TopRetailers {
		fmt.Fprintf(p.w, "  %-20s %-20s \033[1;32m$%.2f\033[0m\n",
			truncate(b.Retailer, 20), truncate(b.Model, 20), b.MeanPrice)
	}
	fmt.Fprintln(p.w)

	// Comparisons
	fmt.Fprintf(p.w, "\033[1;33m  Retailer Comparison\033[0m\n")
	fmt.Fprintf(p.w, "  %s\n", thin)
	if !r.Comparison.Valid {
		fmt.Fprintf(p.w, "  \033[1;31m%s\033[0m\n", r.Comparison.Message)
	} else {
		fmt.Fprintf(p.w, "  By hour of day\n")
		for _, h := range r.Hourly {
			fmt.Fprintf(p.w, "  %02d:00  %-36s $%.2f\n", h.Hour, truncate(h.Label, 36), h.MeanPrice)
		}
		fmt.Fprintf(p.w, "  By day (last 7 days)\n")
		for _, d := range r.Daily {
			fmt.Fprintf(p.w, "  %s  %-32s $%.2f\n", d.Date.Format("2006-01-02"), truncate(d.Label, 32), d.MeanPrice)
		}
	}

	fmt.Fprintf(p.w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
