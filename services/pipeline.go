package services

import (
	"errors"
	"fmt"

	"pricewatch/models"
	"pricewatch/utils"
)

// ComparisonMessage is reported when the comparison selection is not
// exactly two retailers.
const ComparisonMessage = "Please select exactly 2 retailers to compare."

// Runner produces a report for a query against a snapshot.
type Runner interface {
	Run(snap *models.Snapshot, q Query) (*models.Report, error)
}

// Pipeline composes filtering and aggregation into the five result sets.
// It holds no per-query state and is safe for concurrent use.
type Pipeline struct {
	packSize *PackSizeFilter
	logger   *utils.Logger
}

// NewPipeline creates a Pipeline excluding heatmap rows by packSize.
func NewPipeline(packSize *PackSizeFilter, logger *utils.Logger) *Pipeline {
	return &Pipeline{packSize: packSize, logger: logger}
}

// Run evaluates q against snap. An invalid comparison selection is not an
// error: the report carries an invalid ComparisonStatus and empty series.
func (p *Pipeline) Run(snap *models.Snapshot, q Query) (*models.Report, error) {
	if snap == nil {
		return nil, errors.New("pipeline: no snapshot loaded")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filtered := Filter(snap.Observations, q.StartDate, q.EndDate, NewSet(q.Models...), NewSet(q.Retailers...))

	report := &models.Report{
		SnapshotID:   snap.ID.String(),
		PriceMatrix:  BuildPriceMatrix(filtered, p.packSize),
		TopRetailers: TopRetailers(filtered),
		Comparison:   models.ComparisonStatus{Valid: true},
		Hourly:       []models.HourlyPoint{},
		Daily:        []models.DailyPoint{},
	}

	compared := Filter(snap.Observations, q.StartDate, q.EndDate, NewSet(q.Models...), NewSet(q.CompareRetailers...))
	hourly, err := HourlyComparison(compared, q.CompareRetailers)
	switch {
	case errors.Is(err, ErrInvalidComparisonSelection):
		report.Comparison = models.ComparisonStatus{Valid: false, Message: ComparisonMessage}
		p.logger.Debug("[pipeline] Comparison skipped: %d retailers selected", len(NewSet(q.CompareRetailers...)))
	case err != nil:
		return nil, fmt.Errorf("pipeline: hourly comparison: %w", err)
	default:
		daily, err := DailyComparison(compared, q.CompareRetailers)
		if err != nil {
			return nil, fmt.Errorf("pipeline: daily comparison: %w", err)
		}
		report.Hourly, report.Daily = hourly, daily
	}

	if anchor, ok := snap.MaxTimestamp(); ok {
		report.Offers = RecentOffers(filtered, anchor)
	} else {
		report.Offers = NoOffers()
	}

	p.logger.Debug("[pipeline] Query %s matched %d of %d observations",
		q.Key(), len(filtered), len(snap.Observations))
	return report, nil
}
