package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/models"
	"pricewatch/utils"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(NewPackSizeFilter(DefaultPackSizeTokens()), utils.NewNopLogger())
}

func pipelineSnapshot() *models.Snapshot {
	return models.NewSnapshot([]models.Observation{
		ob("2025-03-18 09:00", "A", "X", 20, 25, 1),
		ob("2025-03-19 10:00", "B", "X", 22, 0, 1),
		ob("2025-03-19 11:00", "B", "Y", 40, 0, 2),
		ob("2025-03-20 09:00", "C", "Y", 18, 0, 1),
		ob("2025-03-20 10:00", "A", "Y", 19, 0, 1),
		ob("2025-03-01 10:00", "A", "X", 30, 0, 1),
	}, mustTime("2025-03-20 12:00"))
}

func TestPipelineEndToEndExample(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02 15:04:05")
	table := &models.RawTable{
		Header: []string{"Fecha_Hora", "Retailer", "Modelo", "Producto", "Precio", "Precio_Descuento", "Cantidad"},
		Rows: [][]string{
			{today, "A", "X", "X 600ml", "100", "150", "1"},
			{today, "B", "X", "X 600ml", "90", "0", "3"},
		},
	}
	obs, err := newTestNormalizer().Normalize(table)
	require.NoError(t, err)
	snap := models.NewSnapshot(obs, time.Now())

	q := DefaultQuery(snap)
	q.StartDate = models.DateOf(time.Now().UTC()).AddDate(0, 0, -7)
	report, err := newTestPipeline().Run(snap, q)
	require.NoError(t, err)

	offer, ok := Classify(obs[0])
	require.True(t, ok)
	assert.Equal(t, DiscountOffer, offer.Kind)
	assert.Equal(t, 33, offer.DiscountPct)

	require.Len(t, report.Offers.Discounts, 1)
	assert.Equal(t, "A", report.Offers.Discounts[0].Retailer)
	require.Len(t, report.Offers.Packages, 1)
	assert.Equal(t, "B", report.Offers.Packages[0].Retailer)
	assert.Equal(t, "3 for $90 on X (B)", report.Offers.Packages[0].Label)
}

func TestPipelineIsDeterministic(t *testing.T) {
	snap := pipelineSnapshot()
	q := DefaultQuery(snap)
	p := newTestPipeline()

	first, err := p.Run(snap, q)
	require.NoError(t, err)
	second, err := p.Run(snap, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPipelineInvalidComparisonKeepsOtherViews(t *testing.T) {
	snap := pipelineSnapshot()
	for _, sel := range [][]string{{"A"}, {"A", "B", "C"}} {
		q := DefaultQuery(snap)
		q.CompareRetailers = sel

		report, err := newTestPipeline().Run(snap, q)
		require.NoError(t, err)
		assert.False(t, report.Comparison.Valid)
		assert.Equal(t, ComparisonMessage, report.Comparison.Message)
		assert.NotNil(t, report.Hourly)
		assert.Empty(t, report.Hourly)
		assert.Empty(t, report.Daily)
		assert.NotEmpty(t, report.PriceMatrix.Retailers)
		assert.NotEmpty(t, report.TopRetailers)
	}
}

func TestPipelineComparisonUsesCompareRetailers(t *testing.T) {
	snap := pipelineSnapshot()
	q := DefaultQuery(snap)
	q.Retailers = []string{"C"}
	q.CompareRetailers = []string{"A", "B"}

	report, err := newTestPipeline().Run(snap, q)
	require.NoError(t, err)
	require.True(t, report.Comparison.Valid)
	for _, h := range report.Hourly {
		assert.Contains(t, []string{"A", "B"}, h.Retailer)
	}
	assert.NotEmpty(t, report.Hourly)
	assert.Equal(t, []string{"C"}, report.PriceMatrix.Retailers)
}

func TestPipelineOffersWindowUsesDatasetMax(t *testing.T) {
	snap := pipelineSnapshot()
	q := DefaultQuery(snap)
	q.StartDate, q.EndDate = day("2025-03-01"), day("2025-03-01")

	report, err := newTestPipeline().Run(snap, q)
	require.NoError(t, err)
	assert.True(t, report.Offers.Empty, "the only matching row is older than the dataset's trailing week")
}

func TestPipelineEmptyRange(t *testing.T) {
	snap := pipelineSnapshot()
	q := DefaultQuery(snap)
	q.StartDate, q.EndDate = day("2024-01-01"), day("2024-01-02")

	report, err := newTestPipeline().Run(snap, q)
	require.NoError(t, err)
	assert.True(t, report.Offers.Empty)
	assert.Empty(t, report.PriceMatrix.Retailers)
	assert.Empty(t, report.TopRetailers)
	assert.Empty(t, report.Hourly)
}

func TestPipelineNeverReportsExcludedRetailer(t *testing.T) {
	table := &models.RawTable{
		Header: []string{"Fecha_Hora", "Retailer", "Modelo", "Producto", "Precio", "Precio_Descuento", "Cantidad"},
		Rows: [][]string{
			{"2025-03-20 09:00", "Costco", "X", "X", "5", "50", "1"},
			{"2025-03-20 09:00", "A", "X", "X", "20", "0", "1"},
		},
	}
	obs, err := newTestNormalizer().Normalize(table)
	require.NoError(t, err)
	snap := models.NewSnapshot(obs, time.Now())

	q := DefaultQuery(snap)
	q.Retailers = append(q.Retailers, ExcludedRetailer)
	q.CompareRetailers = []string{"A", ExcludedRetailer}
	report, err := newTestPipeline().Run(snap, q)
	require.NoError(t, err)

	assert.NotContains(t, report.PriceMatrix.Retailers, ExcludedRetailer)
	for _, b := range report.TopRetailers {
		assert.NotEqual(t, ExcludedRetailer, b.Retailer)
	}
	for _, h := range report.Hourly {
		assert.NotEqual(t, ExcludedRetailer, h.Retailer)
	}
	assert.Empty(t, report.Offers.Discounts)
}

func TestPipelineRejectsBadInput(t *testing.T) {
	_, err := newTestPipeline().Run(nil, Query{})
	assert.Error(t, err)

	snap := pipelineSnapshot()
	q := DefaultQuery(snap)
	q.StartDate, q.EndDate = q.EndDate, q.StartDate
	_, err = newTestPipeline().Run(snap, q)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestPipelineEmptySnapshot(t *testing.T) {
	snap := models.NewSnapshot(nil, time.Now())
	q := Query{StartDate: day("2025-03-01"), EndDate: day("2025-03-02"), CompareRetailers: []string{"A", "B"}}
	report, err := newTestPipeline().Run(snap, q)
	require.NoError(t, err)
	assert.True(t, report.Offers.Empty)
	assert.True(t, report.Comparison.Valid)
	assert.Empty(t, report.Daily)
}

func TestPipelineEmptySnapshotWithDefaultQuery(t *testing.T) {
	snap := models.NewSnapshot(nil, time.Now())
	report, err := newTestPipeline().Run(snap, DefaultQuery(snap))
	require.NoError(t, err)

	assert.Empty(t, report.PriceMatrix.Retailers)
	assert.Empty(t, report.TopRetailers)
	assert.False(t, report.Comparison.Valid)
	assert.Empty(t, report.Hourly)
	assert.Empty(t, report.Daily)
	assert.True(t, report.Offers.Empty)
	assert.Equal(t, NoOffersMessage, report.Offers.Message)
}
