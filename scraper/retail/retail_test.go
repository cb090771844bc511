package retail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/config"
	"pricewatch/utils"
)

const targetsYAML = `
targets:
  - retailer: Walmart
    model: Coca-Cola
    url: https://example.com/coca
    selectors:
      price: .price
      discount_price: .promo
  - retailer: Soriana
    model: Pepsi
    product: Pepsi 600ml
    url: https://example.com/pepsi
    quantity: 6
    selectors:
      price: .price
`

func TestLoadTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(targetsYAML), 0644))

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "Coca-Cola", targets[0].Product)
	assert.Equal(t, ".promo", targets[0].Selectors.DiscountPrice)
	assert.Equal(t, 6, targets[1].Quantity)
}

func TestLoadTargets_MissingSelector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	yml := "targets:\n  - retailer: Walmart\n    model: Coca\n    url: https://example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	_, err := LoadTargets(path)
	assert.ErrorContains(t, err, "price selector is required")
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"$20.50":        20.5,
		"$1,299.00 MXN": 1299,
		"Precio: 18":    18,
		"  35.9 c/u":    35.9,
	}
	for in, want := range cases {
		got, err := parsePrice(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	_, err := parsePrice("Agotado")
	assert.Error(t, err)
}

func TestBuildRow(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	target := Target{Retailer: "Walmart", Model: "Coca", Product: "Coca 500ml", Quantity: 1}

	row, err := buildRow(target, pageValues{Price: "$20.00", DiscountPrice: "$18.50", Quantity: "Paquete 6 pzas"}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01 10:30:00", "Walmart", "Coca", "Coca 500ml", "20", "18.5", "6"}, row)

	row, err = buildRow(target, pageValues{Price: "$20.00"}, at)
	require.NoError(t, err)
	assert.Equal(t, "0", row[5])
	assert.Equal(t, "1", row[6])
}

func TestExtractScript_EmbedsSelectors(t *testing.T) {
	script, err := extractScript(Selectors{Price: `span[data-x="p"]`})
	require.NoError(t, err)
	assert.Contains(t, script, `"price":"span[data-x=\"p\"]"`)
}

func TestScrape_SkipsFailuresAndDuplicates(t *testing.T) {
	cfg := &config.Config{MaxConcurrency: 2, RateLimitMs: 0, MaxRetries: 1, ChromeBin: "/nonexistent/chrome"}
	s := New(cfg, utils.NewNopLogger())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	s.fetch = func(_ context.Context, t Target) (pageValues, error) {
		if t.Retailer == "Broken" {
			return pageValues{}, errors.New("timeout")
		}
		return pageValues{Price: "$10"}, nil
	}

	targets := []Target{
		{Retailer: "Walmart", Model: "Coca", Product: "Coca", URL: "https://a"},
		{Retailer: "Broken", Model: "Coca", Product: "Coca", URL: "https://b"},
		{Retailer: "Walmart", Model: "Coca", Product: "Coca", URL: "https://a"},
		{Retailer: "Soriana", Model: "Pepsi", Product: "Pepsi", URL: "https://c"},
	}
	rows, err := s.Scrape(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Walmart", rows[0][1])
	assert.Equal(t, "Soriana", rows[1][1])
	assert.Equal(t, "2024-03-01 09:00:00", rows[0][0])
}

func TestScrape_IsReusable(t *testing.T) {
	cfg := &config.Config{MaxConcurrency: 1, MaxRetries: 1, ChromeBin: "/nonexistent/chrome"}
	s := New(cfg, utils.NewNopLogger())
	s.fetch = func(context.Context, Target) (pageValues, error) {
		return pageValues{Price: "$12"}, nil
	}
	targets := []Target{{Retailer: "Walmart", Model: "Coca", Product: "Coca", URL: "https://a"}}

	first, err := s.Scrape(context.Background(), targets)
	require.NoError(t, err)
	second, err := s.Scrape(context.Background(), targets)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}

func TestScrape_CancelledRunKeepsObservedRows(t *testing.T) {
	cfg := &config.Config{MaxConcurrency: 1, MaxRetries: 1, ChromeBin: "/nonexistent/chrome"}
	s := New(cfg, utils.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.fetch = func(fetchCtx context.Context, t Target) (pageValues, error) {
		if err := fetchCtx.Err(); err != nil {
			return pageValues{}, err
		}
		cancel()
		return pageValues{Price: "$10"}, nil
	}

	targets := []Target{
		{Retailer: "Walmart", Model: "Coca", Product: "Coca", URL: "https://a"},
		{Retailer: "Soriana", Model: "Coca", Product: "Coca", URL: "https://b"},
		{Retailer: "Chedraui", Model: "Coca", Product: "Coca", URL: "https://c"},
	}
	rows, err := s.Scrape(ctx, targets)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, rows, 1)
	assert.Equal(t, "Walmart", rows[0][1])
}

func TestScrape_NoTargets(t *testing.T) {
	s := New(&config.Config{MaxConcurrency: 1, MaxRetries: 1}, utils.NewNopLogger())
	_, err := s.Scrape(context.Background(), nil)
	assert.Error(t, err)
}
