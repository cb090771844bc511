package retail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"gopkg.in/yaml.v2"

	"pricewatch/config"
	"pricewatch/utils"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	priceRegexp    = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	quantityRegexp = regexp.MustCompile(`\d+`)
)

// Selectors are CSS selectors evaluated on a product page.
type Selectors struct {
	Price         string `yaml:"price"`
	DiscountPrice string `yaml:"discount_price"`
	Quantity      string `yaml:"quantity"`
}

// Target is one product page to observe.
type Target struct {
	Retailer  string    `yaml:"retailer"`
	Model     string    `yaml:"model"`
	Product   string    `yaml:"product"`
	URL       string    `yaml:"url"`
	Quantity  int       `yaml:"quantity"`
	Selectors Selectors `yaml:"selectors"`
}

type targetsFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets reads the YAML targets file at path.
func LoadTargets(path string) ([]Target, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retail: read targets: %w", err)
	}
	var file targetsFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("retail: parse targets: %w", err)
	}
	for i, t := range file.Targets {
		switch {
		case strings.TrimSpace(t.Retailer) == "":
			return nil, fmt.Errorf("retail: target %d: retailer is required", i)
		case strings.TrimSpace(t.Model) == "":
			return nil, fmt.Errorf("retail: target %d: model is required", i)
		case t.URL == "":
			return nil, fmt.Errorf("retail: target %d: url is required", i)
		case t.Selectors.Price == "":
			return nil, fmt.Errorf("retail: target %d: price selector is required", i)
		}
		if file.Targets[i].Product == "" {
			file.Targets[i].Product = t.Model
		}
	}
	return file.Targets, nil
}

// pageValues holds the raw selector texts read from a product page.
type pageValues struct {
	Price         string `json:"price"`
	DiscountPrice string `json:"discount_price"`
	Quantity      string `json:"quantity"`
}

type pageFetcher func(ctx context.Context, t Target) (pageValues, error)

// Scraper visits product pages and emits canonical raw observation rows.
// Each Scrape call is an independent run; a Scraper may be reused.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	pool   *utils.WorkerPool
	retry  *utils.RetryConfig
	now    func() time.Time
	fetch  pageFetcher
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	s := &Scraper{
		cfg:    cfg,
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, time.Duration(cfg.RateLimitMs)*time.Millisecond),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		now: time.Now,
	}
	s.fetch = s.fetchPage
	return s
}

// Scrape visits every target once and returns the rows in target order.
// Targets that keep failing after retries are logged and skipped. When ctx is
// cancelled mid-run, the rows observed so far are returned with ctx.Err().
func (s *Scraper) Scrape(ctx context.Context, targets []Target) ([][]string, error) {
	if len(targets) == 0 {
		return nil, errors.New("retail: no targets")
	}

	s.logger.Info("[retail] Starting scrape of %d targets", len(targets))

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Info("[retail] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	scrapedAt := s.now()
	results := make([][]string, len(targets))
	visited := utils.NewKeySet()

	for i, t := range targets {
		i, t := i, t
		if ctx.Err() != nil {
			break
		}
		if !visited.Add(t.Retailer + "|" + t.URL) {
			s.logger.Debug("[retail] Skipping duplicate target: %s", t.URL)
			continue
		}

		s.pool.Submit(func() {
			var values pageValues
			err := s.retry.Do(ctx, "scrape "+t.URL, func() error {
				var err error
				values, err = s.fetch(browserCtx, t)
				return err
			})
			if err != nil {
				s.logger.Warn("[retail] %s %s failed: %v", t.Retailer, t.Model, err)
				return
			}

			row, err := buildRow(t, values, scrapedAt)
			if err != nil {
				s.logger.Warn("[retail] %s %s: %v", t.Retailer, t.Model, err)
				return
			}
			results[i] = row
		})
	}
	s.pool.Wait()

	rows := make([][]string, 0, len(results))
	for _, row := range results {
		if row != nil {
			rows = append(rows, row)
		}
	}

	s.logger.Info("[retail] Scrape complete: %d/%d targets observed", len(rows), len(targets))
	return rows, ctx.Err()
}

func (s *Scraper) fetchPage(browserCtx context.Context, t Target) (pageValues, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
	defer cancelTimeout()

	script, err := extractScript(t.Selectors)
	if err != nil {
		return pageValues{}, err
	}

	var values pageValues
	err = chromedp.Run(ctx,
		chromedp.Navigate(t.URL),
		chromedp.Sleep(4*time.Second),
		chromedp.Evaluate(script, &values),
	)
	if err != nil {
		return pageValues{}, fmt.Errorf("chromedp extract: %w", err)
	}
	if strings.TrimSpace(values.Price) == "" {
		return pageValues{}, errors.New("price element not found")
	}
	return values, nil
}

// extractScript builds the page script reading each selector's inner text.
func extractScript(sel Selectors) (string, error) {
	encoded, err := json.Marshal(map[string]string{
		"price":          sel.Price,
		"discount_price": sel.DiscountPrice,
		"quantity":       sel.Quantity,
	})
	if err != nil {
		return "", err
	}
	return `(function(sel) {
		var out = {};
		for (var key in sel) {
			var el = sel[key] ? document.querySelector(sel[key]) : null;
			out[key] = el ? el.innerText.trim() : '';
		}
		return out;
	})(` + string(encoded) + `)`, nil
}

// buildRow converts page values into a row in models.CanonicalHeader order.
// A missing discount price is recorded as 0.
func buildRow(t Target, v pageValues, scrapedAt time.Time) ([]string, error) {
	price, err := parsePrice(v.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}

	discount := 0.0
	if strings.TrimSpace(v.DiscountPrice) != "" {
		if discount, err = parsePrice(v.DiscountPrice); err != nil {
			return nil, fmt.Errorf("discount price: %w", err)
		}
	}

	qty := t.Quantity
	if m := quantityRegexp.FindString(v.Quantity); m != "" {
		qty, _ = strconv.Atoi(m)
	}
	if qty < 1 {
		qty = 1
	}

	return []string{
		scrapedAt.Format(timestampLayout),
		t.Retailer,
		t.Model,
		t.Product,
		strconv.FormatFloat(price, 'f', -1, 64),
		strconv.FormatFloat(discount, 'f', -1, 64),
		strconv.Itoa(qty),
	}, nil
}

// parsePrice extracts the first amount from text such as "$1,299.50 MXN".
func parsePrice(raw string) (float64, error) {
	m := priceRegexp.FindString(raw)
	if m == "" {
		return 0, fmt.Errorf("no amount in %q", raw)
	}
	return strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
