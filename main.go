package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"pricewatch/config"
	"pricewatch/scraper/retail"
	"pricewatch/server"
	"pricewatch/services"
	"pricewatch/storage"
	"pricewatch/utils"
)

func main() {
	app := &cli.App{
		Name:  "pricewatch",
		Usage: "Retail price observation analytics",
		Commands: []*cli.Command{
			reportCommand(),
			serveCommand(),
			scrapeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Load the configured source once and print a report",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "First date, YYYY-MM-DD (default: first date in data)"},
			&cli.StringFlag{Name: "end", Usage: "Last date, YYYY-MM-DD (default: last date in data)"},
			&cli.StringSliceFlag{Name: "model", Usage: "Model to include (repeatable, default: all)"},
			&cli.StringSliceFlag{Name: "retailer", Usage: "Retailer to include (repeatable, default: all)"},
			&cli.StringSliceFlag{Name: "compare", Usage: "Retailer to compare (exactly two)"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := utils.NewLoggerTo(os.Stderr, cfg.LogLevel)

			src, err := storage.Open(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer src.Close()

			store := services.NewSnapshotStore(services.NewNormalizer(logger), logger)
			snap, err := store.Refresh(c.Context, src)
			if err != nil {
				return err
			}

			q, err := queryFromFlags(c, services.DefaultQuery(snap))
			if err != nil {
				return err
			}

			pipeline := services.NewPipeline(services.NewPackSizeFilter(packSizeTokens(cfg)), logger)
			report, err := pipeline.Run(snap, q)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			services.NewReportPrinter(os.Stdout).Print(report)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve reports over HTTP, refreshing the snapshot on a schedule",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := utils.NewLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, err := storage.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer src.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := server.NewMetrics(reg)

			store := services.NewSnapshotStore(services.NewNormalizer(logger), logger)
			refresher := server.NewRefresher(store, src, metrics, logger)
			if err := refresher.RefreshNow(ctx); err != nil {
				logger.Warn("Initial load failed, serving 503 until a refresh succeeds: %v", err)
			}
			if err := refresher.Start(cfg.RefreshSchedule); err != nil {
				return err
			}
			defer refresher.Stop()

			pipeline := services.NewPipeline(services.NewPackSizeFilter(packSizeTokens(cfg)), logger)
			cached, err := services.NewCachedPipeline(pipeline, cfg.CacheSize)
			if err != nil {
				return err
			}

			httpSrv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           server.New(store, cached, metrics, reg, logger).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Listening on %s", cfg.HTTPAddr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
}

func scrapeCommand() *cli.Command {
	return &cli.Command{
		Name:  "scrape",
		Usage: "Observe the configured product pages and append the rows to storage",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := utils.NewLogger(cfg.LogLevel)

			targets, err := retail.LoadTargets(cfg.TargetsFile)
			if err != nil {
				return err
			}

			writers := []storage.RowWriter{}
			csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
			if err != nil {
				return err
			}
			writers = append(writers, csvWriter)

			if cfg.SourceKind == config.SourcePostgres || cfg.SourceKind == config.SourceSQLite {
				sqlStore, err := storage.OpenSQLStore(c.Context, cfg)
				if err != nil {
					return err
				}
				writers = append(writers, sqlStore)
			}
			defer func() {
				for _, w := range writers {
					_ = w.Close()
				}
			}()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rows, scrapeErr := retail.New(cfg, logger).Scrape(ctx, targets)
			if len(rows) == 0 {
				if scrapeErr != nil {
					return scrapeErr
				}
				return errors.New("no observations were scraped")
			}

			// Rows observed before an interrupt are still stored.
			for _, w := range writers {
				if err := w.WriteRows(context.Background(), rows); err != nil {
					return err
				}
			}
			logger.Info("Stored %d observations", len(rows))
			return scrapeErr
		},
	}
}

func packSizeTokens(cfg *config.Config) []string {
	if len(cfg.PackSizeTokens) > 0 {
		return cfg.PackSizeTokens
	}
	return services.DefaultPackSizeTokens()
}

// queryFromFlags overlays command-line selections on def.
func queryFromFlags(c *cli.Context, def services.Query) (services.Query, error) {
	q := def
	for _, name := range []string{"start", "end"} {
		if !c.IsSet(name) {
			continue
		}
		d, err := time.Parse(time.DateOnly, c.String(name))
		if err != nil {
			return services.Query{}, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, c.String(name))
		}
		if name == "start" {
			q.StartDate = d
		} else {
			q.EndDate = d
		}
	}
	if c.IsSet("model") {
		q.Models = c.StringSlice("model")
	}
	if c.IsSet("retailer") {
		q.Retailers = c.StringSlice("retailer")
	}
	if c.IsSet("compare") {
		q.CompareRetailers = c.StringSlice("compare")
	}
	return q, nil
}
