package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricewatch/models"
	"pricewatch/services"
	"pricewatch/utils"
)

// SnapshotReader exposes the live snapshot.
type SnapshotReader interface {
	Current() *models.Snapshot
}

// Server serves reports over HTTP.
type Server struct {
	snapshots SnapshotReader
	runner    services.Runner
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	logger    *utils.Logger
}

// New creates a Server. Metrics are exposed from gatherer on /metrics.
func New(snapshots SnapshotReader, runner services.Runner, metrics *Metrics, gatherer prometheus.Gatherer, logger *utils.Logger) *Server {
	return &Server{
		snapshots: snapshots,
		runner:    runner,
		metrics:   metrics,
		gatherer:  gatherer,
		logger:    logger,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/options", s.handleOptions)
		r.Get("/report", s.handleReport)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type optionsResponse struct {
	SnapshotID string   `json:"snapshot_id"`
	Models     []string `json:"models"`
	Retailers  []string `json:"retailers"`
	FirstDate  string   `json:"first_date,omitempty"`
	LastDate   string   `json:"last_date,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.snapshots.Current() == nil {
		status = "loading"
	}
	render.JSON(w, r, map[string]string{"status": status})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	if snap == nil {
		s.fail(w, r, http.StatusServiceUnavailable, "no snapshot loaded")
		return
	}

	resp := optionsResponse{
		SnapshotID: snap.ID.String(),
		Models:     snap.Models(),
		Retailers:  snap.Retailers(),
	}
	if first, last, ok := snap.DateBounds(); ok {
		resp.FirstDate = first.Format(time.DateOnly)
		resp.LastDate = last.Format(time.DateOnly)
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	if snap == nil {
		s.reportFail(w, r, http.StatusServiceUnavailable, "no snapshot loaded")
		return
	}

	q, err := parseQuery(r, services.DefaultQuery(snap))
	if err != nil {
		s.reportFail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.runner.Run(snap, q)
	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		s.reportFail(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("[server] Report failed: %v", err)
		s.reportFail(w, r, http.StatusInternalServerError, "report failed")
		return
	}

	s.metrics.ReportRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	render.JSON(w, r, report)
}

// parseQuery overlays request parameters on def. A parameter that is present
// replaces the default entirely, so "?model=" selects no models.
func parseQuery(r *http.Request, def services.Query) (services.Query, error) {
	values := r.URL.Query()
	q := def

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &q.StartDate}, {"end", &q.EndDate}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return services.Query{}, fmt.Errorf("invalid %s date %q, want YYYY-MM-DD", p.name, raw)
		}
		*p.dst = d
	}

	if v, ok := values["model"]; ok {
		q.Models = nonEmpty(v)
	}
	if v, ok := values["retailer"]; ok {
		q.Retailers = nonEmpty(v)
	}
	if v, ok := values["compare"]; ok {
		q.CompareRetailers = nonEmpty(v)
	}
	return q, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) reportFail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.metrics.ReportRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	s.fail(w, r, code, msg)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg})
}
