package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ispu-monitor-service/internal/domain"
	"github.com/couchcryptid/ispu-monitor-service/internal/observability"
	"github.com/couchcryptid/ispu-monitor-service/internal/report"
)

// StationService is the poller as seen by the HTTP layer.
type StationService interface {
	sharedobs.ReadinessChecker
	Snapshot() (domain.Snapshot, bool)
	Refresh(ctx context.Context) (domain.Snapshot, error)
}

// AirQualitySource returns the latest reading of every station.
type AirQualitySource interface {
	LatestAirQuality(ctx context.Context) ([]domain.AirQuality, error)
}

// StationLookup fetches a single station from the upstream API.
type StationLookup interface {
	StationByID(ctx context.Context, id string) (domain.Station, error)
}

// Options configures the dashboard API.
type Options struct {
	ExportBasename string
	// Lookup resolves stations missing from the snapshot; nil answers 404.
	Lookup StationLookup
	// AirQuality backs the latest-readings export; nil leaves the route unregistered.
	AirQuality AirQualitySource
	// Location renders air-quality timestamps; nil means UTC.
	Location *time.Location
	Metrics  *observability.Metrics // may be nil
}

const airQualityBasename = "kualitas-udara-terkini"

// Server exposes the dashboard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	stations   StationService
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the probe routes and the /api/v1 routes.
func NewServer(addr string, stations StationService, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stations: stations,
		opts:     opts,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(stations))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/categories", s.handleCategories)
	mux.HandleFunc("GET /api/v1/categories/{name}", s.handleCategory)
	mux.HandleFunc("GET /api/v1/classify", s.handleClassify)
	mux.HandleFunc("GET /api/v1/stations", s.handleStations)
	mux.HandleFunc("GET /api/v1/stations/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/stations/{id}", s.handleStation)
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	if opts.AirQuality != nil {
		mux.HandleFunc("GET /api/v1/air-quality/export", s.handleAirQualityExport)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// legendEntry is a Category as rendered in the legend. Max is null for the
// open-ended band.
type legendEntry struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Min         float64  `json:"min"`
	Max         *float64 `json:"max"`
	Range       string   `json:"range"`
	Description string   `json:"description"`
}

func toLegend(c domain.Category) legendEntry {
	e := legendEntry{
		Key:         c.Key,
		Name:        c.Name,
		Color:       c.Color,
		Min:         c.Min,
		Range:       c.RangeLabel(),
		Description: c.Description,
	}
	if !c.OpenEnded() {
		upper := c.Max
		e.Max = &upper
	}
	return e
}

type classification struct {
	ISPU     float64     `json:"ispu"`
	Valid    bool        `json:"valid"`
	Category legendEntry `json:"category"`
}

type stationDetail struct {
	Station   domain.Station          `json:"station"`
	Category  *legendEntry            `json:"category"`
	Breakdown []domain.PollutantLevel `json:"breakdown"`
}

type summary struct {
	FetchedAt  time.Time              `json:"fetched_at"`
	Total      int                    `json:"total"`
	Categories []domain.CategoryCount `json:"categories"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	cats := domain.ListCategories()
	out := make([]legendEntry, len(cats))
	for i, c := range cats {
		out[i] = toLegend(c)
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, ok := domain.CategoryByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown category %q", name))
		return
	}
	writeData(w, http.StatusOK, toLegend(c))
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ispu")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("ispu must be a number, got %q", raw))
		return
	}
	writeData(w, http.StatusOK, classification{
		ISPU:     v,
		Valid:    domain.Validate(v),
		Category: toLegend(domain.Classify(v)),
	})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, domain.BuildView(snap, queryFrom(r)))
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	for _, st := range snap.Stations {
		if st.Identifier() == id || string(st.ID) == id {
			writeData(w, http.StatusOK, newStationDetail(st))
			return
		}
	}

	if s.opts.Lookup != nil {
		st, err := s.opts.Lookup.StationByID(r.Context(), id)
		if err == nil {
			writeData(w, http.StatusOK, newStationDetail(st))
			return
		}
		s.logger.Debug("upstream station lookup failed", "id", id, "error", err)
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("station %q not found", id))
}

func newStationDetail(st domain.Station) stationDetail {
	detail := stationDetail{Station: st, Breakdown: domain.Breakdown(st)}
	if st.ISPU.Valid {
		entry := toLegend(st.Classification())
		detail.Category = &entry
	}
	return detail
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	view := domain.BuildView(snap, queryFrom(r))
	s.writeExport(w, format, s.opts.ExportBasename, report.Table{
		Sheet:   report.SheetStations,
		Headers: domain.StationExportHeaders(),
		Records: domain.ToExportRows(view.Stations),
	})
}

func (s *Server) handleAirQualityExport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.opts.AirQuality.LatestAirQuality(r.Context())
	if err != nil {
		s.logger.Warn("fetch latest air quality failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeExport(w, format, airQualityBasename, report.Table{
		Sheet:   report.SheetAirQuality,
		Records: domain.ToAirQualityRows(items, s.opts.Location),
	})
}

// writeExport encodes the table fully before sending headers so an encoding
// failure can still produce an error response.
func (s *Server) writeExport(w http.ResponseWriter, format report.Format, basename string, table report.Table) {
	var buf bytes.Buffer
	if err := report.Encode(&buf, format, table); err != nil {
		s.logger.Error("export failed", "format", format, "sheet", table.Sheet, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.Exports.WithLabelValues(string(format)).Inc()
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(basename)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, summary{
		FetchedAt:  snap.FetchedAt,
		Total:      len(snap.Stations),
		Categories: domain.Summarize(snap.Stations),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.stations.Refresh(r.Context())
	if err != nil {
		s.logger.Warn("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeData(w, http.StatusOK, summary{
		FetchedAt:  snap.FetchedAt,
		Total:      len(snap.Stations),
		Categories: domain.Summarize(snap.Stations),
	})
}

// snapshot writes a 503 and returns false until the first poll has succeeded.
func (s *Server) snapshot(w http.ResponseWriter) (domain.Snapshot, bool) {
	snap, ok := s.stations.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "station data is not available yet")
	}
	return snap, ok
}

func queryFrom(r *http.Request) domain.Query {
	q := r.URL.Query()
	return domain.Query{
		Search: q.Get("q"),
		Sort:   domain.ParseSortOrder(q.Get("sort")),
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, domain.Envelope[any]{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.Envelope[any]{Error: &domain.APIError{Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
