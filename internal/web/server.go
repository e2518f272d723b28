// Package web serves the browser dashboard: a websocket chart renderer,
// a JSON API over the live charts, and server-side chart snapshots.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/export"
	"github.com/luki/aqdash/internal/sensor"
)

// Collector is the part of the collector loop the server talks to.
type Collector interface {
	Reshow(ctx context.Context, id chart.GroupID) error
	Latest() sensor.Snapshot
}

// Server routes dashboard requests.
type Server struct {
	hub    *Hub
	groups []chart.Descriptor
	col    Collector
	log    *zap.Logger
	router chi.Router
	page   *template.Template
}

// NewServer creates the dashboard server for groups drawn by hub.
func NewServer(hub *Hub, groups []chart.Descriptor, col Collector, log *zap.Logger) *Server {
	s := &Server{
		hub:    hub,
		groups: groups,
		col:    col,
		log:    log,
		page:   template.Must(template.New("dashboard").Parse(dashboardTemplate)),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/ws", hub.ServeWS)
	r.Route("/api", func(r chi.Router) {
		r.Get("/groups", s.handleGroups)
		r.Get("/charts/{group}", s.handleChart)
		r.Post("/charts/{group}/reshow", s.handleReshow)
		r.Get("/readings", s.handleReadings)
	})
	r.Get("/charts/{file}", s.handleSnapshot)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, s.groups); err != nil {
		s.log.Error("render dashboard", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.groups)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	d, ok := s.group(chi.URLParam(r, "group"))
	if !ok {
		http.Error(w, "unknown group", http.StatusNotFound)
		return
	}
	data, ok := s.hub.ChartJSON(d.Mount)
	if !ok {
		http.Error(w, "chart not shown", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleReshow(w http.ResponseWriter, r *http.Request) {
	id := chart.GroupID(chi.URLParam(r, "group"))
	err := s.col.Reshow(r.Context(), id)
	switch {
	case errors.Is(err, chart.ErrUnknownGroup):
		http.Error(w, "unknown group", http.StatusNotFound)
	case err != nil:
		s.log.Error("reshow chart", zap.String("group", string(id)), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// readingsResponse is the latest snapshot plus a metric -> value map.
type readingsResponse struct {
	sensor.Snapshot
	Values map[string]float64 `json:"values"`
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	snap := s.col.Latest()
	s.writeJSON(w, readingsResponse{Snapshot: snap, Values: snap.Values()})
}

// handleSnapshot renders /charts/{group} as ECharts HTML and
// /charts/{group}.png as a PNG image.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	name, isPNG := strings.CutSuffix(file, ".png")

	d, ok := s.group(name)
	if !ok {
		http.Error(w, "unknown group", http.StatusNotFound)
		return
	}
	data, ok := s.hub.ChartJSON(d.Mount)
	if !ok {
		http.Error(w, "chart not shown", http.StatusNotFound)
		return
	}
	var cfg chart.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.log.Error("decode chart", zap.String("group", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if isPNG {
		err := export.PNG(&buf, d.Title, &cfg, 960, 400)
		if errors.Is(err, export.ErrNotEnoughData) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			s.log.Error("render png", zap.String("group", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
	} else {
		if err := export.HTML(&buf, d.Title, &cfg); err != nil {
			s.log.Error("render html", zap.String("group", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Write(buf.Bytes())
}

func (s *Server) group(id string) (chart.Descriptor, bool) {
	for _, d := range s.groups {
		if string(d.ID) == id {
			return d, true
		}
	}
	return chart.Descriptor{}, false
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
