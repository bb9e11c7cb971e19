package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/datasource"
	"github.com/daviddao/cascade_viewer/internal/metrics"
	"github.com/daviddao/cascade_viewer/internal/risk"
	"github.com/daviddao/cascade_viewer/internal/selection"
	"github.com/daviddao/cascade_viewer/internal/snapshot"
)

// serve runs the headless HTTP API until ctx is cancelled.
func serve(ctx context.Context, addr string, src *sources, exportDir string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(src, exportDir, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("headless API listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down headless API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type api struct {
	src       *sources
	exportDir string
	logger    *slog.Logger
}

func newRouter(src *sources, exportDir string, logger *slog.Logger) *mux.Router {
	a := &api{src: src, exportDir: exportDir, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.health).Methods("GET")
	r.HandleFunc("/state", a.state).Methods("GET")
	r.HandleFunc("/risk", a.risk).Methods("GET")
	r.HandleFunc("/report", a.report).Methods("GET")
	r.HandleFunc("/runs", a.runs).Methods("GET")
	r.HandleFunc("/export", a.export).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.Use(a.logging)
	return r
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (a *api) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if route != "/metrics" {
			metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
		a.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", requestID),
		)
	})
}

// snapshotFor builds the snapshot for the run query parameter, or the
// tracked run when it is absent.
func (a *api) snapshotFor(r *http.Request) *snapshot.DataSnapshot {
	if run := r.URL.Query().Get("run"); run != "" {
		return snapshot.Build(a.src.log.Events(), run)
	}
	return a.src.snapshot()
}

type healthResponse struct {
	Status string `json:"status"`
	Feed   string `json:"feed"`
	Error  string `json:"error,omitempty"`
	Events int    `json:"events"`
	RunID  string `json:"run_id"`
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Feed:   "offline",
		Events: a.src.log.Len(),
		RunID:  a.src.tracker.Current(),
	}
	if a.src.feed != nil {
		st, err := a.src.feed.Status()
		resp.Feed = st.String()
		if err != nil {
			resp.Error = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type stateResponse struct {
	RunID       string              `json:"run_id"`
	Phase       cascade.Phase       `json:"phase"`
	Stats       jsonStats           `json:"stats"`
	State       *cascade.State      `json:"state"`
	Selection   string              `json:"selection"`
	DetailEdges []cascade.GraphEdge `json:"detail_edges,omitempty"`
	DetailNodes []cascade.GraphNode `json:"detail_nodes,omitempty"`
	Route       *selection.Route    `json:"route,omitempty"`
}

func (a *api) state(w http.ResponseWriter, r *http.Request) {
	sel, err := selection.FromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := a.snapshotFor(r)
	st := snap.State

	resp := stateResponse{
		RunID: snap.RunID,
		Phase: snap.Phase,
		Stats: jsonStats{
			Agents:      snap.Agents,
			Suppliers:   snap.Suppliers,
			Edges:       snap.Edges,
			Messages:    snap.Messages,
			Orders:      snap.Orders,
			TotalEvents: snap.TotalEvents,
		},
		State:     st,
		Selection: selection.Describe(sel),
	}
	if sel.Mode() != selection.ModeOverview {
		resp.DetailEdges = selection.DetailEdges(st.Edges, sel)
		resp.DetailNodes = selection.DetailNodes(st.Nodes, st.Edges, sel)
	}
	if ld, ok := sel.(selection.LogisticsDetail); ok {
		if route, ok := selection.RouteGraph(st.ShipPlans, ld.ShipPlanIndex); ok {
			resp.Route = &route
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type riskResponse struct {
	RunID string `json:"run_id"`
	risk.Report
}

func (a *api) risk(w http.ResponseWriter, r *http.Request) {
	snap := a.snapshotFor(r)
	writeJSON(w, http.StatusOK, riskResponse{RunID: snap.RunID, Report: snap.Risk})
}

// report serves the local execution plan when the run is complete, and
// falls back to the procurement service's last report.
func (a *api) report(w http.ResponseWriter, r *http.Request) {
	snap := a.snapshotFor(r)
	if plan := snap.State.ExecutionPlan; plan != nil {
		exp, err := cascade.NewExport(plan, snap.RunID, time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, exp)
		return
	}
	if a.src.client == nil {
		writeError(w, http.StatusNotFound, "no report available")
		return
	}
	raw, err := a.src.client.FetchReport(r.Context())
	switch {
	case errors.Is(err, datasource.ErrNoReport):
		writeError(w, http.StatusNotFound, "no report available")
	case err != nil:
		a.logger.Warn("report fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
	}
}

func (a *api) runs(w http.ResponseWriter, r *http.Request) {
	if a.src.client == nil {
		writeError(w, http.StatusServiceUnavailable, "no event bus configured")
		return
	}
	runs, err := a.src.client.Runs(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if runs == nil {
		runs = []datasource.RunInfo{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *api) export(w http.ResponseWriter, r *http.Request) {
	snap := a.snapshotFor(r)
	path, err := cascade.WriteExport(a.exportDir, snap.State.ExecutionPlan, snap.RunID, time.Now())
	switch {
	case errors.Is(err, cascade.ErrNoPlan):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"path": path})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
