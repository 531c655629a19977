package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"oktel-timekeeper/internal/metrics"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes bundles what NewRouter mounts. Attendance may be nil when
// Mattermost is not configured.
type Routes struct {
	API        *API
	Attendance *AttendanceHandler
	Ready      Pinger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// NewRouter builds the HTTP handler for the whole service.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	r.Use(LocaleMiddleware, LoggingMiddleware(rt.Metrics))
	r.NotFoundHandler = LocaleMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCode(w, r, http.StatusNotFound, "not_found")
	}))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if rt.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rt.Ready.Ping(ctx); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if rt.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(rt.Gatherer)).Methods(http.MethodGet)
	}

	if rt.Attendance != nil {
		rt.Attendance.RegisterRoutes(r)
	}
	rt.API.RegisterRoutes(r)
	return r
}
