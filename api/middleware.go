package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/warp/streak-engine/tracker"
)

// OwnerHeader carries the caller's owner id. Identity is resolved
// upstream; this service trusts the header.
const OwnerHeader = "X-Owner-ID"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streaks_http_requests_total",
		Help: "HTTP requests by route pattern, method and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streaks_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	csvRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streaks_csv_import_rows_total",
		Help: "Imported CSV rows by file kind and outcome",
	}, []string{"kind", "outcome"})
)

// requestLogger logs one line per request and records request metrics.
// The request-scoped logger is stored in the context for handlers.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(logger.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Msg("request")
		})
	}
}

type accountKey struct{}

// requireOwner resolves the X-Owner-ID header into an account, creating
// the account the first time an owner is seen.
func requireOwner(accounts tracker.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(OwnerHeader)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Missing "+OwnerHeader+" header", nil)
				return
			}
			owner, err := tracker.ParseOwnerID(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid "+OwnerHeader+" header", err)
				return
			}
			acct, err := accounts.EnsureAccount(r.Context(), owner)
			if err != nil {
				writeDomainError(w, r, "Failed to resolve account", err)
				return
			}
			ctx := context.WithValue(r.Context(), accountKey{}, acct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accountFrom returns the account set by requireOwner.
func accountFrom(ctx context.Context) tracker.Account {
	acct, _ := ctx.Value(accountKey{}).(tracker.Account)
	return acct
}

func ownerFrom(ctx context.Context) tracker.OwnerID {
	return accountFrom(ctx).ID
}
