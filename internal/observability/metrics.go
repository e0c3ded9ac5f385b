package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/session"
)

// Metrics collects the Prometheus metrics of the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rowsImported    prometheus.Counter
	importErrors    *prometheus.CounterVec
	countsRecorded  *prometheus.CounterVec
	persistFailures prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and counting metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcount_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockcount_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	imported := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockcount_catalog_rows_imported_total",
		Help: "Catalog rows committed by imports.",
	})
	importErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcount_import_errors_total",
		Help: "Import diagnostics by kind.",
	}, []string{"kind"})
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcount_counts_recorded_total",
		Help: "Quantities recorded or edited, by field.",
	}, []string{"mode"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockcount_persist_failures_total",
		Help: "Failed writes of the session snapshot.",
	})
	registry.MustRegister(requests, duration, imported, importErrors, recorded, persist)
	for _, kind := range []catalog.ErrorKind{catalog.KindIncompleteRow, catalog.KindDuplicateBarcode, catalog.KindInvalidQuantity} {
		importErrors.WithLabelValues(string(kind))
	}
	for _, mode := range []counting.Mode{counting.ModeStore, counting.ModeWarehouse} {
		recorded.WithLabelValues(string(mode))
	}
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		rowsImported:    imported,
		importErrors:    importErrors,
		countsRecorded:  recorded,
		persistFailures: persist,
	}
}

// Subscriber is the event source the counting metrics listen to.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

// ObserveSession feeds the counting metrics from session events.
func (m *Metrics) ObserveSession(src Subscriber) error {
	if m == nil || src == nil {
		return nil
	}
	return errors.Join(
		src.Subscribe(session.TopicImported, m.onImported),
		src.Subscribe(session.TopicCountRecorded, m.onCountRecorded),
		src.Subscribe(session.TopicPersistFailed, m.onPersistFailed),
	)
}

func (m *Metrics) onImported(evt session.ImportedEvent) {
	m.rowsImported.Add(float64(evt.Imported))
	for _, e := range evt.Errors {
		m.importErrors.WithLabelValues(string(e.Kind)).Inc()
	}
}

func (m *Metrics) onCountRecorded(evt session.CountRecordedEvent) {
	mode := counting.ModeStore
	if evt.Field == counting.FieldWarehouse {
		mode = counting.ModeWarehouse
	}
	m.countsRecorded.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) onPersistFailed(error) {
	m.persistFailures.Inc()
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
