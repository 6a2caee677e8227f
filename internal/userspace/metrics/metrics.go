// Package metrics exposes Prometheus counters and histograms for the
// credential service, the mail dispatcher and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
)

const namespace = "userspace"

// Outcome labels. Business errors are labelled with their kind.
const (
	OutcomeOK    = "ok"
	OutcomeError = "internal_error"
)

// Registry owns the collectors. Each instance has its own
// prometheus.Registry so tests can create as many as they like.
type Registry struct {
	reg *prometheus.Registry

	operations   *prometheus.CounterVec
	mailJobs     *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a registry with the service collectors plus the Go runtime and
// process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Credential operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		mailJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_jobs_total",
			Help:      "Mail delivery attempts by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	r.reg.MustRegister(
		r.operations,
		r.mailJobs,
		r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Operation counts one credential operation. err is classified by its
// domain kind.
func (r *Registry) Operation(name string, err error) {
	r.operations.WithLabelValues(name, Outcome(err)).Inc()
}

// MailJob counts one mail delivery result.
func (r *Registry) MailJob(result string) {
	r.mailJobs.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Middleware records request latency. The route label is the ServeMux
// pattern, so path parameters and query strings never inflate cardinality.
func (r *Registry) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, req)

			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			r.httpDuration.
				WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Outcome maps an operation error to a metric label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if e, ok := domain.AsError(err); ok {
		return e.Kind.String()
	}
	return OutcomeError
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
