// Package metrics records Prometheus metrics from bus events.
package metrics

import (
	"context"
	"strconv"

	eventbus "github.com/hanpama/crumbgraph/internal/eventbus"
	events "github.com/hanpama/crumbgraph/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crumbgraph"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors registered by Register.
type Metrics struct {
	Breadcrumbs        *prometheus.CounterVec
	BreadcrumbDuration *prometheus.HistogramVec
	BreadcrumbLength   prometheus.Histogram
	NavigationMissing  *prometheus.CounterVec
	ContentLookups     *prometheus.CounterVec
	GraphQLDuration    *prometheus.HistogramVec
	HTTPDuration       *prometheus.HistogramVec
}

// Register creates the collectors on reg and subscribes them to bus. The
// returned function removes the subscriptions; collectors stay registered.
func Register(reg prometheus.Registerer, bus *eventbus.Bus) (*Metrics, func()) {
	f := promauto.With(reg)
	m := &Metrics{
		Breadcrumbs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breadcrumb_resolutions_total",
			Help:      "Breadcrumb resolutions by sourcing strategy, fallback and outcome.",
		}, []string{"strategy", "fallback", "outcome"}),
		BreadcrumbDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "breadcrumb_resolution_duration_seconds",
			Help:      "Time spent resolving one breadcrumb trail.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"strategy"}),
		BreadcrumbLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "breadcrumb_trail_length",
			Help:      "Number of records in successfully resolved trails.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		NavigationMissing: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_missing_total",
			Help:      "Requests naming a navigation structure that does not exist.",
		}, []string{"navigation"}),
		ContentLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_lookups_total",
			Help:      "Content store point reads by kind and result.",
		}, []string{"kind", "found"}),
		GraphQLDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graphql_operation_duration_seconds",
			Help:      "GraphQL operation latency including validation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation_type", "outcome"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "GraphQL endpoint latency by status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
	return m, m.subscribe(bus)
}

func (m *Metrics) subscribe(bus *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.BreadcrumbFinish) {
			outcome := OutcomeOK
			if e.Err != nil {
				outcome = OutcomeError
			} else {
				m.BreadcrumbLength.Observe(float64(e.Count))
			}
			m.Breadcrumbs.WithLabelValues(e.Strategy, strconv.FormatBool(e.Fallback), outcome).Inc()
			m.BreadcrumbDuration.WithLabelValues(e.Strategy).Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.NavigationMissing) {
			m.NavigationMissing.WithLabelValues(e.Handle).Inc()
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.ContentLookup) {
			m.ContentLookups.WithLabelValues(e.Kind, strconv.FormatBool(e.Found)).Inc()
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.GraphQLFinish) {
			outcome := OutcomeOK
			if len(e.Errors) > 0 {
				outcome = OutcomeError
			}
			m.GraphQLDuration.WithLabelValues(e.OperationType, outcome).Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.HTTPFinish) {
			m.HTTPDuration.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
