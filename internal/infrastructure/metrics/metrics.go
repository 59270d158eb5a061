package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "users"

// Metrics owns a private registry so tests can build as many as they like.
// Every method is safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	txBegun        prometheus.Counter
	txCommitted    prometheus.Counter
	txRolledBack   prometheus.Counter
	entities       prometheus.Gauge
	journalDropped prometheus.Counter
	journalFailed  prometheus.Counter
	httpRequests   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		txBegun: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_begun_total",
			Help: "Transactions started.",
		}),
		txCommitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_committed_total",
			Help: "Transactions whose staged state replaced the store.",
		}),
		txRolledBack: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_rolled_back_total",
			Help: "Transactions whose staged state was discarded.",
		}),
		entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "store_entities",
			Help: "Entities in the committed store.",
		}),
		journalDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "journal_dropped_total",
			Help: "Commit records dropped because the journal buffer was full.",
		}),
		journalFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "journal_failed_total",
			Help: "Commit records the journal sink rejected.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TxBegun() {
	if m != nil {
		m.txBegun.Inc()
	}
}

func (m *Metrics) TxCommitted(entities int) {
	if m != nil {
		m.txCommitted.Inc()
		m.entities.Set(float64(entities))
	}
}

func (m *Metrics) TxRolledBack() {
	if m != nil {
		m.txRolledBack.Inc()
	}
}

func (m *Metrics) SetEntities(n int) {
	if m != nil {
		m.entities.Set(float64(n))
	}
}

func (m *Metrics) JournalDropped() {
	if m != nil {
		m.journalDropped.Inc()
	}
}

func (m *Metrics) JournalFailed() {
	if m != nil {
		m.journalFailed.Inc()
	}
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m != nil {
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
}
