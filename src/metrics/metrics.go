package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Products label values.
const (
	ProductTransactions = "transactions"
	ProductInvestments  = "investments"
	ProductAccounts     = "accounts"
	ProductLink         = "link"
)

// Sync outcomes.
const (
	OutcomeUnchanged   = "unchanged"
	OutcomePersisted   = "persisted"
	OutcomeUnlinked    = "unlinked"
	OutcomeInvalidated = "invalidated"
	OutcomeFailed      = "failed"
)

type Recorder interface {
	SyncRun(product, outcome string, elapsed time.Duration)
	SyncPage(product string)
	VaultWrite(product string)
	DecryptFailure(field, reason string)
	CredentialInvalidated(product string)
}

type PrometheusMetrics struct {
	registry               *prometheus.Registry
	syncRuns               *prometheus.CounterVec
	syncPages              *prometheus.CounterVec
	syncDuration           *prometheus.HistogramVec
	vaultWrites            *prometheus.CounterVec
	decryptFailures        *prometheus.CounterVec
	credentialInvalidation *prometheus.CounterVec
}

func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		registry: reg,
		syncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total number of upstream sync runs by outcome",
			},
			[]string{"product", "outcome"},
		),
		syncPages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_pages_total",
				Help: "Total number of upstream pages fetched",
			},
			[]string{"product"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_duration_seconds",
				Help:    "Upstream sync duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"product"},
		),
		vaultWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_writes_total",
				Help: "Total number of encrypted document writes",
			},
			[]string{"product"},
		),
		decryptFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_decrypt_failures_total",
				Help: "Total number of encrypted fields read back as defaults",
			},
			[]string{"field", "reason"},
		),
		credentialInvalidation: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credential_invalidations_total",
				Help: "Total number of linked credentials cleared after upstream rejection",
			},
			[]string{"product"},
		),
	}
}

func (m *PrometheusMetrics) SyncRun(product, outcome string, elapsed time.Duration) {
	m.syncRuns.WithLabelValues(product, outcome).Inc()
	m.syncDuration.WithLabelValues(product).Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) SyncPage(product string) {
	m.syncPages.WithLabelValues(product).Inc()
}

func (m *PrometheusMetrics) VaultWrite(product string) {
	m.vaultWrites.WithLabelValues(product).Inc()
}

func (m *PrometheusMetrics) DecryptFailure(field, reason string) {
	m.decryptFailures.WithLabelValues(field, reason).Inc()
}

func (m *PrometheusMetrics) CredentialInvalidated(product string) {
	m.credentialInvalidation.WithLabelValues(product).Inc()
}

// Handler serves the registry in the exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type NoopRecorder struct{}

func (NoopRecorder) SyncRun(string, string, time.Duration) {}
func (NoopRecorder) SyncPage(string)                        {}
func (NoopRecorder) VaultWrite(string)                      {}
func (NoopRecorder) DecryptFailure(string, string)          {}
func (NoopRecorder) CredentialInvalidated(string)           {}
