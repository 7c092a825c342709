package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "admin_auth"

// Metrics holds the auth counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Logins          *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	Revocations     *prometheus.CounterVec
	QRIssued        prometheus.Counter
	QRVerifications *prometheus.CounterVec
}

// NewMetrics creates and registers the counters on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "logins_total",
				Help:      "Login attempts by mode and result",
			},
			[]string{"mode", "result"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "refresh_total",
				Help:      "Token refresh attempts by result",
			},
			[]string{"result"},
		),
		Revocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "revocations_total",
				Help:      "Revoked sessions by reason",
			},
			[]string{"reason"},
		),
		QRIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "qr_issued_total",
				Help:      "Issued admin QR credentials",
			},
		),
		QRVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "qr_verifications_total",
				Help:      "QR credential checks by result",
			},
			[]string{"result"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.Logins,
			m.Refreshes,
			m.Revocations,
			m.QRIssued,
			m.QRVerifications,
		)
	}

	return m
}

func (m *Metrics) login(mode SessionMode, result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(string(mode), result).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) revoked(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Revocations.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) qrIssued() {
	if m == nil {
		return
	}
	m.QRIssued.Inc()
}

func (m *Metrics) qrVerified(result string) {
	if m == nil {
		return
	}
	m.QRVerifications.WithLabelValues(result).Inc()
}
