package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := auth.NewMetrics(reg)
	require.NotNil(t, m)

	m.Logins.WithLabelValues("dev", "success").Inc()
	m.QRIssued.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["admin_auth_logins_total"])
	assert.True(t, names["admin_auth_qr_issued_total"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QRIssued))

	assert.Panics(t, func() { auth.NewMetrics(reg) }, "double registration")
}
