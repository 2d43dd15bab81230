package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordScan(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordScan(ScanAccepted)
	m.RecordScan(ScanAccepted)
	m.RecordScan(ScanWindowClosed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues(ScanAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues(ScanWindowClosed)))
}

func TestRecordTokensGenerated(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordTokensGenerated(31)
	m.RecordTokensGenerated(0)

	assert.Equal(t, 31.0, testutil.ToFloat64(m.TokensGeneratedTotal))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordHTTPRequest("POST", "/attendance/scan", 409, 20*time.Millisecond)
	m.RecordHTTPRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/attendance/scan", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordScan(ScanAccepted)
		m.RecordTokensGenerated(3)
		m.RecordDelivery("sent")
		m.RecordHTTPRequest("GET", "/", 200, time.Second)
	})
}

func TestShouldSkipEndpoint(t *testing.T) {
	assert.True(t, ShouldSkipEndpoint("/metrics"))
	assert.True(t, ShouldSkipEndpoint("/health"))
	assert.False(t, ShouldSkipEndpoint("/attendance/scan"))
}
