package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("quotes:expire").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("quotes:expire").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("quotes:expire", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("quotes:expire", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("quotes:expire")))
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AddExpiredQuotes(3)
	m.AddExpiredQuotes(0)
	m.AddImportedProducts("created", 4)
	m.AddImportedProducts("updated", 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.expired))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.imported.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.imported.WithLabelValues("updated")))
}

func TestNilMetricsTracker(t *testing.T) {
	var m *Metrics
	err := errors.New("x")
	assert.Equal(t, err, m.Track("job").End(err))
	m.AddExpiredQuotes(1)
}
