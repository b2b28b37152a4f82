package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationCounter(t *testing.T) {
	m := New()

	m.Registration(OutcomeSuccess)
	m.Registration(OutcomeSuccess)
	m.Registration(OutcomeFull)
	m.EventCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegistrationAttempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationAttempts.WithLabelValues(OutcomeFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsCreated))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Registration(OutcomeSuccess)
		m.EventCreated()
		m.ObserveRequest("GET", "/", "200", time.Millisecond)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Registration(OutcomeDuplicate)
	m.ObserveRequest("GET", "GET /events", "200", 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `eventreg_registration_attempts_total{outcome="duplicate"} 1`)
	assert.Contains(t, string(body), "eventreg_http_request_duration_seconds")
}
