package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Admission("accepted")
	m.Reservation("created")
	m.Intent("general")
	m.Completion(time.Second, nil)
	m.Notification("confirmation", errors.New("x"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.Admission("accepted")
	m.Admission("accepted")
	m.Admission("TableUnavailable")
	m.Notification("reminder", errors.New("smtp down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("TableUnavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("reminder", "error")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Intent("reservation")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `reservas_assistant_intents_total{kind="reservation"} 1`))
}
