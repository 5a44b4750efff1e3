package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	m := New(zap.NewNop())

	m.RecordUserMessage("text")
	m.RecordAIRequest("yandex", true, 1.2)
	m.RecordAIRequest("yandex", false, 30)
	m.RecordProgressUpdate("correct", "learning")
	m.RecordPracticeSession("started", 10)
	m.RecordProxyOutcome(false, true)
	m.RecordProxyOutcome(true, false)
	m.SetActiveProxies(3)
	m.RecordReminderSent()
	m.RecordPayment("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.userMessages.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequests.WithLabelValues("yandex", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.progressUpdates.WithLabelValues("correct", "learning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proxiesDisabled))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeProxies))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersSent))

	// Неизвестные имена только логируются
	m.IncrementCounter("unknown_total", "x")
	m.SetGauge("unknown", 1)
	m.ObserveHistogram("unknown", 1)
}

func TestNewIsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(zap.NewNop())
		New(zap.NewNop())
	})
}

func TestHealthHandler(t *testing.T) {
	m := New(zap.NewNop())

	t.Run("без проверки", func(t *testing.T) {
		h := NewHandler(m, nil, zap.NewNop())
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("база недоступна", func(t *testing.T) {
		h := NewHandler(m, func(ctx context.Context) error { return errors.New("connection refused") }, zap.NewNop())
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"unavailable"`)
	})

	t.Run("метрики отдаются", func(t *testing.T) {
		m.RecordUserMessage("command")
		h := NewHandler(m, nil, zap.NewNop())
		rec := httptest.NewRecorder()
		h.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "user_messages_total")
	})
}
