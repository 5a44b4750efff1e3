package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck проверка зависимости сервиса
type HealthCheck func(ctx context.Context) error

// Handler обрабатывает HTTP запросы для метрик
type Handler struct {
	metrics *Metrics
	check   HealthCheck
	logger  *zap.Logger
}

// NewHandler создает новый обработчик метрик. check может быть nil.
func NewHandler(metrics *Metrics, check HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		metrics: metrics,
		check:   check,
		logger:  logger,
	}
}

// MetricsHandler возвращает HTTP handler для Prometheus метрик
func (h *Handler) MetricsHandler() http.Handler {
	return h.metrics.Handler()
}

// HealthHandler возвращает статус здоровья сервиса
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := map[string]string{"status": "ok", "service": "lingua-tutor"}
	status := http.StatusOK

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.check(ctx); err != nil {
			h.logger.Warn("проверка здоровья не пройдена", zap.Error(err))
			resp["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
