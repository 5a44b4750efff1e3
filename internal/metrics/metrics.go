package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// Счетчики
	userMessages     *prometheus.CounterVec
	aiRequests       *prometheus.CounterVec
	progressUpdates  *prometheus.CounterVec
	practiceSessions *prometheus.CounterVec
	proxyRequests    *prometheus.CounterVec
	payments         *prometheus.CounterVec
	proxiesDisabled  prometheus.Counter
	remindersSent    prometheus.Counter

	// Гистограммы
	aiResponseTime *prometheus.HistogramVec
	sessionWords   prometheus.Histogram

	// Gauge метрики
	activeProxies prometheus.Gauge

	mu sync.RWMutex
}

// New создает новый экземпляр метрик со своим реестром
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),

		userMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_messages_total",
				Help: "Общее количество входящих обновлений от учеников",
			},
			[]string{"type"}, // text, command, callback
		),

		aiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_requests_total",
				Help: "Общее количество запросов к LLM",
			},
			[]string{"provider", "status"},
		),

		progressUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_updates_total",
				Help: "Обновления прогресса по словам",
			},
			[]string{"result", "status"}, // result: correct, incorrect, missing
		),

		practiceSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practice_sessions_total",
				Help: "Словарные тренировки",
			},
			[]string{"event"}, // started, finished, empty
		),

		proxyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_requests_total",
				Help: "Исходящие запросы через прокси",
			},
			[]string{"result"}, // success, failure
		),

		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_total",
				Help: "Платежи за премиум",
			},
			[]string{"status"},
		),

		proxiesDisabled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "proxies_disabled_total",
				Help: "Прокси, отключенные из-за доли ошибок",
			},
		),

		remindersSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "practice_reminders_sent_total",
				Help: "Отправленные напоминания о тренировке",
			},
		),

		aiResponseTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_response_time_seconds",
				Help:    "Время ответа LLM в секундах",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		sessionWords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "practice_session_words",
				Help:    "Количество слов, выбранных для тренировки",
				Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30},
			},
		),

		activeProxies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_proxies",
				Help: "Количество активных прокси",
			},
		),
	}

	m.registry.MustRegister(
		m.userMessages,
		m.aiRequests,
		m.progressUpdates,
		m.practiceSessions,
		m.proxyRequests,
		m.payments,
		m.proxiesDisabled,
		m.remindersSent,
		m.aiResponseTime,
		m.sessionWords,
		m.activeProxies,
	)

	return m
}

// IncrementCounter увеличивает счетчик по имени
func (m *Metrics) IncrementCounter(name string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counter *prometheus.CounterVec

	switch name {
	case "user_messages_total":
		counter = m.userMessages
	case "ai_requests_total":
		counter = m.aiRequests
	case "progress_updates_total":
		counter = m.progressUpdates
	case "practice_sessions_total":
		counter = m.practiceSessions
	case "proxy_requests_total":
		counter = m.proxyRequests
	case "payments_total":
		counter = m.payments
	case "proxies_disabled_total":
		m.proxiesDisabled.Inc()
		return
	case "practice_reminders_sent_total":
		m.remindersSent.Inc()
		return
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	counter.WithLabelValues(labels...).Inc()
}

// SetGauge устанавливает значение gauge метрики
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "active_proxies":
		m.activeProxies.Set(value)
	default:
		m.logger.Error("неизвестная gauge метрика", zap.String("name", name))
	}
}

// ObserveHistogram добавляет наблюдение в гистограмму
func (m *Metrics) ObserveHistogram(name string, value float64, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "ai_response_time":
		m.aiResponseTime.WithLabelValues(labels...).Observe(value)
	case "practice_session_words":
		m.sessionWords.Observe(value)
	default:
		m.logger.Error("неизвестная гистограмма", zap.String("name", name))
	}
}

// RecordUserMessage учитывает входящее обновление
func (m *Metrics) RecordUserMessage(messageType string) {
	m.IncrementCounter("user_messages_total", messageType)
}

// RecordAIRequest учитывает запрос к LLM
func (m *Metrics) RecordAIRequest(provider string, success bool, responseTime float64) {
	m.IncrementCounter("ai_requests_total", provider, statusLabel(success))
	m.ObserveHistogram("ai_response_time", responseTime, provider)
}

// RecordProgressUpdate учитывает обновление прогресса по слову
func (m *Metrics) RecordProgressUpdate(result, status string) {
	m.IncrementCounter("progress_updates_total", result, status)
}

// RecordPracticeSession учитывает событие тренировки и размер выборки
func (m *Metrics) RecordPracticeSession(event string, words int) {
	m.IncrementCounter("practice_sessions_total", event)
	if event == "started" || event == "empty" {
		m.ObserveHistogram("practice_session_words", float64(words))
	}
}

// RecordProxyOutcome учитывает результат запроса через прокси
func (m *Metrics) RecordProxyOutcome(success, disabled bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.IncrementCounter("proxy_requests_total", result)
	if disabled {
		m.IncrementCounter("proxies_disabled_total")
	}
}

// SetActiveProxies обновляет количество активных прокси
func (m *Metrics) SetActiveProxies(count int) {
	m.SetGauge("active_proxies", float64(count))
}

// RecordReminderSent учитывает отправленное напоминание
func (m *Metrics) RecordReminderSent() {
	m.IncrementCounter("practice_reminders_sent_total")
}

// RecordPayment учитывает изменение статуса платежа
func (m *Metrics) RecordPayment(status string) {
	m.IncrementCounter("payments_total", status)
}

// Registry возвращает реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
