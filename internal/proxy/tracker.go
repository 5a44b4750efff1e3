package proxy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// ErrProxyUnavailable нет активного прокси и не задан запасной адрес
var ErrProxyUnavailable = errors.New("нет доступного прокси")

// Repository хранилище прокси, нужное трекеру
type Repository interface {
	ListActive(ctx context.Context) ([]*models.Proxy, error)
	RecordSuccess(ctx context.Context, id int64, at time.Time) error
	RecordFailure(ctx context.Context, id int64, errMsg string, at time.Time) (bool, error)
}

// Recorder принимает метрики прокси
type Recorder interface {
	RecordProxyOutcome(success, disabled bool)
	SetActiveProxies(count int)
}

// Tracker ведет счетчики успехов и ошибок прокси и выбирает рабочий прокси
type Tracker struct {
	repo    Repository
	metrics Recorder
	logger  *zap.Logger
	now     func() time.Time
	intn    func(n int) int
}

// NewTracker создает трекер прокси. metrics может быть nil.
func NewTracker(repo Repository, metrics Recorder, logger *zap.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		intn:    rand.IntN,
	}
}

// RecordOutcome учитывает результат запроса через прокси. Ошибка обрезается
// до ProxyLastErrorMaxLen символов. Отключение прокси решается в хранилище
// тем же оператором, что увеличивает счетчики.
func (t *Tracker) RecordOutcome(ctx context.Context, proxyID int64, success bool, errMsg string) error {
	now := t.now()

	if success {
		if err := t.repo.RecordSuccess(ctx, proxyID, now); err != nil {
			return fmt.Errorf("ошибка учета успеха прокси %d: %w", proxyID, err)
		}
		t.record(true, false)
		return nil
	}

	disabled, err := t.repo.RecordFailure(ctx, proxyID, truncate(errMsg, models.ProxyLastErrorMaxLen), now)
	if err != nil {
		return fmt.Errorf("ошибка учета ошибки прокси %d: %w", proxyID, err)
	}
	t.record(false, disabled)

	if disabled {
		t.logger.Warn("прокси отключен из-за высокой доли ошибок",
			zap.Int64("proxy_id", proxyID),
			zap.String("last_error", errMsg))
	}
	return nil
}

// PickActiveProxy выбирает случайный активный прокси. Возвращает nil без
// ошибки, если активных прокси нет.
func (t *Tracker) PickActiveProxy(ctx context.Context) (*models.Proxy, error) {
	proxies, err := t.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных прокси: %w", err)
	}
	if len(proxies) == 0 {
		return nil, nil
	}
	return proxies[t.intn(len(proxies))], nil
}

// RefreshActiveGauge пересчитывает число активных прокси для метрик
func (t *Tracker) RefreshActiveGauge(ctx context.Context) (int, error) {
	proxies, err := t.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения активных прокси: %w", err)
	}
	if t.metrics != nil {
		t.metrics.SetActiveProxies(len(proxies))
	}
	return len(proxies), nil
}

func (t *Tracker) record(success, disabled bool) {
	if t.metrics != nil {
		t.metrics.RecordProxyOutcome(success, disabled)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
