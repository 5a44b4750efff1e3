package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// ActiveProxyCounter обновляет gauge активных прокси
type ActiveProxyCounter interface {
	RefreshActiveGauge(ctx context.Context) (int, error)
}

// ProxyStatsJob периодически пересчитывает число активных прокси
type ProxyStatsJob struct {
	proxies ActiveProxyCounter
	logger  *zap.Logger
}

func NewProxyStatsJob(proxies ActiveProxyCounter, logger *zap.Logger) *ProxyStatsJob {
	return &ProxyStatsJob{proxies: proxies, logger: logger}
}

func (j *ProxyStatsJob) Name() string { return "proxy_stats" }

func (j *ProxyStatsJob) Run(ctx context.Context) error {
	active, err := j.proxies.RefreshActiveGauge(ctx)
	if err != nil {
		return err
	}
	if active == 0 {
		j.logger.Warn("нет активных прокси")
	}
	return nil
}
