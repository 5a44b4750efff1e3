package ai

import (
	"context"
	"errors"
	"fmt"

	"lingua-tutor/internal/config"
	"lingua-tutor/internal/proxy"

	"go.uber.org/zap"
)

// Router выдает HTTP клиента для очередного запроса и учитывает его результат
type Router interface {
	Acquire(ctx context.Context) (*proxy.Route, error)
	Release(ctx context.Context, route *proxy.Route, err error) error
}

// NewAIClient создает новый AI клиент на основе конфигурации
func NewAIClient(cfg *config.AIConfig, router Router, logger *zap.Logger) (AIClient, error) {
	switch cfg.Provider {
	case config.ProviderYandex:
		return NewYandexClient(cfg.Yandex, cfg.Model, router, logger), nil
	case config.ProviderGemini:
		return NewGeminiClient(cfg.Gemini, cfg.Model, router, logger), nil
	default:
		return nil, fmt.Errorf("неподдерживаемый AI провайдер: %s. Поддерживаются: '%s', '%s'",
			cfg.Provider, config.ProviderYandex, config.ProviderGemini)
	}
}

// release сообщает маршрутизатору результат запроса. Ответ провайдера с кодом
// 4xx означает, что прокси доставил запрос; такие ошибки прокси не учитываются.
func release(ctx context.Context, router Router, route *proxy.Route, err error, statusCode int, logger *zap.Logger) {
	proxyErr := err
	if statusCode >= 400 && statusCode < 500 && statusCode != 403 {
		proxyErr = nil
	}
	if relErr := router.Release(ctx, route, proxyErr); relErr != nil {
		logger.Warn("не удалось учесть результат запроса через прокси",
			zap.String("route", route.Name()),
			zap.Error(relErr))
	}
}

// upstream помечает ошибку провайдера, не трогая ошибки выбора прокси
func upstream(provider string, err error) error {
	if errors.Is(err, proxy.ErrProxyUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, provider, err)
}
