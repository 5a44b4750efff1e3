package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"lingua-tutor/internal/config"
	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// Route маршрут исходящего запроса к LLM
type Route struct {
	Client *http.Client
	Proxy  *models.Proxy // nil для запасного и прямого маршрута
}

// Name возвращает имя маршрута для логов
func (r *Route) Name() string {
	if r.Proxy != nil {
		return r.Proxy.String()
	}
	if t, ok := r.Client.Transport.(*http.Transport); ok && t.Proxy != nil {
		return "fallback"
	}
	return "direct"
}

// Router выдает HTTP клиентов для запросов к LLM: через случайный активный
// прокси, через запасной прокси из окружения или напрямую, если прокси выключены
type Router struct {
	tracker  *Tracker
	enabled  bool
	timeout  time.Duration
	fallback *http.Client
	direct   *http.Client
	logger   *zap.Logger

	mu         sync.Mutex
	transports map[int64]*http.Transport
}

// NewRouter создает маршрутизатор. timeout применяется к каждому запросу.
func NewRouter(tracker *Tracker, cfg config.ProxyConfig, timeout time.Duration, logger *zap.Logger) (*Router, error) {
	r := &Router{
		tracker:    tracker,
		enabled:    cfg.Enabled,
		timeout:    timeout,
		direct:     &http.Client{Timeout: timeout},
		logger:     logger,
		transports: make(map[int64]*http.Transport),
	}

	if cfg.FallbackURL != "" {
		u, err := url.Parse(cfg.FallbackURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("некорректный PROXY_FALLBACK_URL %q", cfg.FallbackURL)
		}
		r.fallback = &http.Client{Timeout: timeout, Transport: newTransport(u)}
	}

	return r, nil
}

// Acquire выбирает маршрут для очередного запроса
func (r *Router) Acquire(ctx context.Context) (*Route, error) {
	if !r.enabled {
		return &Route{Client: r.direct}, nil
	}

	p, err := r.tracker.PickActiveProxy(ctx)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return &Route{Client: &http.Client{Timeout: r.timeout, Transport: r.transport(p)}, Proxy: p}, nil
	}

	if r.fallback != nil {
		r.logger.Debug("активных прокси нет, используется запасной прокси")
		return &Route{Client: r.fallback}, nil
	}
	return nil, ErrProxyUnavailable
}

// Release учитывает результат запроса по маршруту через прокси.
// Отмена запроса вызывающей стороной не считается ошибкой прокси.
func (r *Router) Release(ctx context.Context, route *Route, reqErr error) error {
	if route == nil || route.Proxy == nil {
		return nil
	}
	if errors.Is(reqErr, context.Canceled) {
		return nil
	}

	var msg string
	if reqErr != nil {
		msg = reqErr.Error()
	}

	// учет не должен зависеть от того, что запрос уже отменен по таймауту
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	return r.tracker.RecordOutcome(ctx, route.Proxy.ID, reqErr == nil, msg)
}

func (r *Router) transport(p *models.Proxy) *http.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.transports[p.ID]; ok {
		return t
	}
	t := newTransport(p.URL())
	r.transports[p.ID] = t
	return t
}

func newTransport(proxyURL *url.URL) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
}
