package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lingua-tutor/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const proxyColumns = `id, host, port, username, password, is_active, total_requests, successful_requests, failed_requests,
	last_error, last_error_at, last_used_at, created_at`

type proxyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewProxyRepository создает репозиторий прокси
func NewProxyRepository(db *pgxpool.Pool, logger *zap.Logger) ProxyRepository {
	return &proxyRepository{
		db:     db,
		logger: logger,
	}
}

func scanProxy(row rowScanner) (*models.Proxy, error) {
	p := &models.Proxy{}
	err := row.Scan(
		&p.ID, &p.Host, &p.Port, &p.Username, &p.Password, &p.IsActive,
		&p.TotalRequests, &p.SuccessfulRequests, &p.FailedRequests,
		&p.LastError, &p.LastErrorAt, &p.LastUsedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create добавляет прокси, новый прокси активен
func (r *proxyRepository) Create(ctx context.Context, p *models.Proxy) error {
	query := `
		INSERT INTO proxies (host, port, username, password, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING id`

	p.IsActive = true
	p.CreatedAt = time.Now()
	if err := r.db.QueryRow(ctx, query, p.Host, p.Port, p.Username, p.Password, p.CreatedAt).Scan(&p.ID); err != nil {
		return fmt.Errorf("ошибка создания прокси: %w", Unavailable(err))
	}

	r.logger.Info("прокси добавлен", zap.Int64("proxy_id", p.ID), zap.String("proxy", p.String()))
	return nil
}

// GetByID возвращает прокси с его счетчиками
func (r *proxyRepository) GetByID(ctx context.Context, id int64) (*models.Proxy, error) {
	p, err := scanProxy(r.db.QueryRow(ctx, `SELECT `+proxyColumns+` FROM proxies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("прокси %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения прокси: %w", Unavailable(err))
	}
	return p, nil
}

// List возвращает все прокси
func (r *proxyRepository) List(ctx context.Context) ([]*models.Proxy, error) {
	return r.list(ctx, `SELECT `+proxyColumns+` FROM proxies ORDER BY id`)
}

// ListActive возвращает активные прокси
func (r *proxyRepository) ListActive(ctx context.Context) ([]*models.Proxy, error) {
	return r.list(ctx, `SELECT `+proxyColumns+` FROM proxies WHERE is_active ORDER BY id`)
}

func (r *proxyRepository) list(ctx context.Context, query string) ([]*models.Proxy, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прокси: %w", Unavailable(err))
	}
	defer rows.Close()

	var proxies []*models.Proxy
	for rows.Next() {
		p, err := scanProxy(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования прокси: %w", err)
		}
		proxies = append(proxies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по прокси: %w", Unavailable(err))
	}
	return proxies, nil
}

// RecordSuccess учитывает успешный запрос через прокси
func (r *proxyRepository) RecordSuccess(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE proxies
		SET total_requests = total_requests + 1,
		    successful_requests = successful_requests + 1,
		    last_used_at = $2
		WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("ошибка учета успешного запроса прокси: %w", Unavailable(err))
	}
	return nil
}

// recordFailureQuery учитывает ошибку и отключает прокси одним оператором:
// доля ошибок считается на стороне сервера по уже увеличенным счетчикам.
const recordFailureQuery = `
	WITH prev AS (
		SELECT id, is_active AS was_active FROM proxies WHERE id = $1 FOR UPDATE
	)
	UPDATE proxies p
	SET total_requests = p.total_requests + 1,
	    failed_requests = p.failed_requests + 1,
	    last_error = $2,
	    last_error_at = $3,
	    is_active = CASE
	        WHEN p.total_requests + 1 >= $4
	         AND (p.failed_requests + 1)::float8 / (p.total_requests + 1) > $5
	        THEN FALSE
	        ELSE p.is_active
	    END
	FROM prev
	WHERE p.id = prev.id
	RETURNING prev.was_active, p.is_active`

// RecordFailure учитывает неудачный запрос. disabled = true, если именно этот
// вызов отключил прокси.
func (r *proxyRepository) RecordFailure(ctx context.Context, id int64, errMsg string, at time.Time) (bool, error) {
	var wasActive, isActive bool
	err := r.db.QueryRow(ctx, recordFailureQuery,
		id, errMsg, at, models.ProxyMinRequestsToDisable, models.ProxyMaxFailureRate,
	).Scan(&wasActive, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("прокси %d: %w", id, ErrNotFound)
		}
		return false, fmt.Errorf("ошибка учета неудачного запроса прокси: %w", Unavailable(err))
	}
	return wasActive && !isActive, nil
}

// SetActive включает или выключает прокси вручную
func (r *proxyRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.Exec(ctx, `UPDATE proxies SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("ошибка изменения статуса прокси: %w", Unavailable(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("прокси %d: %w", id, ErrNotFound)
	}

	r.logger.Info("статус прокси изменен", zap.Int64("proxy_id", id), zap.Bool("is_active", active))
	return nil
}
