package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limiting
const (
	MaxRequestsPerMinute = 30
	RateLimitBurst       = 5
	limiterIdleTTL       = 10 * time.Minute
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов каждого ученика
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*userLimiter
	now      func() time.Time
}

// NewRateLimiter создает rate limiter на perMinute запросов в минуту с запасом burst
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[int64]*userLimiter),
		now:      time.Now,
	}
}

// IsAllowed проверяет, разрешен ли запрос для пользователя
func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastSeen = now

	return ul.limiter.AllowN(now, 1)
}

// Cleanup удаляет лимитеры учеников, которые давно не писали
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, ul := range rl.limiters {
		if now.Sub(ul.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, id)
			removed++
		}
	}
	return removed
}
