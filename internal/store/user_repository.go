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

// DefaultMaxMessages дневной лимит сообщений для бесплатных учеников
const DefaultMaxMessages = 15

const userColumns = `id, telegram_id, username, first_name, last_name, level, topics, current_state, last_seen,
	is_premium, premium_expires_at, messages_count, max_messages, messages_reset_date, reminder_sent_at,
	created_at, updated_at`

type userRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName,
		&user.Level, &user.Topics, &user.CurrentState, &user.LastSeen,
		&user.IsPremium, &user.PremiumExpiresAt, &user.MessagesCount, &user.MaxMessages, &user.MessagesResetDate, &user.ReminderSentAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create создает нового пользователя
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, level, topics, current_state, last_seen,
		                   is_premium, premium_expires_at, messages_count, max_messages, messages_reset_date,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.LastSeen = now
	user.MessagesResetDate = now.Truncate(24 * time.Hour)

	if user.Level == "" {
		user.Level = models.DefaultLevel
	}
	if user.CurrentState == "" {
		user.CurrentState = models.StateIdle
	}
	if user.MaxMessages == 0 {
		user.MaxMessages = DefaultMaxMessages
	}
	if user.Topics == nil {
		user.Topics = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.Level, user.Topics, user.CurrentState, user.LastSeen,
		user.IsPremium, user.PremiumExpiresAt, user.MessagesCount, user.MaxMessages, user.MessagesResetDate,
		user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания пользователя: %w", Unavailable(err))
	}

	r.logger.Info("пользователь создан",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", user.TelegramID),
		zap.String("username", user.Username))

	return nil
}

// GetByID получает пользователя по ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь с ID %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя по ID: %w", Unavailable(err))
	}
	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь с Telegram ID %d: %w", telegramID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя по Telegram ID: %w", Unavailable(err))
	}
	return user, nil
}

// Update обновляет пользователя
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, level = $5, topics = $6, current_state = $7, last_seen = $8,
		    is_premium = $9, premium_expires_at = $10, messages_count = $11, max_messages = $12, messages_reset_date = $13,
		    reminder_sent_at = $14, updated_at = $15
		WHERE id = $1`

	user.UpdatedAt = time.Now()
	if user.Topics == nil {
		user.Topics = []string{}
	}

	result, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.Level, user.Topics, user.CurrentState, user.LastSeen,
		user.IsPremium, user.PremiumExpiresAt, user.MessagesCount, user.MaxMessages, user.MessagesResetDate,
		user.ReminderSentAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", Unavailable(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", user.ID, ErrNotFound)
	}

	r.logger.Debug("пользователь обновлен", zap.Int64("user_id", user.ID))
	return nil
}

// UpdateState обновляет состояние диалога пользователя
func (r *userRepository) UpdateState(ctx context.Context, userID int64, state string) error {
	query := `UPDATE users SET current_state = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, userID, state, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка обновления состояния пользователя: %w", Unavailable(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", userID, ErrNotFound)
	}

	r.logger.Debug("состояние пользователя обновлено",
		zap.Int64("user_id", userID),
		zap.String("state", state))
	return nil
}

// UpdateLastSeen обновляет время последнего посещения
func (r *userRepository) UpdateLastSeen(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_seen = $2, updated_at = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка обновления времени последнего посещения: %w", Unavailable(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", userID, ErrNotFound)
	}
	return nil
}

// IncrementMessagesCount увеличивает дневной счетчик сообщений
func (r *userRepository) IncrementMessagesCount(ctx context.Context, userID int64) error {
	query := `UPDATE users SET messages_count = messages_count + 1, updated_at = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка увеличения счетчика сообщений: %w", Unavailable(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", userID, ErrNotFound)
	}
	return nil
}

// MarkReminderSent фиксирует время отправки напоминания о тренировке
func (r *userRepository) MarkReminderSent(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET reminder_sent_at = $2 WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("ошибка сохранения времени напоминания: %w", Unavailable(err))
	}
	return nil
}

// GetWithDueWords возвращает учеников, у которых есть слова к повторению
// и которым не отправляли напоминание после notRemindedSince
func (r *userRepository) GetWithDueWords(ctx context.Context, now time.Time, notRemindedSince time.Time) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE (u.reminder_sent_at IS NULL OR u.reminder_sent_at < $2)
		  AND EXISTS (
			SELECT 1 FROM word_progress wp
			WHERE wp.student_id = u.id
			  AND wp.status IN ('learning', 'learned')
			  AND wp.next_review_date <= $1
		  )
		ORDER BY u.last_seen ASC`

	rows, err := r.db.Query(ctx, query, now, notRemindedSince)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения учеников для напоминания: %w", Unavailable(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.logger.Error("ошибка сканирования пользователя", zap.Error(err))
			continue
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по пользователям: %w", Unavailable(err))
	}

	return users, nil
}
