package store

import (
	"context"
	"fmt"
	"time"

	"lingua-tutor/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type messageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMessageRepository создает новый репозиторий сообщений
func NewMessageRepository(db *pgxpool.Pool, logger *zap.Logger) MessageRepository {
	return &messageRepository{
		db:     db,
		logger: logger,
	}
}

const insertMessageQuery = `
	INSERT INTO user_messages (user_id, role, content, created_at)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

// Create создает новое сообщение
func (r *messageRepository) Create(ctx context.Context, msg *models.UserMessage) error {
	msg.CreatedAt = time.Now()

	err := r.db.QueryRow(ctx, insertMessageQuery,
		msg.UserID, msg.Role, msg.Content, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания сообщения: %w", Unavailable(err))
	}

	r.logger.Debug("создано новое сообщение",
		zap.Int64("message_id", msg.ID),
		zap.Int64("user_id", msg.UserID),
		zap.String("role", msg.Role))
	return nil
}

// CreateWithCleanup сохраняет сообщение и оставляет в истории только последние keep
func (r *messageRepository) CreateWithCleanup(ctx context.Context, msg *models.UserMessage, keep int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", Unavailable(err))
	}
	defer tx.Rollback(ctx)

	msg.CreatedAt = time.Now()
	if err := tx.QueryRow(ctx, insertMessageQuery,
		msg.UserID, msg.Role, msg.Content, msg.CreatedAt,
	).Scan(&msg.ID); err != nil {
		return fmt.Errorf("ошибка создания сообщения: %w", Unavailable(err))
	}

	cleanupQuery := `
		DELETE FROM user_messages
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (ORDER BY created_at DESC, id DESC) AS rn
				FROM user_messages
				WHERE user_id = $1
			) ranked
			WHERE rn > $2
		)`

	result, err := tx.Exec(ctx, cleanupQuery, msg.UserID, keep)
	if err != nil {
		return fmt.Errorf("ошибка автоочистки старых сообщений: %w", Unavailable(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", Unavailable(err))
	}

	if deleted := result.RowsAffected(); deleted > 0 {
		r.logger.Debug("автоочистка старых сообщений",
			zap.Int64("user_id", msg.UserID),
			zap.Int64("deleted_count", deleted),
			zap.Int("keep", keep))
	}
	return nil
}

// GetByUserID возвращает последние limit сообщений в хронологическом порядке
func (r *messageRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]models.UserMessage, error) {
	query := `
		SELECT id, user_id, role, content, created_at
		FROM user_messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сообщений пользователя: %w", Unavailable(err))
	}
	defer rows.Close()

	var messages []models.UserMessage
	for rows.Next() {
		var msg models.UserMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по сообщениям: %w", Unavailable(err))
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteByUserID удаляет всю историю пользователя
func (r *messageRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_messages WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сообщений пользователя: %w", Unavailable(err))
	}

	r.logger.Info("удалены сообщения пользователя",
		zap.Int64("user_id", userID),
		zap.Int64("deleted_count", result.RowsAffected()))
	return nil
}

// DeleteOlderThan удаляет сообщения всех пользователей старше указанной даты
func (r *messageRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM user_messages WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления старых сообщений: %w", Unavailable(err))
	}
	return result.RowsAffected(), nil
}
