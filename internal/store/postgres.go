package store

import (
	"context"
	"fmt"
	"time"

	"lingua-tutor/internal/config"
	"lingua-tutor/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store представляет интерфейс для работы с базой данных
type Store interface {
	User() UserRepository
	Message() MessageRepository
	Word() WordRepository
	Progress() ProgressRepository
	Proxy() ProxyRepository
	Payment() PaymentRepository
	DB() *pgxpool.Pool
	Close() error
}

type store struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	user     UserRepository
	msg      MessageRepository
	word     WordRepository
	progress ProgressRepository
	proxy    ProxyRepository
	payment  PaymentRepository
}

// UserRepository интерфейс для работы с учениками
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateState(ctx context.Context, userID int64, state string) error
	UpdateLastSeen(ctx context.Context, userID int64) error
	IncrementMessagesCount(ctx context.Context, userID int64) error
	MarkReminderSent(ctx context.Context, userID int64, at time.Time) error
	GetWithDueWords(ctx context.Context, now time.Time, notRemindedSince time.Time) ([]*models.User, error)
}

// MessageRepository интерфейс для работы с историей диалога
type MessageRepository interface {
	Create(ctx context.Context, msg *models.UserMessage) error
	CreateWithCleanup(ctx context.Context, msg *models.UserMessage, keep int) error
	GetByUserID(ctx context.Context, userID int64, limit int) ([]models.UserMessage, error)
	DeleteByUserID(ctx context.Context, userID int64) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// WordRepository интерфейс каталога слов и назначений ученикам
type WordRepository interface {
	UpsertCategory(ctx context.Context, name, level string) (*models.Category, error)
	UpsertWord(ctx context.Context, word *models.Word) error
	GetByEnglish(ctx context.Context, english string) (*models.Word, error)
	Assign(ctx context.Context, studentID, wordID int64) (bool, error)
	Unassign(ctx context.Context, studentID, wordID int64) (bool, error)
	ListStudentWords(ctx context.Context, studentID int64) ([]models.StudentWord, error)
	CountStudentWords(ctx context.Context, studentID int64) (int, error)
	ListByLevel(ctx context.Context, level string, excludeStudentID int64, limit int) ([]models.Word, error)
}

// ProgressRepository интерфейс прогресса по словам
type ProgressRepository interface {
	Get(ctx context.Context, studentID, wordID int64) (*models.WordProgress, error)
	Update(ctx context.Context, p *models.WordProgress) (bool, error)
	InitMissing(ctx context.Context, studentID int64) (int64, error)
	ListNew(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error)
	ListDueForReview(ctx context.Context, studentID int64, now time.Time, limit int) ([]models.SessionWord, error)
	ListMastered(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error)
	Stats(ctx context.Context, studentID int64, now time.Time) (*models.VocabularyStats, error)
}

// ProxyRepository интерфейс исходящих прокси
type ProxyRepository interface {
	Create(ctx context.Context, p *models.Proxy) error
	GetByID(ctx context.Context, id int64) (*models.Proxy, error)
	List(ctx context.Context) ([]*models.Proxy, error)
	ListActive(ctx context.Context) ([]*models.Proxy, error)
	RecordSuccess(ctx context.Context, id int64, at time.Time) error
	RecordFailure(ctx context.Context, id int64, errMsg string, at time.Time) (disabled bool, err error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// PaymentRepository интерфейс для работы с платежами
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	ClaimPending(ctx context.Context, payment *models.Payment) (bool, error)
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", Unavailable(err))
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", Unavailable(err))
	}

	logger.Info("успешное подключение к базе данных PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name))

	s := &store{
		db:     db,
		logger: logger,
	}

	s.user = NewUserRepository(db, logger)
	s.msg = NewMessageRepository(db, logger)
	s.word = NewWordRepository(db, logger)
	s.progress = NewProgressRepository(db, logger)
	s.proxy = NewProxyRepository(db, logger)
	s.payment = NewPaymentRepository(db, logger)

	return s, nil
}

func (s *store) User() UserRepository         { return s.user }
func (s *store) Message() MessageRepository   { return s.msg }
func (s *store) Word() WordRepository         { return s.word }
func (s *store) Progress() ProgressRepository { return s.progress }
func (s *store) Proxy() ProxyRepository       { return s.proxy }
func (s *store) Payment() PaymentRepository   { return s.payment }

// DB возвращает пул подключений
func (s *store) DB() *pgxpool.Pool {
	return s.db
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.logger.Info("закрытие подключения к базе данных")
	s.db.Close()
	return nil
}
