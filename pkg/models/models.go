package models

import (
	"time"
)

// User представляет ученика в системе
type User struct {
	ID                int64      `json:"id" db:"id"`
	TelegramID        int64      `json:"telegram_id" db:"telegram_id"`
	Username          string     `json:"username" db:"username"`
	FirstName         string     `json:"first_name" db:"first_name"`
	LastName          string     `json:"last_name" db:"last_name"`
	Level             string     `json:"level" db:"level"`   // A1..C2
	Topics            []string   `json:"topics" db:"topics"` // интересующие темы для диалога
	CurrentState      string     `json:"current_state" db:"current_state"`
	LastSeen          time.Time  `json:"last_seen" db:"last_seen"`
	IsPremium         bool       `json:"is_premium" db:"is_premium"`
	PremiumExpiresAt  *time.Time `json:"premium_expires_at" db:"premium_expires_at"`
	MessagesCount     int        `json:"messages_count" db:"messages_count"`           // сообщений за текущие сутки
	MaxMessages       int        `json:"max_messages" db:"max_messages"`               // лимит для бесплатных
	MessagesResetDate time.Time  `json:"messages_reset_date" db:"messages_reset_date"` // дата последнего сброса счетчика
	ReminderSentAt    *time.Time `json:"reminder_sent_at" db:"reminder_sent_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// UserMessage представляет сообщение в диалоге
type UserMessage struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"` // "user" или "assistant"
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateUserRequest представляет запрос на создание пользователя
type CreateUserRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// UpdateUserRequest представляет запрос на обновление пользователя
type UpdateUserRequest struct {
	Level             *string    `json:"level,omitempty"`
	Topics            *[]string  `json:"topics,omitempty"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	CurrentState      *string    `json:"current_state,omitempty"`
	IsPremium         *bool      `json:"is_premium,omitempty"`
	PremiumExpiresAt  *time.Time `json:"premium_expires_at,omitempty"`
	MessagesCount     *int       `json:"messages_count,omitempty"`
	MaxMessages       *int       `json:"max_messages,omitempty"`
	MessagesResetDate *time.Time `json:"messages_reset_date,omitempty"`
	ReminderSentAt    *time.Time `json:"reminder_sent_at,omitempty"`
}

// Payment представляет платеж за премиум-подписку
type Payment struct {
	ID                  int64          `json:"id" db:"id"`
	UserID              int64          `json:"user_id" db:"user_id"`
	Amount              float64        `json:"amount" db:"amount"`
	Currency            string         `json:"currency" db:"currency"`
	PaymentID           string         `json:"payment_id" db:"payment_id"` // ID от ЮKassa
	Status              string         `json:"status" db:"status"`         // pending, completed, failed, cancelled
	PremiumDurationDays int            `json:"premium_duration_days" db:"premium_duration_days"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	CompletedAt         *time.Time     `json:"completed_at" db:"completed_at"`
	Metadata            map[string]any `json:"metadata" db:"metadata"`
}

// PremiumPlan представляет план премиум-подписки
type PremiumPlan struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	DurationDays int      `json:"duration_days"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	Description  string   `json:"description"`
	Features     []string `json:"features"`
}

// Уровни владения языком по шкале CEFR
const (
	LevelA1 = "A1"
	LevelA2 = "A2"
	LevelB1 = "B1"
	LevelB2 = "B2"
	LevelC1 = "C1"
	LevelC2 = "C2"

	DefaultLevel = LevelA1
)

// Levels перечисляет уровни в порядке возрастания
var Levels = []string{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// Constants для ролей сообщений
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Constants для состояний пользователя
const (
	StateIdle       = "idle"
	StateInPractice = "in_practice"
	StateAddingWord = "adding_word"
	StateSetTopics  = "setting_topics"
)

// Статусы платежей
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// IsValidLevel проверяет корректность уровня пользователя
func IsValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// IsValidRole проверяет корректность роли сообщения
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// IsValidState проверяет корректность состояния пользователя
func IsValidState(state string) bool {
	switch state {
	case StateIdle, StateInPractice, StateAddingWord, StateSetTopics:
		return true
	default:
		return false
	}
}
