package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Поддерживаемые LLM провайдеры
const (
	ProviderYandex = "yandex"
	ProviderGemini = "gemini"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	Telegram TelegramConfig
	AI       AIConfig
	Proxy    ProxyConfig
	Database DatabaseConfig
	Practice PracticeConfig
	App      AppConfig
	YooKassa YooKassaConfig
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	BotToken   string
	WebhookURL string // пусто - long polling
	Timeout    time.Duration
}

// AIConfig содержит настройки LLM провайдеров
type AIConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Yandex      YandexConfig
	Gemini      GeminiConfig
}

type YandexConfig struct {
	APIKey   string
	FolderID string
	BaseURL  string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
}

// ProxyConfig настройки маршрутизации запросов к LLM через прокси
type ProxyConfig struct {
	Enabled     bool
	FallbackURL string // используется, когда активных прокси нет
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MigrationPath string
	MaxConns      int
}

// PracticeConfig настройки словарных тренировок и напоминаний
type PracticeConfig struct {
	SessionSize       int
	DefaultWords      int
	HistoryLimit      int
	ReminderInterval  time.Duration
	ReminderCooldown  time.Duration
	ReminderStartHour int
	ReminderEndHour   int
}

type AppConfig struct {
	Env      string
	LogLevel string
	Port     int
}

// YooKassaConfig содержит настройки ЮKassa
type YooKassaConfig struct {
	ShopID        string
	SecretKey     string
	TestMode      bool
	ReturnURL     string
	WebhookSecret string // пусто - подпись уведомлений не проверяется
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.WebhookURL = os.Getenv("TELEGRAM_WEBHOOK_URL")
	cfg.Telegram.Timeout = getEnvDurationDefault("TELEGRAM_TIMEOUT", 10*time.Second)

	// AI
	cfg.AI.Provider = getEnvDefault("AI_PROVIDER", ProviderYandex)
	cfg.AI.Model = getEnvDefault("AI_MODEL", defaultModel(cfg.AI.Provider))
	cfg.AI.MaxTokens = getEnvIntDefault("AI_MAX_TOKENS", 800)
	cfg.AI.Temperature = getEnvFloatDefault("AI_TEMPERATURE", 0.6)
	cfg.AI.Timeout = getEnvDurationDefault("AI_TIMEOUT", 30*time.Second)
	cfg.AI.Yandex.APIKey = os.Getenv("YANDEX_API_KEY")
	cfg.AI.Yandex.FolderID = os.Getenv("YANDEX_FOLDER_ID")
	cfg.AI.Yandex.BaseURL = getEnvDefault("YANDEX_BASE_URL", "https://llm.api.cloud.yandex.net/v1")
	cfg.AI.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.AI.Gemini.BaseURL = os.Getenv("GEMINI_BASE_URL")

	// Proxy
	cfg.Proxy.Enabled = getEnvBoolDefault("PROXY_ENABLED", cfg.AI.Provider == ProviderGemini)
	cfg.Proxy.FallbackURL = os.Getenv("PROXY_FALLBACK_URL")

	cfg.Database = databaseFromEnv()

	// Practice
	cfg.Practice.SessionSize = getEnvIntDefault("PRACTICE_SESSION_SIZE", 10)
	cfg.Practice.DefaultWords = getEnvIntDefault("PRACTICE_DEFAULT_WORDS", 20)
	cfg.Practice.HistoryLimit = getEnvIntDefault("CHAT_HISTORY_LIMIT", 10)
	cfg.Practice.ReminderInterval = getEnvDurationDefault("REMINDER_INTERVAL", time.Hour)
	cfg.Practice.ReminderCooldown = getEnvDurationDefault("REMINDER_COOLDOWN", 24*time.Hour)
	cfg.Practice.ReminderStartHour = getEnvIntDefault("REMINDER_START_HOUR", 9)
	cfg.Practice.ReminderEndHour = getEnvIntDefault("REMINDER_END_HOUR", 21)

	// YooKassa
	cfg.YooKassa.ShopID = getEnvDefault("YUKASSA_SHOP_ID", "test_shop_id")
	cfg.YooKassa.SecretKey = getEnvDefault("YUKASSA_SECRET_KEY", "test_secret_key")
	cfg.YooKassa.TestMode = getEnvBoolDefault("YUKASSA_TEST_MODE", true)
	cfg.YooKassa.ReturnURL = getEnvDefault("YUKASSA_RETURN_URL", "https://t.me")
	cfg.YooKassa.WebhookSecret = os.Getenv("YUKASSA_WEBHOOK_SECRET")

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 8080)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

// LoadDatabaseOnly загружает только настройки базы данных и приложения.
// Используется служебными командами, которым не нужны бот и LLM.
func LoadDatabaseOnly() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Database: databaseFromEnv()}
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")

	if err := validateDatabase(&cfg.Database); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}
	return cfg, nil
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:          getEnvDefault("DB_HOST", "localhost"),
		Port:          getEnvIntDefault("DB_PORT", 5432),
		User:          os.Getenv("DB_USER"),
		Password:      os.Getenv("DB_PASSWORD"),
		Name:          os.Getenv("DB_NAME"),
		SSLMode:       getEnvDefault("DB_SSL_MODE", "disable"),
		MigrationPath: os.Getenv("MIGRATION_PATH"),
		MaxConns:      getEnvIntDefault("DB_MAX_CONNS", 10),
	}
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.0-flash"
	}
	return "yandexgpt-lite/latest"
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не установлен")
	}
	switch config.AI.Provider {
	case ProviderYandex:
		if config.AI.Yandex.APIKey == "" {
			return fmt.Errorf("YANDEX_API_KEY не установлен")
		}
		if config.AI.Yandex.FolderID == "" {
			return fmt.Errorf("YANDEX_FOLDER_ID не установлен")
		}
	case ProviderGemini:
		if config.AI.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY не установлен")
		}
	default:
		return fmt.Errorf("поддерживаются только AI_PROVIDER: %s, %s", ProviderYandex, ProviderGemini)
	}
	if config.AI.Timeout < 10*time.Second || config.AI.Timeout > 30*time.Second {
		return fmt.Errorf("AI_TIMEOUT должен быть от 10s до 30s, получено %s", config.AI.Timeout)
	}
	if config.Telegram.Timeout < 10*time.Second || config.Telegram.Timeout > 30*time.Second {
		return fmt.Errorf("TELEGRAM_TIMEOUT должен быть от 10s до 30s, получено %s", config.Telegram.Timeout)
	}
	if err := validateDatabase(&config.Database); err != nil {
		return err
	}
	if config.Practice.SessionSize <= 0 {
		return fmt.Errorf("PRACTICE_SESSION_SIZE должен быть положительным")
	}
	if config.Practice.ReminderStartHour < 0 || config.Practice.ReminderEndHour > 24 ||
		config.Practice.ReminderStartHour >= config.Practice.ReminderEndHour {
		return fmt.Errorf("некорректное окно напоминаний: %d-%d",
			config.Practice.ReminderStartHour, config.Practice.ReminderEndHour)
	}

	return nil
}

func validateDatabase(db *DatabaseConfig) error {
	if db.Host == "" {
		return fmt.Errorf("DB_HOST не установлен")
	}
	if db.User == "" {
		return fmt.Errorf("DB_USER не установлен")
	}
	if db.Password == "" {
		return fmt.Errorf("DB_PASSWORD не установлен")
	}
	if db.Name == "" {
		return fmt.Errorf("DB_NAME не установлен")
	}
	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetURL возвращает URL подключения для database/sql драйвера
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
