package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingua-tutor/internal/ai"
	"lingua-tutor/internal/bot"
	"lingua-tutor/internal/config"
	"lingua-tutor/internal/message"
	"lingua-tutor/internal/metrics"
	"lingua-tutor/internal/migrations"
	"lingua-tutor/internal/payment"
	"lingua-tutor/internal/practice"
	"lingua-tutor/internal/premium"
	"lingua-tutor/internal/progress"
	"lingua-tutor/internal/proxy"
	"lingua-tutor/internal/scheduler"
	"lingua-tutor/internal/store"
	"lingua-tutor/internal/user"
	"lingua-tutor/internal/vocabulary"
	"lingua-tutor/internal/webhook"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultTelegramWebhookPath = "/telegram/webhook"

func main() {
	// Инициализация логгера
	logger, level, err := initLogger()
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Lingua Tutor")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("ошибка загрузки конфигурации", zap.Error(err))
	}
	level.SetLevel(cfg.App.GetLogLevel().Level())

	// Инициализация базы данных
	st, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
	}
	defer st.Close()

	// Применение миграций
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}

	metricsSystem := metrics.New(logger)

	// Маршрутизация запросов к LLM через прокси
	proxyTracker := proxy.NewTracker(st.Proxy(), metricsSystem, logger)
	router, err := proxy.NewRouter(proxyTracker, cfg.Proxy, cfg.AI.Timeout, logger)
	if err != nil {
		logger.Fatal("ошибка настройки прокси", zap.Error(err))
	}

	logger.Info("конфигурация AI",
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
		zap.Bool("proxy_enabled", cfg.Proxy.Enabled))

	aiClient, err := ai.NewAIClient(&cfg.AI, router, logger)
	if err != nil {
		logger.Fatal("ошибка создания AI клиента", zap.Error(err))
	}

	// Инициализация сервисов
	userService := user.NewService(st.User(), logger)
	messageService := message.NewService(st.Message(), logger)
	vocabularyService := vocabulary.NewService(st.Word(), st.Progress(), logger)
	progressTracker := progress.NewTracker(st.Progress(), metricsSystem, logger)
	selector := practice.NewSelector(st.Progress(), logger)
	practiceService := practice.NewService(selector, progressTracker, metricsSystem, cfg.Practice.SessionSize, logger)

	yukassaClient := payment.NewYukassaClient(cfg.YooKassa, logger)
	logger.Info("YooKassa клиент инициализирован",
		zap.String("shop_id", cfg.YooKassa.ShopID),
		zap.Bool("test_mode", cfg.YooKassa.TestMode))
	premiumService := premium.NewService(userService, st.Payment(), yukassaClient, metricsSystem, logger)

	dialog := bot.NewDialog(premiumService, messageService, selector, progressTracker, aiClient, metricsSystem, bot.DialogOptions{
		HistoryLimit: cfg.Practice.HistoryLimit,
		SessionSize:  cfg.Practice.SessionSize,
		Generation: ai.GenerationOptions{
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		},
	}, logger)

	// Инициализация Telegram бота
	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint,
		&http.Client{Timeout: cfg.Telegram.Timeout})
	if err != nil {
		logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
	}

	logger.Info("Telegram бот инициализирован",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	if _, err := botAPI.Request(tgbotapi.NewSetMyCommands(bot.BotCommands()...)); err != nil {
		logger.Warn("не удалось обновить меню команд", zap.Error(err))
	}

	handler := bot.NewHandler(botAPI, bot.Services{
		Users:      userService,
		Vocabulary: vocabularyService,
		Practice:   practiceService,
		Premium:    premiumService,
		History:    messageService,
		Dialog:     dialog,
	}, metricsSystem, cfg.Practice.DefaultWords, logger)
	notifier := bot.NewNotifier(botAPI, userService)

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger)
	reminderJob := scheduler.NewPracticeReminderJob(st.User(), st.Progress(), notifier, metricsSystem, scheduler.ReminderOptions{
		Cooldown:  cfg.Practice.ReminderCooldown,
		StartHour: cfg.Practice.ReminderStartHour,
		EndHour:   cfg.Practice.ReminderEndHour,
		Location:  time.Local,
	}, logger)
	mustAddJob(taskScheduler, reminderJob, cfg.Practice.ReminderInterval, logger)
	mustAddJob(taskScheduler, scheduler.NewProxyStatsJob(proxyTracker, logger), time.Minute, logger)
	mustAddJob(taskScheduler, scheduler.NewFuncJob("rate_limiter_cleanup", func(context.Context) error {
		handler.RateLimiter().Cleanup()
		return nil
	}), 10*time.Minute, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mux := http.NewServeMux()
	metricsHandler := metrics.NewHandler(metricsSystem, func(ctx context.Context) error {
		return st.DB().Ping(ctx)
	}, logger)
	mux.Handle("/metrics", metricsHandler.MetricsHandler())
	mux.HandleFunc("/health", metricsHandler.HealthHandler)

	// Webhook endpoint для ЮKassa
	webhookHandler := webhook.NewYooKassaWebhookHandler(premiumService, notifier, cfg.YooKassa.WebhookSecret, logger)
	mux.HandleFunc("/webhook/yukassa", webhookHandler.HandleWebhook)

	updates, err := updatesChannel(botAPI, cfg.Telegram, mux, logger)
	if err != nil {
		logger.Fatal("ошибка настройки получения обновлений", zap.Error(err))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP сервер запущен", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	taskScheduler.Start()

	go handleUpdates(ctx, updates, handler, 2*cfg.AI.Timeout, logger)

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)),
		zap.Bool("webhook", cfg.Telegram.WebhookURL != ""))

	// Ожидание сигнала завершения
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	cancel()
	if cfg.Telegram.WebhookURL == "" {
		botAPI.StopReceivingUpdates()
	}
	taskScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка при остановке HTTP сервера", zap.Error(err))
	}

	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер. Уровень меняется после загрузки конфигурации.
func initLogger() (*zap.Logger, zap.AtomicLevel, error) {
	config := zap.NewDevelopmentConfig()
	if os.Getenv("APP_ENV") == "production" {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout", "logs/app.log"}
	config.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, config.Level, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, err
	}
	return logger, config.Level, nil
}

func mustAddJob(s *scheduler.Scheduler, job scheduler.Job, interval time.Duration, logger *zap.Logger) {
	if err := s.AddJob(job, interval); err != nil {
		logger.Fatal("ошибка регистрации задачи", zap.String("job", job.Name()), zap.Error(err))
	}
}

// updatesChannel настраивает получение обновлений: webhook, если задан URL, иначе long polling
func updatesChannel(botAPI *tgbotapi.BotAPI, cfg config.TelegramConfig, mux *http.ServeMux, logger *zap.Logger) (tgbotapi.UpdatesChannel, error) {
	if cfg.WebhookURL == "" {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn("не удалось удалить webhook", zap.Error(err))
		}

		updateConfig := tgbotapi.NewUpdate(0)
		// ожидание long polling должно укладываться в таймаут HTTP клиента
		updateConfig.Timeout = max(1, int((cfg.Timeout - 5*time.Second).Seconds()))
		return botAPI.GetUpdatesChan(updateConfig), nil
	}

	u, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("некорректный TELEGRAM_WEBHOOK_URL: %w", err)
	}
	path := u.Path
	if path == "" || path == "/" {
		path = defaultTelegramWebhookPath
		u.Path = path
	}

	wh, err := tgbotapi.NewWebhook(u.String())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания webhook: %w", err)
	}
	if _, err := botAPI.Request(wh); err != nil {
		return nil, fmt.Errorf("ошибка регистрации webhook: %w", err)
	}

	updates := make(chan tgbotapi.Update, botAPI.Buffer)
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		update, err := botAPI.HandleUpdate(r)
		if err != nil {
			logger.Warn("некорректное обновление от Telegram", zap.Error(err))
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		updates <- *update
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("webhook Telegram зарегистрирован", zap.String("path", path))
	return updates, nil
}

// handleUpdates обрабатывает обновления от Telegram
func handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel, handler *bot.Handler, timeout time.Duration, logger *zap.Logger) {
	for {
		select {
		case update := <-updates:
			// Пропускаем пустые обновления
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}

			// Обрабатываем обновление в горутине
			go func(update tgbotapi.Update) {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				if err := handler.HandleUpdate(ctx, update); err != nil {
					var chatID int64
					if update.Message != nil {
						chatID = update.Message.Chat.ID
					} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
						chatID = update.CallbackQuery.Message.Chat.ID
					}

					logger.Error("ошибка обработки обновления",
						zap.Int64("chat_id", chatID),
						zap.Error(err))
				}
			}(update)

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			return
		}
	}
}
