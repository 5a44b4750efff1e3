package bot

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lingua-tutor/internal/practice"
	"lingua-tutor/internal/premium"
	usersvc "lingua-tutor/internal/user"
	"lingua-tutor/internal/vocabulary"
	"lingua-tutor/pkg/models"
)

const (
	// Лимиты безопасности
	MaxTextLength     = 4000
	MaxUsernameLength = 32

	wordsListLimit = 50
)

// Sender отправляет запросы в Telegram Bot API
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UserService профиль ученика
type UserService interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error)
	UpdateLevel(ctx context.Context, userID int64, level string) (*models.User, error)
	SetTopics(ctx context.Context, userID int64, topics []string) (*models.User, error)
	SetState(ctx context.Context, userID int64, state string) error
}

// VocabularyService словарь ученика
type VocabularyService interface {
	AssignWord(ctx context.Context, studentID int64, english, russian string) (*models.Word, bool, error)
	UnassignWord(ctx context.Context, studentID int64, english string) (bool, error)
	ListStudentWords(ctx context.Context, studentID int64) ([]models.StudentWord, error)
	ProvisionDefaultWords(ctx context.Context, studentID int64, level string, n int) (int, error)
	Stats(ctx context.Context, studentID int64) (*models.VocabularyStats, error)
}

// PracticeService словарные тренировки
type PracticeService interface {
	Start(ctx context.Context, studentID int64) (*practice.Card, error)
	Current(studentID int64) *practice.Card
	Answer(ctx context.Context, studentID int64, answer string) (*practice.AnswerResult, error)
	Reveal(ctx context.Context, studentID int64) (*practice.AnswerResult, error)
	End(studentID int64) *practice.Summary
	Active(studentID int64) bool
}

// PremiumService подписки и платежи
type PremiumService interface {
	GetPremiumPlans() []models.PremiumPlan
	GetPlan(planID int) (*models.PremiumPlan, error)
	CreatePayment(ctx context.Context, userID int64, planID int) (*models.Payment, string, error)
	GetMessageLimits(ctx context.Context, userID int64) (*premium.MessageLimits, error)
}

// HistoryService история диалога
type HistoryService interface {
	ClearChatHistory(ctx context.Context, userID int64) error
}

// Replier отвечает на реплики ученика
type Replier interface {
	Reply(ctx context.Context, user *models.User, text string) (*DialogReply, error)
}

// UpdateRecorder принимает метрики входящих обновлений
type UpdateRecorder interface {
	RecordUserMessage(messageType string)
}

// Services зависимости обработчика
type Services struct {
	Users      UserService
	Vocabulary VocabularyService
	Practice   PracticeService
	Premium    PremiumService
	History    HistoryService
	Dialog     Replier
}

type commandHandler func(ctx context.Context, message *tgbotapi.Message, user *models.User) error

type callbackHandler func(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, arg string) error

// Handler представляет обработчик обновлений Telegram
type Handler struct {
	bot          Sender
	svc          Services
	metrics      UpdateRecorder
	limiter      *RateLimiter
	defaultWords int
	logger       *zap.Logger

	commands  map[Command]commandHandler
	callbacks map[CallbackAction]callbackHandler
}

// NewHandler создает новый обработчик. metrics может быть nil.
// defaultWords - сколько слов каталога назначить новому ученику.
func NewHandler(bot Sender, svc Services, metrics UpdateRecorder, defaultWords int, logger *zap.Logger) *Handler {
	h := &Handler{
		bot:          bot,
		svc:          svc,
		metrics:      metrics,
		limiter:      NewRateLimiter(MaxRequestsPerMinute, RateLimitBurst),
		defaultWords: defaultWords,
		logger:       logger,
	}

	h.commands = map[Command]commandHandler{
		CommandStart:    h.handleStartCommand,
		CommandHelp:     h.handleHelpCommand,
		CommandLevel:    h.handleLevelCommand,
		CommandTopics:   h.handleTopicsCommand,
		CommandWords:    h.handleWordsCommand,
		CommandAddWord:  h.handleAddWordCommand,
		CommandRemove:   h.handleRemoveWordCommand,
		CommandPractice: h.handlePracticeCommand,
		CommandStats:    h.handleStatsCommand,
		CommandPremium:  h.handlePremiumCommand,
		CommandReset:    h.handleResetCommand,
	}

	h.callbacks = map[CallbackAction]callbackHandler{
		ActionSetLevel:     h.handleLevelCallback,
		ActionPracticeShow: h.handlePracticeRevealCallback,
		ActionPracticeNext: h.handlePracticeNextCallback,
		ActionPracticeStop: h.handlePracticeStopCallback,
		ActionPremiumPlan:  h.handlePremiumPlanCallback,
		ActionPremiumInfo: func(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User, _ string) error {
			return h.sendPremiumInfo(ctx, cb.Message.Chat.ID, user)
		},
		ActionMainHelp: func(_ context.Context, cb *tgbotapi.CallbackQuery, _ *models.User, _ string) error {
			return h.sendHTML(cb.Message.Chat.ID, helpText())
		},
	}

	return h
}

// BotCommands список команд для меню бота
func BotCommands() []tgbotapi.BotCommand {
	commands := make([]tgbotapi.BotCommand, 0, len(commandDescriptions))
	for _, c := range commandDescriptions {
		commands = append(commands, tgbotapi.BotCommand{Command: string(c.Command), Description: c.Description})
	}
	return commands
}

// RateLimiter возвращает лимитер запросов для периодической очистки
func (h *Handler) RateLimiter() *RateLimiter {
	return h.limiter
}

// HandleUpdate обрабатывает входящее обновление
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	var from *tgbotapi.User
	switch {
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	case update.Message != nil:
		from = update.Message.From
	}
	if from == nil {
		return nil
	}

	if !h.limiter.IsAllowed(from.ID) {
		h.logger.Warn("rate limit exceeded", zap.Int64("telegram_id", from.ID))
		if update.Message != nil {
			return h.sendText(update.Message.Chat.ID, msgRateLimited)
		}
		return nil
	}

	user, err := h.svc.Users.GetOrCreateUser(ctx, from.ID,
		sanitizeUsername(from.UserName),
		sanitizeText(from.FirstName),
		sanitizeText(from.LastName))
	if err != nil {
		h.logger.Error("ошибка получения пользователя", zap.Int64("telegram_id", from.ID), zap.Error(err))
		if update.Message != nil {
			return h.sendText(update.Message.Chat.ID, ErrorText(err))
		}
		return err
	}

	if update.CallbackQuery != nil {
		h.record("callback")
		return h.handleCallbackQuery(ctx, update.CallbackQuery, user)
	}

	message := update.Message
	h.logger.Debug("получено обновление",
		zap.Int64("chat_id", message.Chat.ID),
		zap.Int64("user_id", user.ID))

	if message.IsCommand() {
		h.record("command")
		return h.handleCommand(ctx, message, user)
	}

	if message.Text == "" {
		return nil
	}
	h.record("text")
	return h.handleText(ctx, message, user)
}

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	handler, ok := h.commands[Command(message.Command())]
	if !ok {
		return h.sendText(message.Chat.ID, msgUnknownCommand)
	}

	// команда прерывает ожидание ввода
	if user.CurrentState != models.StateIdle && user.CurrentState != "" {
		h.setState(ctx, user, models.StateIdle)
	}

	return handler(ctx, message, user)
}

func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User) error {
	// убираем "загрузку" кнопки
	if _, err := h.bot.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		h.logger.Warn("ошибка ответа на callback", zap.Error(err))
	}

	if callback.Message == nil {
		return nil
	}

	action, arg := ParseCallback(callback.Data)
	handler, ok := h.callbacks[action]
	if !ok {
		h.logger.Warn("неизвестный callback", zap.String("data", callback.Data))
		return nil
	}

	return handler(ctx, callback, user, arg)
}

// handleText обрабатывает обычный текст в зависимости от состояния ученика
func (h *Handler) handleText(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	text := sanitizeText(message.Text)
	chatID := message.Chat.ID

	if h.svc.Practice.Active(user.ID) {
		return h.answerPractice(ctx, chatID, user, text)
	}

	switch user.CurrentState {
	case models.StateAddingWord:
		h.setState(ctx, user, models.StateIdle)
		return h.addWord(ctx, chatID, user, text)
	case models.StateSetTopics:
		h.setState(ctx, user, models.StateIdle)
		return h.saveTopics(ctx, chatID, user, text)
	}

	reply, err := h.svc.Dialog.Reply(ctx, user, text)
	if err != nil {
		if !errors.Is(err, ErrLimitReached) {
			h.logger.Error("ошибка ответа репетитора",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}
		return h.sendHTML(chatID, ErrorText(err))
	}

	return h.sendHTML(chatID, reply.Text)
}

func (h *Handler) handleStartCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	provisioned, err := h.svc.Vocabulary.ProvisionDefaultWords(ctx, user.ID, user.Level, h.defaultWords)
	if err != nil {
		h.logger.Warn("ошибка назначения стартовых слов", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, welcomeText(user, provisioned))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Тренировка", CallbackData(ActionPracticeNext, "")),
			tgbotapi.NewInlineKeyboardButtonData("❓ Помощь", CallbackData(ActionMainHelp, "")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💎 Премиум", CallbackData(ActionPremiumInfo, "")),
		),
	)
	return h.send(msg)
}

func (h *Handler) handleHelpCommand(_ context.Context, message *tgbotapi.Message, _ *models.User) error {
	return h.sendHTML(message.Chat.ID, helpText())
}

func (h *Handler) handleLevelCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		return h.setLevel(ctx, message.Chat.ID, user, arg)
	}

	row1 := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	row2 := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	for i, level := range models.Levels {
		label := level
		if level == user.Level {
			label = "✅ " + level
		}
		button := tgbotapi.NewInlineKeyboardButtonData(label, CallbackData(ActionSetLevel, level))
		if i < 3 {
			row1 = append(row1, button)
		} else {
			row2 = append(row2, button)
		}
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "🎓 Выберите уровень английского:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row1, row2)
	return h.send(msg)
}

func (h *Handler) handleLevelCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, level string) error {
	return h.setLevel(ctx, callback.Message.Chat.ID, user, level)
}

func (h *Handler) setLevel(ctx context.Context, chatID int64, user *models.User, level string) error {
	updated, err := h.svc.Users.UpdateLevel(ctx, user.ID, level)
	if err != nil {
		if errors.Is(err, usersvc.ErrInvalidLevel) {
			return h.sendText(chatID, msgInvalidLevel)
		}
		h.logger.Error("ошибка смены уровня", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(chatID, ErrorText(err))
	}
	return h.sendHTML(chatID, "✅ Уровень изменен на <b>"+updated.Level+"</b>")
}

func (h *Handler) handleTopicsCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	if arg := message.CommandArguments(); strings.TrimSpace(arg) != "" {
		return h.saveTopics(ctx, message.Chat.ID, user, arg)
	}
	h.setState(ctx, user, models.StateSetTopics)
	return h.sendHTML(message.Chat.ID, msgTopicsPrompt)
}

func (h *Handler) saveTopics(ctx context.Context, chatID int64, user *models.User, text string) error {
	topics := usersvc.ParseTopics(text)
	updated, err := h.svc.Users.SetTopics(ctx, user.ID, topics)
	if err != nil {
		h.logger.Error("ошибка сохранения тем", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(chatID, ErrorText(err))
	}
	if len(updated.Topics) == 0 {
		return h.sendText(chatID, "Темы сброшены.")
	}
	return h.sendText(chatID, "💬 Темы сохранены: "+strings.Join(updated.Topics, ", "))
}

func (h *Handler) handleWordsCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	words, err := h.svc.Vocabulary.ListStudentWords(ctx, user.ID)
	if err != nil {
		h.logger.Error("ошибка получения словаря", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(message.Chat.ID, ErrorText(err))
	}
	return h.sendHTML(message.Chat.ID, wordsText(words, wordsListLimit))
}

func (h *Handler) handleAddWordCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		return h.addWord(ctx, message.Chat.ID, user, arg)
	}
	h.setState(ctx, user, models.StateAddingWord)
	return h.sendHTML(message.Chat.ID, msgAddWordPrompt)
}

func (h *Handler) addWord(ctx context.Context, chatID int64, user *models.User, text string) error {
	english, russian, err := vocabulary.ParseWordPair(text)
	if err != nil {
		return h.sendHTML(chatID, msgInvalidWordPair)
	}

	word, added, err := h.svc.Vocabulary.AssignWord(ctx, user.ID, english, russian)
	switch {
	case errors.Is(err, vocabulary.ErrUnknownWord):
		return h.sendHTML(chatID, msgUnknownWord)
	case err != nil:
		h.logger.Error("ошибка добавления слова", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(chatID, ErrorText(err))
	case !added:
		return h.sendHTML(chatID, "ℹ️ Слово <b>"+html.EscapeString(word.EnglishText)+"</b> уже есть в словаре.")
	}

	return h.sendHTML(chatID, "✅ Добавлено: <b>"+html.EscapeString(word.EnglishText)+"</b> - "+html.EscapeString(word.RussianTranslation))
}

// handleRemoveWordCommand снимает слово с ученика; прогресс по нему удаляется вместе с назначением
func (h *Handler) handleRemoveWordCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	arg := strings.TrimSpace(message.CommandArguments())
	if arg == "" {
		return h.sendHTML(message.Chat.ID, msgRemoveWordUsage)
	}
	english, _, err := vocabulary.ParseWordPair(arg)
	if err != nil {
		return h.sendHTML(message.Chat.ID, msgRemoveWordUsage)
	}

	removed, err := h.svc.Vocabulary.UnassignWord(ctx, user.ID, english)
	if err != nil {
		h.logger.Error("ошибка удаления слова", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(message.Chat.ID, ErrorText(err))
	}
	if !removed {
		return h.sendHTML(message.Chat.ID, "ℹ️ Слова <b>"+html.EscapeString(english)+"</b> нет в вашем словаре.")
	}
	return h.sendHTML(message.Chat.ID, "🗑 Слово <b>"+html.EscapeString(english)+"</b> убрано из словаря.")
}

func (h *Handler) handleStatsCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	stats, err := h.svc.Vocabulary.Stats(ctx, user.ID)
	if err != nil {
		h.logger.Error("ошибка получения статистики", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(message.Chat.ID, ErrorText(err))
	}
	return h.sendHTML(message.Chat.ID, statsText(stats))
}

func (h *Handler) handlePremiumCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	return h.sendPremiumInfo(ctx, message.Chat.ID, user)
}

func (h *Handler) sendPremiumInfo(ctx context.Context, chatID int64, user *models.User) error {
	limits, err := h.svc.Premium.GetMessageLimits(ctx, user.ID)
	if err != nil {
		h.logger.Error("ошибка получения лимитов", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(chatID, ErrorText(err))
	}

	plans := h.svc.Premium.GetPremiumPlans()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 "+p.Name, CallbackData(ActionPremiumPlan, strconv.Itoa(p.ID))),
		))
	}

	msg := tgbotapi.NewMessage(chatID, premiumText(limits, plans))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return h.send(msg)
}

func (h *Handler) handlePremiumPlanCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, arg string) error {
	chatID := callback.Message.Chat.ID

	planID, err := strconv.Atoi(arg)
	if err != nil {
		h.logger.Warn("некорректный ID плана", zap.String("data", callback.Data))
		return nil
	}

	plan, err := h.svc.Premium.GetPlan(planID)
	if err != nil {
		return h.sendText(chatID, "План не найден")
	}

	payment, url, err := h.svc.Premium.CreatePayment(ctx, user.ID, planID)
	if err != nil || url == "" {
		h.logger.Error("ошибка создания платежа",
			zap.Int64("user_id", user.ID),
			zap.Int("plan_id", planID),
			zap.Error(err))
		return h.sendText(chatID, "Ошибка создания платежа. Попробуйте позже.")
	}

	h.logger.Info("ссылка на оплату отправлена",
		zap.String("payment_id", payment.PaymentID),
		zap.Int64("user_id", user.ID))

	return h.sendHTML(chatID, paymentText(*plan, url))
}

func (h *Handler) handleResetCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	h.svc.Practice.End(user.ID)
	if err := h.svc.History.ClearChatHistory(ctx, user.ID); err != nil {
		h.logger.Error("ошибка очистки истории", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(message.Chat.ID, ErrorText(err))
	}
	return h.sendText(message.Chat.ID, msgHistoryCleared)
}

func (h *Handler) setState(ctx context.Context, user *models.User, state string) {
	if err := h.svc.Users.SetState(ctx, user.ID, state); err != nil {
		h.logger.Error("ошибка смены состояния",
			zap.Int64("user_id", user.ID),
			zap.String("state", state),
			zap.Error(err))
		return
	}
	user.CurrentState = state
}

func (h *Handler) record(messageType string) {
	if h.metrics != nil {
		h.metrics.RecordUserMessage(messageType)
	}
}

func (h *Handler) send(msg tgbotapi.MessageConfig) error {
	_, err := h.bot.Send(msg)
	if err != nil && msg.ParseMode == tgbotapi.ModeHTML {
		// разметка не прошла, отправляем как обычный текст
		h.logger.Warn("ошибка отправки HTML сообщения, отправляем как обычный текст", zap.Error(err))
		msg.ParseMode = ""
		msg.Text = stripTags(msg.Text)
		_, err = h.bot.Send(msg)
	}
	return err
}

func (h *Handler) sendText(chatID int64, text string) error {
	return h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return h.send(msg)
}

// sanitizeText убирает управляющие символы и обрезает слишком длинный текст
func sanitizeText(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxTextLength {
		text = string([]rune(text)[:MaxTextLength])
	}
	return text
}

var htmlTagRegex = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// stripTags убирает HTML разметку и раскрывает сущности
func stripTags(text string) string {
	return html.UnescapeString(htmlTagRegex.ReplaceAllString(text, ""))
}

func sanitizeUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		username = string([]rune(username)[:MaxUsernameLength])
	}
	return username
}
