package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lingua-tutor/internal/practice"
	"lingua-tutor/pkg/models"
)

func (h *Handler) handlePracticeCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) error {
	return h.startPractice(ctx, message.Chat.ID, user)
}

// startPractice начинает тренировку. Ученику без слов сначала назначаются слова его уровня.
func (h *Handler) startPractice(ctx context.Context, chatID int64, user *models.User) error {
	card, err := h.svc.Practice.Start(ctx, user.ID)
	if errors.Is(err, practice.ErrNoWords) {
		provisioned, perr := h.svc.Vocabulary.ProvisionDefaultWords(ctx, user.ID, user.Level, h.defaultWords)
		if perr != nil {
			h.logger.Warn("ошибка назначения стартовых слов", zap.Int64("user_id", user.ID), zap.Error(perr))
		}
		if provisioned == 0 {
			return h.sendHTML(chatID, msgNoWords)
		}
		card, err = h.svc.Practice.Start(ctx, user.ID)
	}
	if errors.Is(err, practice.ErrNoWords) {
		return h.sendHTML(chatID, msgNoWords)
	}
	if err != nil {
		h.logger.Error("ошибка запуска тренировки", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(chatID, ErrorText(err))
	}

	return h.sendCard(chatID, card)
}

// answerPractice проверяет перевод, присланный текстом
func (h *Handler) answerPractice(ctx context.Context, chatID int64, user *models.User, text string) error {
	result, err := h.svc.Practice.Answer(ctx, user.ID, text)
	return h.sendPracticeResult(chatID, user, result, err)
}

func (h *Handler) handlePracticeRevealCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, _ string) error {
	result, err := h.svc.Practice.Reveal(ctx, user.ID)
	return h.sendPracticeResult(callback.Message.Chat.ID, user, result, err)
}

func (h *Handler) handlePracticeNextCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, _ string) error {
	chatID := callback.Message.Chat.ID
	if card := h.svc.Practice.Current(user.ID); card != nil {
		return h.sendCard(chatID, card)
	}
	return h.startPractice(ctx, chatID, user)
}

func (h *Handler) handlePracticeStopCallback(_ context.Context, callback *tgbotapi.CallbackQuery, user *models.User, _ string) error {
	return h.sendHTML(callback.Message.Chat.ID, summaryText(h.svc.Practice.End(user.ID)))
}

func (h *Handler) sendPracticeResult(chatID int64, user *models.User, result *practice.AnswerResult, err error) error {
	if errors.Is(err, practice.ErrNoActiveSession) {
		return h.sendText(chatID, msgNoSession)
	}
	if err != nil {
		h.logger.Error("ошибка проверки ответа", zap.Int64("user_id", user.ID), zap.Error(err))
		return h.sendText(chatID, ErrorText(err))
	}

	if err := h.sendHTML(chatID, answerText(result)); err != nil {
		return err
	}
	if result.Summary != nil {
		return h.sendHTML(chatID, summaryText(result.Summary))
	}
	return h.sendCard(chatID, result.Next)
}

func (h *Handler) sendCard(chatID int64, card *practice.Card) error {
	msg := tgbotapi.NewMessage(chatID, cardText(card))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 Показать перевод", CallbackData(ActionPracticeShow, "")),
			tgbotapi.NewInlineKeyboardButtonData("⏹ Закончить", CallbackData(ActionPracticeStop, "")),
		),
	)
	return h.send(msg)
}
