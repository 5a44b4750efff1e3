package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lingua-tutor/pkg/models"
)

// UserLookup получение ученика по ID
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Notifier отправляет ученикам сообщения вне диалога: напоминания и уведомления об оплате
type Notifier struct {
	bot   Sender
	users UserLookup
}

func NewNotifier(bot Sender, users UserLookup) *Notifier {
	return &Notifier{bot: bot, users: users}
}

// SendPracticeReminder напоминает о словах к повторению
func (n *Notifier) SendPracticeReminder(_ context.Context, user *models.User, dueWords int) error {
	msg := tgbotapi.NewMessage(user.TelegramID, reminderText(user, dueWords))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Начать тренировку", CallbackData(ActionPracticeNext, "")),
		),
	)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки напоминания: %w", err)
	}
	return nil
}

// NotifyPremiumActivated сообщает об успешной оплате
func (n *Notifier) NotifyPremiumActivated(ctx context.Context, payment *models.Payment) error {
	user, err := n.users.GetByID(ctx, payment.UserID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	text := "💎 <b>Премиум активирован!</b>\n\nСпасибо за оплату. Теперь можно заниматься без ограничений."
	if user.PremiumExpiresAt != nil {
		text += fmt.Sprintf("\nПодписка действует до %s.", user.PremiumExpiresAt.Format("02.01.2006"))
	}

	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}
	return nil
}
