package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"lingua-tutor/internal/practice"
	"lingua-tutor/internal/premium"
	"lingua-tutor/pkg/models"
)

const (
	msgGenericFailure         = "😔 Не получилось обработать сообщение. Попробуйте еще раз чуть позже."
	msgUpstreamApology        = "😔 Извините, репетитор сейчас не может ответить. Попробуйте через минуту."
	msgTemporarilyUnavailable = "⏳ Сервис временно недоступен. Попробуйте позже."
	msgRateLimited            = "⚠️ Слишком много запросов. Подождите минуту."
	msgUnknownCommand         = "Неизвестная команда. Список команд: /help"
	msgLimitReached           = `🚫 <b>Достигнут дневной лимит сообщений!</b>

Завтра лимит обновится, а с премиумом можно заниматься без ограничений: /premium`

	msgAddWordPrompt   = "✍️ Пришлите слово в формате: <code>apple - яблоко</code>"
	msgTopicsPrompt    = "💬 Перечислите через запятую темы, о которых хотите говорить. Например: <i>travel, movies, cooking</i>"
	msgInvalidWordPair = "❌ Не понял слово. Формат: <code>apple - яблоко</code>, английское слово латиницей."
	msgUnknownWord     = "❌ Этого слова нет в каталоге. Добавьте перевод: <code>apple - яблоко</code>"
	msgRemoveWordUsage = "Укажите английское слово: <code>/removeword apple</code>"
	msgNoWords         = "📭 В словаре пока нет слов. Добавьте слово: /addword apple - яблоко"
	msgNoSession       = "Тренировка не начата. Начать: /practice"
	msgHistoryCleared  = "🧹 История диалога очищена."
	msgInvalidLevel    = "❌ Неизвестный уровень. Доступны: A1, A2, B1, B2, C1, C2."
)

var statusLabels = map[models.WordStatus]string{
	models.WordStatusNew:      "🆕 новое",
	models.WordStatusLearning: "📖 изучается",
	models.WordStatusLearned:  "✅ выучено",
	models.WordStatusMastered: "🏆 освоено",
}

func welcomeText(user *models.User, provisioned int) string {
	name := user.FirstName
	if name == "" {
		name = "друг"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👋 <b>Привет, %s!</b>\n\n", html.EscapeString(name))
	b.WriteString("Я репетитор английского. Пишите мне на английском, я поддержу разговор и поправлю ошибки. ")
	b.WriteString("Слова из вашего словаря, которые вы используете в разговоре, засчитываются в прогресс.\n\n")
	fmt.Fprintf(&b, "Ваш уровень: <b>%s</b>. Изменить: /level\n", user.Level)
	if provisioned > 0 {
		fmt.Fprintf(&b, "📚 Добавил в словарь %d слов для старта. Тренировка: /practice\n", provisioned)
	}
	b.WriteString("\nВсе команды: /help")
	return b.String()
}

func helpText() string {
	var b strings.Builder
	b.WriteString("📖 <b>Команды</b>\n\n")
	for _, c := range commandDescriptions {
		fmt.Fprintf(&b, "/%s - %s\n", c.Command, html.EscapeString(c.Description))
	}
	b.WriteString("\nВ тренировке присылайте перевод слова на русском.")
	return b.String()
}

func wordsText(words []models.StudentWord, limit int) string {
	if len(words) == 0 {
		return msgNoWords
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 <b>Ваш словарь</b> (%d)\n\n", len(words))
	for i, sw := range words {
		if i == limit {
			fmt.Fprintf(&b, "\n... и еще %d", len(words)-limit)
			break
		}
		if sw.Word == nil {
			continue
		}
		fmt.Fprintf(&b, "• <b>%s</b> - %s\n",
			html.EscapeString(sw.Word.EnglishText),
			html.EscapeString(sw.Word.RussianTranslation))
	}
	return b.String()
}

func statsText(stats *models.VocabularyStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Прогресс по словам</b>\n\n")
	fmt.Fprintf(&b, "Всего слов: <b>%d</b>\n", stats.Total)
	for _, status := range []models.WordStatus{
		models.WordStatusNew,
		models.WordStatusLearning,
		models.WordStatusLearned,
		models.WordStatusMastered,
	} {
		fmt.Fprintf(&b, "%s: %d\n", statusLabels[status], stats.ByStatus[status])
	}
	fmt.Fprintf(&b, "\nК повторению сейчас: <b>%d</b>\n", stats.DueForReview)
	fmt.Fprintf(&b, "Средний балл: <b>%.0f</b>/100", stats.AverageMastery)
	return b.String()
}

func cardText(card *practice.Card) string {
	return fmt.Sprintf("🎯 <b>Слово %d из %d</b>\n\n<b>%s</b>\n\n<i>Пришлите перевод на русском</i>",
		card.Number, card.Total, html.EscapeString(card.Word.Word.EnglishText))
}

func answerText(result *practice.AnswerResult) string {
	if result.Correct {
		return fmt.Sprintf("✅ Верно! <i>%s</i>", statusLabels[result.Status])
	}
	return fmt.Sprintf("❌ Правильный перевод: <b>%s</b>", html.EscapeString(result.Expected))
}

func summaryText(summary *practice.Summary) string {
	if summary == nil {
		return msgNoSession
	}
	return fmt.Sprintf("🏁 <b>Тренировка завершена</b>\n\nПравильных ответов: <b>%d</b> из %d\nВремя: %s",
		summary.Correct, summary.Total, summary.Duration.Round(time.Second))
}

func premiumText(limits *premium.MessageLimits, plans []models.PremiumPlan) string {
	var b strings.Builder
	if limits.IsPremium {
		b.WriteString("💎 <b>Премиум активен</b>\n")
		if limits.PremiumExpiresAt != nil {
			fmt.Fprintf(&b, "До: %s\n", limits.PremiumExpiresAt.Format("02.01.2006"))
		}
	} else {
		b.WriteString("💎 <b>Премиум-подписка</b>\n\n")
		fmt.Fprintf(&b, "Сообщений сегодня: %d из %d\n", limits.MessagesCount, limits.MaxMessages)
	}

	b.WriteString("\n<b>Планы:</b>\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "• %s: %.0f %s\n", html.EscapeString(p.Name), p.Price, p.Currency)
	}
	return b.String()
}

func paymentText(plan models.PremiumPlan, url string) string {
	return fmt.Sprintf(`💳 <b>Платеж создан!</b>

📋 <b>План:</b> %s
💰 <b>Сумма:</b> %.0f %s
⏱ <b>Длительность:</b> %d дней

<a href="%s">Оплатить</a>

⚠️ <i>После оплаты премиум-подписка будет активирована автоматически</i>`,
		html.EscapeString(plan.Name), plan.Price, plan.Currency, plan.DurationDays, html.EscapeString(url))
}

func reminderText(user *models.User, dueWords int) string {
	name := user.FirstName
	if name == "" {
		name = "друг"
	}
	return fmt.Sprintf("⏰ <b>%s, пора повторить слова!</b>\n\nК повторению: <b>%d</b>. Начать тренировку: /practice",
		html.EscapeString(name), dueWords)
}
