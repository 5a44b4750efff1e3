package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-tutor/internal/ai"
	"lingua-tutor/internal/proxy"
	"lingua-tutor/pkg/models"
)

func TestStartCommand(t *testing.T) {
	th := newTestHandler(t)
	th.vocab.provisioned = 20

	require.NoError(t, th.HandleUpdate(context.Background(), textUpdate("/start")))

	msg := th.sender.last()
	assert.Equal(t, int64(555), msg.ChatID)
	assert.Contains(t, msg.Text, "Привет, Anna")
	assert.Contains(t, msg.Text, "20 слов")
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestUnknownCommand(t *testing.T) {
	th := newTestHandler(t)

	require.NoError(t, th.HandleUpdate(context.Background(), textUpdate("/dance")))
	assert.Equal(t, msgUnknownCommand, th.sender.last().Text)
}

func TestAddWordWithArguments(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword apple - яблоко")))
	require.Len(t, th.vocab.words, 1)
	assert.Equal(t, "apple", th.vocab.words[0].Word.EnglishText)
	assert.Contains(t, th.sender.last().Text, "Добавлено")

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword apple - яблоко")))
	assert.Contains(t, th.sender.last().Text, "уже есть")

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword яблоко")))
	assert.Equal(t, msgInvalidWordPair, th.sender.last().Text)

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword banana")))
	assert.Equal(t, msgUnknownWord, th.sender.last().Text)
}

func TestRemoveWord(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword apple - яблоко")))
	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword river - река")))
	require.Len(t, th.vocab.words, 2)

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/removeword Apple")))
	assert.Contains(t, th.sender.last().Text, "убрано")
	require.Len(t, th.vocab.words, 1)
	assert.Equal(t, "river", th.vocab.words[0].Word.EnglishText)

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/removeword apple")))
	assert.Contains(t, th.sender.last().Text, "нет в вашем словаре")

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/removeword")))
	assert.Equal(t, msgRemoveWordUsage, th.sender.last().Text)

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/removeword яблоко")))
	assert.Equal(t, msgRemoveWordUsage, th.sender.last().Text)
	assert.Len(t, th.vocab.words, 1)
}

func TestAddWordDialogState(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/addword")))
	assert.Equal(t, models.StateAddingWord, th.users.user.CurrentState)

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("river - река")))
	assert.Equal(t, models.StateIdle, th.users.user.CurrentState)
	require.Len(t, th.vocab.words, 1)
	assert.Equal(t, "река", th.vocab.words[0].Word.RussianTranslation)
	assert.Empty(t, th.dialog.texts, "слово не уходит в диалог")
}

func TestTopicsDialogState(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/topics")))
	assert.Equal(t, models.StateSetTopics, th.users.user.CurrentState)

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("Travel, movies")))
	assert.Equal(t, []string{"travel", "movies"}, th.users.user.Topics)
	assert.Equal(t, models.StateIdle, th.users.user.CurrentState)
}

func TestLevelCommandAndCallback(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/level")))
	markup, ok := th.sender.last().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "level:B1", *markup.InlineKeyboard[0][2].CallbackData)

	require.NoError(t, th.HandleUpdate(ctx, callbackUpdate("level:B2")))
	assert.Equal(t, models.LevelB2, th.users.user.Level)
	assert.Equal(t, 1, th.sender.requests, "callback подтвержден")

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/level Z9")))
	assert.Equal(t, msgInvalidLevel, th.sender.last().Text)
}

func TestPracticeFlow(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()
	th.practice.words = []models.SessionWord{
		{Word: models.Word{ID: 1, EnglishText: "apple", RussianTranslation: "яблоко"}},
		{Word: models.Word{ID: 2, EnglishText: "river", RussianTranslation: "река"}},
	}

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/practice")))
	assert.Contains(t, th.sender.last().Text, "apple")

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("Яблоко")))
	assert.Equal(t, []string{"Яблоко"}, th.practice.answered)
	assert.Contains(t, th.sender.last().Text, "river", "следующая карточка")
	assert.Empty(t, th.dialog.texts, "ответ в тренировке не уходит в диалог")

	require.NoError(t, th.HandleUpdate(ctx, callbackUpdate(CallbackData(ActionPracticeShow, ""))))
	assert.Contains(t, th.sender.last().Text, "Тренировка завершена")
	assert.False(t, th.practice.active)
}

func TestPracticeWithoutWords(t *testing.T) {
	th := newTestHandler(t)

	require.NoError(t, th.HandleUpdate(context.Background(), textUpdate("/practice")))
	assert.Equal(t, msgNoWords, th.sender.last().Text)
}

func TestPracticeStopCallback(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()
	th.practice.words = []models.SessionWord{{Word: models.Word{ID: 1, EnglishText: "apple", RussianTranslation: "яблоко"}}}

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/practice")))
	require.NoError(t, th.HandleUpdate(ctx, callbackUpdate(CallbackData(ActionPracticeStop, ""))))
	assert.Contains(t, th.sender.last().Text, "Тренировка завершена")

	require.NoError(t, th.HandleUpdate(ctx, callbackUpdate(CallbackData(ActionPracticeStop, ""))))
	assert.Equal(t, msgNoSession, th.sender.last().Text)
}

func TestTextGoesToDialog(t *testing.T) {
	th := newTestHandler(t)

	require.NoError(t, th.HandleUpdate(context.Background(), textUpdate("I like apples")))
	assert.Equal(t, []string{"I like apples"}, th.dialog.texts)
	assert.Equal(t, "Nice! What else?", th.sender.last().Text)
}

func TestDialogErrorsMapToApologies(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrLimitReached, msgLimitReached},
		{proxy.ErrProxyUnavailable, msgTemporarilyUnavailable},
		{ai.ErrUpstream, msgUpstreamApology},
		{errBoom, msgGenericFailure},
	}
	for _, tc := range cases {
		th := newTestHandler(t)
		th.dialog.err = tc.err

		require.NoError(t, th.HandleUpdate(context.Background(), textUpdate("hello")))
		assert.Equal(t, tc.want, th.sender.last().Text, tc.err.Error())
	}
}

func TestPremiumPlanCallback(t *testing.T) {
	th := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("/premium")))
	markup, ok := th.sender.last().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "plan:1", *markup.InlineKeyboard[0][0].CallbackData)

	require.NoError(t, th.HandleUpdate(ctx, callbackUpdate("plan:1")))
	assert.Equal(t, []int{1}, th.premium.created)
	assert.Contains(t, th.sender.last().Text, "https://pay.example/1")

	require.NoError(t, th.HandleUpdate(ctx, callbackUpdate("plan:9")))
	assert.Equal(t, "План не найден", th.sender.last().Text)
}

func TestResetCommand(t *testing.T) {
	th := newTestHandler(t)

	require.NoError(t, th.HandleUpdate(context.Background(), textUpdate("/reset")))
	assert.Equal(t, 1, th.history.cleared)
	assert.Equal(t, msgHistoryCleared, th.sender.last().Text)
}

func TestRateLimitedUpdate(t *testing.T) {
	th := newTestHandler(t)
	th.Handler.limiter = NewRateLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, th.HandleUpdate(ctx, textUpdate("hello")))
	require.NoError(t, th.HandleUpdate(ctx, textUpdate("hello again")))

	assert.Equal(t, []string{"hello"}, th.dialog.texts)
	assert.Equal(t, msgRateLimited, th.sender.last().Text)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hi\nthere", sanitizeText("  hi\x00\nthere\x07 "))
	assert.Equal(t, "anna", sanitizeUsername("@anna"))
	assert.Equal(t, "5 < 6 & ok", stripTags("<b>5 &lt; 6</b> &amp; ok"))
}
