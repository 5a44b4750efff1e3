package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lingua-tutor/internal/practice"
	"lingua-tutor/internal/premium"
	usersvc "lingua-tutor/internal/user"
	"lingua-tutor/internal/vocabulary"
	"lingua-tutor/pkg/models"
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() tgbotapi.MessageConfig {
	if len(f.sent) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) GetOrCreateUser(_ context.Context, telegramID int64, username, firstName, _ string) (*models.User, error) {
	if f.user == nil {
		f.user = &models.User{ID: 100, TelegramID: telegramID, Username: username, FirstName: firstName,
			Level: models.DefaultLevel, CurrentState: models.StateIdle}
	}
	copied := *f.user
	return &copied, nil
}

func (f *fakeUsers) UpdateLevel(_ context.Context, _ int64, level string) (*models.User, error) {
	if !models.IsValidLevel(level) {
		return nil, usersvc.ErrInvalidLevel
	}
	f.user.Level = level
	copied := *f.user
	return &copied, nil
}

func (f *fakeUsers) SetTopics(_ context.Context, _ int64, topics []string) (*models.User, error) {
	f.user.Topics = topics
	copied := *f.user
	return &copied, nil
}

func (f *fakeUsers) SetState(_ context.Context, _ int64, state string) error {
	f.user.CurrentState = state
	return nil
}

type fakeVocabulary struct {
	words       []models.StudentWord
	provisioned int
	catalog     map[string]string
}

func (f *fakeVocabulary) AssignWord(_ context.Context, studentID int64, english, russian string) (*models.Word, bool, error) {
	for _, sw := range f.words {
		if sw.Word.EnglishText == english {
			return sw.Word, false, nil
		}
	}
	if russian == "" {
		russian = f.catalog[english]
	}
	if russian == "" {
		return nil, false, vocabulary.ErrUnknownWord
	}
	w := &models.Word{ID: int64(len(f.words) + 1), EnglishText: english, RussianTranslation: russian}
	f.words = append(f.words, models.StudentWord{StudentID: studentID, WordID: w.ID, Word: w})
	return w, true, nil
}

func (f *fakeVocabulary) UnassignWord(_ context.Context, _ int64, english string) (bool, error) {
	for i, sw := range f.words {
		if sw.Word.EnglishText == english {
			f.words = append(f.words[:i], f.words[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVocabulary) ListStudentWords(context.Context, int64) ([]models.StudentWord, error) {
	return f.words, nil
}

func (f *fakeVocabulary) ProvisionDefaultWords(context.Context, int64, string, int) (int, error) {
	return f.provisioned, nil
}

func (f *fakeVocabulary) Stats(context.Context, int64) (*models.VocabularyStats, error) {
	return &models.VocabularyStats{
		Total:          len(f.words),
		ByStatus:       map[models.WordStatus]int{models.WordStatusNew: len(f.words)},
		AverageMastery: 0,
	}, nil
}

type fakePractice struct {
	words    []models.SessionWord
	pos      int
	active   bool
	answered []string
}

func (f *fakePractice) Start(context.Context, int64) (*practice.Card, error) {
	if len(f.words) == 0 {
		return nil, practice.ErrNoWords
	}
	f.pos, f.active = 0, true
	return f.Current(0), nil
}

func (f *fakePractice) Current(int64) *practice.Card {
	if !f.active || f.pos >= len(f.words) {
		return nil
	}
	return &practice.Card{Word: f.words[f.pos], Number: f.pos + 1, Total: len(f.words)}
}

func (f *fakePractice) Answer(_ context.Context, _ int64, answer string) (*practice.AnswerResult, error) {
	if !f.active {
		return nil, practice.ErrNoActiveSession
	}
	f.answered = append(f.answered, answer)
	w := f.words[f.pos]
	correct := practice.CheckAnswer(w.Word.RussianTranslation, answer)
	f.pos++
	result := &practice.AnswerResult{Correct: correct, Expected: w.Word.RussianTranslation, Status: models.WordStatusLearning}
	if f.pos >= len(f.words) {
		f.active = false
		result.Summary = &practice.Summary{Total: len(f.words), Answered: f.pos, Correct: 1}
	} else {
		result.Next = f.Current(0)
	}
	return result, nil
}

func (f *fakePractice) Reveal(ctx context.Context, id int64) (*practice.AnswerResult, error) {
	return f.Answer(ctx, id, "")
}

func (f *fakePractice) End(int64) *practice.Summary {
	if !f.active {
		return nil
	}
	f.active = false
	return &practice.Summary{Total: len(f.words), Answered: f.pos}
}

func (f *fakePractice) Active(int64) bool { return f.active }

type fakePremium struct {
	createErr error
	created   []int
}

func (f *fakePremium) GetPremiumPlans() []models.PremiumPlan {
	return []models.PremiumPlan{{ID: 1, Name: "Месяц", Price: 299, Currency: "RUB", DurationDays: 30}}
}

func (f *fakePremium) GetPlan(planID int) (*models.PremiumPlan, error) {
	if planID != 1 {
		return nil, premium.ErrPlanNotFound
	}
	plan := f.GetPremiumPlans()[0]
	return &plan, nil
}

func (f *fakePremium) CreatePayment(_ context.Context, userID int64, planID int) (*models.Payment, string, error) {
	if f.createErr != nil {
		return nil, "", f.createErr
	}
	f.created = append(f.created, planID)
	return &models.Payment{PaymentID: "pay-1", UserID: userID}, "https://pay.example/1", nil
}

func (f *fakePremium) GetMessageLimits(context.Context, int64) (*premium.MessageLimits, error) {
	return &premium.MessageLimits{MessagesCount: 3, MaxMessages: 15, Remaining: 12}, nil
}

type fakeHistory struct{ cleared int }

func (f *fakeHistory) ClearChatHistory(context.Context, int64) error {
	f.cleared++
	return nil
}

type fakeReplier struct {
	texts []string
	err   error
}

func (f *fakeReplier) Reply(_ context.Context, _ *models.User, text string) (*DialogReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return &DialogReply{Text: "Nice! What else?"}, nil
}

type testHandler struct {
	*Handler
	sender   *fakeSender
	users    *fakeUsers
	vocab    *fakeVocabulary
	practice *fakePractice
	premium  *fakePremium
	history  *fakeHistory
	dialog   *fakeReplier
}

func newTestHandler(t *testing.T) *testHandler {
	t.Helper()
	th := &testHandler{
		sender:   &fakeSender{},
		users:    &fakeUsers{},
		vocab:    &fakeVocabulary{catalog: map[string]string{}},
		practice: &fakePractice{},
		premium:  &fakePremium{},
		history:  &fakeHistory{},
		dialog:   &fakeReplier{},
	}
	th.Handler = NewHandler(th.sender, Services{
		Users:      th.users,
		Vocabulary: th.vocab,
		Practice:   th.practice,
		Premium:    th.premium,
		History:    th.history,
		Dialog:     th.dialog,
	}, nil, 20, zap.NewNop())
	th.Handler.limiter = NewRateLimiter(6000, 100)
	return th
}

var errBoom = errors.New("boom")

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 555, FirstName: "Anna", UserName: "anna"},
		Chat:      &tgbotapi.Chat{ID: 555},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 555},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 555}},
		Data:    data,
	}}
}
