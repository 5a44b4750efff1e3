package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"lingua-tutor/internal/config"
	"lingua-tutor/internal/migrations"
	"lingua-tutor/internal/practice"
	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openTestStore подключается к отдельной тестовой базе TEST_DB_NAME (остальные
// параметры из DB_*), применяет миграции и очищает таблицы.
func openTestStore(t *testing.T) store.Store {
	t.Helper()

	name := os.Getenv("TEST_DB_NAME")
	if name == "" {
		t.Skip("TEST_DB_NAME не задан, тесты с PostgreSQL пропущены")
	}
	t.Setenv("DB_NAME", name)

	cfg, err := config.LoadDatabaseOnly()
	require.NoError(t, err)
	require.NoError(t, migrations.RunMigrations(cfg, zap.NewNop()))

	st, err := store.NewStore(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.DB().Exec(context.Background(), `
		TRUNCATE proxies, word_progress, student_words, words, categories, payments, user_messages, users
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return st
}

func createStudent(t *testing.T, st store.Store, telegramID int64) *models.User {
	t.Helper()
	u := &models.User{TelegramID: telegramID, Username: fmt.Sprintf("student%d", telegramID)}
	require.NoError(t, st.User().Create(context.Background(), u))
	return u
}

func assignWords(t *testing.T, st store.Store, studentID int64, prefix string, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		w := &models.Word{EnglishText: fmt.Sprintf("%s%d", prefix, i), RussianTranslation: "перевод"}
		require.NoError(t, st.Word().UpsertWord(ctx, w))
		added, err := st.Word().Assign(ctx, studentID, w.ID)
		require.NoError(t, err)
		require.True(t, added)
		ids = append(ids, w.ID)
	}
	return ids
}

func setProgress(t *testing.T, st store.Store, studentID, wordID int64, status models.WordStatus, lastPracticed, nextReview *time.Time) {
	t.Helper()
	ok, err := st.Progress().Update(context.Background(), &models.WordProgress{
		StudentID:      studentID,
		WordID:         wordID,
		Status:         status,
		DialogUses:     map[models.WordStatus]int{models.WordStatusLearning: 5, models.WordStatusLearned: 10, models.WordStatusMastered: 20}[status],
		MasteryScore:   50,
		LastPracticed:  lastPracticed,
		NextReviewDate: nextReview,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func sessionIDs(words []models.SessionWord) []int64 {
	ids := make([]int64, len(words))
	for i, w := range words {
		ids[i] = w.Word.ID
	}
	return ids
}

func TestProxyRecordFailureThresholds(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name       string
		successes  int
		failures   int
		wantActive bool
	}{
		{name: "две ошибки из двух", failures: 2, wantActive: true},
		{name: "три ошибки из трех", failures: 3, wantActive: false},
		{name: "доля ошибок ровно 0.8", successes: 1, failures: 4, wantActive: true},
		{name: "доля ошибок выше 0.8", successes: 1, failures: 5, wantActive: false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.Proxy{Host: "10.0.0.1", Port: 3000 + i}
			require.NoError(t, st.Proxy().Create(ctx, p))

			for j := 0; j < tt.successes; j++ {
				require.NoError(t, st.Proxy().RecordSuccess(ctx, p.ID, now))
			}
			disabledCalls := 0
			for j := 0; j < tt.failures; j++ {
				disabled, err := st.Proxy().RecordFailure(ctx, p.ID, "timeout", now)
				require.NoError(t, err)
				if disabled {
					disabledCalls++
				}
			}

			got, err := st.Proxy().GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantActive, got.IsActive)
			assert.Equal(t, tt.successes+tt.failures, got.TotalRequests)
			assert.Equal(t, tt.failures, got.FailedRequests)
			if tt.wantActive {
				assert.Zero(t, disabledCalls)
			} else {
				assert.Equal(t, 1, disabledCalls, "отключение сообщается один раз")
			}
		})
	}
}

func TestProxyDisabledStaysDisabled(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p := &models.Proxy{Host: "10.0.0.2", Port: 8080}
	require.NoError(t, st.Proxy().Create(ctx, p))
	for i := 0; i < 3; i++ {
		_, err := st.Proxy().RecordFailure(ctx, p.ID, "refused", time.Now())
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, st.Proxy().RecordSuccess(ctx, p.ID, time.Now()))
	}

	active, err := st.Proxy().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "успехи не включают прокси обратно")

	require.NoError(t, st.Proxy().SetActive(ctx, p.ID, true))
	active, err = st.Proxy().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = st.Proxy().RecordFailure(ctx, 999, "timeout", time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInitMissingAndUnassign(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	u := createStudent(t, st, 100)
	ids := assignWords(t, st, u.ID, "apple", 3)

	created, err := st.Progress().InitMissing(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), created)

	created, err = st.Progress().InitMissing(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, created, "повторная инициализация ничего не создает")

	p, err := st.Progress().Get(ctx, u.ID, ids[0])
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.WordStatusNew, p.Status)
	assert.Zero(t, p.MasteryScore)
	assert.Nil(t, p.NextReviewDate)

	removed, err := st.Word().Unassign(ctx, u.ID, ids[0])
	require.NoError(t, err)
	assert.True(t, removed)

	p, err = st.Progress().Get(ctx, u.ID, ids[0])
	require.NoError(t, err)
	assert.Nil(t, p, "прогресс удаляется вместе с назначением")
}

func TestSessionWordPools(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	u := createStudent(t, st, 200)

	newIDs := assignWords(t, st, u.ID, "new", 3)
	dueIDs := assignWords(t, st, u.ID, "due", 3)
	masteredIDs := assignWords(t, st, u.ID, "mastered", 3)
	_, err := st.Progress().InitMissing(ctx, u.ID)
	require.NoError(t, err)

	hoursAgo := func(h int) *time.Time { return ptrTime(now.Add(-time.Duration(h) * time.Hour)) }
	setProgress(t, st, u.ID, dueIDs[0], models.WordStatusLearning, hoursAgo(30), hoursAgo(1))
	setProgress(t, st, u.ID, dueIDs[1], models.WordStatusLearned, hoursAgo(80), hoursAgo(5))
	// срок еще не наступил
	setProgress(t, st, u.ID, dueIDs[2], models.WordStatusLearning, hoursAgo(1), ptrTime(now.Add(time.Hour)))
	setProgress(t, st, u.ID, masteredIDs[0], models.WordStatusMastered, hoursAgo(2), hoursAgo(-100))
	setProgress(t, st, u.ID, masteredIDs[1], models.WordStatusMastered, nil, nil)
	setProgress(t, st, u.ID, masteredIDs[2], models.WordStatusMastered, hoursAgo(10), hoursAgo(-100))

	fresh, err := st.Progress().ListNew(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, newIDs, sessionIDs(fresh), "новые слова в порядке назначения")

	due, err := st.Progress().ListDueForReview(ctx, u.ID, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{dueIDs[1], dueIDs[0]}, sessionIDs(due), "сначала самый ранний срок")

	mastered, err := st.Progress().ListMastered(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{masteredIDs[1], masteredIDs[2], masteredIDs[0]}, sessionIDs(mastered),
		"без даты практики первыми, затем давно практиковавшиеся")

	limited, err := st.Progress().ListNew(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, newIDs[:2], sessionIDs(limited))

	stats, err := st.Progress().Stats(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Total)
	assert.Equal(t, 3, stats.ByStatus[models.WordStatusNew])
	assert.Equal(t, 3, stats.ByStatus[models.WordStatusMastered])
	assert.Equal(t, 2, stats.DueForReview)
}

func TestSelectorAgainstPostgres(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	u := createStudent(t, st, 300)

	newIDs := assignWords(t, st, u.ID, "fresh", 5)
	dueIDs := assignWords(t, st, u.ID, "review", 3)
	masteredIDs := assignWords(t, st, u.ID, "known", 2)
	_, err := st.Progress().InitMissing(ctx, u.ID)
	require.NoError(t, err)
	for i, id := range dueIDs {
		review := now.Add(-time.Duration(i+1) * time.Hour)
		setProgress(t, st, u.ID, id, models.WordStatusLearning, &review, &review)
	}
	for _, id := range masteredIDs {
		setProgress(t, st, u.ID, id, models.WordStatusMastered, nil, nil)
	}

	words, err := practice.NewSelector(st.Progress(), zap.NewNop()).SelectSessionWords(ctx, u.ID, 10)
	require.NoError(t, err)

	// квоты 4/4/2, недобор пула к повторению не восполняется
	want := append(append(append([]int64{}, newIDs[:4]...), dueIDs[2], dueIDs[1], dueIDs[0]), masteredIDs...)
	assert.Equal(t, want, sessionIDs(words))
}

func TestSelectorLazyInit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	u := createStudent(t, st, 400)
	ids := assignWords(t, st, u.ID, "lazy", 2)

	words, err := practice.NewSelector(st.Progress(), zap.NewNop()).SelectSessionWords(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, ids, sessionIDs(words))

	empty := createStudent(t, st, 401)
	words, err = practice.NewSelector(st.Progress(), zap.NewNop()).SelectSessionWords(ctx, empty.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestPaymentClaimPending(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	u := createStudent(t, st, 500)

	payment := &models.Payment{
		PaymentID:           "pay-1",
		UserID:              u.ID,
		Amount:              299,
		Currency:            "RUB",
		Status:              models.PaymentStatusPending,
		PremiumDurationDays: 30,
		CreatedAt:           time.Now(),
	}
	require.NoError(t, st.Payment().Create(ctx, payment))

	completedAt := time.Now()
	payment.Status = models.PaymentStatusCompleted
	payment.CompletedAt = &completedAt

	claimed, err := st.Payment().ClaimPending(ctx, payment)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = st.Payment().ClaimPending(ctx, payment)
	require.NoError(t, err)
	assert.False(t, claimed, "второе уведомление платеж не забирает")

	got, err := st.Payment().GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func ptrTime(t time.Time) *time.Time { return &t }
