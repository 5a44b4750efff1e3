package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lingua-tutor/pkg/models"
)

type fakeUsers struct {
	users     []*models.User
	since     time.Time
	reminded  map[int64]time.Time
	listCalls int
	err       error
}

func (f *fakeUsers) GetWithDueWords(_ context.Context, _ time.Time, notRemindedSince time.Time) ([]*models.User, error) {
	f.listCalls++
	f.since = notRemindedSince
	return f.users, f.err
}

func (f *fakeUsers) MarkReminderSent(_ context.Context, userID int64, at time.Time) error {
	if f.reminded == nil {
		f.reminded = make(map[int64]time.Time)
	}
	f.reminded[userID] = at
	return nil
}

type fakeStats map[int64]int

func (f fakeStats) Stats(_ context.Context, studentID int64, _ time.Time) (*models.VocabularyStats, error) {
	due, ok := f[studentID]
	if !ok {
		return nil, errors.New("нет статистики")
	}
	return &models.VocabularyStats{DueForReview: due}, nil
}

type fakeSender struct {
	sent    map[int64]int
	failFor int64
}

func (f *fakeSender) SendPracticeReminder(_ context.Context, user *models.User, dueWords int) error {
	if user.ID == f.failFor {
		return errors.New("бот заблокирован")
	}
	if f.sent == nil {
		f.sent = make(map[int64]int)
	}
	f.sent[user.ID] = dueWords
	return nil
}

type countRecorder struct{ n int }

func (c *countRecorder) RecordReminderSent() { c.n++ }

func newReminderJob(users *fakeUsers, stats fakeStats, sender *fakeSender, rec *countRecorder, now time.Time) *PracticeReminderJob {
	job := NewPracticeReminderJob(users, stats, sender, rec, ReminderOptions{
		Cooldown:  24 * time.Hour,
		StartHour: 9,
		EndHour:   21,
	}, zap.NewNop())
	job.now = func() time.Time { return now }
	return job
}

func TestPracticeReminderJobSends(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	users := &fakeUsers{users: []*models.User{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}}
	// 2: нечего повторять, 3: ошибка отправки, 4: нет статистики
	stats := fakeStats{1: 5, 2: 0, 3: 2}
	sender := &fakeSender{failFor: 3}
	rec := &countRecorder{}

	job := newReminderJob(users, stats, sender, rec, now)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, map[int64]int{1: 5}, sender.sent)
	assert.Equal(t, map[int64]time.Time{1: now}, users.reminded)
	assert.Equal(t, 1, rec.n)
	assert.Equal(t, now.Add(-24*time.Hour), users.since)
}

func TestPracticeReminderJobOutsideHours(t *testing.T) {
	for _, hour := range []int{3, 8, 21, 23} {
		now := time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
		users := &fakeUsers{users: []*models.User{{ID: 1}}}
		sender := &fakeSender{}

		job := newReminderJob(users, fakeStats{1: 3}, sender, &countRecorder{}, now)
		require.NoError(t, job.Run(context.Background()))

		assert.Zero(t, users.listCalls, "час %d", hour)
		assert.Empty(t, sender.sent)
	}
}

func TestPracticeReminderJobWindowOverMidnight(t *testing.T) {
	job := NewPracticeReminderJob(&fakeUsers{}, fakeStats{}, &fakeSender{}, nil, ReminderOptions{
		StartHour: 22,
		EndHour:   2,
	}, zap.NewNop())

	assert.True(t, job.inReminderHours(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, job.inReminderHours(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)))
	assert.False(t, job.inReminderHours(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
}

func TestPracticeReminderJobListError(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	users := &fakeUsers{err: errors.New("db down")}

	job := newReminderJob(users, fakeStats{}, &fakeSender{}, &countRecorder{}, now)
	assert.ErrorIs(t, job.Run(context.Background()), users.err)
}
