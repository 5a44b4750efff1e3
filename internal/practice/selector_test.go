package practice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var selectorNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSelector(repo Repository) *Selector {
	s := NewSelector(repo, zap.NewNop())
	s.now = func() time.Time { return selectorNow }
	return s
}

func TestQuotas(t *testing.T) {
	tests := []struct {
		limit              int
		wantNew, wantReview int
	}{
		{1, 1, 1},
		{2, 1, 1},
		{3, 1, 1},
		{5, 2, 2},
		{10, 4, 4},
		{12, 4, 4},
		{25, 10, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit=%d", tt.limit), func(t *testing.T) {
			n, r := Quotas(tt.limit)
			assert.Equal(t, tt.wantNew, n)
			assert.Equal(t, tt.wantReview, r)
		})
	}

	assert.Equal(t, 2, MasteredQuota(10, 4, 4))
	assert.Equal(t, 3, MasteredQuota(10, 4, 3))
	assert.Equal(t, 1, MasteredQuota(2, 1, 1), "квота освоенных не меньше одного")
}

// fillPools назначает newN новых, dueN слов к повторению и masteredN освоенных слов
func fillPools(repo *memRepo, newN, dueN, masteredN int) {
	id := int64(1)
	for i := 0; i < newN; i++ {
		repo.assign(id, fmt.Sprintf("new%d", i), "новое")
		id++
	}
	for i := 0; i < dueN; i++ {
		repo.assign(id, fmt.Sprintf("due%d", i), "повтор")
		status := models.WordStatusLearning
		if i%2 == 1 {
			status = models.WordStatusLearned
		}
		// чем больше i, тем раньше срок
		repo.setProgress(id, status, ptr(selectorNow.Add(-time.Duration(i+1)*time.Hour)), nil)
		id++
	}
	for i := 0; i < masteredN; i++ {
		repo.assign(id, fmt.Sprintf("mastered%d", i), "освоено")
		repo.setProgress(id, models.WordStatusMastered, nil, ptr(selectorNow.Add(-time.Duration(masteredN-i)*time.Hour)))
		id++
	}
}

func TestSelectFullPools(t *testing.T) {
	repo := newMemRepo()
	fillPools(repo, 10, 10, 10)

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, words, 10)

	for i := 0; i < 4; i++ {
		assert.Equal(t, models.WordStatusNew, words[i].Progress.Status)
	}
	for i := 4; i < 8; i++ {
		assert.Contains(t, []models.WordStatus{models.WordStatusLearning, models.WordStatusLearned}, words[i].Progress.Status)
	}
	for i := 8; i < 10; i++ {
		assert.Equal(t, models.WordStatusMastered, words[i].Progress.Status)
	}
}

func TestSelectFiveThreeTwo(t *testing.T) {
	repo := newMemRepo()
	fillPools(repo, 5, 3, 2)

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)

	// 4 новых по квоте, 3 к повторению, остаток 3 на освоенные, из которых есть 2.
	// Пятое новое слово не добирается в пустую часть квоты.
	assert.Equal(t, []int64{1, 2, 3, 4, 8, 7, 6, 9, 10}, wordIDs(words))
}

func TestSelectNewWordsOldestFirst(t *testing.T) {
	repo := newMemRepo()
	for i := 1; i <= 6; i++ {
		repo.assign(int64(i), fmt.Sprintf("w%d", i), "слово")
	}

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, wordIDs(words))
}

func TestSelectFewerWordsThanLimit(t *testing.T) {
	repo := newMemRepo()
	repo.assign(1, "apple", "яблоко")
	repo.assign(2, "house", "дом")

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, words, 2)
	assert.Equal(t, 1, repo.inits)
	assert.Len(t, repo.progress, 2, "строки прогресса созданы лениво")
}

func TestSelectNoWords(t *testing.T) {
	words, err := newTestSelector(newMemRepo()).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, words)
	assert.Empty(t, words)
}

func TestSelectNonPositiveLimit(t *testing.T) {
	repo := newMemRepo()
	fillPools(repo, 3, 0, 0)

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, words)
	assert.Zero(t, repo.inits)
}

func TestSelectSmallLimitIsCapped(t *testing.T) {
	repo := newMemRepo()
	fillPools(repo, 2, 2, 2)

	for _, limit := range []int{1, 2, 3} {
		words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(words), limit)
	}
}

func TestSelectSkipsNotDueReview(t *testing.T) {
	repo := newMemRepo()
	repo.assign(1, "later", "позже")
	repo.setProgress(1, models.WordStatusLearning, ptr(selectorNow.Add(time.Hour)), nil)
	repo.assign(2, "now", "сейчас")
	repo.setProgress(2, models.WordStatusLearned, ptr(selectorNow), nil)

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, wordIDs(words))
}

func TestSelectMasteredNeverPracticedFirst(t *testing.T) {
	repo := newMemRepo()
	repo.assign(1, "recent", "недавно")
	repo.setProgress(1, models.WordStatusMastered, nil, ptr(selectorNow.Add(-time.Hour)))
	repo.assign(2, "never", "никогда")
	repo.setProgress(2, models.WordStatusMastered, nil, nil)
	repo.assign(3, "old", "давно")
	repo.setProgress(3, models.WordStatusMastered, nil, ptr(selectorNow.Add(-48*time.Hour)))

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, wordIDs(words))
}

func TestSelectStoreFailure(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("dial tcp: connection refused")

	words, err := newTestSelector(repo).SelectSessionWords(context.Background(), 1, 10)
	assert.Nil(t, words)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDataUnavailable)
	assert.ErrorIs(t, err, repo.err)
}
