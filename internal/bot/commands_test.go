package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"lingua-tutor/pkg/models"
)

func TestCallbackDataRoundTrip(t *testing.T) {
	data := CallbackData(ActionPremiumPlan, "2")
	assert.Equal(t, "plan:2", data)

	action, arg := ParseCallback(data)
	assert.Equal(t, ActionPremiumPlan, action)
	assert.Equal(t, "2", arg)

	action, arg = ParseCallback(CallbackData(ActionPracticeStop, ""))
	assert.Equal(t, ActionPracticeStop, action)
	assert.Empty(t, arg)
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	for _, level := range models.Levels {
		assert.LessOrEqual(t, len(CallbackData(ActionSetLevel, level)), 64)
	}
}

func TestBotCommandsListEveryCommand(t *testing.T) {
	h := newTestHandler(t)
	menu := BotCommands()

	assert.Len(t, menu, len(h.commands))
	for _, c := range menu {
		assert.Contains(t, h.commands, Command(c.Command))
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	user := &models.User{Level: models.LevelB1, Topics: []string{"travel", "movies"}}
	words := []models.SessionWord{
		{Word: models.Word{ID: 1, EnglishText: "journey", RussianTranslation: "путешествие"}},
	}

	prompt := BuildSystemPrompt(user, words)
	assert.Contains(t, prompt, "Student level: B1")
	assert.Contains(t, prompt, "travel, movies")
	assert.Contains(t, prompt, "- journey (путешествие)")

	prompt = BuildSystemPrompt(&models.User{Level: "??"}, nil)
	assert.Contains(t, prompt, "Student level: A1")
	assert.False(t, strings.Contains(prompt, "Vocabulary the student is learning"))
}
