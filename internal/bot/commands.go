package bot

import (
	"strings"
)

// Command команда бота
type Command string

const (
	CommandStart    Command = "start"
	CommandHelp     Command = "help"
	CommandLevel    Command = "level"
	CommandTopics   Command = "topics"
	CommandWords    Command = "words"
	CommandAddWord  Command = "addword"
	CommandRemove   Command = "removeword"
	CommandPractice Command = "practice"
	CommandStats    Command = "stats"
	CommandPremium  Command = "premium"
	CommandReset    Command = "reset"
)

// CallbackAction действие inline кнопки
type CallbackAction string

const (
	ActionSetLevel     CallbackAction = "level"
	ActionPracticeShow CallbackAction = "p_reveal"
	ActionPracticeNext CallbackAction = "p_next"
	ActionPracticeStop CallbackAction = "p_stop"
	ActionPremiumPlan  CallbackAction = "plan"
	ActionPremiumInfo  CallbackAction = "premium"
	ActionMainHelp     CallbackAction = "help"
)

const callbackSeparator = ":"

// CallbackData кодирует действие и аргумент в callback_data кнопки
func CallbackData(action CallbackAction, arg string) string {
	if arg == "" {
		return string(action)
	}
	return string(action) + callbackSeparator + arg
}

// ParseCallback разбирает callback_data на действие и аргумент
func ParseCallback(data string) (CallbackAction, string) {
	action, arg, _ := strings.Cut(data, callbackSeparator)
	return CallbackAction(action), arg
}

// commandDescriptions описания команд для /help и меню бота
var commandDescriptions = []struct {
	Command     Command
	Description string
}{
	{CommandStart, "начать работу"},
	{CommandPractice, "тренировка слов"},
	{CommandWords, "мой словарь"},
	{CommandAddWord, "добавить слово: /addword apple - яблоко"},
	{CommandRemove, "убрать слово из словаря: /removeword apple"},
	{CommandStats, "прогресс по словам"},
	{CommandLevel, "выбрать уровень"},
	{CommandTopics, "темы для разговора"},
	{CommandPremium, "премиум-подписка"},
	{CommandReset, "очистить историю диалога"},
	{CommandHelp, "справка"},
}
