package telegram

import (
	"strings"
	"unicode"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

// ParseQueryCommand: /quick и /deep задают режим явно,
// обычный текст идёт в defaultMode.
func ParseQueryCommand(text string, defaultMode domain.Mode) (question string, mode domain.Mode) {
	text = strings.TrimSpace(text)
	if text == "" || !strings.HasPrefix(text, "/") {
		return text, defaultMode
	}

	// после команды может идти перевод строки или таб, не только пробел
	command, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		command, rest = text[:i], text[i:]
	}
	// в группах команда приходит как /deep@bot_name
	command, _, _ = strings.Cut(strings.ToLower(command), "@")
	rest = strings.Join(strings.Fields(rest), " ")

	switch command {
	case "/quick":
		return rest, domain.ModeQuick
	case "/deep":
		return rest, domain.ModeDeep
	default:
		return text, defaultMode
	}
}
