package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

// MaxMessageLength - лимит телеграма на одно сообщение.
const MaxMessageLength = 4096

func FormatAnswer(resp *domain.AnswerResponse) string {
	var sb strings.Builder

	if label := modeLabel(resp.Mode); label != "" {
		sb.WriteString(label)
		sb.WriteString("\n\n")
	}
	sb.WriteString(html.EscapeString(resp.Answer))

	if len(resp.Sources) > 0 {
		sb.WriteString("\n\n<b>Источники:</b>\n")
		for i, src := range resp.Sources {
			title := src.Title
			if title == "" {
				title = truncateURL(src.URL, 50)
			}
			fmt.Fprintf(&sb, "%d. <a href=\"%s\">%s</a>\n",
				i+1,
				html.EscapeString(src.URL),
				html.EscapeString(title),
			)
		}
	}

	return sb.String()
}

func modeLabel(m domain.Mode) string {
	switch m {
	case domain.ModeQuick:
		return "<i>Быстрый поиск</i>"
	case domain.ModeDeep:
		return "<i>Глубокий поиск</i>"
	default:
		return ""
	}
}

// SplitMessage режет текст на куски не длиннее maxLen байт.
// Режем по переводу строки или пробелу, не внутри HTML-тега и не посреди руны.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > maxLen {
		cut := splitPoint(text, maxLen)
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func splitPoint(text string, maxLen int) int {
	for i := maxLen - 1; i > maxLen/2; i-- {
		if (text[i] == '\n' || text[i] == ' ') && !isInsideHTMLTag(text, i) {
			return i + 1
		}
	}

	// тег начался до maxLen: отдаём его целиком следующему куску
	if isInsideHTMLTag(text, maxLen-1) {
		open := strings.LastIndexByte(text[:maxLen], '<')
		if open > 0 {
			return open
		}
		// сам тег длиннее лимита, рвать его нельзя
		if end := strings.IndexByte(text, '>'); end >= 0 {
			return end + 1
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if (text[i] == ' ' || text[i] == '\n') && !isInsideHTMLTag(text, i) {
			return i + 1
		}
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		return maxLen
	}
	return cut
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos < 0 || pos >= len(text) {
		return false
	}
	for i := pos; i >= 0; i-- {
		switch text[i] {
		case '>':
			return false
		case '<':
			return true
		}
	}
	return false
}

func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}
