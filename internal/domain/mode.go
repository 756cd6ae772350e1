package domain

import "strings"

type Mode string

const (
	ModeQuick Mode = "quick"
	ModeDeep  Mode = "deep"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeQuick, ModeDeep:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// ParseMode нормализует режим; пустая строка -> quick.
// Неизвестные значения не угадываем, а возвращаем ErrInvalidMode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeQuick, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return Mode(s), ErrInvalidMode
	}
	return m, nil
}
