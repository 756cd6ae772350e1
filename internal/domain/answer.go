package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxQuestionLength = 1000

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type AnswerRequest struct {
	Question string
	Mode     Mode
}

func (r *AnswerRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}

	if utf8.RuneCountInString(strings.TrimSpace(r.Question)) > MaxQuestionLength {
		return ErrQuestionTooLong
	}

	if !r.Mode.IsValid() {
		return ErrInvalidMode
	}

	return nil
}

func (r *AnswerRequest) Sanitize() {
	r.Question = strings.TrimSpace(r.Question)
}

// AnswerResponse - единственная форма ответа наружу, и для успеха, и для ошибки.
type AnswerResponse struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	Mode    Mode        `json:"mode"`
	Status  Status      `json:"status"`
}

type SourceRef struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// ErrorResponse собирает конверт ошибки: sources всегда пустой, не nil.
func ErrorResponse(mode Mode, err error) *AnswerResponse {
	return &AnswerResponse{
		Answer:  "Error: " + err.Error(),
		Sources: []SourceRef{},
		Mode:    mode,
		Status:  StatusError,
	}
}
