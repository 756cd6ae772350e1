package domain

import "errors"

var (
	ErrInternal = errors.New("internal error")
	ErrCanceled = errors.New("request canceled")
)

var (
	ErrEmptyQuestion   = errors.New("empty question")
	ErrQuestionTooLong = errors.New("question too long")
	ErrInvalidMode     = errors.New("invalid mode")
)
