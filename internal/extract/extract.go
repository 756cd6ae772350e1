package extract

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyPage    = errors.New("page has no extractable content")
	ErrFetchFailed  = errors.New("page fetch failed")
	ErrBadStatus    = errors.New("unexpected page status")
	ErrUnsupported  = errors.New("unsupported content type")
	ErrProviderDown = errors.New("extraction provider unavailable")
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultRenderDelay = 2 * time.Second
	DefaultMaxChars    = 2000
)

// Content - результат извлечения для одного URL. При неудаче Text
// содержит описание ошибки, а Succeeded=false.
type Content struct {
	URL       string
	Text      string
	Succeeded bool
}

type Request struct {
	URL               string
	Timeout           time.Duration
	RenderDelay       time.Duration
	FilterBoilerplate bool
}

// Page - две версии страницы: очищенная от обвязки и полная.
type Page struct {
	Filtered string
	Raw      string
}

type Provider interface {
	Extract(ctx context.Context, req Request) (*Page, error)
}
