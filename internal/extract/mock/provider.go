package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/search-assistant/internal/extract"
)

// Provider отдаёт страницы по URL. Неизвестный URL - ErrFetchFailed.
type Provider struct {
	Pages  map[string]*extract.Page
	Errors map[string]error
	Panics map[string]bool
	Delay  time.Duration

	CallCount   int
	AllRequests []extract.Request

	mu sync.Mutex
}

func New() *Provider {
	return &Provider{
		Pages:  make(map[string]*extract.Page),
		Errors: make(map[string]error),
		Panics: make(map[string]bool),
	}
}

func (p *Provider) WithPage(url string, page *extract.Page) *Provider {
	p.Pages[url] = page
	return p
}

func (p *Provider) WithText(url, text string) *Provider {
	return p.WithPage(url, &extract.Page{Filtered: text, Raw: text})
}

func (p *Provider) WithError(url string, err error) *Provider {
	p.Errors[url] = err
	return p
}

func (p *Provider) WithPanic(url string) *Provider {
	p.Panics[url] = true
	return p
}

func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.Delay = d
	return p
}

func (p *Provider) Extract(ctx context.Context, req extract.Request) (*extract.Page, error) {
	p.mu.Lock()
	p.CallCount++
	p.AllRequests = append(p.AllRequests, req)
	page, hasPage := p.Pages[req.URL]
	err := p.Errors[req.URL]
	shouldPanic := p.Panics[req.URL]
	delay := p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if shouldPanic {
		panic("mock extraction panic")
	}
	if err != nil {
		return nil, err
	}
	if !hasPage {
		return nil, extract.ErrFetchFailed
	}
	return page, nil
}

func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCount
}

var _ extract.Provider = (*Provider)(nil)
