package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/search-assistant/internal/llm"
)

type Client struct {
	Response string
	Error    error
	Delay    time.Duration
	Panic    bool

	CallCount   int
	LastRequest llm.CompletionRequest
	AllCalls    []llm.CompletionRequest

	mu sync.Mutex
}

func New() *Client {
	return &Client{
		Response: "This is a mock answer based on the provided context.",
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) WithPanic() *Client {
	c.Panic = true
	return c
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastRequest = req
	c.AllCalls = append(c.AllCalls, req)
	c.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.Delay):
		}
	}

	if c.Panic {
		panic("mock llm panic")
	}

	if c.Error != nil {
		return "", c.Error
	}

	return c.Response, nil
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

// LastSystem и LastPrompt - первое системное и первое пользовательское сообщение.
func (c *Client) LastSystem() string {
	return c.lastByRole(llm.RoleSystem)
}

func (c *Client) LastPrompt() string {
	return c.lastByRole(llm.RoleUser)
}

func (c *Client) lastByRole(role string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.LastRequest.Messages {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastRequest = llm.CompletionRequest{}
	c.AllCalls = nil
}

var _ llm.Client = (*Client)(nil)
