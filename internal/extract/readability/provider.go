package readability

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/extract"
)

const (
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxBody  = 4 << 20
	defaultRedirect = 5
)

type Config struct {
	// InsecureTLS отключает проверку сертификатов только для этого транспорта.
	InsecureTLS  bool
	MaxBodyBytes int64
	MaxRedirects int
}

// Provider скачивает страницу сам и вытаскивает статью через go-readability.
// Статический HTML не рендерится, поэтому RenderDelay игнорируется.
type Provider struct {
	client  *http.Client
	maxBody int64
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultRedirect
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		logger.Warn("TLS verification disabled for page extraction")
	}

	maxRedirects := cfg.MaxRedirects
	return &Provider{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		maxBody: cfg.MaxBodyBytes,
		logger:  logger,
	}
}

func (p *Provider) Extract(ctx context.Context, req extract.Request) (*extract.Page, error) {
	pageURL, err := url.Parse(req.URL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid url %q", extract.ErrFetchFailed, req.URL)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, err := p.fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	raw, err := rawMarkdown(body)
	if err != nil {
		p.logger.Debug("raw conversion failed", zap.String("url", req.URL), zap.Error(err))
	}

	page := &extract.Page{Raw: raw}
	if !req.FilterBoilerplate {
		return page, nil
	}

	filtered, err := articleMarkdown(body, pageURL)
	if err != nil {
		p.logger.Debug("readability failed, using goquery", zap.String("url", req.URL), zap.Error(err))
		filtered, err = stripBoilerplate(body)
		if err != nil {
			p.logger.Debug("goquery fallback failed", zap.String("url", req.URL), zap.Error(err))
		}
	}
	page.Filtered = filtered

	return page, nil
}

func (p *Provider) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", extract.ErrBadStatus, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil && !isHTML(mediaType) {
			return nil, fmt.Errorf("%w: %s", extract.ErrUnsupported, mediaType)
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", extract.ErrFetchFailed, err)
	}
	return body, nil
}

func isHTML(mediaType string) bool {
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}

func articleMarkdown(body []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", err
	}

	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil || strings.TrimSpace(md) == "" {
		md = article.TextContent
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", errors.New("readability found no article")
	}
	return md, nil
}

func rawMarkdown(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	html, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return collapseSpace(doc.Find("body").Text()), nil
	}
	return strings.TrimSpace(md), nil
}

var boilerplateSelectors = strings.Join([]string{
	"script", "style", "noscript", "iframe", "svg", "form",
	"header", "footer", "nav", "aside",
	".advertisement", ".ad", ".sidebar", ".comments", ".cookie-banner",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
}, ", ")

func stripBoilerplate(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find(boilerplateSelectors).Remove()

	sel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	return collapseSpace(sel.Text()), nil
}

var spaceRe = regexp.MustCompile(`[ \t]+`)

func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

var _ extract.Provider = (*Provider)(nil)
