package readability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/extract"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Ownership in Rust</title></head>
<body>
<nav><a href="/">Home</a> <a href="/blog">Blog</a></nav>
<article>
<h1>Ownership in Rust</h1>
<p>Each value in Rust has a single owner. When the owner goes out of scope, the value is dropped.
This rule lets the compiler free memory without a garbage collector and without manual calls.</p>
<p>References borrow a value without taking ownership. The borrow checker makes sure that
references never outlive the data they point to, which rules out dangling pointers entirely.</p>
<p>Moves transfer ownership between bindings. After a move the old binding can no longer be used,
and the compiler reports any attempt to read from it as an error at compile time.</p>
</article>
<footer>Copyright footer text</footer>
<script>var tracking = true;</script>
</body></html>`

func newTestServer(t *testing.T, contentType, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent header not set")
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestProvider_Extract(t *testing.T) {
	server := newTestServer(t, "text/html; charset=utf-8", articleHTML, http.StatusOK)
	defer server.Close()

	p := New(Config{}, zap.NewNop())

	page, err := p.Extract(context.Background(), extract.Request{
		URL:               server.URL + "/post",
		Timeout:           5 * time.Second,
		FilterBoilerplate: true,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !strings.Contains(page.Filtered, "single owner") {
		t.Errorf("Filtered missing article text: %q", page.Filtered)
	}
	if strings.Contains(page.Filtered, "tracking") {
		t.Errorf("Filtered contains script: %q", page.Filtered)
	}
	if !strings.Contains(page.Raw, "Copyright footer") {
		t.Errorf("Raw should keep the whole body: %q", page.Raw)
	}
}

func TestProvider_Extract_NoFilter(t *testing.T) {
	server := newTestServer(t, "text/html", articleHTML, http.StatusOK)
	defer server.Close()

	page, err := New(Config{}, zap.NewNop()).Extract(context.Background(), extract.Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if page.Filtered != "" {
		t.Errorf("Filtered = %q, want empty without FilterBoilerplate", page.Filtered)
	}
	if page.Raw == "" {
		t.Error("Raw is empty")
	}
}

func TestProvider_Extract_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		wantErr     error
	}{
		{"not found", "text/html", http.StatusNotFound, extract.ErrBadStatus},
		{"server error", "text/html", http.StatusInternalServerError, extract.ErrBadStatus},
		{"pdf", "application/pdf", http.StatusOK, extract.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.contentType, "x", tt.status)
			defer server.Close()

			_, err := New(Config{}, zap.NewNop()).Extract(context.Background(), extract.Request{URL: server.URL})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Extract() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProvider_Extract_InvalidURL(t *testing.T) {
	_, err := New(Config{}, zap.NewNop()).Extract(context.Background(), extract.Request{URL: "ftp://example.com/file"})
	if !errors.Is(err, extract.ErrFetchFailed) {
		t.Errorf("Extract() error = %v, want ErrFetchFailed", err)
	}
}

func TestProvider_Extract_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	_, err := New(Config{}, zap.NewNop()).Extract(context.Background(), extract.Request{
		URL:     server.URL,
		Timeout: 30 * time.Millisecond,
	})
	if !errors.Is(err, extract.ErrFetchFailed) {
		t.Errorf("Extract() error = %v, want ErrFetchFailed", err)
	}
}

func TestProvider_Extract_RedirectCap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	_, err := New(Config{MaxRedirects: 2}, zap.NewNop()).Extract(context.Background(), extract.Request{URL: server.URL + "/r"})
	if err == nil || !strings.Contains(err.Error(), "redirects") {
		t.Errorf("Extract() error = %v, want redirect cap", err)
	}
}

func TestStripBoilerplate(t *testing.T) {
	got, err := stripBoilerplate([]byte(articleHTML))
	if err != nil {
		t.Fatalf("stripBoilerplate() error = %v", err)
	}
	if strings.Contains(got, "Home") || strings.Contains(got, "Copyright") {
		t.Errorf("boilerplate not removed: %q", got)
	}
	if !strings.Contains(got, "borrow checker") {
		t.Errorf("article text missing: %q", got)
	}
}
