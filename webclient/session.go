// Package webclient provides the shared HTTP session evaluation nodes use to
// reach the target site.
package webclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps how much of a response body is retained per fetch.
const maxBodyBytes = 4 << 20

// defaultHeaders identify the evaluator and ask for HTML, mirroring a real
// browser's accept negotiation closely enough for content-type checks.
var defaultHeaders = map[string]string{
	"User-Agent":                "Blackscope-QA/0.1",
	"Accept":                    "text/html,application/xhtml+xml,application/xml",
	"Accept-Language":           "en-US,en;q=0.5",
	"Accept-Encoding":           "gzip, deflate",
	"Upgrade-Insecure-Requests": "1",
}

// Session is the per-run HTTP session: one http.Client plus the default
// header set applied to every request. It is created once by the caller,
// shared by reference with every node through the run context, and must not
// be retained by any node beyond the run.
type Session struct {
	client  *http.Client
	headers map[string]string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient replaces the underlying client, mainly for tests.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.client = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.client.Timeout = d }
}

// WithHeader adds or overrides one default header.
func WithHeader(key, value string) SessionOption {
	return func(s *Session) { s.headers[key] = value }
}

// NewSession builds a session with the default QA headers and a 30 second
// request timeout.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		client:  &http.Client{Timeout: 30 * time.Second},
		headers: make(map[string]string, len(defaultHeaders)),
	}
	for k, v := range defaultHeaders {
		s.headers[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Page is one fetched response: status, headers and the (capped) body.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// OK reports whether the response status is in the 2xx range.
func (p *Page) OK() bool { return p.StatusCode >= 200 && p.StatusCode < 300 }

// ContentType returns the response Content-Type header, and whether it was
// present at all.
func (p *Page) ContentType() (string, bool) {
	if _, ok := p.Header["Content-Type"]; !ok {
		return "", false
	}
	return p.Header.Get("Content-Type"), true
}

// Get fetches url with the session headers and returns the page.
func (s *Session) Get(ctx context.Context, url string) (*Page, error) {
	return s.do(ctx, http.MethodGet, url)
}

// Options sends an OPTIONS pre-flight to url. The body is not read.
func (s *Session) Options(ctx context.Context, url string) (*Page, error) {
	return s.do(ctx, http.MethodOptions, url)
}

func (s *Session) do(ctx context.Context, method, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	page := &Page{StatusCode: resp.StatusCode, Header: resp.Header}
	if method != http.MethodOptions {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s body: %w", url, err)
		}
		page.Body = string(body)
	}
	return page, nil
}
