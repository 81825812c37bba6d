package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxBodyBytes = 16 << 20

// Response is what a transport hands back for one GET.
type Response struct {
	StatusCode int
	Body       string
}

// Transport performs a single GET. Implementations must honour ctx.
type Transport interface {
	Get(ctx context.Context, url string, header http.Header) (*Response, error)
}

// DefaultHeader returns the browser-like headers sent with every request.
func DefaultHeader(userAgent string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "ka-GE,ka;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Connection", "keep-alive")
	return h
}

// HTTPTransport fetches static pages with net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport with the given per-request timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
