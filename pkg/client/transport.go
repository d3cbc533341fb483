package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request describes a single GET to the API.
type Request struct {
	// URL is the full request URL without query parameters.
	URL string

	// Headers are sent verbatim.
	Headers map[string]string

	// Params are encoded as the query string.
	Params map[string]string

	// Timeout is the per-call deadline. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration
}

// Response is the raw outcome of a transport call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues HTTP GETs. A returned error is a failure below the HTTP
// layer (network, timeout, unreadable body); HTTP-level errors come back as
// a Response with the status code for classification.
type Transport interface {
	Get(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport is the default Transport over net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport with a default HTTP client.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{client: &http.Client{}}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.client = client
}

// Get issues the request and reads the full response body.
func (t *HTTPTransport) Get(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(req.Params) > 0 {
		query := url.Values{}
		for k, v := range req.Params {
			query.Set(k, v)
		}
		httpReq.URL.RawQuery = query.Encode()
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
