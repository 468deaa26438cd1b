package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/user/pricewatch/internal/useragent"
)

// Response is the raw transport outcome before classification.
type Response struct {
	StatusCode int
	Body       string
}

// Transport performs one HTTP GET. Transport-level failures (DNS,
// connection reset, timeout) are returned as an error, distinct from
// HTTP status codes which come back in Response.
type Transport interface {
	Do(ctx context.Context, url string) (*Response, error)
}

// HTTPTransport is the production Transport: a shared http.Client with an
// overall timeout and automatic redirect following.
type HTTPTransport struct {
	client *http.Client
	agents *useragent.Pool
}

// NewHTTPTransport builds a transport with the given overall timeout.
// timeout <= 0 defaults to 30s.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		agents: useragent.NewPool(),
	}
}

func (t *HTTPTransport) Do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", t.agents.Random())
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// isTimeout reports whether a transport error was a timeout, which is the
// only transport-level failure treated as retryable.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
