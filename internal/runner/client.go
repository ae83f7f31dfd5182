package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Requester performs one timed GET. Implementations must be safe for
// concurrent use.
type Requester interface {
	Get(ctx context.Context, url string) (Response, error)
}

// HTTPRequester is the default Requester. All workers share its client and
// therefore its connection pool.
type HTTPRequester struct {
	Client *http.Client
}

// NewHTTPRequester builds a client sized for maxConns parallel requests.
func NewHTTPRequester(maxConns int) *HTTPRequester {
	if maxConns < 1 {
		maxConns = DefaultConcurrency
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = maxConns
	t.MaxConnsPerHost = maxConns
	t.MaxIdleConnsPerHost = maxConns
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &HTTPRequester{
		Client: &http.Client{
			Timeout:   RequestTimeout,
			Transport: t,
		},
	}
}

func (h *HTTPRequester) Get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	if err != nil {
		return Response{}, err
	}
	// Drain so the connection goes back to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	return Response{StatusCode: resp.StatusCode, Elapsed: elapsed}, nil
}

// Close releases idle pooled connections.
func (h *HTTPRequester) Close() {
	h.Client.CloseIdleConnections()
}
