// Package metno retrieves the weather data of the Norwegian Meteorological Institute.
package metno

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	soar "github.com/BlastBlastBlast/soar-sub000"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

const (
	// DefaultTimeout of a single request.
	DefaultTimeout = 30 * time.Second
	// MaxBodySize is the largest response body read, in bytes.
	MaxBodySize = 64 << 20
)

// client is the HTTP plumbing shared by the API clients.
type client struct {
	userAgent  string
	httpClient *http.Client
	maxBody    int64
	logger     kitlog.Logger
}

func newClient(userAgent string, timeout time.Duration, logger kitlog.Logger) client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return client{
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		maxBody:    MaxBodySize,
		logger:     logger,
	}
}

// statusError is returned by get for unsuccessful status codes.
type statusError struct {
	code int
	url  string
}

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.code, e.url)
}

// get performs a GET of url and returns the body.
func (c client) get(ctx context.Context, op, url string) ([]byte, error) {
	if c.userAgent == "" {
		return nil, soar.Errorf(soar.FetchError, op, "a User-Agent identifying the application is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, soar.NewError(soar.FetchError, op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, soar.NewError(soar.FetchError, op, err)
	}
	defer resp.Body.Close()
	level.Debug(c.logger).Log("op", op, "url", url, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.StatusCode == http.StatusNoContent {
		return nil, statusError{resp.StatusCode, url}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, soar.NewError(soar.FetchError, op, fmt.Errorf("reading response body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, soar.Errorf(soar.FetchError, op, "response from %s exceeds the %d byte limit", url, c.maxBody)
	}
	return body, nil
}
