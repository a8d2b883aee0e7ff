// Package client talks to the pairing API from the TV side.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/quoteboard/pairing-server/internal/errors"
	"github.com/quoteboard/pairing-server/internal/httputil"
	"github.com/quoteboard/pairing-server/internal/model"
)

const requestTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Code       apperrors.ErrorCode
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pairing api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("pairing api: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
// A nil httpClient gets a default with a request timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) CreatePairing(ctx context.Context) (*model.CreatedPairing, error) {
	var created model.CreatedPairing
	if err := c.do(ctx, http.MethodPost, "/v1/pairing", &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) Status(ctx context.Context, code string) (*model.PairingStatusView, error) {
	var view model.PairingStatusView
	if err := c.do(ctx, http.MethodGet, "/v1/pairing/"+url.PathEscape(code)+"/status", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("pairing api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var body httputil.ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(data, &body) == nil {
			statusErr.Code = body.Code
			statusErr.Message = body.Error
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
