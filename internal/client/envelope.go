package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/steadyp/steady-client/internal/apierrors"
)

const maxErrorBodyBytes = 2048

// roundTrip performs one bounded attempt against the backend. It owns the
// deadline for the attempt and the cross-cutting headers; a fired deadline
// surfaces as a context error so classification lands on timeout rather than
// a generic transport fault.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, correlationID string, opts *RequestOptions) ([]byte, error) {
	timeout := c.backend.Timeout.Std()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL.JoinPath(path)

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, apierrors.NewValidationError(fmt.Sprintf("failed to build request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", correlationID)
	req.Header.Set("X-Client-Version", c.backend.ClientVersion)
	if c.backend.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.backend.AuthToken)
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Prefer the context error so an elapsed deadline is not mistaken
		// for a connection failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierrors.NewTimeoutError(fmt.Sprintf("%s %s", method, path), ctxErr)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierrors.NewTimeoutError(fmt.Sprintf("%s %s", method, path), ctxErr)
		}
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(raw)
		if len(detail) > maxErrorBodyBytes {
			detail = detail[:maxErrorBodyBytes]
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, apierrors.NewHTTPError(resp.StatusCode, detail)
	}

	return raw, nil
}
