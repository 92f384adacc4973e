package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"signalscope/internal/ratelimit"
)

var errRateLimited = errors.New("rate limited")

// httpSource is the shared plumbing of the keyed and keyless REST providers
type httpSource struct {
	name    string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// getJSON waits for the limiter, performs a GET and decodes the body into out.
// 429 backs the limiter off and is retryable; 404 means the symbol has no bars.
func (s *httpSource) getJSON(ctx context.Context, reqURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: s.name, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		s.limiter.SignalRateLimited()
		return &ProviderError{Provider: s.name, Err: errRateLimited, Retryable: true}
	case http.StatusNotFound:
		return &ProviderError{Provider: s.name, Err: ErrNoCandles}
	default:
		return &ProviderError{Provider: s.name, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	s.limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: s.name, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
