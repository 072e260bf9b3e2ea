// Package captcha gates the public contact form behind a challenge oracle.
// When no oracle is configured the check is a no-op.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks a client-supplied challenge token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteAddr string) (bool, error)
}

// Disabled accepts everything. Used when no verify endpoint is configured.
type Disabled struct{}

func (Disabled) Verify(ctx context.Context, token, remoteAddr string) (bool, error) {
	return true, nil
}

// HTTPVerifier posts the token to an external verification endpoint and
// trusts its success flag.
type HTTPVerifier struct {
	verifyURL string
	secret    string
	client    *http.Client
}

func NewHTTPVerifier(verifyURL, secret string) *HTTPVerifier {
	return &HTTPVerifier{
		verifyURL: verifyURL,
		secret:    secret,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteAddr string) (bool, error) {
	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
		"remoteip": {remoteAddr},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verify: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("captcha response: %w", err)
	}
	return result.Success, nil
}
