package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/volantix/siteapi/internal/permission"
	"github.com/volantix/siteapi/internal/rate"
	"github.com/volantix/siteapi/internal/session"
)

func findSessionCookie(rec interface{ Result() *http.Response }) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", permission.FullMatrix())

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "alice",
		"password":   "password",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookie := findSessionCookie(rec)
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if _, err := e.codec.Validate(cookie.Value); err != nil {
		t.Fatalf("cookie does not validate: %v", err)
	}

	var body struct {
		Message string `json:"message"`
		User    struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	decodeResponse(t, rec, &body)
	if body.User.Username != "alice" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestLoginWrongPasswordReturnsRemaining(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", permission.FullMatrix())

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "alice",
		"password":   "nope",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body struct {
		Error             string `json:"error"`
		RemainingAttempts int    `json:"remainingAttempts"`
	}
	decodeResponse(t, rec, &body)
	if body.RemainingAttempts != rate.AccountLimit-1 {
		t.Fatalf("expected %d remaining, got %d", rate.AccountLimit-1, body.RemainingAttempts)
	}
	if findSessionCookie(rec) != nil {
		t.Fatal("failed login must not set a cookie")
	}
}

func TestLoginLockedOutReturns429(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", permission.FullMatrix())

	e.mr.Set("lt:acct:alice", "5")
	e.mr.SetTTL("lt:acct:alice", rate.AccountWindow)

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "alice",
		"password":   "password",
	}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var body struct {
		RateLimited       bool   `json:"rateLimited"`
		ResetTime         string `json:"resetTime"`
		RemainingAttempts int    `json:"remainingAttempts"`
	}
	decodeResponse(t, rec, &body)
	if !body.RateLimited || body.ResetTime == "" || body.RemainingAttempts != 0 {
		t.Fatalf("unexpected lockout body: %s", rec.Body.String())
	}
}

func TestLoginSkipSession(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", permission.FullMatrix())

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]interface{}{
		"identifier":  "alice",
		"password":    "password",
		"skipSession": true,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if findSessionCookie(rec) != nil {
		t.Fatal("skip-session login must not set a cookie")
	}
}

func TestSessionEndpoint(t *testing.T) {
	e := newEnv(t)
	u := e.seedUser(t, "alice", permission.FullMatrix())

	rec := e.do(t, http.MethodGet, "/api/auth/session", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/auth/session", nil, e.sessionCookie(t, u))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Authenticated bool `json:"authenticated"`
		User          struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	decodeResponse(t, rec, &body)
	if !body.Authenticated || body.User.Username != "alice" {
		t.Fatalf("unexpected session body: %s", rec.Body.String())
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	cookie := findSessionCookie(rec)
	if cookie == nil || cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("expected an expired empty cookie, got %+v", cookie)
	}
}

func TestOTPRequestAndVerify(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/otp/request", map[string]string{
		"email":   "alice@example.com",
		"purpose": "login",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if e.mail.code == "" {
		t.Fatal("no code delivered")
	}

	rec = e.do(t, http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "alice@example.com",
		"otp":   "000000",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong code, got %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "alice@example.com",
		"otp":   e.mail.code,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Consumed: the same code is now rejected.
	rec = e.do(t, http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "alice@example.com",
		"otp":   e.mail.code,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on replay, got %d", rec.Code)
	}
}

func TestOTPRequestRateLimited(t *testing.T) {
	e := newEnv(t)

	for i := 0; i < 5; i++ {
		rec := e.do(t, http.MethodPost, "/api/otp/request", map[string]string{
			"email": "alice@example.com",
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := e.do(t, http.MethodPost, "/api/otp/request", map[string]string{
		"email": "alice@example.com",
	}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var body struct {
		RateLimited       bool `json:"rateLimited"`
		RemainingAttempts *int `json:"remainingAttempts"`
	}
	decodeResponse(t, rec, &body)
	if !body.RateLimited {
		t.Fatalf("expected rateLimited, got %s", rec.Body.String())
	}
	if body.RemainingAttempts == nil || *body.RemainingAttempts != 0 {
		t.Fatalf("expected remainingAttempts 0, got %s", rec.Body.String())
	}
}

type denyCaptcha struct{}

func (denyCaptcha) Verify(ctx context.Context, token, remoteAddr string) (bool, error) {
	return token == "good-token", nil
}

type failCaptcha struct{}

func (failCaptcha) Verify(ctx context.Context, token, remoteAddr string) (bool, error) {
	return false, errors.New("oracle unreachable")
}

func TestLoginCaptchaGate(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", permission.FullMatrix())
	e.server.captcha = denyCaptcha{}

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier":   "alice",
		"password":     "password",
		"captchaToken": "bad-token",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for failed captcha, got %d", rec.Code)
	}

	// A captcha rejection happens before throttling; nothing is counted.
	if e.mr.Exists("lt:acct:alice") {
		t.Fatal("captcha failure must not charge the throttle")
	}

	rec = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier":   "alice",
		"password":     "password",
		"captchaToken": "good-token",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}
}

func TestCaptchaOracleErrorFailsClosed(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", permission.FullMatrix())
	e.server.captcha = failCaptcha{}

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "alice",
		"password":   "password",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when the oracle errors, got %d", rec.Code)
	}
}
