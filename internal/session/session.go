package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/volantix/siteapi/internal/permission"
)

const (
	// CookieName is the single fixed session cookie identifier.
	CookieName = "drone_session"

	// Lifetime is the session duration. Sessions are never refreshed or
	// extended; expiry forces a fresh login.
	Lifetime = 24 * time.Hour
)

var (
	// ErrInvalidSession covers every rejection: bad signature, expiry, and
	// structural claim problems. Callers treat them all as unauthenticated.
	ErrInvalidSession = errors.New("invalid session")
)

// Claims is the identity and permission payload carried by the cookie.
type Claims struct {
	UserID      int                `json:"id"`
	Username    string             `json:"username"`
	Email       string             `json:"email"`
	Permissions *permission.Matrix `json:"permissions"`
	jwt.RegisteredClaims
}

// Codec signs and validates session cookies with an HS256 server secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a cookie [Codec] from the configured session secret.
func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue serializes the claims into a signed cookie value with the session
// lifetime applied.
func (c *Codec) Issue(userID int, username, email string, perms permission.Matrix) (string, error) {
	now := c.now()
	claims := Claims{
		UserID:      userID,
		Username:    username,
		Email:       email,
		Permissions: &perms,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session issue: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a cookie value, then re-validates the claim
// shape. Any problem yields ErrInvalidSession.
func (c *Codec) Validate(cookieValue string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(cookieValue, claims,
		func(token *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if claims.UserID <= 0 || claims.Username == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: incomplete identity claims", ErrInvalidSession)
	}
	if claims.Permissions == nil {
		return nil, fmt.Errorf("%w: missing permissions", ErrInvalidSession)
	}

	return claims, nil
}

// NewCookie wraps a signed value in the session cookie with its hardening
// attributes. The Secure flag is tied to the deployment environment.
func NewCookie(value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredCookie overwrites the session cookie with an empty value and an
// immediate expiry, logging the client out on receipt.
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}
