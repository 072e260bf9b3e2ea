// Package auth ties the abuse-prevention primitives together into the login
// and one-time-code flows exposed over HTTP.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/credential"
	"github.com/volantix/siteapi/internal/mailer"
	"github.com/volantix/siteapi/internal/otp"
	"github.com/volantix/siteapi/internal/permission"
	"github.com/volantix/siteapi/internal/rate"
	"github.com/volantix/siteapi/internal/session"
	"github.com/volantix/siteapi/internal/store"
)

// One-time-code issue limits, per hour.
const (
	CodeEmailLimit   = 5
	CodeAddressLimit = 20
)

// Authority runs the login and one-time-code flows. It owns no state of its
// own; every decision is made against the record store and Redis.
type Authority struct {
	store    store.RecordStore
	verifier *credential.Verifier
	codec    *session.Codec
	throttle *rate.Throttle
	limiter  *rate.Limiter
	codes    *otp.Service
	mail     mailer.Mailer
	logger   *zap.Logger
}

// NewAuthority wires the flow dependencies.
func NewAuthority(
	recordStore store.RecordStore,
	verifier *credential.Verifier,
	codec *session.Codec,
	throttle *rate.Throttle,
	limiter *rate.Limiter,
	codes *otp.Service,
	mail mailer.Mailer,
	logger *zap.Logger,
) *Authority {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authority{
		store:    recordStore,
		verifier: verifier,
		codec:    codec,
		throttle: throttle,
		limiter:  limiter,
		codes:    codes,
		mail:     mail,
		logger:   logger,
	}
}

// LoginInput is one credential presentation.
type LoginInput struct {
	Identifier string
	Password   string
	// Address is the resolved client network address, used for the shared
	// per-address failure budget.
	Address string
	// SkipSession verifies credentials without issuing a cookie. Used by the
	// two-step login that still has a code round-trip ahead.
	SkipSession bool
}

// LoginResult is a successful credential check.
type LoginResult struct {
	User *store.User
	// CookieValue is empty when the input asked to skip session issuance.
	CookieValue string
}

// Login runs the throttled credential check.
//
// Order matters: both throttle dimensions are consulted before the store is
// touched, so a locked-out caller learns nothing about account existence.
// Failures count against both dimensions and pay the progressive delay
// before the response leaves. Success clears the account counter only.
func (a *Authority) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(in.Identifier))
	accountKey := rate.AccountKey(identifier)
	addressKey := rate.AddressKey(in.Address)

	accountCheck, err := a.throttle.Check(ctx, accountKey, rate.AccountLimit, rate.AccountWindow)
	if err != nil {
		return nil, err
	}
	if !accountCheck.Allowed {
		return nil, &LockoutError{RetryAt: accountCheck.ResetAt}
	}

	addressCheck, err := a.throttle.Check(ctx, addressKey, rate.AddressLimit, rate.AddressWindow)
	if err != nil {
		return nil, err
	}
	if !addressCheck.Allowed {
		return nil, &LockoutError{RetryAt: addressCheck.ResetAt}
	}

	user, err := a.store.GetUserByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, a.recordFailure(ctx, accountKey, addressKey)
		}
		// Server-side errors still count against the throttle, so a fault
		// that an attacker can trigger cannot be used to probe for free.
		a.chargeQuietly(ctx, accountKey, addressKey)
		return nil, fmt.Errorf("auth login: %w", err)
	}

	userID := user.ID
	matched := a.verifier.Matches(user.Password, in.Password, func(encrypted string) error {
		return a.store.UpdateUserPassword(userID, encrypted)
	})
	if !matched {
		return nil, a.recordFailure(ctx, accountKey, addressKey)
	}

	if err := a.throttle.ClearOnSuccess(ctx, accountKey); err != nil {
		return nil, err
	}

	result := &LoginResult{User: user}
	if !in.SkipSession {
		value, err := a.codec.Issue(user.ID, user.Username, user.Email, user.Permissions)
		if err != nil {
			return nil, fmt.Errorf("auth login: %w", err)
		}
		result.CookieValue = value
	}

	a.logger.Info("login succeeded",
		zap.Int("userId", user.ID),
		zap.String("username", user.Username),
	)
	return result, nil
}

// chargeQuietly records a failure on both dimensions without shaping a
// rejection; errors here are secondary to the one being returned.
func (a *Authority) chargeQuietly(ctx context.Context, accountKey, addressKey string) {
	if _, err := a.throttle.RecordFailure(ctx, accountKey, rate.AccountWindow); err != nil {
		a.logger.Warn("throttle charge failed", zap.Error(err))
	}
	if _, err := a.throttle.RecordFailure(ctx, addressKey, rate.AddressWindow); err != nil {
		a.logger.Warn("throttle charge failed", zap.Error(err))
	}
}

// recordFailure charges both throttle dimensions, sleeps out the progressive
// delay, and shapes the rejection.
func (a *Authority) recordFailure(ctx context.Context, accountKey, addressKey string) error {
	attempts, err := a.throttle.RecordFailure(ctx, accountKey, rate.AccountWindow)
	if err != nil {
		return err
	}
	if _, err := a.throttle.RecordFailure(ctx, addressKey, rate.AddressWindow); err != nil {
		return err
	}

	rate.Sleep(ctx, rate.Delay(attempts))

	remaining := rate.AccountLimit - attempts
	if remaining < 0 {
		remaining = 0
	}
	return &CredentialsError{Remaining: remaining}
}

// IssueSession signs a cookie value for an already-verified user. The second
// step of the code-gated login calls this after the code clears.
func (a *Authority) IssueSession(user *store.User) (string, error) {
	value, err := a.codec.Issue(user.ID, user.Username, user.Email, user.Permissions)
	if err != nil {
		return "", fmt.Errorf("auth session: %w", err)
	}
	return value, nil
}

// RequestCode issues a fresh one-time code for the email and delivers it.
// Issuance is rate limited per email and per client address; a new code
// silently replaces any live one.
func (a *Authority) RequestCode(ctx context.Context, email, address, purpose string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	allowed, err := a.limiter.Check(ctx, "otp:"+email, CodeEmailLimit)
	if err != nil {
		return err
	}
	if !allowed {
		return a.codeDenied(ctx, email)
	}

	allowed, err = a.limiter.Check(ctx, "otpaddr:"+address, CodeAddressLimit)
	if err != nil {
		return err
	}
	if !allowed {
		return a.codeDenied(ctx, email)
	}

	code, err := a.codes.Generate()
	if err != nil {
		return err
	}
	if err := a.codes.Store(ctx, email, code); err != nil {
		return err
	}

	if err := a.mail.SendCode(ctx, email, purpose, code); err != nil {
		return fmt.Errorf("auth code delivery: %w", err)
	}

	a.logger.Info("one-time code issued", zap.String("email", email), zap.String("purpose", purpose))
	return nil
}

// codeDenied shapes an issuance denial with the caller's remaining email
// budget, zero when that dimension is the exhausted one.
func (a *Authority) codeDenied(ctx context.Context, email string) error {
	remaining, err := a.limiter.Remaining(ctx, "otp:"+email, CodeEmailLimit)
	if err != nil {
		return err
	}
	return &CodeLimitError{Remaining: remaining}
}

// VerifyCode consumes the live code for the email. Wrong, absent, and
// expired codes are indistinguishable.
func (a *Authority) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	return a.codes.Verify(ctx, strings.ToLower(strings.TrimSpace(email)), code)
}

// EnsureAdmin seeds the protected administrator record when the store is
// empty of it. The password is stored encrypted from the start.
func EnsureAdmin(recordStore store.RecordStore, verifier *credential.Verifier, username, email, password string) error {
	if _, err := recordStore.GetUserByID(store.AdminUserID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("auth seed: %w", err)
	}

	encrypted, err := verifier.Encrypt(password)
	if err != nil {
		return fmt.Errorf("auth seed: %w", err)
	}

	_, err = recordStore.CreateUser(&store.User{
		ID:          store.AdminUserID,
		Username:    username,
		Email:       email,
		Password:    encrypted,
		Permissions: permission.FullMatrix(),
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("auth seed: %w", err)
	}
	return nil
}
