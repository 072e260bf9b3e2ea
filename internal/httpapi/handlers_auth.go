package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/auth"
	"github.com/volantix/siteapi/internal/mailer"
	"github.com/volantix/siteapi/internal/session"
)

// checkCaptcha validates the token when an oracle is configured. Writes the
// 400 itself and reports false when the request must not proceed.
func (s *Server) checkCaptcha(w http.ResponseWriter, r *http.Request, token string) bool {
	ok, err := s.captcha.Verify(r.Context(), token, clientAddr(r))
	if err != nil {
		s.logger.Warn("captcha verification error", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Captcha verification failed")
		return false
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Captcha verification failed")
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier   string `json:"identifier"`
		Password     string `json:"password"`
		SkipSession  bool   `json:"skipSession"`
		CaptchaToken string `json:"captchaToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Identifier and password are required")
		return
	}
	if !s.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	result, err := s.authority.Login(r.Context(), auth.LoginInput{
		Identifier:  req.Identifier,
		Password:    req.Password,
		Address:     clientAddr(r),
		SkipSession: req.SkipSession,
	})
	if err != nil {
		var lockErr *auth.LockoutError
		if errors.As(err, &lockErr) {
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":             "Too many failed attempts. Please try again later.",
				"rateLimited":       true,
				"resetTime":         lockErr.RetryAt.Format(time.RFC3339),
				"remainingAttempts": 0,
			})
			return
		}
		var credErr *auth.CredentialsError
		if errors.As(err, &credErr) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error":             "Invalid credentials",
				"remainingAttempts": credErr.Remaining,
			})
			return
		}
		s.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if result.CookieValue != "" {
		http.SetCookie(w, session.NewCookie(result.CookieValue, s.secureCookies))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user":    result.User,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}

	claims, err := s.codec.Validate(cookie.Value)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user": map[string]interface{}{
			"id":          claims.UserID,
			"username":    claims.Username,
			"email":       claims.Email,
			"permissions": claims.Permissions,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, session.ExpiredCookie(s.secureCookies))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string `json:"email"`
		Name         string `json:"name"`
		Purpose      string `json:"purpose"`
		CaptchaToken string `json:"captchaToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if !s.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	purpose := mailer.PurposeDefault
	if req.Purpose == mailer.PurposeLogin {
		purpose = mailer.PurposeLogin
	}

	if err := s.authority.RequestCode(r.Context(), req.Email, clientAddr(r), purpose); err != nil {
		if errors.Is(err, auth.ErrLockedOut) {
			remaining := 0
			var limitErr *auth.CodeLimitError
			if errors.As(err, &limitErr) {
				remaining = limitErr.Remaining
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":             "Too many OTP requests. Please try again later.",
				"rateLimited":       true,
				"remainingAttempts": remaining,
			})
			return
		}
		s.logger.Error("otp request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "OTP sent",
	})
}

func (s *Server) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}

	ok, err := s.authority.VerifyCode(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.logger.Error("otp verify failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
