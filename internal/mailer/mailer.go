// Package mailer delivers one-time codes to admin users. The SMTP sender is
// used in production; the log sender stands in wherever no relay is
// configured.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Purposes select the message template for an issued code.
const (
	PurposeLogin   = "login"
	PurposeDefault = "verification"
)

// Mailer delivers codes and plain notifications.
type Mailer interface {
	SendCode(ctx context.Context, to, purpose, code string) error
	Notify(ctx context.Context, to, subject, body string) error
}

// Message renders the subject and body for a code delivery. Login codes get
// their own wording; every other purpose shares the generic template.
func Message(purpose, code string) (subject, body string) {
	if purpose == PurposeLogin {
		return "Your login verification code",
			fmt.Sprintf("Use code %s to finish signing in. It expires in 10 minutes.", code)
	}
	return "Your verification code",
		fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
}

// SMTPMailer delivers mail through a plain-auth SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer configures a relay sender. Host is "host:port".
func NewSMTPMailer(host, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		hostname := host
		if i := strings.IndexByte(host, ':'); i >= 0 {
			hostname = host[:i]
		}
		auth = smtp.PlainAuth("", username, password, hostname)
	}
	return &SMTPMailer{addr: host, auth: auth, from: from}
}

func (m *SMTPMailer) SendCode(ctx context.Context, to, purpose, code string) error {
	subject, body := Message(purpose, code)
	return m.Notify(ctx, to, subject, body)
}

func (m *SMTPMailer) Notify(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mailer send: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending mail. Development
// only; it defeats the point of a second factor anywhere else.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendCode(ctx context.Context, to, purpose, code string) error {
	subject, _ := Message(purpose, code)
	m.logger.Info("one-time code issued",
		zap.String("to", to),
		zap.String("purpose", purpose),
		zap.String("subject", subject),
		zap.String("code", code),
	)
	return nil
}

func (m *LogMailer) Notify(ctx context.Context, to, subject, body string) error {
	m.logger.Info("notification mail",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
