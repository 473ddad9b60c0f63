// Package mailer abstracts outbound account email behind a small send
// capability.  The account service only ever needs two templates; which
// transport actually delivers them is a deployment choice.
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Kind selects the email template.
type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindPasswordReset Kind = "password_reset"
)

// Params carries the values interpolated into a template.
type Params struct {
	Username string // display name in the greeting
	Link     string // confirmation or reset URL
}

// Mailer sends one of the known account templates to a recipient.
// Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, to string, kind Kind, p Params) error
}

// LogMailer writes the mail to the process log instead of delivering it.
// Used in dev environments and as a fallback when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to string, kind Kind, p Params) error {
	log.Printf("mailer: would send %s to %s (user=%s link=%s)", kind, to, p.Username, p.Link)
	return nil
}

// SMTPMailer delivers mail through a plain SMTP relay with AUTH PLAIN.
type SMTPMailer struct {
	Host     string
	Port     string
	User     string
	Pass     string
	From     string // envelope and header From address
	FromName string // display name for the From header
}

// Send renders the template for kind and submits it to the relay.  The
// context is currently only honored before dialing; net/smtp does not
// support cancellation mid-session.
func (m *SMTPMailer) Send(ctx context.Context, to string, kind Kind, p Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body := render(kind, p)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %q <%s>\r\n", m.FromName, m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := m.Host + ":" + m.Port
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func render(kind Kind, p Params) (subject, body string) {
	switch kind {
	case KindPasswordReset:
		subject = "Password reset"
		body = fmt.Sprintf(
			"Hello %s,\n\n"+
				"We received a request to reset the password for your account.\n"+
				"Open the link below to choose a new password:\n\n%s\n\n"+
				"The link is valid for 1 hour. If you did not request a reset,\n"+
				"ignore this email and your password stays unchanged.\n",
			p.Username, p.Link)
	default: // KindConfirmation
		subject = "Confirm your registration"
		body = fmt.Sprintf(
			"Welcome %s,\n\n"+
				"Thanks for registering. To finish setting up your account,\n"+
				"confirm your email address by opening the link below:\n\n%s\n\n"+
				"The link is valid for 24 hours. If you did not register,\n"+
				"ignore this email.\n",
			p.Username, p.Link)
	}
	return subject, body
}
