// Package notify e-mails supervisors and students about application events.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"time"

	mail "github.com/go-mail/mail/v2"
)

// Message is one e-mail.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string
	SkipTLSVerify bool
}

// SMTPNotifier sends messages through an SMTP relay using STARTTLS.
type SMTPNotifier struct {
	from   string
	dialer *mail.Dialer
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &SMTPNotifier{from: cfg.From, dialer: d}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.dialerFor(ctx).DialAndSend(buildMessage(n.from, msg))
}

// dialerFor bounds the SMTP session by the context deadline.
func (n *SMTPNotifier) dialerFor(ctx context.Context) *mail.Dialer {
	d := *n.dialer
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); d.Timeout == 0 || left < d.Timeout {
			d.Timeout = left
		}
	}
	return &d
}

func buildMessage(from string, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m
}

// ApplicationSubmitted tells the supervisors that a new application awaits review.
func ApplicationSubmitted(to []string, applicationID uint, studentID, topic string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("New thesis application #%d", applicationID),
		HTML: fmt.Sprintf("<p>Student <b>%s</b> submitted a thesis application.</p><p>Topic: %s</p>",
			html.EscapeString(studentID), html.EscapeString(topic)),
	}
}

// StatusChanged tells the student that their application moved to a new status.
func StatusChanged(to []string, applicationID uint, from, status string, note *string) Message {
	body := fmt.Sprintf("<p>Your thesis application #%d moved from <b>%s</b> to <b>%s</b>.</p>",
		applicationID, html.EscapeString(from), html.EscapeString(status))
	if note != nil && *note != "" {
		body += fmt.Sprintf("<p>Note: %s</p>", html.EscapeString(*note))
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Thesis application #%d: %s", applicationID, status),
		HTML:    body,
	}
}
