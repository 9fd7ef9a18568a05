// Package notify delivers daily summaries by email.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/nestlog/internal/activity"
	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/errors"
)

// Delivery statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// EmailResult reports the outcome of one email delivery.
type EmailResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a notification attempt.
type Result struct {
	Status string      `json:"status"`
	Email  EmailResult `json:"email"`
}

// Notifier sends a daily summary somewhere a person will read it.
type Notifier interface {
	Send(ctx context.Context, s *activity.DailySummary) (*Result, error)
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends summaries as multipart/alternative mail.
type SMTPNotifier struct {
	cfg  config.SMTPConfig
	send SendFunc
	now  func() time.Time
}

// NewSMTPNotifier returns a notifier for cfg. Delivery uses smtp.SendMail,
// which upgrades to STARTTLS when the relay offers it.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// WithSendFunc replaces the delivery function.
func (n *SMTPNotifier) WithSendFunc(f SendFunc) *SMTPNotifier {
	n.send = f
	return n
}

// Send delivers s. An unconfigured notifier returns a failed Result without
// dialing and without an error. Relay errors return NOTIFY_FAILED.
func (n *SMTPNotifier) Send(ctx context.Context, s *activity.DailySummary) (*Result, error) {
	if !n.cfg.Configured() {
		return &Result{
			Status: StatusFailed,
			Email:  EmailResult{Success: false, Error: "email not configured"},
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("notify")
	}

	msg, err := BuildMessage(n.cfg.Sender(), n.cfg.Recipient, s, n.now())
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := n.send(addr, auth, n.cfg.Sender(), []string{n.cfg.Recipient}, msg); err != nil {
		return nil, errors.NewNotifyFailed(err)
	}

	return &Result{
		Status: StatusSuccess,
		Email:  EmailResult{Success: true, Message: "email sent successfully"},
	}, nil
}

// BuildMessage renders the full RFC 822 message for s.
func BuildMessage(from, to string, s *activity.DailySummary, now time.Time) ([]byte, error) {
	html, err := HTMLBody(s)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := writePart(mw, "text/plain; charset=utf-8", activity.SummaryText(s)); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=utf-8", html); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", activity.Subject(s)))
	fmt.Fprintf(&msg, "Date: %s\r\n", now.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	qw := quotedprintable.NewWriter(pw)
	if _, err := qw.Write([]byte(content)); err != nil {
		return err
	}
	return qw.Close()
}

// HTMLBody renders the summary markdown to an HTML document.
func HTMLBody(s *activity.DailySummary) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`<html><body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`)
	buf.WriteString(`<div style="background: #f8f9fa; padding: 20px; border-radius: 8px;">`)
	if err := goldmark.Convert([]byte(activity.SummaryMarkdown(s)), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	buf.WriteString(`</div></body></html>`)
	return buf.String(), nil
}
