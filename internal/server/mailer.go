package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"healthmate/backend/internal/config"
)

var ErrMailDisabled = errors.New("mail delivery is not configured")

type IssueReport struct {
	ReportID    string
	UserID      string
	DisplayName string
	Email       string
	Description string
	ReportedAt  time.Time
}

// Mailer forwards issue reports to the developer inbox.
type Mailer interface {
	SendIssueReport(ctx context.Context, report IssueReport) error
}

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	to       string
	enabled  bool
	send     sendMailFunc
}

func NewSMTPMailer(cfg config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		to:       cfg.DeveloperEmail,
		enabled:  cfg.MailEnabled(),
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendIssueReport(ctx context.Context, report IssueReport) error {
	if !m.enabled {
		return ErrMailDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("New issue report - %s (%s)", report.DisplayName, report.UserID)
	message, err := buildIssueMessage(m.username, m.to, subject, report)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := m.host + ":" + m.port
	if err := m.send(addr, auth, m.username, []string{m.to}, message); err != nil {
		return fmt.Errorf("send issue report mail: %w", err)
	}
	return nil
}

func buildIssueMessage(from, to, subject string, report IssueReport) ([]byte, error) {
	reportedAt := report.ReportedAt.UTC().Format(time.RFC3339)
	fields := [][2]string{
		{"Report ID", report.ReportID},
		{"User ID", report.UserID},
		{"Display name", report.DisplayName},
		{"Email", report.Email},
		{"Description", report.Description},
		{"Reported at", reportedAt},
	}

	var text, htmlBody strings.Builder
	htmlBody.WriteString("<h2>New issue report</h2>\n")
	for _, field := range fields {
		fmt.Fprintf(&text, "%s: %s\r\n", field[0], field[1])
		fmt.Fprintf(&htmlBody, "<p><strong>%s:</strong> %s</p>\n", field[0], html.EscapeString(field[1]))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{contentType: "text/plain; charset=UTF-8", content: text.String()},
		{contentType: "text/html; charset=UTF-8", content: htmlBody.String()},
	} {
		w, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
