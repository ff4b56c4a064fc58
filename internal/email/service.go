// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// BaseURL is the web app origin used to build links in messages.
	BaseURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	if config.FromName == "" {
		config.FromName = "CollabHub"
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		s.fromHeader(),
		subject,
		body,
	))

	return s.send(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain-text alternative.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	boundary := "boundary-collabhub"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// InviteData feeds the collaboration invitation template.
type InviteData struct {
	AppName      string
	ReceiverName string
	SenderName   string
	ProjectTitle string
	Role         string
	Message      string
	URL          string
}

// ResponseData feeds the "your invitation was answered" template.
type ResponseData struct {
	AppName      string
	SenderName   string
	ReceiverName string
	ProjectTitle string
	Accepted     bool
}

// SendCollaborationInvite tells a receiver that a project owner invited them.
func (s *Service) SendCollaborationInvite(to string, data InviteData) error {
	data.AppName = s.config.FromName
	if data.URL == "" {
		data.URL = strings.TrimRight(s.config.BaseURL, "/") + "/collaborations"
	}

	html, err := renderTemplate(inviteEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}
	subject := fmt.Sprintf("%s invited you to %s", data.SenderName, data.ProjectTitle)
	text := fmt.Sprintf("%s invited you to collaborate on %s as %s. Respond at %s", data.SenderName, data.ProjectTitle, data.Role, data.URL)
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

// SendCollaborationResponse tells the project owner how a receiver answered.
func (s *Service) SendCollaborationResponse(to string, data ResponseData) error {
	data.AppName = s.config.FromName

	html, err := renderTemplate(responseEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render response template: %w", err)
	}
	verb := "declined"
	if data.Accepted {
		verb = "accepted"
	}
	subject := fmt.Sprintf("%s %s your invitation to %s", data.ReceiverName, verb, data.ProjectTitle)
	return s.SendHTMLEmail([]string{to}, subject, subject+".", html)
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const inviteEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invitation to {{.ProjectTitle}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .note { background: #f5f7fa; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.ReceiverName}},</h2>

    <p>{{.SenderName}} invited you to collaborate on <strong>{{.ProjectTitle}}</strong> as <strong>{{.Role}}</strong>.</p>
    {{if .Message}}
    <div class="note">{{.Message}}</div>
    {{end}}
    <p>
        <a href="{{.URL}}" class="button">Review invitation</a>
    </p>
</body>
</html>`

const responseEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.ProjectTitle}}</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333;">
    <h1>{{.AppName}}</h1>
    <p>Hi {{.SenderName}},</p>
    <p>{{.ReceiverName}} {{if .Accepted}}accepted{{else}}declined{{end}} your invitation to <strong>{{.ProjectTitle}}</strong>.</p>
</body>
</html>`
