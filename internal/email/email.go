// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"sync"
	"time"
)

// Config holds email configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// Service renders templates and sends them over SMTP.
type Service struct {
	config    *Config
	templates map[string]*template.Template
	transport func(addr string, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config *Config) *Service {
	s := &Service{
		config:    config,
		templates: make(map[string]*template.Template),
	}
	s.transport = s.deliver
	s.loadTemplates()
	return s
}

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// GroupInvitationData holds data for the invitation sent to an address that
// has no account yet.
type GroupInvitationData struct {
	GroupName  string
	GroupColor string
	InvitedBy  string
	SignupURL  string
}

const templateGroupInvitation = "group_invitation"

func (s *Service) loadTemplates() {
	s.templates[templateGroupInvitation] = template.Must(template.New(templateGroupInvitation).Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: {{.GroupColor}}; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: {{.GroupColor}}; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>You're invited to {{.GroupName}}</h2>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p><strong>{{.InvitedBy}}</strong> invited you to share the <strong>{{.GroupName}}</strong> calendar.</p>
        <p>Create an account with this email address and the group will be waiting for you.</p>

        <a href="{{.SignupURL}}" class="btn">Create your account</a>

        <p style="margin-top: 16px; font-size: 14px; color: #6b7280;">
            If you were not expecting this email, you can ignore it.
        </p>
    </div>
    <div class="footer">
        Group Calendar
    </div>
</div>
</body>
</html>
`))
}

// Render executes a named template.
func (s *Service) Render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template not found: %s", templateName)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}

// Send sends an email. Without an SMTP host it logs and returns nil.
func (s *Service) Send(email *Email) error {
	if s.config.Host == "" {
		slog.Debug("email not configured, skipping send", "to", email.To, "subject", email.Subject)
		return nil
	}

	for _, addr := range email.To {
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", headerText(s.config.FromName), s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(email.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerText(email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	if email.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		msg.WriteString(email.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		msg.WriteString(email.Body)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.transport(addr, s.config.From, email.To, msg.Bytes())
}

var headerLineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerText makes s safe as a single header value: line breaks become
// spaces and anything outside printable ASCII is RFC 2047 encoded.
func headerText(s string) string {
	return mime.QEncoding.Encode("utf-8", headerLineBreaks.Replace(s))
}

func (s *Service) deliver(addr, from string, to []string, msg []byte) error {
	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	if !s.config.UseTLS {
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("TLS dial error: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("SMTP client error: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth error: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail error: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt error: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	return client.Quit()
}

// SendWithTemplate sends an email using a template
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	body, err := s.Render(templateName, data)
	if err != nil {
		return err
	}
	return s.Send(&Email{To: to, Subject: subject, HTMLBody: body})
}

func groupInvitationSubject(data GroupInvitationData) string {
	return fmt.Sprintf("%s invited you to %s", data.InvitedBy, data.GroupName)
}

// ============================================
// Async Email Queue
// ============================================

const maxRetries = 3

// EmailQueue sends emails from a pool of workers, retrying failures.
type EmailQueue struct {
	service *Service
	queue   chan *queuedEmail
	done    chan struct{}
	wg      sync.WaitGroup
	backoff func(attempt int) time.Duration
}

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
	retries      int
}

// NewEmailQueue creates a new email queue
func NewEmailQueue(service *Service, workers int) *EmailQueue {
	if workers < 1 {
		workers = 1
	}
	q := &EmailQueue{
		service: service,
		queue:   make(chan *queuedEmail, 1000),
		done:    make(chan struct{}),
		backoff: func(attempt int) time.Duration { return time.Second * time.Duration(attempt*2) },
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *EmailQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case email := <-q.queue:
			q.process(email)
		case <-q.done:
			return
		}
	}
}

func (q *EmailQueue) process(email *queuedEmail) {
	err := q.service.SendWithTemplate(email.to, email.subject, email.templateName, email.data)
	if err == nil {
		return
	}
	if email.retries >= maxRetries {
		slog.Error("email send failed, giving up", "to", email.to, "template", email.templateName, "error", err)
		return
	}
	email.retries++
	slog.Warn("email send failed, retrying", "to", email.to, "attempt", email.retries, "error", err)

	select {
	case <-time.After(q.backoff(email.retries)):
		q.push(email)
	case <-q.done:
	}
}

func (q *EmailQueue) push(email *queuedEmail) {
	select {
	case q.queue <- email:
	default:
		slog.Error("email queue full, dropping message", "to", email.to, "template", email.templateName)
	}
}

// Enqueue adds an email to the queue
func (q *EmailQueue) Enqueue(to []string, subject, templateName string, data interface{}) {
	q.push(&queuedEmail{
		to:           to,
		subject:      subject,
		templateName: templateName,
		data:         data,
	})
}

// QueueGroupInvitation queues the invitation for an address without an
// account.
func (q *EmailQueue) QueueGroupInvitation(to string, data GroupInvitationData) {
	q.Enqueue([]string{to}, groupInvitationSubject(data), templateGroupInvitation, data)
}

// Stop stops the workers and waits for them to exit. Queued emails that
// were not picked up are dropped.
func (q *EmailQueue) Stop() {
	close(q.done)
	q.wg.Wait()
}
