package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/registrations/internal/registration"
)

// Config holds SMTP connection and sender settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

// Message is a single outgoing email.
type Message struct {
	To      []string
	Subject string
	Body    string
	IsHTML  bool
}

// Mailer sends emails via SMTP.
type Mailer struct {
	cfg    *Config
	sendFn func(Message) error
}

func New(cfg *Config) *Mailer {
	m := &Mailer{cfg: cfg}
	m.sendFn = m.smtpSend
	return m
}

// SendConfirmation emails the registrant the rendered confirmation.
func (m *Mailer) SendConfirmation(ctx context.Context, c registration.Confirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := recipient(c.To)
	if err != nil {
		return err
	}
	subject, body, err := RenderConfirmation(c.Name, c.ImageURL)
	if err != nil {
		return err
	}
	return m.Send(Message{To: []string{to}, Subject: subject, Body: body, IsHTML: true})
}

// Send delivers msg to its recipients.
func (m *Mailer) Send(msg Message) error {
	if m.cfg == nil {
		return errors.New("mailer: not configured")
	}
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}
	return m.sendFn(msg)
}

func (m *Mailer) smtpSend(msg Message) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.FromAddress, msg.To, []byte(m.formatMessage(msg))); err != nil {
		return fmt.Errorf("mailer: send via %s: %w", addr, err)
	}
	return nil
}

func (m *Mailer) formatMessage(msg Message) string {
	from := m.cfg.FromAddress
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", m.cfg.FromName), m.cfg.FromAddress)
	}

	contentType := "text/plain; charset=UTF-8"
	if msg.IsHTML {
		contentType = "text/html; charset=UTF-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

// recipient validates a user-supplied address and returns its bare form.
// Anything that would let a caller inject headers is rejected.
func recipient(addr string) (string, error) {
	if strings.ContainsAny(addr, "\r\n") {
		return "", errors.New("mailer: recipient contains a line break")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", fmt.Errorf("mailer: invalid recipient %q: %w", addr, err)
	}
	return parsed.Address, nil
}
