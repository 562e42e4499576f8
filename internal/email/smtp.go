package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender dispatches a message to its recipient.
type Sender interface {
	Send(msg *Message) error
}

// SMTPSender sends mail over plain SMTP with AUTH PLAIN.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
}

// NewSMTPSender returns a sender for the given SMTP endpoint.
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, Username: username, Password: password}
}

// Send connects, authenticates, and submits the message. Returns an error on
// any transport or protocol failure; callers decide whether that is fatal.
func (s *SMTPSender) Send(msg *Message) error {
	if s.Host == "" {
		return fmt.Errorf("smtp: host not configured")
	}
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	body := buildMIME(msg)
	if err := smtp.SendMail(addr, auth, msg.From.Address, []string{msg.To.Address}, body); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}

func buildMIME(msg *Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", msg.From.Name, msg.From.Address)
	fmt.Fprintf(&b, "To: %s <%s>\r\n", msg.To.Name, msg.To.Address)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
