// Package mailer delivers HTML email over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	addr string // host:port
	from string
}

// NewSMTPSender creates a sender targeting the relay at addr with the given
// envelope sender.
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

// Send submits an HTML message to the relay.
func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s via %s: %w", to, s.addr, err)
	}
	return nil
}
