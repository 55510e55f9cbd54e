// AngelaMos | 2026
// smtp.go

package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"
)

type SMTPConfig struct {
	Address  string
	Host     string
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPSender{cfg: cfg, auth: auth, send: smtp.SendMail}
}

// Send ignores ctx cancellation once the SMTP dialog has started; net/smtp
// has no context support.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := buildRFC822(s.cfg.From, msg, time.Now())
	if err := s.send(s.cfg.Address, s.auth, s.cfg.From, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildRFC822(from string, msg Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.Bytes()
}
