package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/ariefcatur/exam-vouchers/internal/config"
)

type SMTP struct {
	Config config.SMTPConfig
	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg config.SMTPConfig) *SMTP {
	return &SMTP{Config: cfg, send: smtp.SendMail}
}

func (s *SMTP) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.Config
	if !c.Enabled() {
		return fmt.Errorf("smtp not configured: SMTP_SERVER=%q SMTP_PORT=%q FROM_ADDR=%q", c.Host, c.Port, c.FromAddr)
	}
	if strings.ContainsAny(m.To, "\r\n") {
		return fmt.Errorf("invalid recipient %q", m.To)
	}

	var auth smtp.Auth
	if c.User != "" {
		auth = smtp.PlainAuth("", c.User, c.Password, c.Host)
	}
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(c.Host+":"+c.Port, auth, c.FromAddr, []string{m.To}, s.build(m)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTP) build(m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.Config.FromName), s.Config.FromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}
