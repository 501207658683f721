// Package mailer renders and sends the transactional e-mails of the auth
// flows (address verification, password reset, password changed).
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/slimmermetai/auth-core/internal/config"
	"github.com/slimmermetai/auth-core/internal/queue"
)

// Message is a rendered plain-text e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPSender sends through an SMTP relay with PLAIN auth when credentials
// are configured.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender { return &SMTPSender{cfg: cfg} }

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	from := s.cfg.From
	if a := strings.LastIndex(from, "<"); a >= 0 {
		from = strings.TrimSuffix(from[a+1:], ">")
	}
	return smtp.SendMail(addr, auth, from, []string{m.To}, buildMIME(s.cfg.From, m))
}

// LogSender only logs messages. Used when SMTP_HOST is empty.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.Info("mail (not sent, no SMTP host)", "to", m.To, "subject", m.Subject)
	return nil
}

// NewSender picks SMTP when a host is configured and the log sender otherwise.
func NewSender(cfg config.MailConfig, log *slog.Logger) Sender {
	if cfg.Host == "" {
		return LogSender{Log: log}
	}
	return NewSMTPSender(cfg)
}

func buildMIME(from string, m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// ErrUnknownKind is returned by Compose for an event it has no template for.
var ErrUnknownKind = errors.New("mailer: unknown e-mail kind")

// Compose renders the Dutch e-mail for ev. Links point at baseURL.
func Compose(ev queue.EmailEvent, baseURL string) (Message, error) {
	name := ev.Name
	if name == "" {
		name = ev.Email
	}
	m := Message{To: ev.Email}
	switch ev.Kind {
	case queue.EmailVerification:
		m.Subject = "Bevestig je e-mailadres"
		m.Body = fmt.Sprintf("Hallo %s,\n\nBevestig je e-mailadres via de volgende link:\n%s/verify-email?token=%s\n\nGroet,\nSlimmer met AI\n",
			name, baseURL, ev.Token)
	case queue.EmailPasswordReset:
		m.Subject = "Wachtwoord opnieuw instellen"
		m.Body = fmt.Sprintf("Hallo %s,\n\nStel een nieuw wachtwoord in via de volgende link:\n%s/reset-password?token=%s\n\nDe link is geldig tot %s (UTC). Heb je dit niet aangevraagd? Dan kun je deze e-mail negeren.\n\nGroet,\nSlimmer met AI\n",
			name, baseURL, ev.Token, ev.ExpiresAt.UTC().Format("2006-01-02 15:04"))
	case queue.EmailPasswordChanged:
		m.Subject = "Je wachtwoord is gewijzigd"
		m.Body = fmt.Sprintf("Hallo %s,\n\nJe wachtwoord is zojuist gewijzigd en alle sessies zijn afgemeld. Was jij dit niet? Neem dan direct contact met ons op.\n\nGroet,\nSlimmer met AI\n",
			name)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
	return m, nil
}

// Deliverer turns queue events into sent e-mails. Its Handle method is the
// queue.Handler run by the consumer.
type Deliverer struct {
	Sender  Sender
	BaseURL string
	Log     *slog.Logger
}

func (d *Deliverer) Handle(ctx context.Context, ev queue.EmailEvent) error {
	m, err := Compose(ev, d.BaseURL)
	if err != nil {
		return err
	}
	if err := d.Sender.Send(ctx, m); err != nil {
		return fmt.Errorf("send %s mail to user %d: %w", ev.Kind, ev.UserID, err)
	}
	d.Log.Debug("mail sent", "kind", ev.Kind, "user_id", ev.UserID)
	return nil
}
