package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/config"
)

// Mailer отправляет письма пользователям
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New возвращает SMTP-отправителя, если задан хост, иначе пишет письма в лог
func New(cfg config.SMTPConfig, log *zap.Logger) Mailer {
	if cfg.Host == "" {
		log.Warn("SMTP не настроен, письма будут только в логе")
		return NewLogMailer(log)
	}
	return NewSMTPMailer(cfg)
}

// SMTPMailer отправляет письма через SMTP с PLAIN-авторизацией
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer создает новый экземпляр SMTPMailer
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, cfg.Port),
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
	}
}

// Send отправляет письмо. net/smtp не принимает контекст,
// поэтому проверяем только отмену до начала отправки.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{to}, buildMessage(m.from, to, subject, body)); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer пишет письма в лог. Для разработки.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer создает новый экземпляр LogMailer
func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send пишет письмо в лог
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("📧 Письмо",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
