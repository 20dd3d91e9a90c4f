package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rajivgeraev/reswap-api/internal/config"
)

func TestNew_PicksImplementation(t *testing.T) {
	log := zap.NewNop()

	_, ok := New(config.SMTPConfig{}, log).(*LogMailer)
	assert.True(t, ok)

	_, ok = New(config.SMTPConfig{Host: "smtp.example.com", Port: "587"}, log).(*SMTPMailer)
	assert.True(t, ok)
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: "2525", From: "no-reply@reswap.local"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "anna@example.com", "Сброс пароля", "строка 1\nстрока 2"))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "no-reply@reswap.local", gotFrom)
	assert.Equal(t, []string{"anna@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Сброс пароля\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nстрока 1\r\nстрока 2"))
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: "25"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	assert.ErrorContains(t, m.Send(context.Background(), "a@b.c", "s", "b"), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "a@b.c", "s", "b"), context.Canceled)
}

func TestLogMailer_Send(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), "anna@example.com", "Сброс пароля", "ссылка"))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "anna@example.com", fields["to"])
	assert.Equal(t, "ссылка", fields["body"])
}
