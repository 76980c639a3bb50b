package mail

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructlink/config"
)

func TestSendWithoutHostOnlyLogs(t *testing.T) {
	m := New(config.SMTP{}, zerolog.Nop())
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}
	require.NoError(t, m.Send(context.Background(), "a@example.com", "Hi", "<p>hi</p>"))
	assert.False(t, called)
	assert.False(t, m.Enabled())
}

func TestUnsentBodyStaysOutOfInfoLogs(t *testing.T) {
	m := New(config.SMTP{}, zerolog.Nop())
	body := `<a href="http://localhost/?route=auth/reset-password&token=secret-token">Reset</a>`

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).Level(zerolog.InfoLevel).WithContext(context.Background())
	require.NoError(t, m.Send(ctx, "a@example.com", "Reset", body))
	assert.Contains(t, buf.String(), "a@example.com")
	assert.NotContains(t, buf.String(), "secret-token")

	buf.Reset()
	ctx = zerolog.New(&buf).Level(zerolog.DebugLevel).WithContext(context.Background())
	require.NoError(t, m.Send(ctx, "a@example.com", "Reset", body))
	assert.Contains(t, buf.String(), "secret-token")
}

func TestSendBuildsMessage(t *testing.T) {
	m := New(config.SMTP{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", Username: "u", Password: "p"}, zerolog.Nop())
	var gotAddr string
	var gotMsg []byte
	var gotTo []string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "maria@example.com", "Reset", "<p>link</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"maria@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Reset\r\n")
	assert.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, string(gotMsg), "\r\n\r\n<p>link</p>")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	m := New(config.SMTP{Host: "smtp.example.com", Port: "25", From: "x@example.com"}, zerolog.Nop())
	calls := 0
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("connection refused")
	}

	for i := 0; i < 3; i++ {
		err := m.Send(context.Background(), "a@example.com", "s", "b")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	err := m.Send(context.Background(), "a@example.com", "s", "b")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls, "open breaker fails fast without dialing")
}
