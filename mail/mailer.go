package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"constructlink/config"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("mail: smtp unavailable")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer 通过 SMTP 发送 HTML 邮件；未配置 SMTP 时只写日志
type Mailer struct {
	cfg    config.SMTP
	logger zerolog.Logger
	cb     *gobreaker.CircuitBreaker[struct{}]
	send   sendFunc
}

func New(cfg config.SMTP, logger zerolog.Logger) *Mailer {
	st := gobreaker.Settings{
		Name:    "smtp",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	}
	return &Mailer{
		cfg:    cfg,
		logger: logger,
		cb:     gobreaker.NewCircuitBreaker[struct{}](st),
		send:   smtp.SendMail,
	}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.cfg.Host != "" }

func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Enabled() {
		// 正文可能含一次性链接，只在 debug 级别输出
		log := zerolog.Ctx(ctx)
		log.Info().Str("to", to).Str("subject", subject).Msg("smtp not configured, mail not sent")
		log.Debug().Str("to", to).Str("body", htmlBody).Msg("unsent mail body")
		return nil
	}
	msg := buildMessage(m.cfg.From, to, subject, htmlBody)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + m.cfg.Port

	_, err := m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.send(addr, auth, m.cfg.From, []string{to}, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	zerolog.Ctx(ctx).Info().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		htmlBody,
	}
	return []byte(strings.Join(lines, "\r\n"))
}
