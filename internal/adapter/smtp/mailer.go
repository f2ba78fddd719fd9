// Package smtp delivers alert notifications over plain SMTP.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// ErrNotConfigured signals that mail delivery is disabled because no SMTP
// credentials were supplied. Callers treat it as a delivery failure, which
// keeps triggered alerts armed.
var ErrNotConfigured = errors.New("smtp mailer not configured")

// Config holds the SMTP connection settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends alert emails through a single SMTP account
type Mailer struct {
	cfg Config
}

// NewMailer creates a mailer; empty credentials yield a disabled one
func NewMailer(cfg Config) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg}
}

// Enabled reports whether the mailer has credentials to deliver with
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && m.cfg.Username != "" && m.cfg.Password != ""
}

// Send delivers a triggered-alert notification
func (m *Mailer) Send(_ context.Context, alert *domain.PriceAlert, price decimal.Decimal) error {
	direction := "risen above"
	if alert.Condition == domain.AlertConditionBelow {
		direction = "dropped below"
	}

	subject := fmt.Sprintf("Price Alert: %s %s $%s",
		alert.Asset.DisplayName(), direction, alert.TargetPrice.StringFixed(2))

	body := fmt.Sprintf(
		"Your price alert has been triggered.\n\n"+
			"Asset: %s (%s)\n"+
			"Condition: %s $%s\n"+
			"Current price: $%s\n"+
			"Triggered at: %s\n\n"+
			"This alert has now been removed.\n",
		alert.Asset.DisplayName(), alert.Asset.Ticker(),
		alert.Condition, alert.TargetPrice.StringFixed(2),
		price.StringFixed(2),
		time.Now().UTC().Format(time.RFC1123))

	return m.deliver(alert.Email, subject, body)
}

// SendTest delivers a configuration-check message
func (m *Mailer) SendTest(_ context.Context, recipient string) error {
	body := "This is a test notification from your DCA tracker.\n\n" +
		"If you are reading this, alert delivery is configured correctly.\n"
	return m.deliver(recipient, "DCA Tracker Test Notification", body)
}

func (m *Mailer) deliver(recipient, subject, body string) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}
