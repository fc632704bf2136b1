// Package mail delivers one-time codes over MailerSend.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mailersend/mailersend-go"
)

// ErrDisabled is returned when the mailer was constructed without credentials.
var ErrDisabled = errors.New("mailer disabled: missing API key or sender address")

// Mailer sends OTP emails through MailerSend.
type Mailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

// NewMailer builds a Mailer. With an empty apiKey or fromEmail the mailer is
// disabled and every send fails with ErrDisabled, which keeps local setups
// running without credentials while making the failure visible in the OTP
// delivery status.
func NewMailer(apiKey, fromName, fromEmail string) *Mailer {
	m := &Mailer{
		enabled: apiKey != "" && fromEmail != "",
		from:    mailersend.From{Name: fromName, Email: fromEmail},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

// SendOTP emails the verification code to the recipient.
func (m *Mailer) SendOTP(ctx context.Context, email, code string) error {
	if !m.enabled {
		return ErrDisabled
	}

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: email}})
	msg.SetSubject("Your OTP Verification Code")
	msg.SetText(fmt.Sprintf("Your verification OTP code is: %s", code))
	msg.SetHTML(fmt.Sprintf("<p>Your verification OTP code is: <b>%s</b></p>", code))

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("send otp email: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
