package utils

import (
	"gopkg.in/gomail.v2"
)

// SMTPMailer sends notification mail over SMTP. When the EMAIL_* settings
// are absent it becomes a silent no-op so the main success path never
// depends on a mail transport.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	m := &SMTPMailer{from: from}
	if host != "" && port != 0 {
		m.dialer = gomail.NewDialer(host, port, user, pass)
	}
	return m
}

// Send delivers one HTML message to all recipients. An empty recipient
// set or an unconfigured transport is not an error.
func (m *SMTPMailer) Send(to []string, subject, html string) error {
	if m.dialer == nil || len(to) == 0 {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	return m.dialer.DialAndSend(msg)
}
