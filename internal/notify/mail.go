package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails staff about new events over SMTP.
type Mailer struct {
	dialer sender
	from   string
	to     []string
}

func NewMailer(host string, port int, username, password, from string, to []string) *Mailer {
	return &Mailer{dialer: gomail.NewDialer(host, port, username, password), from: from, to: to}
}

func (m *Mailer) Notify(ctx context.Context, ev Event) error {
	if len(m.to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.message(ev)); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

var subjects = map[Kind]string{
	KindContactMessage: "Nou missatge de contacte",
	KindReservation:    "Nova sol·licitud de reserva",
}

func (m *Mailer) message(ev Event) *gomail.Message {
	subject := subjects[ev.Kind]
	if subject == "" {
		subject = "Nova notificació"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "<p>%s</p>", html.EscapeString(ev.Summary))
	if ev.Payload != nil {
		if b, err := json.MarshalIndent(ev.Payload, "", "  "); err == nil {
			fmt.Fprintf(&body, "<pre>%s</pre>", html.EscapeString(string(b)))
		}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())
	return msg
}
