// Package queue moves notification emails through RabbitMQ so request
// handlers never wait on an SMTP relay.
package queue

import (
	"time"

	"github.com/iliyamo/linkmarket/internal/notify"
)

// DefaultEmailQueue is the durable queue shared by publisher and consumer.
const DefaultEmailQueue = "notifications.email"

// EmailEvent is the JSON payload published for every outgoing email.
// It carries the fully rendered message so the consumer has no need
// to query the primary database.
type EmailEvent struct {
	Kind       string    `json:"kind"`
	To         string    `json:"to"`
	Bcc        []string  `json:"bcc,omitempty"`
	Subject    string    `json:"subject"`
	HTML       string    `json:"html"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func eventFromEmail(e notify.Email, at time.Time) EmailEvent {
	return EmailEvent{Kind: e.Kind, To: e.To, Bcc: e.Bcc, Subject: e.Subject, HTML: e.HTML, EnqueuedAt: at.UTC()}
}

func (ev EmailEvent) Email() notify.Email {
	return notify.Email{Kind: ev.Kind, To: ev.To, Bcc: ev.Bcc, Subject: ev.Subject, HTML: ev.HTML}
}
