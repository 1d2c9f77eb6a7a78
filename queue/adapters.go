package queue

import (
	"context"

	siteAuth "github.com/MrEthical07/siteAuth"
)

// EmailMessage is the payload a mail worker consumes from [EmailQueue].
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Mailer hands email to the broker. A message counts as sent once the broker
// accepted it.
type Mailer struct {
	pub publisher
}

func NewMailer(p *Publisher) *Mailer { return &Mailer{pub: p} }

func (m *Mailer) Send(ctx context.Context, to, subject, html string) (bool, error) {
	if err := m.pub.Publish(ctx, EmailQueue, EmailMessage{To: to, Subject: subject, HTML: html}); err != nil {
		return false, err
	}
	return true, nil
}

// AuditSink forwards audit events to [AuditQueue].
type AuditSink struct {
	pub publisher
}

func NewAuditSink(p *Publisher) *AuditSink { return &AuditSink{pub: p} }

func (s *AuditSink) Record(ctx context.Context, event siteAuth.AuditEvent) error {
	return s.pub.Publish(ctx, AuditQueue, event)
}

var (
	_ siteAuth.EmailTransport = (*Mailer)(nil)
	_ siteAuth.AuditSink      = (*AuditSink)(nil)
)
