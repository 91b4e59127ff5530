package service

import (
	"context"
	"fmt"

	"coreshare-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridHost = "https://api.sendgrid.com"

// EmailSender delivers a single transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, toName, subject, plainText, html string) error
}

type sendGridEmail struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendGridEmail returns nil when no API key is configured; the dispatcher then skips email.
func NewSendGridEmail(apiKey, fromEmail, fromName string) EmailSender {
	if apiKey == "" {
		return nil
	}
	return newSendGridEmail(apiKey, sendGridHost, fromEmail, fromName)
}

func newSendGridEmail(apiKey, host, fromEmail, fromName string) *sendGridEmail {
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	req.Method = "POST"
	return &sendGridEmail{
		client:    &sendgrid.Client{Request: req},
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridEmail) SendEmail(ctx context.Context, to, toName, subject, plainText, html string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail(toName, to), plainText, html)

	logger.ExternalServiceCall("sendgrid", "send", "to", to, "subject", subject)
	resp, err := s.client.SendWithContext(ctx, message)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
