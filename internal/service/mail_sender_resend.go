package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitzone/internal/entity"

	"github.com/resend/resend-go/v2"
)

type resendEmails interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendMailSender struct {
	emails  resendEmails
	From    string
	CodeTTL time.Duration
}

func NewResendMailSender(apiKey string, from string, codeTTL time.Duration) (*ResendMailSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: RESEND_API_KEY is required", ErrMailerNotConfigured)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("%w: MAIL_FROM is required", ErrMailerNotConfigured)
	}
	client := resend.NewClient(apiKey)
	return &ResendMailSender{emails: client.Emails, From: from, CodeTTL: codeTTL}, nil
}

func (s *ResendMailSender) SendCode(ctx context.Context, email string, code string, purpose entity.CodePurpose) error {
	message, err := renderCodeMessage(code, purpose, int(s.CodeTTL/time.Minute))
	if err != nil {
		return err
	}

	// The client call is not context-aware, so the deadline is enforced here.
	done := make(chan error, 1)
	go func() {
		_, err := s.emails.Send(&resend.SendEmailRequest{
			From:    s.From,
			To:      []string{email},
			Subject: message.Subject,
			Html:    message.HTML,
			Text:    message.Text,
		})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("resend: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
