package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitzone/internal/entity"

	"github.com/mrz1836/postmark"
)

type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type PostmarkMailSender struct {
	client  postmarkAPI
	From    string
	CodeTTL time.Duration
}

func NewPostmarkMailSender(serverToken string, accountToken string, from string, codeTTL time.Duration) (*PostmarkMailSender, error) {
	if strings.TrimSpace(serverToken) == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrMailerNotConfigured)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("%w: MAIL_FROM is required", ErrMailerNotConfigured)
	}
	return &PostmarkMailSender{
		client:  postmark.NewClient(serverToken, accountToken),
		From:    from,
		CodeTTL: codeTTL,
	}, nil
}

func (s *PostmarkMailSender) SendCode(ctx context.Context, email string, code string, purpose entity.CodePurpose) error {
	message, err := renderCodeMessage(code, purpose, int(s.CodeTTL/time.Minute))
	if err != nil {
		return err
	}
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.From,
		To:       email,
		Subject:  message.Subject,
		Tag:      message.Tag,
		HTMLBody: message.HTML,
		TextBody: message.Text,
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
