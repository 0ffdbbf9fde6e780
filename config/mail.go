package config

import (
	"fmt"
	"strings"
	"time"

	"fitzone/internal/service"

	"github.com/sirupsen/logrus"
)

// MailConfig selects and configures the transport for code emails. It is
// handed to the sender at construction; nothing reads mail settings later.
type MailConfig struct {
	Driver string `env:"MAIL_DRIVER" envDefault:"dev"`
	From   string `env:"MAIL_FROM"`

	ResendAPIKey string `env:"RESEND_API_KEY"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	DevDir string `env:"DEV_MAIL_DIR" envDefault:"./tmp/mail"`
}

func NewMailSender(cfg MailConfig, codeTTL time.Duration, logger logrus.FieldLogger) (service.MailSender, error) {
	var (
		sender service.MailSender
		err    error
	)
	switch strings.ToLower(cfg.Driver) {
	case "resend":
		sender, err = asMailSender(service.NewResendMailSender(cfg.ResendAPIKey, cfg.From, codeTTL))
	case "postmark":
		sender, err = asMailSender(service.NewPostmarkMailSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.From, codeTTL))
	case "smtp":
		sender, err = asMailSender(service.NewSMTPMailSender(service.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		}, codeTTL))
	case "dev", "":
		logger.WithField("dir", cfg.DevDir).Warn("mail driver is dev, codes are written to disk")
		return service.NewDevMailSender(cfg.DevDir, codeTTL, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown MAIL_DRIVER %q", ErrInvalidConfig, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return sender, nil
}

func asMailSender[T service.MailSender](sender T, err error) (service.MailSender, error) {
	if err != nil {
		return nil, err
	}
	return sender, nil
}
