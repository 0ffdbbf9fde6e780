package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"fitzone/internal/entity"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailSender struct {
	config  SMTPConfig
	CodeTTL time.Duration
}

func NewSMTPMailSender(config SMTPConfig, codeTTL time.Duration) (*SMTPMailSender, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, fmt.Errorf("%w: SMTP_HOST is required", ErrMailerNotConfigured)
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.From == "" {
		config.From = config.Username
	}
	if strings.TrimSpace(config.From) == "" {
		return nil, fmt.Errorf("%w: MAIL_FROM is required", ErrMailerNotConfigured)
	}
	return &SMTPMailSender{config: config, CodeTTL: codeTTL}, nil
}

func (s *SMTPMailSender) SendCode(ctx context.Context, email string, code string, purpose entity.CodePurpose) error {
	message, err := renderCodeMessage(code, purpose, int(s.CodeTTL/time.Minute))
	if err != nil {
		return err
	}
	body := buildMIMEMessage(s.config.From, email, message)

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	dialer := &net.Dialer{}
	var conn net.Conn
	if s.config.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.config.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.config.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.config.From); err != nil {
		return err
	}
	if err := client.Rcpt(email); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write([]byte(body)); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMIMEMessage(from string, to string, message codeMessage) string {
	boundary := fmt.Sprintf("fitzone-%d", time.Now().UnixNano())
	var sb strings.Builder
	sb.WriteString("From: FitZone <" + from + ">\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + message.Subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	sb.WriteString(message.Text + "\r\n")
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	sb.WriteString(message.HTML + "\r\n")
	sb.WriteString("--" + boundary + "--\r\n")
	return sb.String()
}
