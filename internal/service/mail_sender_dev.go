package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fitzone/internal/entity"

	"github.com/sirupsen/logrus"
)

// DevMailSender writes every code email into a directory instead of sending
// it. Intended for local runs only.
type DevMailSender struct {
	Dir     string
	CodeTTL time.Duration
	Logger  logrus.FieldLogger
	Clock   Clock
}

type devMailRecord struct {
	Timestamp string             `json:"timestamp"`
	SendTo    string             `json:"send_to"`
	Subject   string             `json:"subject"`
	Purpose   entity.CodePurpose `json:"purpose"`
	Code      string             `json:"code"`
}

func NewDevMailSender(dir string, codeTTL time.Duration, logger logrus.FieldLogger) *DevMailSender {
	return &DevMailSender{Dir: dir, CodeTTL: codeTTL, Logger: logger, Clock: RealClock{}}
}

func (s *DevMailSender) SendCode(ctx context.Context, email string, code string, purpose entity.CodePurpose) error {
	message, err := renderCodeMessage(code, purpose, int(s.CodeTTL/time.Minute))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create mail dir: %w", err)
	}

	now := s.Clock.Now()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405.000000000"), message.Tag)
	if err := os.WriteFile(filepath.Join(s.Dir, base+".html"), []byte(message.HTML), 0o644); err != nil {
		return fmt.Errorf("write mail html: %w", err)
	}
	data, err := json.MarshalIndent(devMailRecord{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    email,
		Subject:   message.Subject,
		Purpose:   purpose,
		Code:      code,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.Dir, base+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write mail metadata: %w", err)
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"to": email, "purpose": purpose, "file": base}).Info("dev mail written")
	}
	return nil
}
