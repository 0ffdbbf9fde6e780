package service

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"fitzone/internal/entity"
)

var ErrMailerNotConfigured = errors.New("mail sender not configured")

// codeMessage is the rendered content of a one-time code email.
type codeMessage struct {
	Subject string
	HTML    string
	Text    string
	Tag     string
}

var codeHTML = template.Must(template.New("code").Parse(`<div style="font-family:Arial,sans-serif;max-width:480px;margin:0 auto">
<h2 style="color:#e4572e">FitZone</h2>
<p>{{.Intro}}</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:6px">{{.Code}}</p>
<p>This code expires in {{.Minutes}} minutes. If you did not ask for it, you can ignore this email.</p>
</div>`))

func renderCodeMessage(code string, purpose entity.CodePurpose, minutes int) (codeMessage, error) {
	if minutes <= 0 {
		minutes = 10
	}
	var subject, intro, tag string
	switch purpose {
	case entity.PurposeVerification:
		subject = "Verify your FitZone account"
		intro = "Use this code to verify your email address:"
		tag = "email-verification"
	case entity.PurposeReset:
		subject = "Reset your FitZone password"
		intro = "Use this code to reset your password:"
		tag = "password-reset"
	default:
		return codeMessage{}, fmt.Errorf("unknown code purpose %q", purpose)
	}

	var html bytes.Buffer
	err := codeHTML.Execute(&html, struct {
		Intro   string
		Code    string
		Minutes int
	}{intro, code, minutes})
	if err != nil {
		return codeMessage{}, err
	}
	text := fmt.Sprintf("%s %s\nThis code expires in %d minutes.", intro, code, minutes)
	return codeMessage{Subject: subject, HTML: html.String(), Text: text, Tag: tag}, nil
}
