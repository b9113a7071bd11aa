// Package notify delivers one-time codes to users by email.
package notify

//go:generate mockgen -source=sender.go -destination=mocks/mock_sender.go -package=mocks

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"time"
)

var ErrDelivery = errors.New("failed to send email")

// Subject is the subject line of every code email
const Subject = "Your SkillSwap OTP Code"

type Sender interface {
	SendOTPEmail(ctx context.Context, to, code string) error
}

var otpTemplate = template.Must(template.New("otp").Parse(
	`<h2>Your {{.AppName}} OTP Code</h2>
<p>Your one-time password (OTP) is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
`))

// Message is a rendered code email
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// RenderOTP builds the email for code
func RenderOTP(appName, code string, ttl time.Duration) (Message, error) {
	minutes := int(ttl / time.Minute)
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		AppName string
		Code    string
		Minutes int
	}{appName, code, minutes})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: Subject,
		HTML:    buf.String(),
		Text:    "Your one-time password (OTP) is " + code + ".",
	}, nil
}
