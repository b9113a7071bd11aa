package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmails struct {
	got *resend.SendEmailRequest
	err error
}

func (f *fakeEmails) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "msg_1"}, nil
}

func TestRenderOTP(t *testing.T) {
	msg, err := RenderOTP("SkillSwap", "482913", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Your SkillSwap OTP Code", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>482913</strong>")
	assert.Contains(t, msg.HTML, "10 minutes")
	assert.Contains(t, msg.Text, "482913")
}

func TestResendSender(t *testing.T) {
	fake := &fakeEmails{}
	s := &ResendSender{emails: fake, from: "SkillSwap <no-reply@skillswap.dev>", appName: "SkillSwap", ttl: 10 * time.Minute}

	require.NoError(t, s.SendOTPEmail(context.Background(), "ada@example.com", "123456"))
	require.NotNil(t, fake.got)
	assert.Equal(t, []string{"ada@example.com"}, fake.got.To)
	assert.Equal(t, Subject, fake.got.Subject)
	assert.Contains(t, fake.got.Html, "123456")
}

func TestResendSenderFailure(t *testing.T) {
	s := &ResendSender{emails: &fakeEmails{err: errors.New("429 rate limited")}, appName: "SkillSwap", ttl: time.Minute}

	err := s.SendOTPEmail(context.Background(), "ada@example.com", "123456")
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestSMTPSender(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "user", "secret", "no-reply@skillswap.dev", "SkillSwap", 10*time.Minute)
	assert.Equal(t, "smtp.example.com:587", s.addr)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	s.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, s.SendOTPEmail(context.Background(), "ada@example.com", "654321"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Your SkillSwap OTP Code\r\n")
	assert.Contains(t, gotMsg, "654321")
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "", "", "no-reply@skillswap.dev", "SkillSwap", time.Minute)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be attempted")
		return nil
	}

	err := s.SendOTPEmail(context.Background(), "ada@example.com\r\nBcc: x@example.com", "654321")
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestSMTPSenderFailure(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "", "", "no-reply@skillswap.dev", "SkillSwap", time.Minute)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	assert.ErrorIs(t, s.SendOTPEmail(context.Background(), "ada@example.com", "1"), ErrDelivery)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &ResendSender{emails: &fakeEmails{}, ttl: time.Minute}
	assert.ErrorIs(t, s.SendOTPEmail(ctx, "ada@example.com", "1"), ErrDelivery)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender().SendOTPEmail(context.Background(), "ada@example.com", "123456"))
}
