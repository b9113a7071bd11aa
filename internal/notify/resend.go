package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"skillswap-auth/internal/util"
)

type emailsAPI interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendSender struct {
	emails  emailsAPI
	from    string
	appName string
	ttl     time.Duration
}

func NewResendSender(apiKey, from, appName string, ttl time.Duration) *ResendSender {
	client := resend.NewClient(apiKey)
	return &ResendSender{emails: client.Emails, from: from, appName: appName, ttl: ttl}
}

func (s *ResendSender) SendOTPEmail(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	msg, err := RenderOTP(s.appName, code, s.ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	resp, err := s.emails.Send(&resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		util.Error("Failed to send OTP email",
			zap.String("provider", "resend"),
			zap.String("to", util.MaskEmail(to)),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	util.Info("OTP email sent",
		zap.String("provider", "resend"),
		zap.String("to", util.MaskEmail(to)),
		zap.String("message_id", resp.Id))
	return nil
}
