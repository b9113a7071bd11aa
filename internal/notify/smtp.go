package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"skillswap-auth/internal/util"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	appName  string
	ttl      time.Duration
	sendMail sendMailFunc
}

func NewSMTPSender(host string, port int, user, password, from, appName string, ttl time.Duration) *SMTPSender {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		auth:     auth,
		from:     from,
		appName:  appName,
		ttl:      ttl,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) SendOTPEmail(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("%w: invalid recipient", ErrDelivery)
	}

	msg, err := RenderOTP(s.appName, code, s.ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)

	if err := s.sendMail(s.addr, s.auth, s.from, []string{to}, []byte(b.String())); err != nil {
		util.Error("Failed to send OTP email",
			zap.String("provider", "smtp"),
			zap.String("to", util.MaskEmail(to)),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	util.Info("OTP email sent",
		zap.String("provider", "smtp"),
		zap.String("to", util.MaskEmail(to)))
	return nil
}
