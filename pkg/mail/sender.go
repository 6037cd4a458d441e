package mail

import (
	"context"
	"fmt"
	"futureflow/conf"
	"futureflow/pkg/utils"
	"time"

	gomail "github.com/go-mail/mail"
)

// Sender SMTP 发信
type Sender struct {
	dialer     *gomail.Dialer
	from       string
	recipients []string
}

// NewSender 过滤掉格式不正确的收件人
func NewSender(cfg conf.EmailConfig, verifier *Verifier) (*Sender, error) {
	var recipients []string
	for _, r := range cfg.Recipients {
		if err := verifier.VerifierEmail(r); err != nil {
			return nil, fmt.Errorf("recipient %s: %w", r, err)
		}
		recipients = append(recipients, r)
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	return &Sender{dialer: d, from: cfg.Sender, recipients: recipients}, nil
}

func (s *Sender) Recipients() []string {
	return s.recipients
}

// Message 构造邮件，不发送
func (s *Sender) Message(subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// 发信失败时重试的次数
const sendRetries = 3

// Send 失败时按指数退避重试
func (s *Sender) Send(subject, body string) error {
	if len(s.recipients) == 0 {
		return nil
	}
	m := s.Message(subject, body)
	return utils.Retry(context.Background(), sendRetries, time.Second, true, func() error {
		return s.dialer.DialAndSend(m)
	})
}
