package notify

import (
	"context"
	"fmt"
	"futureflow/internal/model"
	"strings"
)

// Mailer 发信
type Mailer interface {
	Send(subject, body string) error
}

// MailSink 只转发换月和致命错误，开仓提示按日汇总
type MailSink struct {
	mailer Mailer
}

func NewMailSink(m Mailer) *MailSink {
	return &MailSink{mailer: m}
}

func (s *MailSink) Notify(_ context.Context, e Event) error {
	switch e.Kind {
	case EventRollover:
		return s.mailer.Send(fmt.Sprintf("换月 %s", e.ContinuousID), e.String())
	case EventFatal:
		return s.mailer.Send(fmt.Sprintf("交易暂停 %s", e.ContinuousID), e.String())
	}
	return nil
}

// SendTipsDigest 开仓提示汇总邮件，没有提示时不发送
func (s *MailSink) SendTipsDigest(tips []model.EntryTip) error {
	if len(tips) == 0 {
		return nil
	}
	var b strings.Builder
	for _, t := range tips {
		fmt.Fprintf(&b, "%d %s %s daily=%s price=%.2f volume=%d approved=%t\n",
			t.ID, t.Symbol, t.Direction.Label(), t.DailyTime.Format("2006-01-02"), t.LastPrice, t.Volume, t.NeedTrade)
	}
	return s.mailer.Send(fmt.Sprintf("开仓提示 %d 条", len(tips)), b.String())
}
