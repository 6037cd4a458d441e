package notify

import (
	"context"
	"fmt"
	"futureflow/internal/model"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type EventKind string

const (
	EventTip      EventKind = "entry-tip"
	EventOpened   EventKind = "position-opened"
	EventClosed   EventKind = "position-closed"
	EventRollover EventKind = "rollover"
	EventFatal    EventKind = "fatal"
)

// Event 对外通知，发送失败不影响交易流程
type Event struct {
	Kind         EventKind       `json:"kind"`
	ContinuousID string          `json:"continuous_id"`
	Symbol       string          `json:"symbol"`
	Direction    model.Direction `json:"direction"`
	Price        float64         `json:"price"`
	Volume       int             `json:"volume"`
	Reason       string          `json:"reason"`
	Time         time.Time       `json:"time"`
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s %s %s price=%.2f volume=%d %s",
		e.Kind, e.ContinuousID, e.Symbol, e.Direction.Label(), e.Price, e.Volume, e.Reason)
}

type Sink interface {
	Notify(ctx context.Context, e Event) error
}

// LogSink 写日志
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, e Event) error {
	s.log.Infow(string(e.Kind),
		"continuous_id", e.ContinuousID,
		"symbol", e.Symbol,
		"direction", e.Direction.String(),
		"price", e.Price,
		"volume", e.Volume,
		"reason", e.Reason,
	)
	return nil
}

// Multi 依次通知所有 sink，收集全部错误
type Multi []Sink

func (m Multi) Notify(ctx context.Context, e Event) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Notify(ctx, e))
	}
	return err
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
