package engine

import (
	"context"
	"futureflow/pkg/kafka"

	"github.com/goccy/go-json"
)

// ListenCommands 从 Kafka 主题读取指令，直到 ctx 结束
// 消息体为 JSON 格式的 Command
func (r *Runner) ListenCommands(ctx context.Context, consumer kafka.ConsumerService, topic, groupID string) error {
	msgs, err := consumer.Consume(ctx, topic, groupID)
	if err != nil {
		return err
	}
	go func() {
		for m := range msgs {
			var cmd Command
			if err := json.Unmarshal(m.Value, &cmd); err != nil {
				r.log.Warnw("invalid command message", "topic", topic, "offset", m.Offset, "error", err)
				continue
			}
			if err := r.Submit(ctx, cmd); err != nil {
				r.log.Warnw("command failed", "kind", cmd.Kind, "continuous_id", cmd.ContinuousID, "error", err)
				continue
			}
			r.log.Infow("command applied", "kind", cmd.Kind, "continuous_id", cmd.ContinuousID, "tip_id", cmd.TipID)
		}
	}()
	return nil
}
