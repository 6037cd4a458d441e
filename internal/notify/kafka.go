package notify

import (
	"context"
	"futureflow/pkg/kafka"
)

// KafkaSink 所有事件以 JSON 写入 Kafka，key 为主连合约 id
type KafkaSink struct {
	producer kafka.ProducerService
}

func NewKafkaSink(producer kafka.ProducerService) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Notify(ctx context.Context, e Event) error {
	return s.producer.Produce(ctx, []byte(e.ContinuousID), e)
}
