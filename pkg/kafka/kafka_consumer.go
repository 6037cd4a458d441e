package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumerService 消费 Kafka 消息的通用接口
type ConsumerService interface {
	// Consume 启动一个协程消费指定主题，将消息发送到返回的通道，ctx 结束时关闭通道
	Consume(ctx context.Context, topic string, groupID string) (<-chan kafka.Message, error)
}

type kafkaConsumer struct {
	brokerURL string
	log       *zap.SugaredLogger
}

func NewKafkaConsumer(brokerURL string, log *zap.SugaredLogger) ConsumerService {
	return &kafkaConsumer{
		brokerURL: brokerURL,
		log:       log,
	}
}

func (c *kafkaConsumer) Consume(ctx context.Context, topic string, groupID string) (<-chan kafka.Message, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{c.brokerURL},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
		MaxAttempts:    3,
	})
	// 指令量很小，不丢弃消息，通道满时阻塞读取
	outputCh := make(chan kafka.Message, 16)

	go func() {
		defer close(outputCh)
		defer r.Close()
		for {
			m, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Errorw("kafka read error", "topic", topic, "error", err)
				time.Sleep(time.Second)
				continue
			}
			select {
			case outputCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	return outputCh, nil
}
