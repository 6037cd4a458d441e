package kafka

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// ProducerService Kafka 生产者
// 定义接口，方便测试和替换
type ProducerService interface {
	// Produce 将 v 序列化为 JSON 写入固定主题
	Produce(ctx context.Context, key []byte, v any) error
	Close() error
}

// MessageWriter kafka.Writer 的最小子集
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaProducer struct {
	writer MessageWriter
}

func NewKafkaProducer(brokerURL, topic string) ProducerService {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokerURL),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 同一个 key 进入同一个 Partition，保证单个合约事件有序
		AllowAutoTopicCreation: true,
	})
}

func NewProducerWithWriter(w MessageWriter) ProducerService {
	return &kafkaProducer{writer: w}
}

func (p *kafkaProducer) Produce(ctx context.Context, key []byte, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
