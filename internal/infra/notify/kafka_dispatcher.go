package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agrimarket/internal/usecase"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 注文イベントをKafkaへ流す。キーは注文番号（同じ注文は同じパーティション）
type KafkaDispatcher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaDispatcher(brokers []string, topic string, log *zap.Logger) *KafkaDispatcher {
	return newKafkaDispatcher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}, log)
}

func newKafkaDispatcher(w messageWriter, log *zap.Logger) *KafkaDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaDispatcher{writer: w, log: log}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, ev usecase.OrderEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
		Time: ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("write order event: %w", err)
	}

	d.log.Debug("order event published",
		zap.String("event_id", ev.EventID),
		zap.String("type", string(ev.Type)),
		zap.String("order_number", ev.OrderNumber),
	)
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
