package events

import (
	"context"
	"encoding/json"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSink forwards events to a topic for consumers outside this process.
// Writes are asynchronous; failures are logged and never reach the caller.
type KafkaSink struct {
	writer *kafkago.Writer
	log    *zap.SugaredLogger
}

func NewKafkaSink(brokers []string, topic string, log *zap.SugaredLogger) *KafkaSink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				log.Errorw("kafka delivery failed", "count", len(messages), "error", err)
			}
		},
	}
	return &KafkaSink{writer: w, log: log}
}

// Handle is a Bus subscriber.
func (k *KafkaSink) Handle(ctx context.Context, e Event) {
	msg, err := record(e)
	if err != nil {
		k.log.Errorw("unable to encode event", "type", e.Type, "error", err)
		return
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Errorw("unable to enqueue event", "type", e.Type, "error", err)
	}
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

// record keys conversation events by conversation so a partition sees them in
// commit order, and notification events by their target.
func record(e Event) (kafkago.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, err
	}
	key := e.ConversationKey
	if key == "" && e.Notification != nil {
		key = "user:" + strconv.FormatUint(uint64(e.Notification.TargetID), 10)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: b,
		Time:  e.At,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}, nil
}
