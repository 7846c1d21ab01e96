/*
Package notify publishes change notifications of the planner.

A notification is sent after a plant or care event was created or deleted. The
message key is the resource name, the value is the JSON representation of the
object and the headers carry resource, operation and the request id of the call
which caused the change.

Delivery is best effort. A failing broker never fails the request.
*/
package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/logger"
)

// DefaultTopic is the topic used when none is configured
const DefaultTopic = "plant_events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier is a core.Notifier which writes to a Kafka topic
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
}

// KafkaBuilder is a builder helper for the KafkaNotifier
type KafkaBuilder struct {
	// Brokers is the list of broker addresses, host:port. This is mandatory.
	Brokers []string
	// Topic defaults to DefaultTopic
	Topic string
	// Timeout limits a single write. Defaults to 5 seconds.
	Timeout time.Duration
}

// NewKafka realizes a KafkaNotifier. The writer is asynchronous, errors are logged.
func NewKafka(kb *KafkaBuilder) *KafkaNotifier {
	if len(kb.Brokers) == 0 {
		panic("Brokers are missing")
	}
	topic := kb.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	timeout := kb.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(kb.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           timeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Default().WithError(err).Errorf("failed to deliver %d notifications to %s", len(messages), topic)
			}
		},
	}
	logger.Default().Infof("publishing notifications to kafka topic %s on %v", topic, kb.Brokers)
	return &KafkaNotifier{writer: writer, timeout: timeout}
}

// Notify implements core.Notifier
func (k *KafkaNotifier) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	rlog := logger.FromContext(ctx)
	headers := []kafka.Header{
		{Key: "resource", Value: []byte(resource)},
		{Key: "operation", Value: []byte(operation)},
	}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(requestID)})
	}

	// the request context ends with the response, the write must not
	wctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	err := k.writer.WriteMessages(wctx, kafka.Message{
		Key:     []byte(resource),
		Value:   payload,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		rlog.WithError(err).Errorln("cannot publish notification for", resource, operation)
		return
	}
	rlog.Debugln("published notification for", resource, operation)
}

// Close flushes pending messages and closes the writer
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// Nop is a core.Notifier which drops all notifications
type Nop struct{}

// Notify implements core.Notifier
func (Nop) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	logger.FromContext(ctx).Debugln("notifications disabled, dropping", resource, operation)
}
