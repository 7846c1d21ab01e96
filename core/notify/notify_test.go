package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/logger"
)

type fakeWriter struct {
	mutex    sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaNotifier_Notify(t *testing.T) {
	writer := &fakeWriter{}
	notifier := &KafkaNotifier{writer: writer, timeout: time.Second}

	ctx, _ := logger.ContextWithLogger(context.Background())
	notifier.Notify(ctx, "plant", core.OperationCreate, []byte(`{"id":"1"}`))

	require.Len(t, writer.messages, 1)
	m := writer.messages[0]
	assert.Equal(t, "plant", string(m.Key))
	assert.JSONEq(t, `{"id":"1"}`, string(m.Value))
	assert.Equal(t, "plant", header(m, "resource"))
	assert.Equal(t, "create", header(m, "operation"))
	assert.Equal(t, logger.RequestIDFromContext(ctx), header(m, "request_id"))
	assert.NotEmpty(t, header(m, "request_id"))
}

func TestKafkaNotifier_NoRequestID(t *testing.T) {
	writer := &fakeWriter{}
	notifier := &KafkaNotifier{writer: writer, timeout: time.Second}

	notifier.Notify(context.Background(), "care_event", core.OperationDelete, []byte(`{}`))
	require.Len(t, writer.messages, 1)
	assert.Empty(t, header(writer.messages[0], "request_id"))
	assert.Len(t, writer.messages[0].Headers, 2)
}

func TestKafkaNotifier_ErrorIsSwallowed(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	notifier := &KafkaNotifier{writer: writer, timeout: time.Second}

	assert.NotPanics(t, func() {
		notifier.Notify(context.Background(), "plant", core.OperationCreate, []byte(`{}`))
	})
	assert.Empty(t, writer.messages)

	require.NoError(t, notifier.Close())
	assert.True(t, writer.closed)
}

func TestNewKafka(t *testing.T) {
	assert.Panics(t, func() { NewKafka(&KafkaBuilder{}) })

	notifier := NewKafka(&KafkaBuilder{Brokers: []string{"localhost:9092"}})
	writer, ok := notifier.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, writer.Topic)
	assert.True(t, writer.Async)
	assert.Equal(t, 5*time.Second, notifier.timeout)
	require.NoError(t, notifier.Close())
}

func TestNop(t *testing.T) {
	var notifier core.Notifier = Nop{}
	assert.NotPanics(t, func() {
		notifier.Notify(context.Background(), "plant", core.OperationCreate, nil)
	})
}
