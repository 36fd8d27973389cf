package kafka

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

// fakeReader serves queued messages and then blocks until the context ends.
type fakeReader struct {
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestProducer_Publish(t *testing.T) {
	writer := &MockWriter{}
	p := &Producer{writer: writer, logger: quietLogger()}
	ctx := context.Background()

	writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && msgs[0].Topic == "notifications" && string(msgs[0].Key) == "b-1" && string(msgs[0].Value) == `{"a":1}`
	})).Return(nil).Once()
	require.NoError(t, p.Publish(ctx, "notifications", "b-1", []byte(`{"a":1}`)))

	writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("leader not available")).Once()
	err := p.Publish(ctx, "notifications", "b-1", []byte(`{}`))
	assert.ErrorContains(t, err, "leader not available")

	writer.On("Close").Return(nil).Once()
	assert.NoError(t, p.Close())
	writer.AssertExpectations(t)
}

func TestProducer_CheckConnection_NoBrokers(t *testing.T) {
	p := &Producer{logger: quietLogger()}
	assert.Error(t, p.CheckConnection(context.Background()))
}

func TestConsumer_Consume(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Key: []byte("a"), Value: []byte("1"), Offset: 10},
		{Key: []byte("b"), Value: []byte("2"), Offset: 11},
	}}
	c := &Consumer{reader: reader, logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	err := c.Consume(ctx, func(_ context.Context, key string, payload []byte) error {
		seen = append(seen, key+"="+string(payload))
		if key == "b" {
			cancel()
			return errors.New("handler failed")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2"}, seen)
	assert.Equal(t, []int64{10, 11}, reader.committed)
}
