package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	b, err := encode([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encode("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encode(map[string]int{"risk": 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk":42}`, string(b))

	_, err = encode(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Lz4, parseCompression("lz4"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 6; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.LessOrEqual(t, d, max)
		assert.GreaterOrEqual(t, d, min/2)
	}
	// attempt 3 -> 400ms ceiling
	d := backoffWithJitter(min, max, 3)
	assert.GreaterOrEqual(t, d, 200*time.Millisecond)
	assert.LessOrEqual(t, d, 400*time.Millisecond)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer(nil)
	assert.Error(t, err)
}

func TestConsumerOptions(t *testing.T) {
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerGroupID("g1"),
		WithConsumerWorkers(0),
		WithConsumerBufferSize(32),
		WithConsumerRetry(5, time.Millisecond, 10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, "g1", c.cfg.GroupID)
	assert.Equal(t, 1, c.cfg.WorkerCount)
	assert.Equal(t, 32, cap(c.msgCh))
	assert.Equal(t, 5, c.cfg.RetryMax)
	assert.Nil(t, c.dlq)
	assert.Error(t, c.Start(), "start without handlers")
}

type countingHandler struct {
	calls int
	fail  int
}

func (h *countingHandler) Topic() string { return "in" }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fail {
		return errors.New("boom")
	}
	return nil
}

func TestHandleWithRetry(t *testing.T) {
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)

	h := &countingHandler{fail: 2}
	attempts, err := c.handleWithRetry(h, &message{topic: "in"})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	h = &countingHandler{fail: 10}
	attempts, err = c.handleWithRetry(h, &message{topic: "in"})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, attempts)
}

func TestTraceHook(t *testing.T) {
	var got string
	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	c.SetHook(TraceHook(nil))

	h := handlerFunc(func(ctx context.Context, _ []byte) error {
		got = TraceIDFrom(ctx)
		return nil
	})
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	_, err = c.handleWithRetry(h, &message{topic: "in", km: km})
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestHookFuncsNilSafe(t *testing.T) {
	var h HookFuncs
	ctx := context.Background()
	_, _, data, err := h.BeforeHandle(ctx, "t", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	h.AfterHandle(ctx, "t", kafka.Message{}, nil, nil)
	h.OnError(ctx, "t", kafka.Message{}, nil, errors.New("x"))
}

type handlerFunc func(context.Context, []byte) error

func (f handlerFunc) Topic() string                              { return "in" }
func (f handlerFunc) Handle(ctx context.Context, b []byte) error { return f(ctx, b) }
