package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type chanReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	fetchErrs []error
	closed    bool
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	r.mu.Unlock()
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *chanReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerCommitsEvenWhenHandlerFails(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 3), fetchErrs: []error{errors.New("broker hiccup")}}
	reader.msgs <- kafka.Message{Offset: 1, Value: []byte("ok")}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte("bad")}
	reader.msgs <- kafka.Message{Offset: 3, Value: []byte("ok")}

	var mu sync.Mutex
	var seen []string
	c := NewConsumer("test", reader, func(_ context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Value))
		if string(msg.Value) == "bad" {
			return errors.New("cannot decode")
		}
		return nil
	})
	c.RetryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	mu.Lock()
	assert.Equal(t, []string{"ok", "bad", "ok"}, seen)
	mu.Unlock()

	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, reader.closed)
}

func TestConsumerRestoresTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "producer")
	want := span.SpanContext().TraceID()
	span.End()

	var headers []kafka.Header
	InjectTraceContext(ctx, &headers)

	reader := &chanReader{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- kafka.Message{Offset: 7, Headers: headers}

	got := make(chan trace.TraceID, 1)
	c := NewConsumer("test", reader, func(ctx context.Context, _ kafka.Message) error {
		got <- trace.SpanContextFromContext(ctx).TraceID()
		return nil
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Start(runCtx) }()

	select {
	case id := <-got:
		assert.Equal(t, want, id)
	case <-time.After(time.Second):
		t.Fatal("message not handled")
	}
}
