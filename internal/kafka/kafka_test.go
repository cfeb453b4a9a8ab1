package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	got    []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.got))
	for _, m := range w.got {
		out = append(out, string(m.Key))
	}
	return out
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8)
	p.Start(context.Background())

	assert.True(t, p.Publish([]byte("a"), []byte("1")))
	assert.True(t, p.Publish([]byte("b"), []byte("2"), kafka.Header{Key: "event_type", Value: []byte("X")}))
	p.Close()
	p.Close()
	p.WaitClosed()

	assert.Equal(t, []string{"a", "b"}, w.keys())
	assert.True(t, w.closed)
	assert.False(t, p.Publish([]byte("c"), nil), "publish after close is refused")
}

func TestProducerStopsOnContext(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8)
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, p.Publish([]byte("a"), nil))
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() { p.WaitClosed(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop")
	}
	assert.Equal(t, []string{"a"}, w.keys())
	p.Close()
}

func TestProducerDropsWhenFull(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1)
	assert.True(t, p.Publish([]byte("a"), nil))
	assert.False(t, p.Publish([]byte("b"), nil))
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerCommitsOnlySuccess(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 1)

	var mu sync.Mutex
	seen := 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			seen++
			mu.Unlock()
			if m.Offset == 2 {
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 3
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []int64{1, 3}, r.commits())
	assert.True(t, r.closed)
}
