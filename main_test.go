package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// slowSubscriber keeps handling its last message for a while after cancellation.
type slowSubscriber struct {
	finished atomic.Bool
}

func (s *slowSubscriber) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	_ = handler(ctx, []byte(topic))
	s.finished.Store(true)
}

func TestStartConsumer_WaitCoversInFlightMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &slowSubscriber{}

	var handled atomic.Int32
	wait := startConsumer(ctx, sub, "orders.fulfillment", "group", func(ctx context.Context, payload []byte) error {
		handled.Add(1)
		return nil
	})

	cancel()
	wait()

	assert.True(t, sub.finished.Load())
	assert.Equal(t, int32(1), handled.Load())
}
