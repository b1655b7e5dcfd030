package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusFansOut(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	jobID := uuid.New()
	b.Publish(context.Background(), Event{Kind: KindStep, JobID: jobID, Step: 3})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, KindStep, e.Kind)
			assert.Equal(t, jobID, e.JobID)
			assert.Equal(t, 3, e.Step)
			assert.False(t, e.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestMemoryBusPublishNeverBlocks(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	_, cancel := b.Subscribe()
	defer cancel()

	// Far more events than the subscriber buffer holds; Publish must not stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Publish(context.Background(), Event{Kind: KindStep, Step: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestMemoryBusCancelStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	b.Publish(context.Background(), Event{Kind: KindJobStatus})
}

func TestMemoryBusCloseClosesSubscribers(t *testing.T) {
	b := NewMemoryBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	require.NoError(t, b.Close())
	_, open := <-ch
	assert.False(t, open)

	// subscribing after close yields a closed channel
	ch2, _ := b.Subscribe()
	_, open = <-ch2
	assert.False(t, open)
}
