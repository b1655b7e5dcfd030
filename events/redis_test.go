package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/config"
)

func newTestRedisBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := NewRedisBus(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, mr
}

func TestRedisBusMirrorsEventsToChannel(t *testing.T) {
	b, mr := newTestRedisBus(t)

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(context.Background(), Channel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(context.Background()) // wait for subscription ack
	require.NoError(t, err)

	jobID := uuid.New()
	b.Publish(context.Background(), Event{Kind: KindAttemptStatus, JobID: jobID, Status: "SUBMITTED"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, KindAttemptStatus, got.Kind)
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, "SUBMITTED", got.Status)
}

func TestRedisBusStillFansOutLocally(t *testing.T) {
	b, _ := newTestRedisBus(t)

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(context.Background(), Event{Kind: KindStep, Step: 1})
	select {
	case e := <-ch:
		assert.Equal(t, 1, e.Step)
	case <-time.After(time.Second):
		t.Fatal("local subscriber did not receive event")
	}
}

func TestNewRedisBusFailsFastOnBadAddr(t *testing.T) {
	_, err := NewRedisBus(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}
