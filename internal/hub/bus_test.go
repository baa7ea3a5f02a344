package hub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerforge/internal/logger"
	"careerforge/internal/websocket"
	"careerforge/pkg/types"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBus_RelaysAcrossInstances(t *testing.T) {
	client := newRedisClient(t)

	// Two gateway instances, each with its own registry, sharing one relay channel
	registryA, registryB := websocket.NewRegistry(), websocket.NewRegistry()
	a, b := newRecorder("c1", "u1"), newRecorder("c2", "u2")
	joinAll(t, registryA, "R1", a)
	joinAll(t, registryB, "R1", b)

	busA := NewRedisBus(client, "", logger.Nop())
	busB := NewRedisBus(client, "", logger.Nop())
	t.Cleanup(func() { _ = busA.Close(); _ = busB.Close() })

	hubA := startHub(t, registryA, busA)
	startHub(t, registryB, busB)

	require.NoError(t, hubA.Broadcast(context.Background(), "R1",
		types.OutboundEvent{Event: types.EventNewMessage, Data: "hello"}, ""))

	require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, types.EventNewMessage, b.events()[0].Event)
	assert.JSONEq(t, `"hello"`, string(b.events()[0].Data))
}

func TestRedisBus_DoubleSubscribeRejected(t *testing.T) {
	bus := NewRedisBus(newRedisClient(t), "test:relay", logger.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	ctx := context.Background()
	require.NoError(t, bus.Subscribe(ctx, func(Envelope) {}))
	assert.Error(t, bus.Subscribe(ctx, func(Envelope) {}))
}

func TestRedisBus_CloseIsIdempotent(t *testing.T) {
	bus := NewRedisBus(newRedisClient(t), "test:relay", logger.Nop())
	require.NoError(t, bus.Subscribe(context.Background(), func(Envelope) {}))

	require.NoError(t, bus.Close())
	assert.NoError(t, bus.Close())
}

func TestRedisBus_PublishFailureWrapped(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, "", logger.Nop())
	err := bus.Publish(context.Background(), Envelope{RoomID: "R1", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrRelayUnavailable)
}
