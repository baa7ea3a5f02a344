package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerforge/internal/logger"
	"careerforge/internal/websocket"
	"careerforge/pkg/types"
)

// recorder is a websocket.Client that keeps every frame it is sent
type recorder struct {
	id        string
	principal types.Principal
	fail      bool

	mu     sync.Mutex
	frames []types.InboundEvent
}

func newRecorder(id, userID string) *recorder {
	return &recorder{id: id, principal: types.Principal{UserID: userID, Role: types.RoleStudent}}
}

func (r *recorder) ID() string                 { return r.id }
func (r *recorder) Principal() types.Principal { return r.principal }

func (r *recorder) Send(payload []byte) error {
	if r.fail {
		return websocket.ErrSlowConsumer
	}
	var ev types.InboundEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, ev)
	return nil
}

func (r *recorder) events() []types.InboundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.InboundEvent(nil), r.frames...)
}

func (r *recorder) count() int {
	return len(r.events())
}

func joinAll(t *testing.T, registry *websocket.Registry, room string, clients ...*recorder) {
	t.Helper()
	for _, c := range clients {
		require.NoError(t, registry.Register(c))
		_, err := registry.Join(c, room)
		require.NoError(t, err)
	}
}

func startHub(t *testing.T, registry *websocket.Registry, bus Bus) *Hub {
	t.Helper()
	h := NewHub(registry, bus, logger.Nop())
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func TestHub_StartStop(t *testing.T) {
	h := NewHub(websocket.NewRegistry(), NewLocalBus(), logger.Nop())
	ctx := context.Background()

	require.NoError(t, h.Start(ctx))
	assert.ErrorIs(t, h.Start(ctx), ErrHubAlreadyRunning)

	require.NoError(t, h.Stop())
	assert.ErrorIs(t, h.Stop(), ErrHubNotRunning)
}

func TestHub_BroadcastRequiresRunningHub(t *testing.T) {
	h := NewHub(websocket.NewRegistry(), nil, logger.Nop())
	err := h.Broadcast(context.Background(), "R1", types.OutboundEvent{Event: types.EventNewMessage}, "")
	assert.ErrorIs(t, err, ErrHubNotRunning)
}

func TestHub_BroadcastIncludesSenderUnlessExcluded(t *testing.T) {
	registry := websocket.NewRegistry()
	a, b := newRecorder("c1", "u1"), newRecorder("c2", "u2")
	joinAll(t, registry, "R1", a, b)
	h := startHub(t, registry, NewLocalBus())
	ctx := context.Background()

	require.NoError(t, h.Broadcast(ctx, "R1", types.OutboundEvent{Event: types.EventNewMessage, Data: "hello"}, ""))
	require.NoError(t, h.Broadcast(ctx, "R1", types.OutboundEvent{Event: types.EventUserTyping}, a.ID()))

	require.Eventually(t, func() bool { return b.count() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return a.count() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, types.EventNewMessage, a.events()[0].Event)
	assert.Equal(t, types.EventUserTyping, b.events()[1].Event)
	assert.Equal(t, int64(3), h.Stats().Delivered)
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	registry := websocket.NewRegistry()
	a, b := newRecorder("c1", "u1"), newRecorder("c2", "u2")
	joinAll(t, registry, "R1", a)
	joinAll(t, registry, "R2", b)
	h := startHub(t, registry, NewLocalBus())

	require.NoError(t, h.Broadcast(context.Background(), "R1", types.OutboundEvent{Event: types.EventNewMessage}, ""))
	require.Eventually(t, func() bool { return a.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.count())
}

func TestHub_PreservesSenderOrder(t *testing.T) {
	registry := websocket.NewRegistry()
	receiver := newRecorder("c2", "u2")
	joinAll(t, registry, "R1", receiver)
	h := startHub(t, registry, NewLocalBus())

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, h.Broadcast(context.Background(), "R1",
			types.OutboundEvent{Event: types.EventNewMessage, Data: fmt.Sprintf("m%03d", i)}, ""))
	}

	require.Eventually(t, func() bool { return receiver.count() == n }, 2*time.Second, 5*time.Millisecond)
	for i, ev := range receiver.events() {
		var content string
		require.NoError(t, json.Unmarshal(ev.Data, &content))
		assert.Equal(t, fmt.Sprintf("m%03d", i), content)
	}
}

func TestHub_NotifyUserReachesEveryConnection(t *testing.T) {
	registry := websocket.NewRegistry()
	phone, laptop, other := newRecorder("c1", "u1"), newRecorder("c2", "u1"), newRecorder("c3", "u2")
	joinAll(t, registry, types.PersonalRoom("u1"), phone, laptop)
	joinAll(t, registry, types.PersonalRoom("u2"), other)
	h := startHub(t, registry, NewLocalBus())

	require.NoError(t, h.NotifyUser(context.Background(), "u1", types.OutboundEvent{Event: types.EventQuizCompleted}))

	require.Eventually(t, func() bool { return phone.count() == 1 && laptop.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, other.count())
}

func TestHub_FailedSendDoesNotStopFanOut(t *testing.T) {
	registry := websocket.NewRegistry()
	broken, healthy := newRecorder("c1", "u1"), newRecorder("c2", "u2")
	broken.fail = true
	joinAll(t, registry, "R1", broken, healthy)
	h := startHub(t, registry, NewLocalBus())

	require.NoError(t, h.Broadcast(context.Background(), "R1", types.OutboundEvent{Event: types.EventNewMessage}, ""))
	require.Eventually(t, func() bool { return healthy.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
}

func TestLocalBus_Lifecycle(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	assert.ErrorIs(t, bus.Publish(ctx, Envelope{RoomID: "R1"}), ErrNotSubscribed)

	var got []Envelope
	require.NoError(t, bus.Subscribe(ctx, func(env Envelope) { got = append(got, env) }))
	require.NoError(t, bus.Publish(ctx, Envelope{RoomID: "R1"}))
	assert.Len(t, got, 1)

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(ctx, Envelope{RoomID: "R1"}), ErrBusClosed)
}
