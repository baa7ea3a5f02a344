package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"careerforge/internal/logger"
	"careerforge/internal/websocket"
	"careerforge/pkg/types"
)

// deliveryBuffer is the depth of the queue between the bus and the delivery loop
// TECHNICAL DISCOVERY: 1000 buffer absorbs bursts from busy rooms
const deliveryBuffer = 1000

// Hub fans room events out to the connections in the registry
// ARCHITECTURAL DISCOVERY: Publishers hand envelopes to a Bus, and a single delivery goroutine
// drains them in arrival order, so back-to-back events from one sender are never reordered
type Hub struct {
	registry *websocket.Registry
	bus      Bus
	log      *logger.Logger

	deliveries      chan Envelope
	shutdownChannel chan struct{}

	running bool
	mu      sync.RWMutex

	delivered atomic.Int64
	failed    atomic.Int64
}

// Stats counts frames handed to connections since start
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// NewHub creates a new hub
func NewHub(registry *websocket.Registry, bus Bus, log *logger.Logger) *Hub {
	if bus == nil {
		bus = NewLocalBus()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		registry:        registry,
		bus:             bus,
		log:             log.With("component", "hub"),
		deliveries:      make(chan Envelope, deliveryBuffer),
		shutdownChannel: make(chan struct{}),
	}
}

// Start subscribes to the bus and begins delivery
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	if err := h.bus.Subscribe(ctx, h.enqueue); err != nil {
		return fmt.Errorf("subscribe hub to bus: %w", err)
	}
	h.running = true

	h.log.Info("starting message hub")
	go h.run(ctx)
	return nil
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	h.log.Info("stopping message hub")

	// TECHNICAL DISCOVERY: Safe channel close using select to prevent panic
	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	return nil
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Broadcast encodes the event once and publishes it to a room
// An empty excludeConnID includes every member, which is how new-message reaches its sender.
func (h *Hub) Broadcast(ctx context.Context, roomID string, event types.OutboundEvent, excludeConnID string) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}
	if roomID == "" {
		return ErrInvalidRoom
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Event, err)
	}

	return h.bus.Publish(ctx, Envelope{
		RoomID:        roomID,
		Payload:       payload,
		ExcludeConnID: excludeConnID,
	})
}

// NotifyUser targets every connection of a user through the personal channel
func (h *Hub) NotifyUser(ctx context.Context, userID string, event types.OutboundEvent) error {
	return h.Broadcast(ctx, types.PersonalRoom(userID), event, "")
}

func (h *Hub) Stats() Stats {
	return Stats{Delivered: h.delivered.Load(), Failed: h.failed.Load()}
}

// enqueue is the bus subscriber; it applies backpressure instead of dropping
func (h *Hub) enqueue(env Envelope) {
	select {
	case h.deliveries <- env:
	case <-h.shutdownChannel:
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context) {
	defer h.log.Info("hub processing stopped")

	for {
		select {
		case env := <-h.deliveries:
			h.deliver(env)
		case <-h.shutdownChannel:
			return
		case <-ctx.Done():
			return
		}
	}
}

// deliver hands the encoded frame to each current member of the room
// FUNCTIONAL DISCOVERY: Membership is read at delivery time; a member that left in between
// does not receive the event
func (h *Hub) deliver(env Envelope) {
	for _, member := range h.registry.RoomMembers(env.RoomID) {
		if member.ID() == env.ExcludeConnID {
			continue
		}
		if err := member.Send(env.Payload); err != nil {
			h.failed.Add(1)
			h.log.Debug("delivery failed", "room_id", env.RoomID, "connection_id", member.ID(), "error", err)
			continue
		}
		h.delivered.Add(1)
	}
}
