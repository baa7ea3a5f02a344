package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"careerforge/internal/logger"
)

// DefaultRelayChannel is the Redis pub/sub channel shared by every gateway instance
const DefaultRelayChannel = "careerforge:relay"

// Envelope is one fan-out request travelling over a Bus
// ARCHITECTURAL DISCOVERY: The payload is encoded once by the publisher, so every receiving
// instance forwards the same bytes to each member without re-marshalling
type Envelope struct {
	RoomID        string          `json:"room_id"`
	Payload       json.RawMessage `json:"payload"`
	ExcludeConnID string          `json:"exclude_conn_id,omitempty"`
}

// Bus carries envelopes from publishers to the hub delivery loop
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, handler func(Envelope)) error
	Close() error
}

// LocalBus delivers envelopes synchronously inside one process
type LocalBus struct {
	mu      sync.RWMutex
	handler func(Envelope)
	closed  bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	if b.handler == nil {
		return ErrNotSubscribed
	}
	b.handler(env)
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, handler func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.handler = handler
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handler = nil
	return nil
}

// RedisBus relays envelopes through Redis pub/sub so several gateway instances share rooms
// ARCHITECTURAL DISCOVERY: A publishing instance also receives its own envelopes back from
// Redis; local delivery happens only on that path so every instance sees one ordered stream
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	log     *logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisBus(client redis.UniversalClient, channel string, log *logger.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		log:     log.With("component", "relay", "channel", channel),
	}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRelayUnavailable, err)
	}
	return nil
}

// Subscribe confirms the subscription, then forwards from a single goroutine
func (b *RedisBus) Subscribe(ctx context.Context, handler func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return fmt.Errorf("relay already subscribed to %s", b.channel)
	}

	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("%w: %w", ErrRelayUnavailable, err)
	}

	b.pubsub = ps
	b.done = make(chan struct{})
	go b.forward(ps.Channel(), handler, b.done)

	b.log.Info("relay subscribed")
	return nil
}

func (b *RedisBus) forward(messages <-chan *redis.Message, handler func(Envelope), done chan struct{}) {
	defer close(done)

	for msg := range messages {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Warn("dropping malformed relay envelope", "error", err)
			continue
		}
		handler(env)
	}
}

// Close unsubscribes and waits for the forwarder to exit
func (b *RedisBus) Close() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
