package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careerforge/internal/logger"
	"careerforge/internal/websocket"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

const (
	defaultMessageType = "text"
	maxMessageTypeLen  = 32
	maxReadReceiptIDs  = 500
)

// Publisher fans an encoded event out to a room
type Publisher interface {
	Broadcast(ctx context.Context, roomID string, event types.OutboundEvent, excludeConnID string) error
}

// Options configures optional router behaviour
type Options struct {
	// MessagesPerMinute limits send-message per user; 0 disables limiting
	MessagesPerMinute int
	// Authorizer, when set, is consulted on every join-room
	Authorizer interfaces.RoomAuthorizer
}

// Router dispatches inbound gateway events
// ARCHITECTURAL DISCOVERY: Pure relay logic; membership lives in the registry and delivery in
// the publisher, so the router owns only validation and event shaping
type Router struct {
	registry    *websocket.Registry
	publisher   Publisher
	authorizer  interfaces.RoomAuthorizer
	rateLimiter *RateLimiter
	log         *logger.Logger
	now         func() time.Time
}

// NewRouter creates a new event router
func NewRouter(registry *websocket.Registry, publisher Publisher, opts Options, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	r := &Router{
		registry:   registry,
		publisher:  publisher,
		authorizer: opts.Authorizer,
		log:        log.With("component", "router"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if opts.MessagesPerMinute > 0 {
		r.rateLimiter = NewRateLimiter(opts.MessagesPerMinute)
	}
	return r
}

// StartCleanup prunes idle rate limiter entries until ctx is cancelled
func (r *Router) StartCleanup(ctx context.Context, interval time.Duration) {
	if r.rateLimiter == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.rateLimiter.Cleanup(); n > 0 {
					r.log.Debug("rate limiter entries pruned", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Route parses one inbound frame and dispatches it
// FUNCTIONAL DISCOVERY: Failures become an error event on the sender's connection and are
// never broadcast to the room
func (r *Router) Route(ctx context.Context, c websocket.Client, raw []byte) {
	var in types.InboundEvent
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		r.reject(c, "", ErrMalformedEvent)
		return
	}

	var err error
	switch in.Event {
	case types.EventJoinRoom:
		err = r.joinRoom(ctx, c, in.Data)
	case types.EventLeaveRoom:
		err = r.leaveRoom(ctx, c, in.Data)
	case types.EventSendMessage:
		err = r.sendMessage(ctx, c, in.Data)
	case types.EventTypingStart:
		err = r.typing(ctx, c, in.Data, types.EventUserTyping)
	case types.EventTypingStop:
		err = r.typing(ctx, c, in.Data, types.EventUserStopTyping)
	case types.EventMarkRead:
		err = r.markRead(ctx, c, in.Data)
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		r.reject(c, in.Event, err)
	}
}

// Disconnect releases every membership and tells the remaining members
func (r *Router) Disconnect(ctx context.Context, c websocket.Client) {
	principal := c.Principal()
	for _, roomID := range r.registry.Unregister(c) {
		if types.IsPersonalRoom(roomID) {
			continue
		}
		if err := r.publisher.Broadcast(ctx, roomID, r.presence(types.EventUserLeft, roomID, principal), ""); err != nil {
			r.log.Warn("failed to announce departure", "room_id", roomID, "user_id", principal.UserID, "error", err)
		}
	}
}

func (r *Router) joinRoom(ctx context.Context, c websocket.Client, data json.RawMessage) error {
	var p types.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := validateRoom(p.RoomID); err != nil {
		return err
	}
	if types.IsPersonalRoom(p.RoomID) {
		return ErrPersonalRoom
	}

	principal := c.Principal()
	if r.authorizer != nil {
		if err := r.authorizer.AuthorizeJoin(ctx, principal, p.RoomID); err != nil {
			r.log.Info("room join denied", "room_id", p.RoomID, "user_id", principal.UserID, "error", err)
			return ErrRoomForbidden
		}
	}

	added, err := r.registry.Join(c, p.RoomID)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	return r.broadcast(ctx, p.RoomID, r.presence(types.EventUserJoined, p.RoomID, principal), c.ID())
}

func (r *Router) leaveRoom(ctx context.Context, c websocket.Client, data json.RawMessage) error {
	var p types.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := validateRoom(p.RoomID); err != nil {
		return err
	}
	if types.IsPersonalRoom(p.RoomID) {
		return ErrPersonalRoom
	}
	if !r.registry.Leave(c, p.RoomID) {
		return ErrNotInRoom
	}
	return r.broadcast(ctx, p.RoomID, r.presence(types.EventUserLeft, p.RoomID, c.Principal()), "")
}

// sendMessage relays chat content to every member, the sender included
// FUNCTIONAL DISCOVERY: The relay is a live preview only; durable history goes through the
// session log over HTTP and may land before or after this event
func (r *Router) sendMessage(ctx context.Context, c websocket.Client, data json.RawMessage) error {
	var p types.SendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := r.requireMember(c, p.RoomID); err != nil {
		return err
	}

	if strings.TrimSpace(p.Content) == "" {
		return types.ErrEmptyContent
	}
	if len(p.Content) > types.MaxContentBytes {
		return types.ErrContentTooLarge
	}
	if p.Type == "" {
		p.Type = defaultMessageType
	}
	if len(p.Type) > maxMessageTypeLen {
		return ErrInvalidMessageType
	}

	principal := c.Principal()
	if r.rateLimiter != nil && !r.rateLimiter.Allow(principal.UserID) {
		return ErrRateLimitExceeded
	}

	relayed := types.RelayedMessage{
		ID:         uuid.New().String(),
		RoomID:     p.RoomID,
		SenderID:   principal.UserID,
		SenderRole: principal.Role,
		Content:    p.Content,
		Type:       p.Type,
		Timestamp:  r.now(),
	}
	return r.broadcast(ctx, p.RoomID, types.OutboundEvent{Event: types.EventNewMessage, Data: relayed}, "")
}

func (r *Router) typing(ctx context.Context, c websocket.Client, data json.RawMessage, outbound string) error {
	var p types.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := r.requireMember(c, p.RoomID); err != nil {
		return err
	}
	return r.broadcast(ctx, p.RoomID, r.presence(outbound, p.RoomID, c.Principal()), c.ID())
}

func (r *Router) markRead(ctx context.Context, c websocket.Client, data json.RawMessage) error {
	var p types.MarkReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := r.requireMember(c, p.RoomID); err != nil {
		return err
	}
	if len(p.MessageIDs) == 0 || len(p.MessageIDs) > maxReadReceiptIDs {
		return ErrInvalidMessageIDs
	}

	receipt := types.ReadReceipt{
		RoomID:     p.RoomID,
		UserID:     c.Principal().UserID,
		MessageIDs: p.MessageIDs,
		Timestamp:  r.now(),
	}
	return r.broadcast(ctx, p.RoomID, types.OutboundEvent{Event: types.EventMessagesRead, Data: receipt}, "")
}

func (r *Router) requireMember(c websocket.Client, roomID string) error {
	if err := validateRoom(roomID); err != nil {
		return err
	}
	if !r.registry.IsMember(c, roomID) {
		return ErrNotInRoom
	}
	return nil
}

func (r *Router) presence(event, roomID string, principal types.Principal) types.OutboundEvent {
	return types.OutboundEvent{
		Event: event,
		Data: types.PresenceNotice{
			RoomID:    roomID,
			UserID:    principal.UserID,
			Role:      principal.Role,
			Timestamp: r.now(),
		},
	}
}

func (r *Router) broadcast(ctx context.Context, roomID string, event types.OutboundEvent, excludeConnID string) error {
	if err := r.publisher.Broadcast(ctx, roomID, event, excludeConnID); err != nil {
		r.log.Error("broadcast failed", "room_id", roomID, "event", event.Event, "error", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// reject sends an error event to the offending connection
func (r *Router) reject(c websocket.Client, event string, err error) {
	payload, marshalErr := json.Marshal(types.OutboundEvent{
		Event: types.EventError,
		Data:  types.ErrorNotice{Event: event, Message: clientMessage(err)},
	})
	if marshalErr != nil {
		return
	}
	if sendErr := c.Send(payload); sendErr != nil {
		r.log.Debug("failed to deliver error event", "connection_id", c.ID(), "error", sendErr)
	}
}

// clientMessage keeps internal failure detail off the wire
func clientMessage(err error) string {
	for _, known := range []error{
		ErrMalformedEvent, ErrUnknownEvent, ErrInvalidRoom, ErrPersonalRoom, ErrNotInRoom,
		ErrRoomForbidden, ErrInvalidMessageType, ErrInvalidMessageIDs, ErrRateLimitExceeded,
		ErrDeliveryFailed, types.ErrEmptyContent, types.ErrContentTooLarge,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return ErrMalformedEvent
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrMalformedEvent
	}
	return nil
}

func validateRoom(roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return ErrInvalidRoom
	}
	return nil
}
