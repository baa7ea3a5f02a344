package router

import "errors"

// Inbound event errors; each is reported to the offending connection only
var (
	ErrMalformedEvent     = errors.New("malformed event")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrInvalidRoom        = errors.New("invalid room id")
	ErrPersonalRoom       = errors.New("personal channels cannot be joined or left")
	ErrNotInRoom          = errors.New("not a member of this room")
	ErrRoomForbidden      = errors.New("not allowed to join this room")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidMessageIDs  = errors.New("messageIds must list 1-500 ids")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrDeliveryFailed     = errors.New("event could not be delivered")
)
