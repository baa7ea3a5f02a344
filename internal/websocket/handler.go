package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"careerforge/internal/logger"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// bearerProtocol is the Sec-WebSocket-Protocol entry that precedes a credential
// FUNCTIONAL DISCOVERY: Browsers cannot set headers on a websocket handshake, so clients send
// "bearer, <token>" as subprotocols and the server echoes "bearer"
const bearerProtocol = "bearer"

// EventRouter consumes inbound frames and connection teardown
// ARCHITECTURAL DISCOVERY: Defined here so the handler stays free of routing logic and the
// router package can depend on websocket without a cycle
type EventRouter interface {
	Route(ctx context.Context, c Client, raw []byte)
	Disconnect(ctx context.Context, c Client)
}

// HandlerConfig tunes heartbeat and frame limits
type HandlerConfig struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
}

// DefaultHandlerConfig returns the heartbeat timings used in production
// TECHNICAL DISCOVERY: 60-second read deadline with 30-second ping interval
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageBytes: 2 * types.MaxContentBytes,
	}
}

// Handler authenticates handshakes and runs the per-connection read pump
type Handler struct {
	verifier interfaces.TokenVerifier
	registry *Registry
	router   EventRouter
	config   HandlerConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(verifier interfaces.TokenVerifier, registry *Registry, router EventRouter, config HandlerConfig, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	defaults := DefaultHandlerConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = defaults.MaxMessageBytes
	}
	return &Handler{
		verifier: verifier,
		registry: registry,
		router:   router,
		config:   config,
		upgrader: websocket.Upgrader{
			// FUNCTIONAL DISCOVERY: Origin is not a trust boundary here; the credential is
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{bearerProtocol},
		},
		log: log.With("component", "gateway"),
	}
}

// ExtractCredential finds the bearer credential in a handshake request
// Order: query "token", Authorization header, Sec-WebSocket-Protocol entry after "bearer".
func ExtractCredential(r *http.Request) (string, error) {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}

	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}

	protocols := websocket.Subprotocols(r)
	for i, p := range protocols {
		if strings.EqualFold(p, bearerProtocol) && i+1 < len(protocols) {
			return protocols[i+1], nil
		}
	}

	return "", ErrMissingCredential
}

// HandleWebSocket verifies the credential, then upgrades
// ARCHITECTURAL DISCOVERY: Verification before upgrade means a rejected client never holds a
// socket and no room semantics can apply to it
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	credential, err := ExtractCredential(r)
	if err == nil {
		var principal types.Principal
		principal, err = h.verifier.Verify(r.Context(), credential)
		if err == nil {
			h.accept(w, r, principal)
			return
		}
	}

	h.log.Info("handshake rejected", "remote", r.RemoteAddr, "error", err)
	writeAuthError(w)
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "authentication_error",
		"message": interfaces.ErrAuthentication.Error(),
	})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, principal types.Principal) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", principal.UserID, "error", err)
		return
	}

	wsConn := NewConnection(conn, principal, h.log)

	// STEP 1: register, then auto-subscribe the personal channel
	if err := h.registry.Register(wsConn); err != nil {
		h.log.Error("failed to register connection", "user_id", principal.UserID, "error", err)
		_ = wsConn.Close()
		return
	}
	if _, err := h.registry.Join(wsConn, types.PersonalRoom(principal.UserID)); err != nil {
		h.log.Error("failed to join personal channel", "user_id", principal.UserID, "error", err)
		h.registry.Unregister(wsConn)
		_ = wsConn.Close()
		return
	}

	h.log.Info("connection authenticated", "connection_id", wsConn.ID(), "user_id", principal.UserID,
		"role", principal.Role, "user_connections", len(h.registry.UserConnections(principal.UserID)))

	// STEP 2: read pump owns the rest of the lifecycle
	go h.handleConnection(wsConn)
}

// handleConnection manages the connection lifecycle with heartbeat monitoring
// FUNCTIONAL DISCOVERY: Frames are routed synchronously in read order, which is what keeps one
// sender's events ordered within a room
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.router.Disconnect(context.Background(), conn)
		_ = conn.Close()
		h.log.Info("connection closed", "connection_id", conn.ID(), "user_id", conn.Principal().UserID)
	}()

	ws := conn.conn
	ws.SetReadLimit(h.config.MaxMessageBytes)
	if err := ws.SetReadDeadline(time.Now().Add(h.config.PongWait)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, ErrConnectionClosed) {
				h.log.Debug("read failed", "connection_id", conn.ID(), "error", err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.router.Route(conn.Context(), conn, data)
		}
	}
}

// pingLoop sends heartbeats until the connection closes
// TECHNICAL DISCOVERY: WriteControl is safe to call concurrently with the writer goroutine
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.ctx.Done():
			return
		}
	}
}
