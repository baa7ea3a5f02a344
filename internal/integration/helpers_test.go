package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"careerforge/internal/app"
	"careerforge/internal/auth/authtest"
	"careerforge/internal/config"
	"careerforge/pkg/types"
)

const testSecret = "integration-secret-0123456789"

// node is one running engine instance
type node struct {
	app  *app.Application
	base string
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "careerforge.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Auth.Secret = testSecret
	cfg.Log.Mode = "development"
	cfg.Log.Level = "error"
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *node {
	t.Helper()
	application, err := app.NewApplication(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})
	return &node{app: application, base: application.Addr()}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func token(userID string, role types.Role) string {
	return authtest.Token([]byte(testSecret), userID, role)
}

// client is a websocket participant with a decoded read helper
type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (n *node) dial(t *testing.T, userID string, role types.Role) *client {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+n.base+"/ws?token="+token(userID, role), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(event string, data interface{}) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(types.InboundEvent{Event: event, Data: raw}))
}

// received is an outbound event with its payload left raw for the caller to decode
type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// next reads until an event named want arrives, skipping others
func (c *client) next(want string) received {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(c.t, c.conn.SetReadDeadline(deadline))
	for {
		var ev received
		require.NoError(c.t, c.conn.ReadJSON(&ev), "waiting for %s", want)
		if ev.Event == want {
			return ev
		}
	}
}

// join enters a room and waits until the membership is effective
// FUNCTIONAL DISCOVERY: join has no acknowledgement; a read receipt is broadcast to the whole
// room including the sender, so seeing our own receipt proves we are a member
func (c *client) join(roomID string) {
	c.t.Helper()
	c.send(types.EventJoinRoom, types.RoomPayload{RoomID: roomID})
	c.send(types.EventMarkRead, types.MarkReadPayload{RoomID: roomID, MessageIDs: []string{"sync"}})
	c.next(types.EventMessagesRead)
}

func (n *node) call(t *testing.T, method, path, bearer string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, "http://"+n.base+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
