// Package signal is the WebSocket adapter: it upgrades authenticated HTTP
// requests, pumps frames in and out, and translates the wire contract into
// orchestrator calls. It owns the transport resources; state lives elsewhere.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/app/orch"
	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
	"github.com/voxhall/gateway/internal/gateway"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch             *orch.Orchestrator
	MinClientVersion string
	ReadLimit        int64
	PingPeriod       time.Duration
	PongWait         time.Duration
}

func NewController(o *orch.Orchestrator, minVersion string, readLimit int64, pingPeriod, pongWait time.Duration) *Controller {
	return &Controller{
		Orch:             o,
		MinClientVersion: minVersion,
		ReadLimit:        readLimit,
		PingPeriod:       pingPeriod,
		PongWait:         pongWait,
	}
}

// client is one connected user as the pumps see it.
type client struct {
	user   domain.User
	connID core.ConnID
	conn   *wsConn
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	if f == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades an authenticated request to a live session. The auth
// middleware has already verified the bearer token and stored the user.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	user := c.MustGet("user").(domain.User)
	clientVersion := c.Query("version")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	if !gateway.VersionCompatible(clientVersion, ctl.MinClientVersion) {
		log.Warn().Str("module", "signal").Int64("user", int64(user.ID)).
			Str("version", clientVersion).Msg("client version rejected")
		_ = ws.WriteMessage(websocket.TextMessage, gateway.Encode(gateway.ConnectionRejected{
			Type:   gateway.EvConnectionRejected,
			Reason: "unsupported client version",
		}))
		_ = ws.Close()
		return
	}

	cl := &client{
		user:   user,
		connID: core.ConnID(uuid.NewString()),
		conn:   conn,
	}
	log.Info().Str("module", "signal").Int64("user", int64(user.ID)).Str("conn", string(cl.connID)).Msg("new WS connection")

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ctl.Orch.Connect(connCtx, user, cl.connID, conn)

	go ctl.writePump(connCtx, cl)
	go func() {
		ctl.readPump(connCtx, cl)
		ctl.Orch.Disconnect(connCtx, user.ID, cl.connID)
		cancel()
		conn.Close()
	}()
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	_ = c.TrySend(gateway.Encode(v))
}

// sendError maps the error taxonomy onto the error event. Internal faults
// are logged but reported generically; the connection always stays up.
func (ctl *Controller) sendError(cl *client, err error) {
	var msg string
	var ve *domain.ValidationError
	var ae *domain.AuthorizationError
	var nf *domain.NotFoundError
	switch {
	case errors.As(err, &ve):
		msg = ve.Reason
	case errors.As(err, &ae):
		msg = ae.Reason
	case errors.As(err, &nf):
		msg = nf.Error()
	default:
		log.Error().Err(err).Str("module", "signal").Int64("user", int64(cl.user.ID)).Msg("handler error")
		msg = "internal error"
	}
	ctl.sendJSON(cl.conn, gateway.ErrorEvent{Type: gateway.EvError, Message: msg})
}
