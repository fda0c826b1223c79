// Package signal is the websocket adapter for the coordination layer:
// it owns the socket, the pumps, and the message dispatch; every
// operation is delegated to the orchestrator.
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

	"github.com/atriumspace/atrium/internal/app"
	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch       *app.Orchestrator
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(orch *app.Orchestrator, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{Orch: orch, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
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

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection and binds a session. The user id
// travels as a query parameter; authentication is a one-time existence
// lookup against the directory. A session that fails it stays connected
// but every room/media/data operation is refused.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	if sid == "" {
		sid = uuid.NewString()
	}
	log.Info().Str("module", "signal").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	sess := core.NewSession(core.SessionID(sid), conn)
	ctl.authenticate(ctx, sess, c.Query("userId"))

	ctx, cancel := context.WithCancel(ctx)
	// Closing the conn is part of the cancel path: it unblocks the read
	// pump's ReadMessage, whose deferred disconnect runs the room
	// teardown. Cancelling the context alone would leave the socket open
	// until the client sent another frame.
	ctl.Orch.Registry.Bind(sess, func() {
		cancel()
		conn.Close()
	})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sess, conn)
}

func (ctl *Controller) authenticate(ctx context.Context, sess *core.Session, rawUserID string) {
	user, err := domain.NewUser(rawUserID, "")
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("invalid userId")
		return
	}
	exists, err := ctl.Orch.Directory.Exists(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("directory lookup")
		return
	}
	if !exists {
		log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", rawUserID).Msg("unknown user, session stays unauthenticated")
		return
	}
	if name, err := ctl.Orch.Directory.DisplayName(ctx, user.ID); err == nil && name != "" {
		user.AvatarName = name
	}
	sess.Authenticate(user)
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", string(user.ID)).Msg("session authenticated")
}
