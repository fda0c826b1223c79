package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	pingPeriod := ctl.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Info().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the session. Socket close or error is the only
// cancellation signal: the deferred disconnect releases everything the
// session owned in its room.
func (ctl *Controller) readPump(ctx context.Context, sess *core.Session, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sess)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, sess, c, data)
		}
	}
}

func (ctl *Controller) sendError(c *WsSignalConn, msg string) {
	frame, err := protocol.Encode(protocol.TypeError, msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode error reply")
		return
	}
	_ = c.TrySend(core.Frame(frame))
}
