// Package app coordinates sessions, rooms, and the media engine. Every
// signaling operation lands here; the socket adapter only decodes and
// routes.
package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/identity"
	"github.com/atriumspace/atrium/internal/media"
	"github.com/atriumspace/atrium/internal/protocol"
)

type Orchestrator struct {
	Registry  *Registry
	Rooms     *core.RoomRegistry
	Engine    media.Engine
	Directory identity.Directory

	// DefaultChatRadius applies when a proximity message omits one.
	DefaultChatRadius float64
	// ChatLimiter may be nil to disable chat rate limiting.
	ChatLimiter *ChatRateLimiter
}

// GetRtpCapabilities answers the router capability query. Idempotent;
// clients re-ask after reconnects.
func (o *Orchestrator) GetRtpCapabilities(sess *core.Session) error {
	if !sess.Authenticated {
		return ErrNotAuthenticated
	}
	o.send(sess, protocol.TypeGotRouterRtpCapabilities, protocol.RouterRtpCapabilities{
		RtpCapabilities: o.Engine.RtpCapabilities(),
	})
	return nil
}

func (o *Orchestrator) Ping(sess *core.Session) error {
	o.send(sess, protocol.TypePong, struct{}{})
	return nil
}

// OnDisconnect is the sole cancellation path: socket close or error.
// It runs the same room cleanup as an explicit leave, then unbinds.
func (o *Orchestrator) OnDisconnect(sess *core.Session) {
	o.leaveCurrentRoom(context.Background(), sess)
	o.Registry.Unbind(sess.ID)
}

// currentRoom resolves the session's room, enforcing auth first.
func (o *Orchestrator) currentRoom(sess *core.Session) (*core.Room, error) {
	if !sess.Authenticated {
		return nil, ErrNotAuthenticated
	}
	roomID, ok := o.Registry.RoomOf(sess.ID)
	if !ok {
		return nil, ErrNotInRoom
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (o *Orchestrator) send(sess *core.Session, msgType string, payload any) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("type", msgType).Msg("encode outbound")
		return
	}
	if err := sess.Signal().TrySend(core.Frame(frame)); err != nil {
		log.Debug().Err(err).Str("module", "app").Str("sid", string(sess.ID)).Str("type", msgType).Msg("send dropped")
	}
}

func (o *Orchestrator) broadcast(room *core.Room, except core.SessionID, msgType string, payload any) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("type", msgType).Msg("encode broadcast")
		return
	}
	room.Broadcast(except, core.Frame(frame))
}
