package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/media"
	"github.com/atriumspace/atrium/internal/protocol"
)

// dispatch routes one inbound frame. Every failure — malformed JSON,
// unknown type, bad payload, refused operation — becomes a non-fatal
// error reply on this connection; nothing here tears the socket down or
// touches other sessions.
func (ctl *Controller) dispatch(ctx context.Context, sess *core.Session, c *WsSignalConn, data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("bad frame")
		ctl.sendError(c, "malformed message")
		return
	}

	var opErr error
	switch env.Type {
	case protocol.TypePing:
		opErr = ctl.Orch.Ping(sess)

	case protocol.TypeGetRtpCapabilities:
		opErr = ctl.Orch.GetRtpCapabilities(sess)

	case protocol.TypeCreateTransportSend:
		opErr = ctl.Orch.CreateTransport(ctx, sess, media.DirectionSend)

	case protocol.TypeCreateTransportRecv:
		opErr = ctl.Orch.CreateTransport(ctx, sess, media.DirectionRecv)

	case protocol.TypeConnectTransport:
		opErr = route(ctx, sess, env, ctl.Orch.ConnectTransport)

	case protocol.TypeProduceData:
		opErr = route(ctx, sess, env, ctl.Orch.ProduceData)

	case protocol.TypeConsumeData:
		opErr = route(ctx, sess, env, ctl.Orch.ConsumeData)

	case protocol.TypeProduceMedia:
		opErr = route(ctx, sess, env, ctl.Orch.ProduceMedia)

	case protocol.TypeConsumeMedia:
		opErr = route(ctx, sess, env, ctl.Orch.ConsumeMedia)

	case protocol.TypeRestartIce:
		opErr = route(ctx, sess, env, ctl.Orch.RestartIce)

	case protocol.TypeJoinRoom:
		req, err := protocol.DecodePayload[protocol.JoinRoomRequest](env)
		if err != nil {
			opErr = err
			break
		}
		opErr = ctl.Orch.JoinRoom(ctx, sess, domain.RoomID(req.RoomID))

	case protocol.TypeLeaveRoom:
		req, err := protocol.DecodePayload[protocol.LeaveRoomRequest](env)
		if err != nil {
			opErr = err
			break
		}
		opErr = ctl.Orch.LeaveRoom(ctx, sess, domain.RoomID(req.RoomID))

	case protocol.TypePublicChat:
		opErr = route(ctx, sess, env, ctl.Orch.PublicChat)

	case protocol.TypeProximityChat:
		opErr = route(ctx, sess, env, ctl.Orch.ProximityChat)

	case protocol.TypePlayerMovementUpdate:
		req, err := protocol.DecodePayload[protocol.PlayerMovementUpdateRequest](env)
		if err != nil {
			opErr = err
			break
		}
		opErr = ctl.Orch.UpdatePosition(sess, req)

	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "unknown message type: "+env.Type)
		return
	}

	if opErr != nil {
		log.Warn().Err(opErr).Str("module", "signal").Str("sid", string(sess.ID)).Str("type", env.Type).Msg("operation failed")
		ctl.sendError(c, opErr.Error())
	}
}

// route decodes the envelope payload into the handler's request type and
// invokes it; decode failures surface as the handler's error.
func route[T any](ctx context.Context, sess *core.Session, env protocol.Envelope, fn func(context.Context, *core.Session, T) error) error {
	req, err := protocol.DecodePayload[T](env)
	if err != nil {
		return err
	}
	return fn(ctx, sess, req)
}
