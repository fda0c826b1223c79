package app

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/media"
	"github.com/atriumspace/atrium/internal/protocol"
)

// CreateTransport asks the engine for a transport in the given direction
// and registers it in the session's room. Connectivity-state changes are
// mirrored to the owning client as informational messages; the server
// takes no action on them beyond logging.
func (o *Orchestrator) CreateTransport(ctx context.Context, sess *core.Session, dir media.Direction) error {
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}

	t, err := o.Engine.CreateTransport(ctx, dir)
	if err != nil {
		return engineErr("create transport", err)
	}

	t.OnIceStateChange(func(s webrtc.ICETransportState) {
		log.Info().Str("module", "app").Str("transport", t.ID()).Str("ice_state", s.String()).Msg("ICE state")
		o.send(sess, protocol.TypeTransportIceStateChange, protocol.TransportStateChange{
			TransportID: t.ID(),
			State:       s.String(),
		})
	})
	t.OnDtlsStateChange(func(s webrtc.DTLSTransportState) {
		log.Info().Str("module", "app").Str("transport", t.ID()).Str("dtls_state", s.String()).Msg("DTLS state")
		o.send(sess, protocol.TypeTransportDtlsStateChange, protocol.TransportStateChange{
			TransportID: t.ID(),
			State:       s.String(),
		})
	})

	room.AddTransport(core.TransportRecord{Transport: t, Owner: sess.UserID(), Direction: dir})

	msgType := protocol.TypeSendTransportCreated
	if dir == media.DirectionRecv {
		msgType = protocol.TypeRecvTransportCreated
	}
	info := t.Info()
	o.send(sess, msgType, protocol.TransportCreated{
		ID:             info.ID,
		IceParameters:  info.IceParameters,
		IceCandidates:  info.IceCandidates,
		DtlsParameters: info.DtlsParameters,
		SctpParameters: info.SctpParameters,
	})
	return nil
}

// ConnectTransport forwards the client's DTLS parameters to the engine.
func (o *Orchestrator) ConnectTransport(ctx context.Context, sess *core.Session, req protocol.ConnectTransportRequest) error {
	rec, err := o.ownedTransport(sess, req.TransportID)
	if err != nil {
		return err
	}
	if err := rec.Transport.Connect(ctx, req.DtlsParameters); err != nil {
		return engineErr("connect transport", err)
	}
	o.send(sess, protocol.TypeTransportConnected, protocol.TransportConnected{TransportID: req.TransportID})
	return nil
}

// RestartIce is the only retry path for broken connectivity, and it only
// ever runs on explicit client request.
func (o *Orchestrator) RestartIce(ctx context.Context, sess *core.Session, req protocol.RestartIceRequest) error {
	rec, err := o.ownedTransport(sess, req.TransportID)
	if err != nil {
		return err
	}
	params, err := rec.Transport.RestartIce(ctx)
	if err != nil {
		return engineErr("restart ice", err)
	}
	log.Info().Str("module", "app").Str("sid", string(sess.ID)).Str("transport", req.TransportID).Msg("ICE restarted")
	o.send(sess, protocol.TypeIceRestarted, protocol.IceRestarted{
		TransportID:   req.TransportID,
		IceParameters: params,
	})
	return nil
}

// ownedTransport resolves a transport id within the session's room and
// checks ownership; foreign transports look like missing ones.
func (o *Orchestrator) ownedTransport(sess *core.Session, transportID string) (core.TransportRecord, error) {
	room, err := o.currentRoom(sess)
	if err != nil {
		return core.TransportRecord{}, err
	}
	rec, ok := room.Transport(transportID)
	if !ok || rec.Owner != sess.UserID() {
		return core.TransportRecord{}, ErrTransportNotFound
	}
	return rec, nil
}
