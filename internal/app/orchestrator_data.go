package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/protocol"
)

// ProduceData creates the session's data producer lazily and reuses it
// for the rest of the membership. Reuse is liveness-checked: a producer
// whose transport died is evicted and replaced, never handed back.
func (o *Orchestrator) ProduceData(ctx context.Context, sess *core.Session, req protocol.ProduceDataRequest) error {
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	uid := sess.UserID()

	if dp, ok := room.DataProducer(uid); ok {
		if !dp.Closed() {
			o.send(sess, protocol.TypeDataProduced, protocol.DataProduced{DataProducerID: dp.ID()})
			return nil
		}
		room.EvictDataProducer(uid, dp.ID())
		dp.Close()
		log.Info().Str("module", "app").Str("user", string(uid)).Str("producer", dp.ID()).Msg("evicted stale data producer")
	}

	rec, err := o.ownedTransport(sess, req.TransportID)
	if err != nil {
		return err
	}
	dp, err := rec.Transport.ProduceData(ctx, req.SctpStreamParameters, req.Label, req.Protocol)
	if err != nil {
		return engineErr("produce data", err)
	}

	// Registration and the snapshot of other members' live producers
	// happen in one critical section, so the announcements below cannot
	// observe a half-registered producer.
	existing := room.RegisterDataProducer(uid, dp)

	o.send(sess, protocol.TypeDataProduced, protocol.DataProduced{DataProducerID: dp.ID()})
	o.broadcast(room, sess.ID, protocol.TypeNewDataProducer, protocol.NewDataProducer{
		ProducerID: dp.ID(),
		UserID:     uid,
		AvatarName: sess.AvatarName(),
	})
	for _, info := range existing {
		o.send(sess, protocol.TypeNewDataProducer, protocol.NewDataProducer{
			ProducerID: info.ID,
			UserID:     info.UserID,
			AvatarName: info.AvatarName,
		})
	}
	return nil
}

// ConsumeData subscribes the session to a remote data producer on its
// recv transport.
func (o *Orchestrator) ConsumeData(ctx context.Context, sess *core.Session, req protocol.ConsumeDataRequest) error {
	rec, err := o.ownedTransport(sess, req.TransportID)
	if err != nil {
		return err
	}
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	// Producer ids resolve engine-wide; membership of the caller's room
	// is what authorizes consumption.
	if !room.OwnsDataProducer(req.ProducerID) {
		return ErrProducerNotFound
	}

	dc, err := rec.Transport.ConsumeData(ctx, req.ProducerID)
	if err != nil {
		return engineErr("consume data", err)
	}
	room.AddDataConsumer(sess.UserID(), dc)

	o.send(sess, protocol.TypeDataConsumerCreated, protocol.DataConsumerCreated{
		ID:                   dc.ID(),
		ProducerID:           dc.ProducerID(),
		SctpStreamParameters: dc.StreamParameters(),
		Label:                dc.Label(),
		Protocol:             dc.Protocol(),
	})
	return nil
}

// UpdatePosition records the mover's last known position. This is the
// redundant signaling-socket path; routine movement fan-out stays
// peer-to-peer over data channels and is never relayed here.
func (o *Orchestrator) UpdatePosition(sess *core.Session, req protocol.PlayerMovementUpdateRequest) error {
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	if req.Pos == nil || !req.Pos.Valid() {
		return ErrInvalidPayload
	}
	room.SetPosition(sess.UserID(), *req.Pos)
	return nil
}
