package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/media"
	"github.com/atriumspace/atrium/internal/protocol"
)

// ProduceMedia mirrors ProduceData with producers keyed per (user, kind):
// at most one live audio and one live video producer per user per room.
func (o *Orchestrator) ProduceMedia(ctx context.Context, sess *core.Session, req protocol.ProduceMediaRequest) error {
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	kind := media.Kind(req.Kind)
	if kind != media.KindAudio && kind != media.KindVideo {
		return ErrInvalidPayload
	}
	uid := sess.UserID()

	if p, ok := room.MediaProducer(uid, kind); ok {
		if !p.Closed() {
			o.send(sess, protocol.TypeMediaProducerCreated, protocol.MediaProducerCreated{
				ProducerID: p.ID(),
				Kind:       string(kind),
			})
			return nil
		}
		room.EvictMediaProducer(uid, kind, p.ID())
		p.Close()
		log.Info().Str("module", "app").Str("user", string(uid)).Str("kind", string(kind)).Str("producer", p.ID()).Msg("evicted stale media producer")
	}

	rec, err := o.ownedTransport(sess, req.TransportID)
	if err != nil {
		return err
	}
	p, err := rec.Transport.Produce(ctx, kind, req.RtpParameters)
	if err != nil {
		return engineErr("produce media", err)
	}

	existing := room.RegisterMediaProducer(uid, p)

	o.send(sess, protocol.TypeMediaProducerCreated, protocol.MediaProducerCreated{
		ProducerID: p.ID(),
		Kind:       string(kind),
	})
	o.broadcast(room, sess.ID, protocol.TypeNewMediaProducer, protocol.NewMediaProducer{
		ProducerID: p.ID(),
		UserID:     uid,
		AvatarName: sess.AvatarName(),
		Kind:       string(kind),
	})
	for _, info := range existing {
		o.send(sess, protocol.TypeNewMediaProducer, protocol.NewMediaProducer{
			ProducerID: info.ID,
			UserID:     info.UserID,
			AvatarName: info.AvatarName,
			Kind:       string(info.Kind),
		})
	}
	return nil
}

// ConsumeMedia subscribes the session to a remote media producer. The
// engine must confirm RTP-capability compatibility first; incompatible
// requests fail visibly instead of producing a silent track.
func (o *Orchestrator) ConsumeMedia(ctx context.Context, sess *core.Session, req protocol.ConsumeMediaRequest) error {
	rec, err := o.ownedTransport(sess, req.TransportID)
	if err != nil {
		return err
	}
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	if !room.OwnsMediaProducer(req.ProducerID) {
		return ErrProducerNotFound
	}

	if !o.Engine.CanConsume(req.ProducerID, req.RtpCapabilities) {
		return ErrIncompatibleCapabilities
	}

	c, err := rec.Transport.Consume(ctx, req.ProducerID, req.RtpCapabilities)
	if err != nil {
		return engineErr("consume media", err)
	}
	room.AddMediaConsumer(sess.UserID(), c)

	o.send(sess, protocol.TypeMediaConsumerCreated, protocol.MediaConsumerCreated{
		ID:            c.ID(),
		ProducerID:    c.ProducerID(),
		UserID:        req.UserID,
		AvatarName:    req.AvatarName,
		Kind:          string(c.Kind()),
		RtpParameters: c.RtpParameters(),
	})
	return nil
}
