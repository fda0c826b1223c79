package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/protocol"
)

// JoinRoom puts the session into a room, leaving any previous room first
// so a session is never a member of two rooms at once. Rejoining the
// current room is answered idempotently; nothing is torn down.
func (o *Orchestrator) JoinRoom(ctx context.Context, sess *core.Session, roomID domain.RoomID) error {
	if !sess.Authenticated {
		return ErrNotAuthenticated
	}
	if roomID == "" {
		return ErrInvalidPayload
	}

	if current, ok := o.Registry.RoomOf(sess.ID); ok && current == roomID {
		o.send(sess, protocol.TypeJoinedRoom, protocol.JoinedRoom{
			RoomID:   roomID,
			ClientID: string(sess.ID),
		})
		return nil
	}

	o.leaveCurrentRoom(ctx, sess)

	o.Rooms.Join(roomID, sess)
	o.Registry.SetRoom(sess.ID, roomID)
	log.Info().Str("module", "app").Str("sid", string(sess.ID)).Str("room", string(roomID)).Msg("joined room")

	o.send(sess, protocol.TypeJoinedRoom, protocol.JoinedRoom{
		RoomID:   roomID,
		ClientID: string(sess.ID),
	})
	return nil
}

// LeaveRoom handles an explicit leave. Leaving while in no room is a
// no-op reporting the session's actual state, so client retries are
// harmless; naming a room the session is not in is an error.
func (o *Orchestrator) LeaveRoom(ctx context.Context, sess *core.Session, roomID domain.RoomID) error {
	if !sess.Authenticated {
		return ErrNotAuthenticated
	}
	current, ok := o.Registry.RoomOf(sess.ID)
	if !ok {
		o.send(sess, protocol.TypeLeftRoom, protocol.LeftRoom{})
		return nil
	}
	if roomID != "" && roomID != current {
		return ErrNotInRoom
	}
	o.leaveCurrentRoom(ctx, sess)
	o.send(sess, protocol.TypeLeftRoom, protocol.LeftRoom{RoomID: current})
	return nil
}

// leaveCurrentRoom is the one cleanup path shared by explicit leave,
// room switch, and disconnect. RemoveMember reports whether this call
// actually removed the member, so concurrent leave+disconnect never
// double-frees or double-broadcasts.
func (o *Orchestrator) leaveCurrentRoom(_ context.Context, sess *core.Session) {
	roomID, ok := o.Registry.RoomOf(sess.ID)
	if !ok {
		return
	}
	o.Registry.ClearRoom(sess.ID)
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}

	removed, owned, remaining := room.RemoveMember(sess.ID)
	if !removed {
		return
	}

	o.releaseOwned(sess, owned)

	if owned.DataProducer != nil {
		o.broadcast(room, sess.ID, protocol.TypeDataProducerClosed, protocol.DataProducerClosed{
			ProducerID: owned.DataProducer.ID(),
		})
	}
	for _, p := range owned.MediaProducers {
		o.broadcast(room, sess.ID, protocol.TypeMediaProducerClosed, protocol.MediaProducerClosed{
			ProducerID: p.ID(),
			UserID:     sess.UserID(),
		})
	}
	o.broadcast(room, sess.ID, protocol.TypeClientLeft, protocol.ClientLeft{ClientID: string(sess.ID)})

	if remaining == 0 {
		o.Rooms.DropIfEmpty(roomID)
	}
	log.Info().Str("module", "app").Str("sid", string(sess.ID)).Str("room", string(roomID)).Int("remaining", remaining).Msg("left room")
}

// releaseOwned closes every engine resource the member owned. Failures
// are logged and ignored; teardown must always finish.
func (o *Orchestrator) releaseOwned(sess *core.Session, owned core.OwnedResources) {
	if owned.DataProducer != nil {
		owned.DataProducer.Close()
	}
	for _, c := range owned.DataConsumers {
		c.Close()
	}
	for _, p := range owned.MediaProducers {
		p.Close()
	}
	for _, c := range owned.MediaConsumers {
		c.Close()
	}
	for _, t := range owned.Transports {
		t.Close()
	}
	log.Debug().Str("module", "app").Str("sid", string(sess.ID)).
		Int("transports", len(owned.Transports)).
		Int("data_consumers", len(owned.DataConsumers)).
		Int("media_producers", len(owned.MediaProducers)).
		Int("media_consumers", len(owned.MediaConsumers)).
		Msg("released owned resources")
}
