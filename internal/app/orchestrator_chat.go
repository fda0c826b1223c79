package app

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/identity"
	"github.com/atriumspace/atrium/internal/protocol"
)

// PublicChat fans a message out to every room member except the sender.
func (o *Orchestrator) PublicChat(ctx context.Context, sess *core.Session, req protocol.PublicChatRequest) error {
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	if req.Text == "" {
		return ErrInvalidPayload
	}
	if o.ChatLimiter != nil && !o.ChatLimiter.Allow(sess.UserID()) {
		return ErrRateLimited
	}

	o.broadcast(room, sess.ID, protocol.TypePublicChatOut, protocol.PublicChat{
		SenderID:   sess.UserID(),
		SenderName: o.displayName(ctx, sess.UserID()),
		Message:    req.Text,
		Timestamp:  time.Now().UnixMilli(),
	})
	return nil
}

// ProximityChat delivers to members within the given radius of the
// sender's last known position. The sender gets an echo plus delivery
// metadata; members without a recorded position are never in range.
func (o *Orchestrator) ProximityChat(ctx context.Context, sess *core.Session, req protocol.ProximityChatRequest) error {
	room, err := o.currentRoom(sess)
	if err != nil {
		return err
	}
	if req.Text == "" {
		return ErrInvalidPayload
	}
	if o.ChatLimiter != nil && !o.ChatLimiter.Allow(sess.UserID()) {
		return ErrRateLimited
	}

	senderPos, ok := room.Position(sess.UserID())
	if !ok {
		return ErrNoSenderPosition
	}

	radius := o.DefaultChatRadius
	if req.ChatRadius != nil {
		if *req.ChatRadius <= 0 || math.IsNaN(*req.ChatRadius) || math.IsInf(*req.ChatRadius, 0) {
			return ErrInvalidPayload
		}
		radius = *req.ChatRadius
	}

	msg := protocol.ProximityChat{
		SenderID:       sess.UserID(),
		SenderName:     o.displayName(ctx, sess.UserID()),
		Message:        req.Text,
		Timestamp:      time.Now().UnixMilli(),
		ChatRadius:     radius,
		SenderPosition: senderPos,
	}

	recipients := room.MembersWithin(senderPos, radius, sess.UserID())
	for _, r := range recipients {
		o.send(r, protocol.TypeProximityChatOut, msg)
	}
	o.send(sess, protocol.TypeProximityChatOut, msg)
	o.send(sess, protocol.TypeProximityChatInfo, protocol.ProximityChatInfo{
		RecipientCount: len(recipients),
		Radius:         radius,
	})

	log.Debug().Str("module", "app").Str("sid", string(sess.ID)).Float64("radius", radius).Int("recipients", len(recipients)).Msg("proximity chat delivered")
	return nil
}

// displayName resolves the sender's name, degrading to the placeholder
// on any directory failure; a chat send never fails on a name lookup.
func (o *Orchestrator) displayName(ctx context.Context, uid domain.UserID) string {
	name, err := o.Directory.DisplayName(ctx, uid)
	if err != nil || name == "" {
		return identity.PlaceholderName
	}
	return name
}
