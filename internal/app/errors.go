package app

import (
	"errors"
	"fmt"
)

// Handler-boundary errors. Every one of these turns into a non-fatal
// `error` reply on the offending connection; none of them tears the
// connection down.
var (
	ErrNotAuthenticated         = errors.New("not authorized")
	ErrNotInRoom                = errors.New("not in a room")
	ErrRoomNotFound             = errors.New("room not found")
	ErrTransportNotFound        = errors.New("transport not found")
	ErrProducerNotFound         = errors.New("producer not found")
	ErrNoSenderPosition         = errors.New("no known sender position")
	ErrIncompatibleCapabilities = errors.New("incompatible rtp capabilities")
	ErrInvalidPayload           = errors.New("invalid payload")
	ErrRateLimited              = errors.New("too many chat messages")
)

func engineErr(op string, err error) error {
	return fmt.Errorf("media engine %s: %w", op, err)
}
