package core

import "github.com/atriumspace/atrium/internal/domain"

// Frame is a raw outbound payload for the signaling socket.
type Frame []byte

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

type SessionID string

// Session is the server-side object for one live connection. The user is
// nil until the directory existence check passes; nothing room- or
// media-related is allowed before that.
type Session struct {
	ID            SessionID
	User          *domain.User
	Authenticated bool

	signal SignalConnection
}

func NewSession(id SessionID, signal SignalConnection) *Session {
	return &Session{ID: id, signal: signal}
}

// Authenticate binds the validated user. Called once, before the read
// pump starts delivering messages for this session.
func (s *Session) Authenticate(user *domain.User) {
	s.User = user
	s.Authenticated = true
}

func (s *Session) Signal() SignalConnection { return s.signal }

func (s *Session) UserID() domain.UserID {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

func (s *Session) AvatarName() string {
	if s.User == nil {
		return ""
	}
	return s.User.AvatarName
}
