package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
)

type sessionEntry struct {
	Session *core.Session
	RoomID  domain.RoomID
	Cancel  context.CancelFunc
}

// Registry owns one entry per live connection. The room association
// lives here, not on the session, so membership changes go through one
// writer.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sess *core.Session, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID)).Str("user", string(sess.UserID())).Msg("bound session")
}

func (r *Registry) Get(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) SetRoom(sid core.SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = roomID
	return true
}

func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.RoomID = ""
	}
}

// CancelAll fires every session's cancel func; used on shutdown to drain
// the socket pumps.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()
	for _, cancel := range cancels {
		cancel()
	}
}
