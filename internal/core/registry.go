package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/domain"
)

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}

// RoomRegistry owns the room map. A room exists here iff it has members;
// DropIfEmpty enforces the invariant after every removal.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[domain.RoomID]*Room)}
}

// Join inserts the member under the registry lock, creating the room if
// needed. Holding the lock across the insertion means a concurrent
// DropIfEmpty can never delete a room between its creation and the first
// member landing in it.
func (rr *RoomRegistry) Join(id domain.RoomID, s *Session) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	room, ok := rr.rooms[id]
	if !ok {
		room = NewRoom(id)
		rr.rooms[id] = room
		log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	}
	room.AddMember(s)
	return room
}

func (rr *RoomRegistry) Get(id domain.RoomID) (*Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, ok := rr.rooms[id]
	return room, ok
}

// DropIfEmpty deletes the room when its member set is empty. The member
// count is re-checked under the registry lock, so a join racing the last
// leave keeps the room alive.
func (rr *RoomRegistry) DropIfEmpty(id domain.RoomID) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	room, ok := rr.rooms[id]
	if !ok || room.MemberCount() > 0 {
		return false
	}
	delete(rr.rooms, id)
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("empty room deleted")
	return true
}

func (rr *RoomRegistry) List() []RoomInfo {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]RoomInfo, 0, len(rr.rooms))
	for id, room := range rr.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: room.MemberCount()})
	}
	return out
}
