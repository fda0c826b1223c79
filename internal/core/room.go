package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/media"
)

// TransportRecord tags a live transport with its owner and direction.
type TransportRecord struct {
	Transport media.Transport
	Owner     domain.UserID
	Direction media.Direction
}

// DataProducerInfo is the announcement shape for a data producer.
type DataProducerInfo struct {
	ID         string
	UserID     domain.UserID
	AvatarName string
}

// MediaProducerInfo is the announcement shape for a media producer.
type MediaProducerInfo struct {
	ID         string
	UserID     domain.UserID
	AvatarName string
	Kind       media.Kind
}

// OwnedResources is everything a departing member leaves behind. The
// caller closes these outside the room lock.
type OwnedResources struct {
	DataProducer   media.DataProducer
	DataConsumers  []media.DataConsumer
	MediaProducers []media.Producer
	MediaConsumers []media.Consumer
	Transports     []media.Transport
}

// PublishResult reports broadcast delivery and backpressure.
type PublishResult struct {
	SentTo  int
	Dropped []*Session
}

// Room is a thread-safe aggregate of members plus their real-time
// channels. It owns the indices but never closes engine resources;
// callers collect them via RemoveMember and close them outside the lock.
type Room struct {
	id domain.RoomID

	mu             sync.RWMutex
	bySID          map[SessionID]*Session
	byUser         map[domain.UserID]SessionID
	positions      map[domain.UserID]domain.Position
	dataProducers  map[domain.UserID]media.DataProducer
	dataConsumers  map[domain.UserID][]media.DataConsumer
	mediaProducers map[domain.UserID]map[media.Kind]media.Producer
	mediaConsumers map[domain.UserID][]media.Consumer
	transports     map[string]TransportRecord
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:             id,
		bySID:          make(map[SessionID]*Session),
		byUser:         make(map[domain.UserID]SessionID),
		positions:      make(map[domain.UserID]domain.Position),
		dataProducers:  make(map[domain.UserID]media.DataProducer),
		dataConsumers:  make(map[domain.UserID][]media.DataConsumer),
		mediaProducers: make(map[domain.UserID]map[media.Kind]media.Producer),
		mediaConsumers: make(map[domain.UserID][]media.Consumer),
		transports:     make(map[string]TransportRecord),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) AddMember(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[s.ID] = s
	r.byUser[s.UserID()] = s.ID
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(s.ID)).Str("user", string(s.UserID())).Msg("member added")
}

func (r *Room) HasMember(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

// Members returns a snapshot of the member set.
func (r *Room) Members() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.bySID))
	for _, s := range r.bySID {
		out = append(out, s)
	}
	return out
}

// Others returns every member except the given session.
func (r *Room) Others(except SessionID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.bySID))
	for sid, s := range r.bySID {
		if sid == except {
			continue
		}
		out = append(out, s)
	}
	return out
}

// RemoveMember detaches a session and returns every resource its user
// owned plus the remaining member count. Safe to call twice: the second
// call reports removed=false and empty resources, so the caller can skip
// the departure broadcast.
func (r *Room) RemoveMember(sid SessionID) (removed bool, owned OwnedResources, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bySID[sid]
	if !ok {
		return false, OwnedResources{}, len(r.bySID)
	}
	uid := s.UserID()
	delete(r.bySID, sid)
	delete(r.byUser, uid)
	delete(r.positions, uid)

	if dp, ok := r.dataProducers[uid]; ok {
		owned.DataProducer = dp
		delete(r.dataProducers, uid)
	}
	owned.DataConsumers = r.dataConsumers[uid]
	delete(r.dataConsumers, uid)
	for _, p := range r.mediaProducers[uid] {
		owned.MediaProducers = append(owned.MediaProducers, p)
	}
	delete(r.mediaProducers, uid)
	owned.MediaConsumers = r.mediaConsumers[uid]
	delete(r.mediaConsumers, uid)
	for id, rec := range r.transports {
		if rec.Owner == uid {
			owned.Transports = append(owned.Transports, rec.Transport)
			delete(r.transports, id)
		}
	}

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member removed")
	return true, owned, len(r.bySID)
}

func (r *Room) SetPosition(uid domain.UserID, pos domain.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[uid] = pos
}

func (r *Room) Position(uid domain.UserID) (domain.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[uid]
	return pos, ok
}

// MembersWithin returns members whose recorded position lies within
// radius of center. Members without a position are never in range.
func (r *Room) MembersWithin(center domain.Position, radius float64, except domain.UserID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.bySID))
	for _, s := range r.bySID {
		uid := s.UserID()
		if uid == except {
			continue
		}
		pos, ok := r.positions[uid]
		if !ok {
			continue
		}
		if center.DistanceTo(pos) <= radius {
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) AddTransport(rec TransportRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[rec.Transport.ID()] = rec
}

func (r *Room) Transport(id string) (TransportRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.transports[id]
	return rec, ok
}

func (r *Room) DataProducer(uid domain.UserID) (media.DataProducer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dp, ok := r.dataProducers[uid]
	return dp, ok
}

// EvictDataProducer drops the user's producer only if it is still the
// given one, so a concurrent replacement is never evicted by mistake.
func (r *Room) EvictDataProducer(uid domain.UserID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dp, ok := r.dataProducers[uid]; ok && dp.ID() == id {
		delete(r.dataProducers, uid)
	}
}

// RegisterDataProducer stores the new producer and, in the same critical
// section, snapshots the other members' live producers. Announcing from
// that snapshot gives the new owner a consistent view with no delay
// tricks: registration has completed by the time anyone reads it.
func (r *Room) RegisterDataProducer(uid domain.UserID, dp media.DataProducer) []DataProducerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataProducers[uid] = dp

	existing := make([]DataProducerInfo, 0, len(r.dataProducers))
	for owner, other := range r.dataProducers {
		if owner == uid || other.Closed() {
			continue
		}
		existing = append(existing, DataProducerInfo{
			ID:         other.ID(),
			UserID:     owner,
			AvatarName: r.avatarNameLocked(owner),
		})
	}
	return existing
}

// OwnsDataProducer reports whether the producer id belongs to a current
// member. Consumption is room-scoped; ids from other rooms are treated
// as unknown.
func (r *Room) OwnsDataProducer(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dp := range r.dataProducers {
		if dp.ID() == id {
			return true
		}
	}
	return false
}

func (r *Room) AddDataConsumer(uid domain.UserID, dc media.DataConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataConsumers[uid] = append(r.dataConsumers[uid], dc)
}

func (r *Room) MediaProducer(uid domain.UserID, kind media.Kind) (media.Producer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.mediaProducers[uid][kind]
	return p, ok
}

func (r *Room) EvictMediaProducer(uid domain.UserID, kind media.Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.mediaProducers[uid][kind]; ok && p.ID() == id {
		delete(r.mediaProducers[uid], kind)
	}
}

// RegisterMediaProducer mirrors RegisterDataProducer with per-kind keys.
func (r *Room) RegisterMediaProducer(uid domain.UserID, p media.Producer) []MediaProducerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mediaProducers[uid] == nil {
		r.mediaProducers[uid] = make(map[media.Kind]media.Producer)
	}
	r.mediaProducers[uid][p.Kind()] = p

	var existing []MediaProducerInfo
	for owner, byKind := range r.mediaProducers {
		if owner == uid {
			continue
		}
		for kind, other := range byKind {
			if other.Closed() {
				continue
			}
			existing = append(existing, MediaProducerInfo{
				ID:         other.ID(),
				UserID:     owner,
				AvatarName: r.avatarNameLocked(owner),
				Kind:       kind,
			})
		}
	}
	return existing
}

// OwnsMediaProducer mirrors OwnsDataProducer for media producers.
func (r *Room) OwnsMediaProducer(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, byKind := range r.mediaProducers {
		for _, p := range byKind {
			if p.ID() == id {
				return true
			}
		}
	}
	return false
}

func (r *Room) AddMediaConsumer(uid domain.UserID, c media.Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mediaConsumers[uid] = append(r.mediaConsumers[uid], c)
}

// Broadcast fans a frame out to every member except from. Frames to
// members with a full send queue are dropped, never blocking the sender.
func (r *Room) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, s := range r.bySID {
		if sid == from {
			continue
		}
		if err := s.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *Room) avatarNameLocked(uid domain.UserID) string {
	if sid, ok := r.byUser[uid]; ok {
		if s, ok := r.bySID[sid]; ok {
			return s.AvatarName()
		}
	}
	return ""
}
