package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/media"
	"github.com/atriumspace/atrium/internal/media/mediatest"
)

type captureConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
}

func (c *captureConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return assert.AnError
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *captureConn) Close() {}

func (c *captureConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func member(id, uid, name string) (*Session, *captureConn) {
	conn := &captureConn{}
	s := NewSession(SessionID(id), conn)
	s.Authenticate(&domain.User{ID: domain.UserID(uid), AvatarName: name})
	return s, conn
}

func TestRoomMembership(t *testing.T) {
	r := NewRoom("lobby")
	a, _ := member("sa", "alice", "Alice")
	b, _ := member("sb", "bob", "Bob")

	r.AddMember(a)
	r.AddMember(b)
	assert.True(t, r.HasMember("sa"))
	assert.Equal(t, 2, r.MemberCount())
	assert.Len(t, r.Others("sa"), 1)

	removed, _, remaining := r.RemoveMember("sa")
	assert.True(t, removed)
	assert.Equal(t, 1, remaining)
	assert.False(t, r.HasMember("sa"))
}

func TestRemoveMemberTwice(t *testing.T) {
	r := NewRoom("lobby")
	a, _ := member("sa", "alice", "Alice")
	r.AddMember(a)

	removed, _, _ := r.RemoveMember("sa")
	assert.True(t, removed)
	removed, owned, remaining := r.RemoveMember("sa")
	assert.False(t, removed)
	assert.Equal(t, 0, remaining)
	assert.Nil(t, owned.DataProducer)
	assert.Empty(t, owned.Transports)
}

func TestRemoveMemberCollectsOwnedResources(t *testing.T) {
	ctx := context.Background()
	engine := mediatest.NewEngine()
	r := NewRoom("lobby")
	a, _ := member("sa", "alice", "Alice")
	r.AddMember(a)

	send, err := engine.CreateTransport(ctx, media.DirectionSend)
	require.NoError(t, err)
	recv, err := engine.CreateTransport(ctx, media.DirectionRecv)
	require.NoError(t, err)
	r.AddTransport(TransportRecord{Transport: send, Owner: "alice", Direction: media.DirectionSend})
	r.AddTransport(TransportRecord{Transport: recv, Owner: "alice", Direction: media.DirectionRecv})

	dp, err := send.ProduceData(ctx, media.SCTPStreamParameters{StreamID: 1}, "game", "json")
	require.NoError(t, err)
	r.RegisterDataProducer("alice", dp)
	r.SetPosition("alice", domain.Position{X: 1, Y: 2})

	removed, owned, remaining := r.RemoveMember("sa")
	require.True(t, removed)
	assert.Equal(t, 0, remaining)
	require.NotNil(t, owned.DataProducer)
	assert.Equal(t, dp.ID(), owned.DataProducer.ID())
	assert.Len(t, owned.Transports, 2)

	_, ok := r.Position("alice")
	assert.False(t, ok)
	_, ok = r.Transport(send.ID())
	assert.False(t, ok)
}

func TestRegisterDataProducerSnapshotsOthers(t *testing.T) {
	ctx := context.Background()
	engine := mediatest.NewEngine()
	r := NewRoom("lobby")
	a, _ := member("sa", "alice", "Alice")
	b, _ := member("sb", "bob", "Bob")
	r.AddMember(a)
	r.AddMember(b)

	ta, err := engine.CreateTransport(ctx, media.DirectionSend)
	require.NoError(t, err)
	tb, err := engine.CreateTransport(ctx, media.DirectionSend)
	require.NoError(t, err)

	dpA, err := ta.ProduceData(ctx, media.SCTPStreamParameters{StreamID: 1}, "game", "json")
	require.NoError(t, err)
	existing := r.RegisterDataProducer("alice", dpA)
	assert.Empty(t, existing)

	dpB, err := tb.ProduceData(ctx, media.SCTPStreamParameters{StreamID: 1}, "game", "json")
	require.NoError(t, err)
	existing = r.RegisterDataProducer("bob", dpB)
	require.Len(t, existing, 1)
	assert.Equal(t, dpA.ID(), existing[0].ID)
	assert.Equal(t, domain.UserID("alice"), existing[0].UserID)
	assert.Equal(t, "Alice", existing[0].AvatarName)
}

func TestRegisterDataProducerSkipsDeadOnes(t *testing.T) {
	ctx := context.Background()
	engine := mediatest.NewEngine()
	r := NewRoom("lobby")
	a, _ := member("sa", "alice", "Alice")
	b, _ := member("sb", "bob", "Bob")
	r.AddMember(a)
	r.AddMember(b)

	ta, err := engine.CreateTransport(ctx, media.DirectionSend)
	require.NoError(t, err)
	dpA, err := ta.ProduceData(ctx, media.SCTPStreamParameters{StreamID: 1}, "game", "json")
	require.NoError(t, err)
	r.RegisterDataProducer("alice", dpA)
	dpA.Close()

	tb, err := engine.CreateTransport(ctx, media.DirectionSend)
	require.NoError(t, err)
	dpB, err := tb.ProduceData(ctx, media.SCTPStreamParameters{StreamID: 1}, "game", "json")
	require.NoError(t, err)
	existing := r.RegisterDataProducer("bob", dpB)
	assert.Empty(t, existing)
}

func TestMembersWithin(t *testing.T) {
	r := NewRoom("lobby")
	a, _ := member("sa", "alice", "Alice")
	b, _ := member("sb", "bob", "Bob")
	c, _ := member("sc", "carol", "Carol")
	d, _ := member("sd", "dave", "Dave")
	r.AddMember(a)
	r.AddMember(b)
	r.AddMember(c)
	r.AddMember(d)

	r.SetPosition("alice", domain.Position{X: 0, Y: 0})
	r.SetPosition("bob", domain.Position{X: 50, Y: 0})
	r.SetPosition("carol", domain.Position{X: 200, Y: 0})
	// dave has no recorded position and is never in range.

	within := r.MembersWithin(domain.Position{X: 0, Y: 0}, 100, "alice")
	require.Len(t, within, 1)
	assert.Equal(t, SessionID("sb"), within[0].ID)

	// The boundary is inclusive.
	within = r.MembersWithin(domain.Position{X: 0, Y: 0}, 50, "alice")
	assert.Len(t, within, 1)
	within = r.MembersWithin(domain.Position{X: 0, Y: 0}, 49.9, "alice")
	assert.Empty(t, within)
}

func TestBroadcastSkipsSenderAndCountsDrops(t *testing.T) {
	r := NewRoom("lobby")
	a, aConn := member("sa", "alice", "Alice")
	b, bConn := member("sb", "bob", "Bob")
	c, cConn := member("sc", "carol", "Carol")
	r.AddMember(a)
	r.AddMember(b)
	r.AddMember(c)

	cConn.full = true
	res := r.Broadcast("sa", Frame(`{"type":"x"}`))

	assert.Equal(t, 1, res.SentTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, SessionID("sc"), res.Dropped[0].ID)
	assert.Equal(t, 0, aConn.count())
	assert.Equal(t, 1, bConn.count())
}
