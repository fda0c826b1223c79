package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/identity"
	"github.com/atriumspace/atrium/internal/media"
	"github.com/atriumspace/atrium/internal/media/mediatest"
	"github.com/atriumspace/atrium/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := protocol.ParseEnvelope(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) countType(t *testing.T, msgType string) int {
	t.Helper()
	n := 0
	for _, env := range c.envelopes(t) {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

// payloadsOf decodes every frame of the given type on the connection.
func payloadsOf[T any](t *testing.T, c *fakeConn, msgType string) []T {
	t.Helper()
	var out []T
	for _, env := range c.envelopes(t) {
		if env.Type != msgType {
			continue
		}
		var p T
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		out = append(out, p)
	}
	return out
}

// lastPayload requires at least one frame of the type and returns the
// most recent one.
func lastPayload[T any](t *testing.T, c *fakeConn, msgType string) T {
	t.Helper()
	all := payloadsOf[T](t, c, msgType)
	require.NotEmpty(t, all, "no %s frame", msgType)
	return all[len(all)-1]
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *mediatest.Engine) {
	t.Helper()
	dir := identity.NewMemoryDirectory()
	dir.Add("alice", "Alice")
	dir.Add("bob", "Bob")
	dir.Add("carol", "Carol")
	dir.Open = true

	engine := mediatest.NewEngine()
	return &Orchestrator{
		Registry:          NewRegistry(),
		Rooms:             core.NewRoomRegistry(),
		Engine:            engine,
		Directory:         dir,
		DefaultChatRadius: 100,
	}, engine
}

func newMember(t *testing.T, o *Orchestrator, sid string, uid string, name string) (*core.Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := core.NewSession(core.SessionID(sid), conn)
	sess.Authenticate(&domain.User{ID: domain.UserID(uid), AvatarName: name})
	o.Registry.Bind(sess, nil)
	return sess, conn
}

func joinedMember(t *testing.T, o *Orchestrator, sid, uid, name string, room domain.RoomID) (*core.Session, *fakeConn) {
	t.Helper()
	sess, conn := newMember(t, o, sid, uid, name)
	require.NoError(t, o.JoinRoom(context.Background(), sess, room))
	return sess, conn
}

// createTransport runs the create operation and returns the new
// transport id plus the engine-side handle for state manipulation.
func createTransport(t *testing.T, o *Orchestrator, sess *core.Session, conn *fakeConn, dir media.Direction) (string, *mediatest.Transport) {
	t.Helper()
	require.NoError(t, o.CreateTransport(context.Background(), sess, dir))

	msgType := protocol.TypeSendTransportCreated
	if dir == media.DirectionRecv {
		msgType = protocol.TypeRecvTransportCreated
	}
	created := lastPayload[protocol.TransportCreated](t, conn, msgType)
	require.NotEmpty(t, created.ID)

	roomID, ok := o.Registry.RoomOf(sess.ID)
	require.True(t, ok)
	room, ok := o.Rooms.Get(roomID)
	require.True(t, ok)
	rec, ok := room.Transport(created.ID)
	require.True(t, ok)
	return created.ID, rec.Transport.(*mediatest.Transport)
}

func produceData(t *testing.T, o *Orchestrator, sess *core.Session, conn *fakeConn, transportID string) string {
	t.Helper()
	require.NoError(t, o.ProduceData(context.Background(), sess, protocol.ProduceDataRequest{
		TransportID:          transportID,
		SctpStreamParameters: media.SCTPStreamParameters{StreamID: 1},
		Label:                "game",
		Protocol:             "json",
	}))
	return lastPayload[protocol.DataProduced](t, conn, protocol.TypeDataProduced).DataProducerID
}
