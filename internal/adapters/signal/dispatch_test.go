package signal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumspace/atrium/internal/app"
	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/identity"
	"github.com/atriumspace/atrium/internal/media/mediatest"
	"github.com/atriumspace/atrium/internal/protocol"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	dir := identity.NewMemoryDirectory()
	dir.Add("alice", "Alice")
	orch := &app.Orchestrator{
		Registry:          app.NewRegistry(),
		Rooms:             core.NewRoomRegistry(),
		Engine:            mediatest.NewEngine(),
		Directory:         dir,
		DefaultChatRadius: 100,
	}
	return NewController(orch, 0, 0)
}

// testConn builds a WsSignalConn without a socket; frames land on the
// buffered send channel.
func testConn() *WsSignalConn {
	return &WsSignalConn{send: make(chan core.Frame, 32)}
}

func drain(t *testing.T, c *WsSignalConn) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case f := <-c.send:
			env, err := protocol.ParseEnvelope(f)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

func authedSession(ctl *Controller, conn *WsSignalConn, sid, uid, name string) *core.Session {
	sess := core.NewSession(core.SessionID(sid), conn)
	sess.Authenticate(&domain.User{ID: domain.UserID(uid), AvatarName: name})
	ctl.Orch.Registry.Bind(sess, nil)
	return sess
}

func TestDispatchMalformedFrame(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := authedSession(ctl, conn, "s1", "alice", "Alice")

	ctl.dispatch(context.Background(), sess, conn, []byte("not json"))

	envs := drain(t, conn)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.TypeError, envs[0].Type)
}

func TestDispatchUnknownType(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := authedSession(ctl, conn, "s1", "alice", "Alice")

	ctl.dispatch(context.Background(), sess, conn, []byte(`{"type":"teleport"}`))

	envs := drain(t, conn)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.TypeError, envs[0].Type)
	assert.Contains(t, string(envs[0].Payload), "teleport")
}

func TestDispatchPing(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := authedSession(ctl, conn, "s1", "alice", "Alice")

	ctl.dispatch(context.Background(), sess, conn, []byte(`{"type":"ping"}`))

	envs := drain(t, conn)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.TypePong, envs[0].Type)
}

func TestDispatchJoinRoom(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := authedSession(ctl, conn, "s1", "alice", "Alice")

	ctl.dispatch(context.Background(), sess, conn, []byte(`{"type":"joinRoom","payload":{"roomId":"lobby"}}`))

	envs := drain(t, conn)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.TypeJoinedRoom, envs[0].Type)

	room, ok := ctl.Orch.Rooms.Get("lobby")
	require.True(t, ok)
	assert.True(t, room.HasMember("s1"))
}

func TestDispatchOperationErrorIsReply(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	// Unauthenticated session: operations are refused but the socket
	// stays up.
	sess := core.NewSession("s1", conn)
	ctl.Orch.Registry.Bind(sess, nil)

	ctl.dispatch(context.Background(), sess, conn, []byte(`{"type":"joinRoom","payload":{"roomId":"lobby"}}`))

	envs := drain(t, conn)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.TypeError, envs[0].Type)
	assert.Contains(t, string(envs[0].Payload), "not authorized")
}

func TestDispatchBadPayload(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := authedSession(ctl, conn, "s1", "alice", "Alice")

	ctl.dispatch(context.Background(), sess, conn, []byte(`{"type":"connectWebRtcTransport","payload":"nope"}`))

	envs := drain(t, conn)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.TypeError, envs[0].Type)
}

func TestAuthenticateKnownUser(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := core.NewSession("s1", conn)

	ctl.authenticate(context.Background(), sess, "alice")

	assert.True(t, sess.Authenticated)
	assert.Equal(t, domain.UserID("alice"), sess.UserID())
	assert.Equal(t, "Alice", sess.AvatarName())
}

func TestAuthenticateUnknownUser(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := core.NewSession("s1", conn)

	ctl.authenticate(context.Background(), sess, "stranger")
	assert.False(t, sess.Authenticated)

	ctl.authenticate(context.Background(), sess, "")
	assert.False(t, sess.Authenticated)
}

func TestCancelAllClosesConnection(t *testing.T) {
	ctl := newTestController(t)
	conn := testConn()
	sess := core.NewSession("s1", conn)

	ctx, cancel := context.WithCancel(context.Background())
	ctl.Orch.Registry.Bind(sess, func() {
		cancel()
		conn.Close()
	})

	ctl.Orch.Registry.CancelAll()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not cancelled")
	}
	assert.Error(t, conn.TrySend(core.Frame("late")))
}

func TestTrySendBackpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}

	require.NoError(t, c.TrySend(core.Frame("one")))
	assert.ErrorIs(t, c.TrySend(core.Frame("two")), ErrBackpressure)
}
