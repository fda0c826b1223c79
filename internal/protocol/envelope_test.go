package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"joinRoom","payload":{"roomId":"lobby"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeJoinRoom, env.Type)

	req, err := DecodePayload[JoinRoomRequest](env)
	require.NoError(t, err)
	assert.Equal(t, "lobby", req.RoomID)
}

func TestParseEnvelopeMalformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseEnvelopeMissingType(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodePayloadMissingIsZero(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"leaveRoom"}`))
	require.NoError(t, err)

	req, err := DecodePayload[LeaveRoomRequest](env)
	require.NoError(t, err)
	assert.Empty(t, req.RoomID)
}

func TestDecodePayloadWrongShape(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"joinRoom","payload":"nope"}`))
	require.NoError(t, err)

	_, err = DecodePayload[JoinRoomRequest](env)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeRoundTrips(t *testing.T) {
	frame, err := Encode(TypeJoinedRoom, JoinedRoom{RoomID: "lobby", ClientID: "s1"})
	require.NoError(t, err)

	env, err := ParseEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeJoinedRoom, env.Type)

	joined, err := DecodePayload[JoinedRoom](env)
	require.NoError(t, err)
	assert.Equal(t, "s1", joined.ClientID)
}
