package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opusParams() RTPParameters {
	return RTPParameters{
		Codecs: []webrtc.RTPCodecParameters{{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypeOpus,
				ClockRate: 48000,
				Channels:  2,
			},
			PayloadType: 111,
		}},
	}
}

func TestCapabilitiesCompatible(t *testing.T) {
	caps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: "audio/OPUS", ClockRate: 48000, Channels: 2},
	}}
	assert.True(t, CapabilitiesCompatible(opusParams(), caps))
}

func TestCapabilitiesClockRateMismatch(t *testing.T) {
	caps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 44100, Channels: 2},
	}}
	assert.False(t, CapabilitiesCompatible(opusParams(), caps))
}

func TestCapabilitiesUnspecifiedChannelsMatch(t *testing.T) {
	caps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000},
	}}
	assert.True(t, CapabilitiesCompatible(opusParams(), caps))
}

func TestCapabilitiesDisjointCodecs(t *testing.T) {
	caps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeH264, ClockRate: 90000},
	}}
	assert.False(t, CapabilitiesCompatible(opusParams(), caps))
}

func TestConsumerParametersNarrowsCodecs(t *testing.T) {
	params := opusParams()
	params.Codecs = append(params.Codecs, webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		},
		PayloadType: 96,
	})
	params.Encodings = []webrtc.RTPCodingParameters{{SSRC: 42}}

	caps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
	}}

	narrowed := ConsumerParameters(params, caps)
	require.Len(t, narrowed.Codecs, 1)
	assert.Equal(t, webrtc.MimeTypeOpus, narrowed.Codecs[0].MimeType)
	require.Len(t, narrowed.Encodings, 1)
	assert.Equal(t, webrtc.SSRC(42), narrowed.Encodings[0].SSRC)
}
