package media

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// CapabilitiesCompatible reports whether a consumer advertising caps can
// receive media produced with rtp. The match is per codec: mime type
// (case-insensitive), clock rate, and channel count must all agree for at
// least one producer codec.
func CapabilitiesCompatible(rtp RTPParameters, caps webrtc.RTPCapabilities) bool {
	for _, pc := range rtp.Codecs {
		for _, cc := range caps.Codecs {
			if codecsMatch(pc.RTPCodecCapability, cc) {
				return true
			}
		}
	}
	return false
}

func codecsMatch(a, b webrtc.RTPCodecCapability) bool {
	if !strings.EqualFold(a.MimeType, b.MimeType) {
		return false
	}
	if a.ClockRate != b.ClockRate {
		return false
	}
	// Channels only matter for audio; zero means unspecified.
	if a.Channels != 0 && b.Channels != 0 && a.Channels != b.Channels {
		return false
	}
	return true
}

// ConsumerParameters narrows producer parameters to the codecs the
// consumer supports; this is what the consumer side is told to decode.
func ConsumerParameters(rtp RTPParameters, caps webrtc.RTPCapabilities) RTPParameters {
	out := RTPParameters{
		MID:              rtp.MID,
		HeaderExtensions: rtp.HeaderExtensions,
		Encodings:        rtp.Encodings,
	}
	for _, pc := range rtp.Codecs {
		for _, cc := range caps.Codecs {
			if codecsMatch(pc.RTPCodecCapability, cc) {
				out.Codecs = append(out.Codecs, pc)
				break
			}
		}
	}
	return out
}
