// Package media defines the boundary to the SFU capability provider. The
// engine hands out ICE/DTLS-secured transports plus data/media producers
// and consumers; the coordination layer never looks inside them.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// SCTPStreamParameters mirror the client-supplied data-channel stream
// settings; they pass through the engine untouched.
type SCTPStreamParameters struct {
	StreamID          uint16 `json:"streamId"`
	Ordered           *bool  `json:"ordered,omitempty"`
	MaxPacketLifeTime uint16 `json:"maxPacketLifeTime,omitempty"`
	MaxRetransmits    uint16 `json:"maxRetransmits,omitempty"`
}

// RTPParameters is the send-side media description: codecs plus the
// encodings that carry the SSRCs. pion splits these across several types;
// the wire format keeps them together.
type RTPParameters struct {
	MID              string                               `json:"mid,omitempty"`
	Codecs           []webrtc.RTPCodecParameters          `json:"codecs"`
	HeaderExtensions []webrtc.RTPHeaderExtensionParameter `json:"headerExtensions,omitempty"`
	Encodings        []webrtc.RTPCodingParameters         `json:"encodings,omitempty"`
}

// TransportInfo is everything the client needs to connect to a transport.
type TransportInfo struct {
	ID             string                  `json:"id"`
	IceParameters  webrtc.ICEParameters    `json:"iceParameters"`
	IceCandidates  []webrtc.ICECandidate   `json:"iceCandidates"`
	DtlsParameters webrtc.DTLSParameters   `json:"dtlsParameters"`
	SctpParameters webrtc.SCTPCapabilities `json:"sctpParameters"`
}

type Engine interface {
	// RtpCapabilities reports what the engine's router can route.
	// Safe to call any number of times.
	RtpCapabilities() webrtc.RTPCapabilities
	CreateTransport(ctx context.Context, dir Direction) (Transport, error)
	// CanConsume reports whether a consumer with the given capabilities
	// could receive the identified media producer.
	CanConsume(producerID string, caps webrtc.RTPCapabilities) bool
}

type Transport interface {
	ID() string
	Info() TransportInfo
	Direction() Direction

	// Connect applies the client's DTLS parameters and brings the
	// transport up. Calling it twice is an engine error.
	Connect(ctx context.Context, dtls webrtc.DTLSParameters) error
	// RestartIce generates fresh ICE parameters for the same transport.
	// This is the only recovery path for broken connectivity.
	RestartIce(ctx context.Context) (webrtc.ICEParameters, error)

	ProduceData(ctx context.Context, params SCTPStreamParameters, label, protocol string) (DataProducer, error)
	ConsumeData(ctx context.Context, producerID string) (DataConsumer, error)
	Produce(ctx context.Context, kind Kind, rtp RTPParameters) (Producer, error)
	Consume(ctx context.Context, producerID string, caps webrtc.RTPCapabilities) (Consumer, error)

	OnIceStateChange(func(webrtc.ICETransportState))
	OnDtlsStateChange(func(webrtc.DTLSTransportState))

	Closed() bool
	Close()
}

type DataProducer interface {
	ID() string
	Label() string
	Protocol() string
	StreamParameters() SCTPStreamParameters
	Closed() bool
	Close()
}

type DataConsumer interface {
	ID() string
	ProducerID() string
	Label() string
	Protocol() string
	StreamParameters() SCTPStreamParameters
	Close()
}

type Producer interface {
	ID() string
	Kind() Kind
	RtpParameters() RTPParameters
	Closed() bool
	Close()
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() Kind
	RtpParameters() RTPParameters
	Close()
}
