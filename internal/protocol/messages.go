package protocol

import (
	"github.com/pion/webrtc/v4"

	"github.com/atriumspace/atrium/internal/domain"
	"github.com/atriumspace/atrium/internal/media"
)

// Client → server message types. The capabilities request keeps its
// historical spelling; clients depend on it.
const (
	TypeGetRtpCapabilities   = "getRtpCapabilites"
	TypeCreateTransportSend  = "createWebRtcTransportSend"
	TypeCreateTransportRecv  = "createWebRtcTransportRecv"
	TypeConnectTransport     = "connectWebRtcTransport"
	TypeProduceData          = "produceData"
	TypeConsumeData          = "consumeData"
	TypeProduceMedia         = "produceMedia"
	TypeConsumeMedia         = "consumeMedia"
	TypeRestartIce           = "restartIce"
	TypeJoinRoom             = "joinRoom"
	TypeLeaveRoom            = "leaveRoom"
	TypePublicChat           = "publicChat"
	TypeProximityChat        = "proximityChat"
	TypePlayerMovementUpdate = "playerMovementUpdate"
	TypePing                 = "ping"
)

// Server → client message types.
const (
	TypeGotRouterRtpCapabilities = "GotRouterRtpCapabilities"
	TypeSendTransportCreated     = "SendWebRtcTransportCreated"
	TypeRecvTransportCreated     = "RecvWebRtcTransportCreated"
	TypeTransportConnected       = "webRtcTransportConnected"
	TypeTransportIceStateChange  = "transportIceStateChange"
	TypeTransportDtlsStateChange = "transportDtlsStateChange"
	TypeDataProduced             = "dataProduced"
	TypeNewDataProducer          = "newDataProducer"
	TypeDataConsumerCreated      = "dataConsumerCreated"
	TypeDataProducerClosed       = "dataProducerClosed"
	TypeMediaProducerCreated     = "mediaProducerCreated"
	TypeNewMediaProducer         = "newMediaProducer"
	TypeMediaConsumerCreated     = "mediaConsumerCreated"
	TypeMediaProducerClosed      = "mediaProducerClosed"
	TypeIceRestarted             = "iceRestarted"
	TypeJoinedRoom               = "JoinedRoom"
	TypeLeftRoom                 = "leftRoom"
	TypeClientLeft               = "clientLeft"
	TypePublicChatOut            = "publicChat"
	TypeProximityChatOut         = "proximityChat"
	TypeProximityChatInfo        = "proximityChatInfo"
	TypeError                    = "error"
	TypePong                     = "pong"
)

// Inbound payloads.

type ConnectTransportRequest struct {
	TransportID    string                `json:"transportId"`
	DtlsParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

type ProduceDataRequest struct {
	TransportID          string                     `json:"transportId"`
	SctpStreamParameters media.SCTPStreamParameters `json:"sctpStreamParameters"`
	Label                string                     `json:"label"`
	Protocol             string                     `json:"protocol"`
}

type ConsumeDataRequest struct {
	ProducerID  string `json:"producerId"`
	TransportID string `json:"transportId"`
}

type ProduceMediaRequest struct {
	TransportID   string              `json:"transportId"`
	RtpParameters media.RTPParameters `json:"rtpParameters"`
	Kind          string              `json:"kind"`
}

type ConsumeMediaRequest struct {
	ProducerID      string                 `json:"producerId"`
	TransportID     string                 `json:"transportId"`
	RtpCapabilities webrtc.RTPCapabilities `json:"rtpCapabilities"`
	UserID          string                 `json:"userId"`
	AvatarName      string                 `json:"avatarName"`
}

type RestartIceRequest struct {
	TransportID string `json:"transportId"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

type PublicChatRequest struct {
	Text string `json:"text"`
}

type ProximityChatRequest struct {
	Text       string   `json:"text"`
	ChatRadius *float64 `json:"chatRadius,omitempty"`
}

type PlayerMovementUpdateRequest struct {
	Pos       *domain.Position `json:"pos"`
	Direction string           `json:"direction"`
	IsMoving  bool             `json:"isMoving"`
}

// Outbound payloads.

type RouterRtpCapabilities struct {
	RtpCapabilities webrtc.RTPCapabilities `json:"rtpCapabilities"`
}

type TransportCreated struct {
	ID             string                  `json:"id"`
	IceParameters  webrtc.ICEParameters    `json:"iceParameters"`
	IceCandidates  []webrtc.ICECandidate   `json:"iceCandidates"`
	DtlsParameters webrtc.DTLSParameters   `json:"dtlsParameters"`
	SctpParameters webrtc.SCTPCapabilities `json:"sctpParameters"`
}

type TransportConnected struct {
	TransportID string `json:"transportId"`
}

type TransportStateChange struct {
	TransportID string `json:"transportId"`
	State       string `json:"state"`
}

type DataProduced struct {
	DataProducerID string `json:"dataProducerId"`
}

type NewDataProducer struct {
	ProducerID string        `json:"producerId"`
	UserID     domain.UserID `json:"userId"`
	AvatarName string        `json:"avatarName"`
}

type DataConsumerCreated struct {
	ID                   string                     `json:"id"`
	ProducerID           string                     `json:"producerId"`
	SctpStreamParameters media.SCTPStreamParameters `json:"sctpStreamParameters"`
	Label                string                     `json:"label"`
	Protocol             string                     `json:"protocol"`
}

type DataProducerClosed struct {
	ProducerID string `json:"producerId"`
}

type MediaProducerCreated struct {
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
}

type NewMediaProducer struct {
	ProducerID string        `json:"producerId"`
	UserID     domain.UserID `json:"userId"`
	AvatarName string        `json:"avatarName"`
	Kind       string        `json:"kind"`
}

type MediaConsumerCreated struct {
	ID            string              `json:"id"`
	ProducerID    string              `json:"producerId"`
	UserID        string              `json:"userId"`
	AvatarName    string              `json:"avatarName"`
	Kind          string              `json:"kind"`
	RtpParameters media.RTPParameters `json:"rtpParameters"`
}

type MediaProducerClosed struct {
	ProducerID string        `json:"producerId"`
	UserID     domain.UserID `json:"userId"`
}

type IceRestarted struct {
	TransportID   string               `json:"transportId"`
	IceParameters webrtc.ICEParameters `json:"iceParameters"`
}

type JoinedRoom struct {
	RoomID   domain.RoomID `json:"roomId"`
	ClientID string        `json:"clientId"`
}

type LeftRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

type ClientLeft struct {
	ClientID string `json:"clientId"`
}

type PublicChat struct {
	SenderID   domain.UserID `json:"senderId"`
	SenderName string        `json:"senderName"`
	Message    string        `json:"message"`
	Timestamp  int64         `json:"timestamp"`
}

type ProximityChat struct {
	SenderID       domain.UserID   `json:"senderId"`
	SenderName     string          `json:"senderName"`
	Message        string          `json:"message"`
	Timestamp      int64           `json:"timestamp"`
	ChatRadius     float64         `json:"chatRadius"`
	SenderPosition domain.Position `json:"senderPosition"`
}

type ProximityChatInfo struct {
	RecipientCount int     `json:"recipientCount"`
	Radius         float64 `json:"radius"`
}
