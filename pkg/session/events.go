package session

import (
	"github.com/pion/webrtc/v3"

	"github.com/livekit/client-sdk-go/pkg/peer"
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// EventKind enumerates the single fan-in RtcEvent stream of spec.md §4.F.
type EventKind int

const (
	EventIceCandidate EventKind = iota
	EventConnectionChange
	EventPublisherOffer
	EventDataPacket
	EventTrack
	EventDataChannel
	EventParticipantUpdate
	EventSpeakersChanged
	EventConnectionQuality
	EventLeave
	EventDisconnected
)

// Event is the RtcSession's single outbound event, mirroring spec.md's
// RtcEvent union. Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Target    peer.SignalTarget
	Candidate *webrtc.ICECandidate
	State     webrtc.PeerConnectionState
	Offer     webrtc.SessionDescription

	Data     []byte
	DataKind proto.DataPacketKind

	Receiver *webrtc.TrackRemote
	RTPRecv  *webrtc.RTPReceiver

	DataChannel *webrtc.DataChannel

	ParticipantUpdate *proto.ParticipantUpdate
	SpeakersChanged   *proto.SpeakersChanged
	ConnectionQuality *proto.ConnectionQualityUpdate
	Leave             *proto.LeaveResponse

	Err error
}
