package engine

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/client-sdk-go/pkg/proto"
)

// EventKind enumerates the engine's state→event mapping plus the
// session-level events it passes through unchanged.
type EventKind int

const (
	EventConnected EventKind = iota
	EventResuming
	EventResumed
	EventRestarting
	EventRestarted
	EventDisconnected

	EventParticipantUpdate
	EventSpeakersChanged
	EventConnectionQuality
	EventTrack
	EventDataPacket
	EventLeave
)

// Event is the engine's single outbound event.
type Event struct {
	Kind EventKind

	Reason error

	ParticipantUpdate *proto.ParticipantUpdate
	SpeakersChanged   *proto.SpeakersChanged
	ConnectionQuality *proto.ConnectionQualityUpdate
	Leave             *proto.LeaveResponse

	Receiver *webrtc.TrackRemote
	RTPRecv  *webrtc.RTPReceiver

	Data     []byte
	DataKind proto.DataPacketKind
}

func marshalCandidate(init webrtc.ICECandidateInit) (string, error) {
	b, err := json.Marshal(init)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
