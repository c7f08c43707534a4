package room

import "github.com/livekit/client-sdk-go/pkg/proto"

// EventKind enumerates the domain events the room raises to the host.
type EventKind int

const (
	EventParticipantConnected EventKind = iota
	EventParticipantDisconnected
	EventTrackPublished
	EventTrackUnpublished
	EventTrackSubscribed
	EventTrackUnsubscribed
	EventTrackSubscriptionFailed
	EventTrackMuted
	EventTrackUnmuted
	EventActiveSpeakersChanged
	EventConnectionQualityChanged
	EventSubscriptionStatusChanged
	EventPermissionStatusChanged
	EventDataReceived
	EventDisconnected
	EventReconnecting
	EventReconnected
)

// Event is the room's single outbound event.
type Event struct {
	Kind EventKind

	Participant *RemoteParticipant
	Publication *TrackPublication

	Speakers []*RemoteParticipant

	// Populated for EventDataReceived.
	Data     []byte
	DataKind proto.DataPacketKind
	FromSid  string

	Reason error
}
