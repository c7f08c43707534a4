package room

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/client-sdk-go/pkg/proto"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	join := &proto.JoinResponse{
		RoomSid:  "RM_test",
		RoomName: "test-room",
		Participant: &proto.ParticipantInfo{
			Sid:      "PA_local",
			Identity: "local-user",
		},
	}
	return New(join, func(*proto.SignalRequest) error { return nil })
}

func TestParticipantUpdateUpsertsAndPublishesTracks(t *testing.T) {
	r := newTestRoom(t)

	r.applyParticipantUpdate(&proto.ParticipantUpdate{
		Participants: []*proto.ParticipantInfo{
			{
				Sid:      "PA_remote1",
				Identity: "remote-user",
				Tracks: []*proto.TrackInfo{
					{Sid: "TR_1", Name: "cam", Type: proto.TrackKindVideo},
				},
			},
		},
	})

	require.Len(t, r.RemoteParticipants(), 1)
	p := r.RemoteParticipants()[0]
	require.Equal(t, "PA_remote1", p.Sid)
	require.Len(t, p.Tracks, 1)
	require.Contains(t, p.Tracks, "TR_1")

	var events []Event
	for len(r.events) > 0 {
		events = append(events, <-r.events)
	}
	require.True(t, hasKind(events, EventParticipantConnected))
	require.True(t, hasKind(events, EventTrackPublished))
}

func TestParticipantUpdateRemovesAbsentParticipants(t *testing.T) {
	r := newTestRoom(t)
	r.applyParticipantUpdate(&proto.ParticipantUpdate{
		Participants: []*proto.ParticipantInfo{{Sid: "PA_remote1", Identity: "remote-user"}},
	})
	for len(r.events) > 0 {
		<-r.events
	}

	r.applyParticipantUpdate(&proto.ParticipantUpdate{Participants: nil})

	require.Len(t, r.RemoteParticipants(), 0)

	var events []Event
	for len(r.events) > 0 {
		events = append(events, <-r.events)
	}
	require.True(t, hasKind(events, EventParticipantDisconnected))
}

func TestSetSubscribedSendsUpdateSubscription(t *testing.T) {
	var sent *proto.SignalRequest
	join := &proto.JoinResponse{
		Participant: &proto.ParticipantInfo{Sid: "PA_local"},
	}
	r := New(join, func(req *proto.SignalRequest) error {
		sent = req
		return nil
	})

	r.applyParticipantUpdate(&proto.ParticipantUpdate{
		Participants: []*proto.ParticipantInfo{
			{Sid: "PA_remote1", Tracks: []*proto.TrackInfo{{Sid: "TR_1"}}},
		},
	})
	p := r.RemoteParticipants()[0]
	pub := p.Tracks["TR_1"]

	require.NoError(t, r.SetSubscribed(pub, true))
	require.NotNil(t, sent)
	require.NotNil(t, sent.Subscription)
	require.True(t, sent.Subscription.Subscribe)
	require.Equal(t, []string{"TR_1"}, sent.Subscription.TrackSids)
}

func hasKind(events []Event, kind EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}
