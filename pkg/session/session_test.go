package session

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"

	"github.com/livekit/client-sdk-go/pkg/proto"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	api := webrtc.NewAPI()
	join := &proto.JoinResponse{
		RoomSid:           "RM_test",
		Participant:       &proto.ParticipantInfo{Sid: "PA_test"},
		SubscriberPrimary: false,
	}
	s, err := New(api, join)
	require.NoError(t, err)
	return s
}

func TestNewSessionCreatesPublisherDataChannels(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	require.NotNil(t, s.reliableSender)
	require.NotNil(t, s.lossySender)
	require.Equal(t, proto.DataPacketReliable, (proto.DataPacketKind)(0))
}

func TestNegotiatePublisherEmitsOfferAfterDebounce(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	s.NegotiatePublisher()
	require.True(t, s.HasPublished())

	select {
	case ev := <-s.Events():
		require.Equal(t, EventPublisherOffer, ev.Kind)
		require.Equal(t, webrtc.SDPTypeOffer, ev.Offer.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publisher offer event")
	}
}

func TestEnsurePublisherConnectedNoOpWithoutSubscriberPrimary(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	err := s.EnsurePublisherConnected(proto.DataPacketReliable)
	require.NoError(t, err)
}
