package datachannel

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

func newLoopbackChannels(t *testing.T) (*webrtc.DataChannel, *webrtc.DataChannel, func()) {
	t.Helper()
	offerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	answerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)

	dcCh := make(chan *webrtc.DataChannel, 1)
	answerPC.OnDataChannel(func(dc *webrtc.DataChannel) {
		dcCh <- dc
	})

	dc, err := offerPC.CreateDataChannel("test", nil)
	require.NoError(t, err)

	offerPC.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			_ = answerPC.AddICECandidate(c.ToJSON())
		}
	})
	answerPC.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			_ = offerPC.AddICECandidate(c.ToJSON())
		}
	})

	offer, err := offerPC.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, offerPC.SetLocalDescription(offer))
	require.NoError(t, answerPC.SetRemoteDescription(offer))
	answer, err := answerPC.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, answerPC.SetLocalDescription(answer))
	require.NoError(t, offerPC.SetRemoteDescription(answer))

	var remote *webrtc.DataChannel
	select {
	case remote = <-dcCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for remote data channel")
	}

	return dc, remote, func() {
		_ = offerPC.Close()
		_ = answerPC.Close()
	}
}

func TestSenderDeliversInOrder(t *testing.T) {
	dc, remote, cleanup := newLoopbackChannels(t)
	defer cleanup()

	received := make(chan []byte, 16)
	remote.OnMessage(func(msg webrtc.DataChannelMessage) {
		received <- msg.Data
	})

	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })
	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("channel never opened")
	}

	s := New(dc, "test")
	defer s.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Send([]byte{byte(i)}))
	}

	for i := 0; i < 10; i++ {
		select {
		case msg := <-received:
			require.Equal(t, byte(i), msg[0])
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestSenderCloseAbandonsQueue(t *testing.T) {
	dc, _, cleanup := newLoopbackChannels(t)
	defer cleanup()

	s := New(dc, "test")
	require.NoError(t, s.Send([]byte("a")))
	s.Close()

	require.Empty(t, s.queue)
	require.Error(t, s.Send([]byte("b")))
}
