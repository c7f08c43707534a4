// Package session implements RtcSession (spec.md §4.F): publisher/subscriber
// peer transports, the two publisher data channels, negotiation debounce,
// publisher warm-up, and signal-to-session dispatch.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/frostbyte73/core"
	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/datachannel"
	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/peer"
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// negotiationFrequency is spec.md's NEGOTIATION_FREQUENCY.
const negotiationFrequency = 150 * time.Millisecond

// maxIceConnectTimeout is spec.md's MAX_ICE_CONNECT_TIMEOUT.
const maxIceConnectTimeout = 15 * time.Second

const icePollInterval = 50 * time.Millisecond

const (
	reliableLabel = "_reliable"
	lossyLabel    = "_lossy"
)

// Session is RtcSession. A session is never mutated across a reconnect
// boundary: reconnection always constructs a fresh one (spec.md §3's
// RtcSession invariant).
type Session struct {
	Join *proto.JoinResponse

	subscriberPrimary bool
	hasPublished      atomic.Bool

	publisher  *peer.Transport
	subscriber *peer.Transport

	reliableSender *datachannel.Sender
	lossySender    *datachannel.Sender

	negotiateDebounced func(func())

	events chan Event
	closed core.Fuse

	mu sync.Mutex

	log *zap.SugaredLogger
}

// New constructs an RtcSession from a decoded JoinResponse, using api to
// build both peer connections with the ICE server list the join response
// carries.
func New(api *webrtc.API, join *proto.JoinResponse) (*Session, error) {
	cfg := webrtc.Configuration{ICEServers: iceServers(join.IceServers)}

	pubPC, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, lkerrors.WrapRtc(err)
	}
	subPC, err := api.NewPeerConnection(cfg)
	if err != nil {
		pubPC.Close()
		return nil, lkerrors.WrapRtc(err)
	}

	s := &Session{
		Join:              join,
		subscriberPrimary: join.SubscriberPrimary,
		publisher:         peer.New(peer.Publisher, pubPC),
		subscriber:        peer.New(peer.Subscriber, subPC),
		events:            make(chan Event, 256),
		closed:            core.NewFuse(),
		log:               logging.Named("rtc-session"),
	}
	s.negotiateDebounced = debounce.New(negotiationFrequency)

	reliableDC, err := pubPC.CreateDataChannel(reliableLabel, &webrtc.DataChannelInit{})
	if err != nil {
		s.Close()
		return nil, lkerrors.WrapRtc(err)
	}
	ordered := false
	maxRetransmits := uint16(0)
	lossyDC, err := pubPC.CreateDataChannel(lossyLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		s.Close()
		return nil, lkerrors.WrapRtc(err)
	}
	s.reliableSender = datachannel.New(reliableDC, reliableLabel)
	s.lossySender = datachannel.New(lossyDC, lossyLabel)

	s.wireEvents()

	return s, nil
}

func iceServers(infos []*proto.ICEServerInfo) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(infos))
	for _, info := range infos {
		out = append(out, webrtc.ICEServer{
			URLs:       info.Urls,
			Username:   info.Username,
			Credential: info.Credential,
		})
	}
	return out
}

func (s *Session) wireEvents() {
	s.publisher.OnICECandidate(func(c *webrtc.ICECandidate) {
		s.emit(Event{Kind: EventIceCandidate, Target: peer.Publisher, Candidate: c})
	})
	s.subscriber.OnICECandidate(func(c *webrtc.ICECandidate) {
		s.emit(Event{Kind: EventIceCandidate, Target: peer.Subscriber, Candidate: c})
	})

	s.publisher.OnOffer(func(sdp webrtc.SessionDescription) error {
		s.emit(Event{Kind: EventPublisherOffer, Offer: sdp})
		return nil
	})

	s.publisher.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.emit(Event{Kind: EventConnectionChange, Target: peer.Publisher, State: state})
	})
	s.subscriber.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.emit(Event{Kind: EventConnectionChange, Target: peer.Subscriber, State: state})
	})

	s.subscriber.OnTrack(func(track *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
		s.emit(Event{Kind: EventTrack, Receiver: track, RTPRecv: recv})
	})
	s.subscriber.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.emit(Event{Kind: EventDataChannel, Target: peer.Subscriber, DataChannel: dc})
		kind := proto.DataPacketReliable
		if dc.Label() == lossyLabel {
			kind = proto.DataPacketLossy
		}
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			s.emit(Event{Kind: EventDataPacket, Data: msg.Data, DataKind: kind})
		})
	})
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.closed.Watch():
	}
}

// Events returns the session's single fan-in event stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// NegotiatePublisher sets hasPublished and schedules a coalesced offer after
// negotiationFrequency; concurrent calls collapse into the single pending
// invocation (spec.md §4.F).
func (s *Session) NegotiatePublisher() {
	s.hasPublished.Store(true)
	s.negotiateDebounced(func() {
		if err := s.publisher.CreateAndSendOffer(peer.OfferOptions{}); err != nil {
			s.log.Warnw("failed to create publisher offer", err)
		}
	})
}

// HasPublished reports whether NegotiatePublisher has ever been called on
// this session.
func (s *Session) HasPublished() bool {
	return s.hasPublished.Load()
}

// EnsurePublisherConnected implements spec.md §4.F's publisher warm-up: a
// no-op unless the join response marked subscriberPrimary, in which case it
// negotiates if needed and blocks until both the publisher transport and the
// requested data channel are open, or maxIceConnectTimeout elapses.
func (s *Session) EnsurePublisherConnected(kind proto.DataPacketKind) error {
	if !s.subscriberPrimary {
		return nil
	}

	if !s.publisher.IsConnected() && s.publisher.PeerConnection().ICEConnectionState() != webrtc.ICEConnectionStateChecking {
		s.NegotiatePublisher()
	}

	deadline := time.Now().Add(maxIceConnectTimeout)
	for time.Now().Before(deadline) {
		if s.publisher.IsConnected() && s.dataChannelOpen(kind) {
			return nil
		}
		select {
		case <-time.After(icePollInterval):
		case <-s.closed.Watch():
			return lkerrors.NewConnectionError("session closed while waiting for publisher")
		}
	}
	return lkerrors.NewConnectionError("timed out waiting for publisher connection")
}

func (s *Session) dataChannelOpen(kind proto.DataPacketKind) bool {
	sender := s.senderFor(kind)
	return sender != nil && sender.ReadyState() == webrtc.DataChannelStateOpen
}

func (s *Session) senderFor(kind proto.DataPacketKind) *datachannel.Sender {
	if kind == proto.DataPacketLossy {
		return s.lossySender
	}
	return s.reliableSender
}

// PublishData implements spec.md §4.F's data egress: warm up the publisher,
// then hand the already-encoded packet to the matching DataChannelSender.
func (s *Session) PublishData(encoded []byte, kind proto.DataPacketKind) error {
	if err := s.EnsurePublisherConnected(kind); err != nil {
		return err
	}
	sender := s.senderFor(kind)
	if sender == nil {
		return lkerrors.NewInternalError("no data channel sender for kind")
	}
	return sender.Send(encoded)
}

// HandleSignal dispatches one inbound SignalResponse per spec.md §4.F's
// signal→session table. JoinResponse is consumed during connect and never
// reaches here; a Pong falls through to the default case and is only logged.
func (s *Session) HandleSignal(msg *proto.SignalResponse, send func(*proto.SignalRequest) error) {
	switch {
	case msg.Answer != nil:
		sdp := toSDP(webrtc.SDPTypeAnswer, msg.Answer)
		if err := s.publisher.SetRemoteDescription(sdp); err != nil {
			s.log.Warnw("failed to apply publisher answer", err)
		}

	case msg.Offer != nil:
		offer := toSDP(webrtc.SDPTypeOffer, msg.Offer)
		answer, err := s.subscriber.CreateAnswer(offer)
		if err != nil {
			s.log.Warnw("failed to create subscriber answer", err)
			return
		}
		if err := send(&proto.SignalRequest{Answer: fromSDP(answer)}); err != nil {
			s.log.Warnw("failed to send subscriber answer", err)
		}

	case msg.Trickle != nil:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(msg.Trickle.CandidateInit), &init); err != nil {
			s.log.Warnw("failed to parse trickle candidate", err)
			return
		}
		target := s.transportFor(msg.Trickle.Target)
		if err := target.AddICECandidate(init); err != nil {
			s.log.Warnw("failed to apply trickle candidate", err)
		}

	case msg.Update != nil:
		s.emit(Event{Kind: EventParticipantUpdate, ParticipantUpdate: msg.Update})

	case msg.SpeakersChanged != nil:
		s.emit(Event{Kind: EventSpeakersChanged, SpeakersChanged: msg.SpeakersChanged})

	case msg.ConnectionQuality != nil:
		s.emit(Event{Kind: EventConnectionQuality, ConnectionQuality: msg.ConnectionQuality})

	case msg.Leave != nil:
		s.emit(Event{Kind: EventLeave, Leave: msg.Leave})

	case msg.TrackPublished != nil, msg.TrackUnpublished != nil, msg.RefreshToken != nil:
		// No session-local state to update, and no event is emitted: these
		// signals are accepted and ignored.

	default:
		s.log.Debugw("unhandled signal response", "message", fmt.Sprintf("%+v", msg))
	}
}

func (s *Session) transportFor(target proto.SignalTarget) *peer.Transport {
	if target == proto.SignalTargetSubscriber {
		return s.subscriber
	}
	return s.publisher
}

func toSDP(typ webrtc.SDPType, sdp *proto.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: typ, SDP: sdp.Sdp}
}

func fromSDP(sdp webrtc.SessionDescription) *proto.SessionDescription {
	return &proto.SessionDescription{Type: sdp.Type.String(), Sdp: sdp.SDP}
}

// Publisher and Subscriber expose the underlying transports for
// engine-level ICE restart and connection-state inspection.
func (s *Session) Publisher() *peer.Transport  { return s.publisher }
func (s *Session) Subscriber() *peer.Transport { return s.subscriber }

// Close tears the session down: both peer connections, both data-channel
// senders, and the event stream. All derived goroutines terminate
// deterministically via the closed fuse.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.IsBroken() {
		return
	}
	s.closed.Break()

	if s.reliableSender != nil {
		s.reliableSender.Close()
	}
	if s.lossySender != nil {
		s.lossySender.Close()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.subscriber != nil {
		s.subscriber.Close()
	}
	close(s.events)
}
