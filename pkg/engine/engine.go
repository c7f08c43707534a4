// Package engine implements RtcEngine (spec.md §4.G): the state machine
// holding the current RtcSession, driving the initial connect, and escalating
// through the resume/restart reconnection ladder.
package engine

import (
	"context"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/peer"
	"github.com/livekit/client-sdk-go/pkg/proto"
	"github.com/livekit/client-sdk-go/pkg/session"
	"github.com/livekit/client-sdk-go/pkg/signal"
)

// State is the engine's connection state (spec.md §4.G).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateResuming
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateResuming:
		return "resuming"
	case StateRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// ConnectOptions mirror the signal connect options the engine threads
// through to every (re)connect.
type ConnectOptions struct {
	AutoSubscribe  bool
	AdaptiveStream bool
}

// Engine is RtcEngine.
type Engine struct {
	url   string
	token string
	api   *webrtc.API
	opts  ConnectOptions

	mu           sync.RWMutex
	state        State
	sess         *session.Session
	signalClient *signal.Client

	resumeAttempts  int
	restartAttempts int

	events chan Event
	closed core.Fuse

	log *zap.SugaredLogger
}

// New creates an Engine for the given server URL/token. api supplies the
// codec set and ICE settings for every peer connection the engine builds;
// callers typically pass the result of pkg/peer.NewAPI.
func New(url, token string, api *webrtc.API, opts ConnectOptions) *Engine {
	return &Engine{
		url:    url,
		token:  token,
		api:    api,
		opts:   opts,
		events: make(chan Event, 256),
		closed: core.NewFuse(),
		log:    logging.Named("rtc-engine"),
	}
}

// Events returns the engine's event stream: connection-lifecycle events plus
// every session-level event (participant/track/data/speaker/quality/leave)
// passed through for the room layer to apply.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	case <-e.closed.Watch():
	}
}

// Connect performs the initial handshake: opens the signal client, awaits
// the join response, builds the session, and — for a non-subscriber-primary
// room — kicks off publisher negotiation before reporting Connected.
func (e *Engine) Connect(ctx context.Context) (*proto.JoinResponse, error) {
	e.setState(StateConnecting)

	client := signal.NewClient(e.url, e.token)
	join, err := client.Connect(ctx, signal.ConnectOptions{
		AutoSubscribe:  e.opts.AutoSubscribe,
		AdaptiveStream: e.opts.AdaptiveStream,
	})
	if err != nil {
		e.setState(StateDisconnected)
		return nil, lkerrors.WrapSignal(err)
	}

	sess, err := session.New(e.api, join)
	if err != nil {
		client.Close()
		e.setState(StateDisconnected)
		return nil, err
	}

	e.mu.Lock()
	e.signalClient = client
	e.sess = sess
	e.resumeAttempts = 0
	e.restartAttempts = 0
	e.mu.Unlock()

	client.OnSignal = func(msg *proto.SignalResponse) {
		e.handleSignal(msg)
	}
	client.OnClose = func(err error) {
		e.onSessionDown(lkerrors.WrapSignal(err))
	}

	go e.pumpSession(sess)

	if !join.SubscriberPrimary {
		sess.NegotiatePublisher()
	}

	e.setState(StateConnected)
	e.emit(Event{Kind: EventConnected})

	return join, nil
}

func (e *Engine) handleSignal(msg *proto.SignalResponse) {
	e.mu.RLock()
	sess := e.sess
	client := e.signalClient
	e.mu.RUnlock()
	if sess == nil {
		return
	}
	sess.HandleSignal(msg, client.Send)
}

// pumpSession forwards session events to the engine's own stream and watches
// for the connection-state transitions that trigger reconnection.
func (e *Engine) pumpSession(sess *session.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case session.EventConnectionChange:
			if ev.State == webrtc.PeerConnectionStateFailed && e.State() == StateConnected {
				go e.onSessionDown(lkerrors.NewConnectionError(ev.Target.String() + " transport failed"))
			}
		case session.EventIceCandidate:
			e.sendTrickle(ev)
		case session.EventPublisherOffer:
			e.sendOffer(ev)
		case session.EventParticipantUpdate:
			e.emit(Event{Kind: EventParticipantUpdate, ParticipantUpdate: ev.ParticipantUpdate})
		case session.EventSpeakersChanged:
			e.emit(Event{Kind: EventSpeakersChanged, SpeakersChanged: ev.SpeakersChanged})
		case session.EventConnectionQuality:
			e.emit(Event{Kind: EventConnectionQuality, ConnectionQuality: ev.ConnectionQuality})
		case session.EventTrack:
			e.emit(Event{Kind: EventTrack, Receiver: ev.Receiver, RTPRecv: ev.RTPRecv})
		case session.EventDataPacket:
			e.emit(Event{Kind: EventDataPacket, Data: ev.Data, DataKind: ev.DataKind})
		case session.EventLeave:
			e.emit(Event{Kind: EventLeave, Leave: ev.Leave})
			if ev.Leave.CanReconnect {
				go e.onSessionDown(lkerrors.NewConnectionError("server requested leave"))
			} else {
				go e.Close()
			}
		}
	}
}

// SendSignal issues an arbitrary signal request against the current signal
// client, e.g. the room layer's UpdateSubscription requests.
func (e *Engine) SendSignal(req *proto.SignalRequest) error {
	e.mu.RLock()
	client := e.signalClient
	e.mu.RUnlock()
	if client == nil {
		return lkerrors.NewConnectionError("not connected")
	}
	return client.Send(req)
}

// PublishData hands an already-encoded DataPacket to the current session,
// warming up the publisher connection if necessary (spec.md §4.F).
func (e *Engine) PublishData(encoded []byte, kind proto.DataPacketKind) error {
	e.mu.RLock()
	sess := e.sess
	e.mu.RUnlock()
	if sess == nil {
		return lkerrors.NewConnectionError("not connected")
	}
	return sess.PublishData(encoded, kind)
}

func (e *Engine) sendTrickle(ev session.Event) {
	e.mu.RLock()
	client := e.signalClient
	e.mu.RUnlock()
	if client == nil || ev.Candidate == nil {
		return
	}
	init := ev.Candidate.ToJSON()
	raw, err := marshalCandidate(init)
	if err != nil {
		e.log.Warnw("failed to marshal ice candidate", err)
		return
	}
	target := proto.SignalTargetPublisher
	if ev.Target == peer.Subscriber {
		target = proto.SignalTargetSubscriber
	}
	if err := client.Send(&proto.SignalRequest{Trickle: &proto.TrickleRequest{CandidateInit: raw, Target: target}}); err != nil {
		e.log.Warnw("failed to send trickle candidate", err)
	}
}

func (e *Engine) sendOffer(ev session.Event) {
	e.mu.RLock()
	client := e.signalClient
	e.mu.RUnlock()
	if client == nil {
		return
	}
	req := &proto.SignalRequest{Offer: &proto.SessionDescription{Type: ev.Offer.Type.String(), Sdp: ev.Offer.SDP}}
	if err := client.Send(req); err != nil {
		e.log.Warnw("failed to send publisher offer", err)
	}
}

// Close tears the engine down: the current session and signal client.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed.IsBroken() {
		e.mu.Unlock()
		return
	}
	e.closed.Break()
	sess := e.sess
	client := e.signalClient
	e.sess = nil
	e.signalClient = nil
	e.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	if client != nil {
		client.Close()
	}
	e.setState(StateDisconnected)
	close(e.events)
}
