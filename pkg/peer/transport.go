// Package peer implements PeerTransport (spec.md §4.C): one external
// PeerConnection tagged with a signaling target, with ICE-candidate
// buffering, single-in-flight offer/answer negotiation, and ICE restart.
package peer

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/logging"
)

// SignalTarget distinguishes the publisher and subscriber transports.
type SignalTarget int

const (
	Publisher SignalTarget = iota
	Subscriber
)

func (t SignalTarget) String() string {
	if t == Publisher {
		return "publisher"
	}
	return "subscriber"
}

// Transport wraps one *webrtc.PeerConnection.
type Transport struct {
	Target SignalTarget
	pc     *webrtc.PeerConnection

	mu                  sync.Mutex
	pendingCandidates   []webrtc.ICECandidateInit
	remoteDescSet       bool
	restartingIce       atomic.Bool
	renegotiatePending  atomic.Bool

	onOffer         func(webrtc.SessionDescription) error
	onICECandidate  func(*webrtc.ICECandidate)

	log *zap.SugaredLogger
}

// New wraps pc as a PeerTransport for the given signal target.
func New(target SignalTarget, pc *webrtc.PeerConnection) *Transport {
	t := &Transport{
		Target: target,
		pc:     pc,
		log:    logging.Named("peer-" + target.String()),
	}
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if t.onICECandidate != nil {
			t.onICECandidate(c)
		}
	})
	return t
}

// OnOffer registers the handler invoked by createAndSendOffer with the
// locally-created offer. Until bound, createAndSendOffer is a no-op.
func (t *Transport) OnOffer(fn func(webrtc.SessionDescription) error) {
	t.mu.Lock()
	t.onOffer = fn
	t.mu.Unlock()
}

// OnICECandidate registers the handler invoked with each locally-gathered
// ICE candidate.
func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	t.mu.Lock()
	t.onICECandidate = fn
	t.mu.Unlock()
}

func (t *Transport) PeerConnection() *webrtc.PeerConnection {
	return t.pc
}

func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	return t.pc.ConnectionState()
}

func (t *Transport) IsConnected() bool {
	return t.pc.ConnectionState() == webrtc.PeerConnectionStateConnected
}

// AddICECandidate applies the candidate directly once the remote description
// is set and no ICE restart is in progress; otherwise it is buffered for the
// next SetRemoteDescription to flush.
func (t *Transport) AddICECandidate(c webrtc.ICECandidateInit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remoteDescSet && !t.restartingIce.Load() {
		return t.pc.AddICECandidate(c)
	}
	t.pendingCandidates = append(t.pendingCandidates, c)
	return nil
}

// SetRemoteDescription applies sdp, flushes buffered candidates in
// insertion order, clears restartingIce, and resolves any
// renegotiatePending latch by creating a fresh offer.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(sdp); err != nil {
		return err
	}

	t.mu.Lock()
	pending := t.pendingCandidates
	t.pendingCandidates = nil
	t.remoteDescSet = true
	t.mu.Unlock()

	for _, c := range pending {
		if err := t.pc.AddICECandidate(c); err != nil {
			t.log.Warnw("failed to apply buffered ice candidate", err)
		}
	}

	t.restartingIce.Store(false)

	if t.renegotiatePending.CompareAndSwap(true, false) {
		return t.CreateAndSendOffer(OfferOptions{})
	}
	return nil
}

// OfferOptions mirrors webrtc.OfferOptions plus the spec's iceRestart flag.
type OfferOptions struct {
	IceRestart bool
}

// Negotiate always delegates to CreateAndSendOffer with default options; the
// 150ms coalescing window is implemented one level up, in pkg/session.
func (t *Transport) Negotiate() error {
	return t.CreateAndSendOffer(OfferOptions{})
}

// CreateAndSendOffer enforces at most one in-flight offer per transport
// (spec.md §4.C's state-machine guard).
func (t *Transport) CreateAndSendOffer(opts OfferOptions) error {
	t.mu.Lock()
	onOffer := t.onOffer
	if onOffer == nil {
		t.mu.Unlock()
		return nil
	}

	if opts.IceRestart {
		t.restartingIce.Store(true)
	}

	if t.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if opts.IceRestart {
			// Roll back the pending local offer by reapplying the current
			// remote description, then fall through to create a fresh one.
			remote := t.pc.RemoteDescription()
			t.mu.Unlock()
			if remote != nil {
				if err := t.pc.SetRemoteDescription(*remote); err != nil {
					return err
				}
			}
			t.mu.Lock()
		} else {
			t.renegotiatePending.Store(true)
			t.mu.Unlock()
			return nil
		}
	}
	t.mu.Unlock()

	offerOpts := &webrtc.OfferOptions{ICERestart: opts.IceRestart}
	offer, err := t.pc.CreateOffer(offerOpts)
	if err != nil {
		return err
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return onOffer(offer)
}

// CreateAnswer applies offer as the remote description and creates/applies
// the matching local answer.
func (t *Transport) CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// PrepareIceRestart marks the transport as mid ICE-restart so incoming
// candidates buffer until the next SetRemoteDescription.
func (t *Transport) PrepareIceRestart() {
	t.restartingIce.Store(true)
}

func (t *Transport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(fn)
}

func (t *Transport) OnDataChannel(fn func(*webrtc.DataChannel)) {
	t.pc.OnDataChannel(fn)
}

func (t *Transport) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	t.pc.OnTrack(fn)
}

func (t *Transport) CreateDataChannel(label string, init *webrtc.DataChannelInit) (*webrtc.DataChannel, error) {
	return t.pc.CreateDataChannel(label, init)
}

func (t *Transport) Close() error {
	return t.pc.Close()
}
