// Package room implements Room, Participant, and TrackPublication (spec.md
// §4.H): the authoritative view the engine's events are folded into, plus
// media-to-publication correlation and subscription requests.
package room

import (
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/datastream"
	"github.com/livekit/client-sdk-go/pkg/engine"
	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/proto"
	"github.com/livekit/client-sdk-go/pkg/rpc"
)

// ConnectionState mirrors spec.md §3's Room connection-state enum.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateReconnecting
	StateConnected
)

// addTrackTimeout is spec.md's ADD_TRACK_TIMEOUT.
const addTrackTimeout = 5 * time.Second

const addTrackPollInterval = 20 * time.Millisecond

// Room is the authoritative, single-per-session view of participants and
// their published tracks.
type Room struct {
	Name string
	Sid  string

	mu     sync.RWMutex
	local  *LocalParticipant
	remote map[string]*RemoteParticipant // keyed by ParticipantSid
	state  ConnectionState

	send     func(*proto.SignalRequest) error
	rpc      *rpc.Service
	streams  *datastream.Manager
	dataSend rpc.Sender // set by AttachDataSender once the engine is wired

	events chan Event
	log    *zap.SugaredLogger
}

// New builds a Room from the join response, seeding the local participant
// and any participants already present at join time. send is used to issue
// UpdateSubscription requests.
func New(join *proto.JoinResponse, send func(*proto.SignalRequest) error) *Room {
	r := &Room{
		Name:   join.RoomName,
		Sid:    join.RoomSid,
		local:  newLocalParticipant(join.Participant),
		remote: make(map[string]*RemoteParticipant),
		state:  StateConnecting,
		send:   send,
		events: make(chan Event, 256),
		log:    logging.Named("room"),
	}
	r.rpc = rpc.New(r.local.Identity, r.sendDataPacket, r.resolveIdentity)
	r.streams = datastream.New(r.sendDataPacket)
	r.applyParticipantUpdate(&proto.ParticipantUpdate{Participants: join.OtherParticipants})
	return r
}

// AttachDataSender wires the room's outbound data path — PublishData and the
// RPC service's requests/responses — to the engine once it has connected.
// Before this is called, PublishData fails with a connection error and RPC
// calls fail with RpcSendFailed.
func (r *Room) AttachDataSender(send rpc.Sender) {
	r.mu.Lock()
	r.dataSend = send
	r.mu.Unlock()
}

// RPC returns the room's RPC service, used to register method handlers and
// perform calls against other participants (spec.md's RPC-over-data-channel
// supplement).
func (r *Room) RPC() *rpc.Service {
	return r.rpc
}

// Streams returns the room's data-stream manager, used to send and receive
// chunked byte/text transfers (spec.md's data-stream supplement).
func (r *Room) Streams() *datastream.Manager {
	return r.streams
}

// PublishData sends an application data message to the given destination
// identities (or, if empty, the whole room), carried as a DataPacket under
// topic.
func (r *Room) PublishData(payload []byte, kind proto.DataPacketKind, destinationIdentities []string, topic string) error {
	destSids := make([]string, 0, len(destinationIdentities))
	for _, identity := range destinationIdentities {
		if sid, ok := r.resolveIdentity(identity); ok {
			destSids = append(destSids, sid)
		}
	}
	var topicPtr *string
	if topic != "" {
		topicPtr = &topic
	}
	return r.publishPacket(&proto.DataPacket{
		Kind:            kind,
		ParticipantSid:  r.local.Sid,
		Payload:         payload,
		DestinationSids: destSids,
		Topic:           topicPtr,
	})
}

func (r *Room) sendDataPacket(payload []byte, kind proto.DataPacketKind, destinationSids []string, topic string) error {
	return r.publishPacket(&proto.DataPacket{
		Kind:            kind,
		ParticipantSid:  r.local.Sid,
		Payload:         payload,
		DestinationSids: destinationSids,
		Topic:           &topic,
	})
}

func (r *Room) publishPacket(pkt *proto.DataPacket) error {
	r.mu.RLock()
	send := r.dataSend
	r.mu.RUnlock()
	if send == nil {
		return lkerrors.NewConnectionError("room not attached to a data sender")
	}
	encoded, err := pkt.Marshal()
	if err != nil {
		return lkerrors.NewInternalError("failed to encode data packet")
	}
	topic := ""
	if pkt.Topic != nil {
		topic = *pkt.Topic
	}
	return send(encoded, pkt.Kind, pkt.DestinationSids, topic)
}

// resolveIdentity maps a participant identity to its current sid, for
// PublishData and RPC destination lookups.
func (r *Room) resolveIdentity(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.local.Identity == identity {
		return r.local.Sid, true
	}
	for _, p := range r.remote {
		if p.Identity == identity {
			return p.Sid, true
		}
	}
	return "", false
}

// Events returns the room's domain-event stream.
func (r *Room) Events() <-chan Event {
	return r.events
}

func (r *Room) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.log.Warnw("dropping room event, consumer too slow", nil)
	}
}

// LocalParticipant returns the room's own participant.
func (r *Room) LocalParticipant() *LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}

// RemoteParticipants returns a snapshot of the currently known remote
// participants.
func (r *Room) RemoteParticipants() []*RemoteParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RemoteParticipant, 0, len(r.remote))
	for _, p := range r.remote {
		out = append(out, p)
	}
	return out
}

func (r *Room) ConnectionState() ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Run consumes engine events until the channel closes, folding them into
// room state and translating to domain events. Call it from its own
// goroutine once the engine has connected.
func (r *Room) Run(events <-chan engine.Event) {
	for ev := range events {
		switch ev.Kind {
		case engine.EventConnected:
			r.setState(StateConnected)
		case engine.EventResuming:
			r.setState(StateReconnecting)
			r.emit(Event{Kind: EventReconnecting, Reason: ev.Reason})
		case engine.EventResumed:
			r.setState(StateConnected)
			r.emit(Event{Kind: EventReconnected})
		case engine.EventRestarting:
			r.setState(StateReconnecting)
			r.emit(Event{Kind: EventReconnecting, Reason: ev.Reason})
		case engine.EventRestarted:
			r.setState(StateConnected)
			r.emit(Event{Kind: EventReconnected})
		case engine.EventDisconnected:
			r.setState(StateDisconnected)
			r.emit(Event{Kind: EventDisconnected, Reason: ev.Reason})
		case engine.EventParticipantUpdate:
			r.applyParticipantUpdate(ev.ParticipantUpdate)
		case engine.EventSpeakersChanged:
			r.applySpeakersChanged(ev.SpeakersChanged)
		case engine.EventConnectionQuality:
			r.applyConnectionQuality(ev.ConnectionQuality)
		case engine.EventTrack:
			r.handleTrack(ev.Receiver, ev.RTPRecv)
		case engine.EventDataPacket:
			r.handleDataPacket(ev.Data, ev.DataKind)
		case engine.EventLeave:
			r.setState(StateDisconnected)
			r.emit(Event{Kind: EventDisconnected, Reason: lkerrors.NewConnectionError("server requested leave")})
		}
	}
}

func (r *Room) setState(s ConnectionState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// applyParticipantUpdate folds one ParticipantUpdate authoritatively
// (spec.md §4.H): upserts every listed participant, then removes any
// participant present locally but absent from the list.
func (r *Room) applyParticipantUpdate(update *proto.ParticipantUpdate) {
	if update == nil {
		return
	}

	r.mu.Lock()
	localSid := r.local.Sid
	seen := make(map[string]bool, len(update.Participants))

	var toEmit []Event
	for _, info := range update.Participants {
		if info.Sid == localSid {
			r.local.Name = info.Name
			r.local.Metadata = info.Metadata
			continue
		}
		seen[info.Sid] = true

		if info.State == proto.ParticipantDisconnected {
			if p, ok := r.remote[info.Sid]; ok {
				toEmit = append(toEmit, r.removeParticipantLocked(p)...)
			}
			continue
		}

		p, existed := r.remote[info.Sid]
		if !existed {
			p = newRemoteParticipant(info)
			r.remote[info.Sid] = p
			toEmit = append(toEmit, Event{Kind: EventParticipantConnected, Participant: p})
		}

		published, unpublishedSids := p.updateInfo(info)
		for _, pub := range published {
			toEmit = append(toEmit, Event{Kind: EventTrackPublished, Participant: p, Publication: pub})
		}
		for _, sid := range unpublishedSids {
			if pub, ok := p.Tracks[sid]; ok {
				if pub.Track != nil {
					toEmit = append(toEmit, Event{Kind: EventTrackUnsubscribed, Participant: p, Publication: pub})
				}
				toEmit = append(toEmit, Event{Kind: EventTrackUnpublished, Participant: p, Publication: pub})
				delete(p.Tracks, sid)
			}
		}
	}

	for sid, p := range r.remote {
		if !seen[sid] {
			toEmit = append(toEmit, r.removeParticipantLocked(p)...)
		}
	}
	r.mu.Unlock()

	for _, ev := range toEmit {
		r.emit(ev)
	}
}

// removeParticipantLocked must be called with r.mu held. It emits
// TrackUnsubscribed for every publication that still had an active track,
// then ParticipantDisconnected, and deletes the participant.
func (r *Room) removeParticipantLocked(p *RemoteParticipant) []Event {
	var events []Event
	for _, pub := range p.Tracks {
		if pub.Track != nil {
			events = append(events, Event{Kind: EventTrackUnsubscribed, Participant: p, Publication: pub})
		}
	}
	events = append(events, Event{Kind: EventParticipantDisconnected, Participant: p})
	delete(r.remote, p.Sid)
	return events
}

func (r *Room) applySpeakersChanged(msg *proto.SpeakersChanged) {
	if msg == nil {
		return
	}
	r.mu.Lock()
	var speaking []*RemoteParticipant
	speakingSids := make(map[string]bool, len(msg.Speakers))
	for _, info := range msg.Speakers {
		speakingSids[info.Sid] = info.Active
		if info.Sid == r.local.Sid {
			r.local.Speaking = info.Active
			r.local.AudioLevel = info.Level
			continue
		}
		if p, ok := r.remote[info.Sid]; ok {
			p.Speaking = info.Active
			p.AudioLevel = info.Level
			if info.Active {
				speaking = append(speaking, p)
			}
		}
	}
	for sid, p := range r.remote {
		if !speakingSids[sid] {
			p.Speaking = false
		}
	}
	r.mu.Unlock()

	r.emit(Event{Kind: EventActiveSpeakersChanged, Speakers: speaking})
}

func (r *Room) applyConnectionQuality(msg *proto.ConnectionQualityUpdate) {
	if msg == nil {
		return
	}
	r.mu.Lock()
	for _, u := range msg.Updates {
		if u.ParticipantSid == r.local.Sid {
			r.local.ConnectionQuality = ConnectionQuality(u.Quality)
			continue
		}
		if p, ok := r.remote[u.ParticipantSid]; ok {
			p.ConnectionQuality = ConnectionQuality(u.Quality)
		}
	}
	r.mu.Unlock()
	r.emit(Event{Kind: EventConnectionQualityChanged})
}

// handleTrack implements spec.md §4.H's media→publication correlation: the
// track's stream id decodes to a participant sid and track sid; if the
// publication isn't known yet (a race with ParticipantUpdate) it polls for
// up to addTrackTimeout before giving up.
func (r *Room) handleTrack(recv *webrtc.TrackRemote, rtpRecv *webrtc.RTPReceiver) {
	if recv == nil {
		return
	}
	participantSid, trackSid := unpackStreamID(recv.StreamID())
	if trackSid == "" {
		trackSid = recv.ID()
	}

	go func() {
		deadline := time.Now().Add(addTrackTimeout)
		for {
			if pub, participant, ok := r.findPublication(participantSid, trackSid); ok {
				track := newRemoteTrack(recv)
				track.onMuted = func() {
					r.emit(Event{Kind: EventTrackMuted, Participant: participant, Publication: pub})
				}
				track.onUnmuted = func() {
					r.emit(Event{Kind: EventTrackUnmuted, Participant: participant, Publication: pub})
				}
				pub.Track = track
				r.emit(Event{Kind: EventTrackSubscribed, Participant: participant, Publication: pub})
				return
			}
			if time.Now().After(deadline) {
				r.emit(Event{Kind: EventTrackSubscriptionFailed, Reason: lkerrors.NewTrackNotFound(trackSid)})
				return
			}
			time.Sleep(addTrackPollInterval)
		}
	}()
}

// handleDataPacket decodes a raw inbound data message, routing RPC-topic
// packets to the RPC service and data-stream-topic packets to the stream
// manager, and surfacing everything else as a generic application data event.
func (r *Room) handleDataPacket(raw []byte, kind proto.DataPacketKind) {
	var pkt proto.DataPacket
	if err := pkt.Unmarshal(raw); err != nil {
		r.log.Warnw("dropping unparseable data packet", err)
		return
	}
	pkt.Kind = kind

	if pkt.Topic != nil {
		switch *pkt.Topic {
		case rpc.TopicRequest, rpc.TopicResponse:
			r.rpc.HandleDataPacket(&pkt)
			return
		case datastream.TopicHeader, datastream.TopicChunk:
			r.streams.HandleDataPacket(&pkt)
			return
		}
	}

	r.emit(Event{Kind: EventDataReceived, Data: pkt.Payload, DataKind: kind, FromSid: pkt.ParticipantSid})
}

func (r *Room) findPublication(participantSid, trackSid string) (*TrackPublication, *RemoteParticipant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.remote[participantSid]; ok {
		if pub, ok := p.Tracks[trackSid]; ok {
			return pub, p, true
		}
	}
	for _, p := range r.remote {
		if pub, ok := p.Tracks[trackSid]; ok {
			return pub, p, true
		}
	}
	return nil, nil, false
}

// SetSubscribed implements spec.md §4.H's subscription request: it mutates
// the local desired flag and sends UpdateSubscription, emitting
// SubscriptionStatusChanged only when the effective state actually flips.
func (r *Room) SetSubscribed(pub *TrackPublication, want bool) error {
	r.mu.Lock()
	before := pub.IsSubscribed()
	pub.subscribed = want
	after := pub.IsSubscribed()
	r.mu.Unlock()

	if before != after {
		r.emit(Event{Kind: EventSubscriptionStatusChanged, Publication: pub})
	}

	return r.send(&proto.SignalRequest{Subscription: &proto.UpdateSubscription{
		TrackSids: []string{pub.Sid},
		Subscribe: want,
	}})
}

// unpackStreamID decodes a WebRTC stream id of the form
// "<participantSid>|<trackSid>", the convention the server uses when
// constructing remote track msids. A stream id without the separator is
// treated as a bare track id with no known participant.
func unpackStreamID(streamID string) (participantSid, trackSid string) {
	idx := strings.Index(streamID, "|")
	if idx < 0 {
		return "", streamID
	}
	return streamID[:idx], streamID[idx+1:]
}
