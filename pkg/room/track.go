package room

import (
	"github.com/pion/webrtc/v3"
)

// TrackKind mirrors proto.TrackKind without importing the wire package into
// the public room surface.
type TrackKind int

const (
	TrackKindAudio TrackKind = iota
	TrackKindVideo
)

// TrackSource mirrors proto.TrackSource.
type TrackSource int

const (
	TrackSourceUnknown TrackSource = iota
	TrackSourceCamera
	TrackSourceMicrophone
	TrackSourceScreenshare
	TrackSourceScreenshareAudio
)

// Track wraps an external media-stream-track handle (spec.md §3: "Track").
type Track struct {
	Remote *webrtc.TrackRemote
	Sender *webrtc.RTPSender // set for locally published tracks

	muted bool

	onMuted   func()
	onUnmuted func()
}

func newRemoteTrack(remote *webrtc.TrackRemote) *Track {
	return &Track{Remote: remote}
}

// Muted reports the track's current mute state.
func (t *Track) Muted() bool {
	return t.muted
}

// SetMuted records the track's mute state and invokes the matching
// onMuted/onUnmuted callback, which the room wires to emit TrackMuted/
// TrackUnmuted events when it attaches a subscribed remote track. No flag on
// the underlying webrtc track is changed.
func (t *Track) SetMuted(muted bool) {
	if t.muted == muted {
		return
	}
	t.muted = muted
	if muted {
		if t.onMuted != nil {
			t.onMuted()
		}
		return
	}
	if t.onUnmuted != nil {
		t.onUnmuted()
	}
}
