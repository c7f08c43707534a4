package room

import (
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// TrackPublication is the common inner of Local/RemoteTrackPublication
// (spec.md §3: "TrackPublication").
type TrackPublication struct {
	Sid         string
	Name        string
	Kind        TrackKind
	Source      TrackSource
	Simulcasted bool
	Width       uint32
	Height      uint32
	MimeType    string
	muted       bool
	Track       *Track

	// Remote-only. Invariant: isSubscribed == subscribed && allowed &&
	// track != nil (spec.md §3).
	subscribed bool
	allowed    bool
}

// Muted reports the publication's muted flag.
func (p *TrackPublication) Muted() bool {
	return p.muted
}

// IsSubscribed computes the effective subscription state (spec.md §3's
// TrackPublication invariant).
func (p *TrackPublication) IsSubscribed() bool {
	return p.subscribed && p.allowed && p.Track != nil
}

func newPublicationFromInfo(info *proto.TrackInfo) *TrackPublication {
	return &TrackPublication{
		Sid:         info.Sid,
		Name:        info.Name,
		Kind:        TrackKind(info.Type),
		Source:      TrackSource(info.Source),
		Simulcasted: info.Simulcast,
		Width:       info.Width,
		Height:      info.Height,
		MimeType:    info.MimeType,
		muted:       info.Muted,
		allowed:     true,
	}
}

// updateInfo applies a fresh TrackInfo onto an existing publication,
// surfacing a Muted/Unmuted event when the muted flag actually flips.
func (p *TrackPublication) updateInfo(info *proto.TrackInfo, onMuteChange func(muted bool)) {
	p.Name = info.Name
	p.Kind = TrackKind(info.Type)
	p.Source = TrackSource(info.Source)
	p.Simulcasted = info.Simulcast
	p.Width = info.Width
	p.Height = info.Height
	p.MimeType = info.MimeType
	if p.muted != info.Muted {
		p.muted = info.Muted
		if onMuteChange != nil {
			onMuteChange(info.Muted)
		}
	}
}
