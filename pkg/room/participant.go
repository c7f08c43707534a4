package room

import (
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// ConnectionQuality mirrors proto.ConnectionQuality.
type ConnectionQuality int

const (
	ConnectionQualityUnknown ConnectionQuality = iota
	ConnectionQualityPoor
	ConnectionQualityGood
	ConnectionQualityExcellent
)

// Participant is the common inner of Local/RemoteParticipant (spec.md §3).
// Invariant upheld by the room: two participants sharing an identity cannot
// coexist; sids may be reissued across reconnects and are replaced
// atomically by the room's ParticipantUpdate handling.
type Participant struct {
	Sid               string
	Identity          string
	Name              string
	Metadata          string
	Speaking          bool
	AudioLevel        float32
	ConnectionQuality ConnectionQuality

	Tracks map[string]*TrackPublication // keyed by TrackSid
}

func newParticipant(info *proto.ParticipantInfo) *Participant {
	p := &Participant{
		Sid:      info.Sid,
		Identity: info.Identity,
		Name:     info.Name,
		Metadata: info.Metadata,
		Tracks:   make(map[string]*TrackPublication),
	}
	return p
}

// LocalParticipant is the room's own participant.
type LocalParticipant struct {
	Participant
}

func newLocalParticipant(info *proto.ParticipantInfo) *LocalParticipant {
	return &LocalParticipant{Participant: *newParticipant(info)}
}

// RemoteParticipant is a participant other than the local one.
type RemoteParticipant struct {
	Participant
}

func newRemoteParticipant(info *proto.ParticipantInfo) *RemoteParticipant {
	return &RemoteParticipant{Participant: *newParticipant(info)}
}

// updateInfo upserts each of entry's tracks as a publication, returning the
// publications that are new (for TrackPublished) and the sids of those
// dropped from entry relative to the participant's prior track set (for an
// unpublish the room should react to).
func (p *Participant) updateInfo(entry *proto.ParticipantInfo) (published []*TrackPublication, unpublishedSids []string) {
	p.Name = entry.Name
	p.Metadata = entry.Metadata

	seen := make(map[string]bool, len(entry.Tracks))
	for _, ti := range entry.Tracks {
		seen[ti.Sid] = true
		if existing, ok := p.Tracks[ti.Sid]; ok {
			existing.updateInfo(ti, nil)
			continue
		}
		pub := newPublicationFromInfo(ti)
		p.Tracks[ti.Sid] = pub
		published = append(published, pub)
	}

	for sid := range p.Tracks {
		if !seen[sid] {
			unpublishedSids = append(unpublishedSids, sid)
		}
	}
	return published, unpublishedSids
}
