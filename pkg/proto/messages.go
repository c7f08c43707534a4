package proto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// --- enums -----------------------------------------------------------------

type SignalTarget int32

const (
	SignalTargetPublisher SignalTarget = iota
	SignalTargetSubscriber
)

type TrackKind int32

const (
	TrackKindAudio TrackKind = iota
	TrackKindVideo
)

type TrackSource int32

const (
	TrackSourceUnknown TrackSource = iota
	TrackSourceCamera
	TrackSourceMicrophone
	TrackSourceScreenshare
	TrackSourceScreenshareAudio
)

type DataPacketKind int32

const (
	DataPacketReliable DataPacketKind = iota
	DataPacketLossy
)

type ConnectionQuality int32

const (
	ConnectionQualityUnknown ConnectionQuality = iota
	ConnectionQualityPoor
	ConnectionQualityGood
	ConnectionQualityExcellent
)

type ParticipantState int32

const (
	ParticipantJoining ParticipantState = iota
	ParticipantJoined
	ParticipantActive
	ParticipantDisconnected
)

// --- session description / trickle -----------------------------------------

type SessionDescription struct {
	Type string
	Sdp  string
}

func (m *SessionDescription) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Type)
	w.str(2, m.Sdp)
	return w.buf, nil
}

func (m *SessionDescription) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Type = v
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Sdp = v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type TrickleRequest struct {
	CandidateInit string
	Target        SignalTarget
}

func (m *TrickleRequest) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.CandidateInit)
	w.int32(2, int32(m.Target))
	return w.buf, nil
}

func (m *TrickleRequest) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.CandidateInit = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Target = SignalTarget(int32(v))
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

// --- requests ----------------------------------------------------------------

type AddTrackRequest struct {
	Cid        string
	Name       string
	Type       TrackKind
	Source     TrackSource
	Muted      bool
	Width      uint32
	Height     uint32
	Simulcast  bool
	DisableDtx bool
	DisableRed bool
}

func (m *AddTrackRequest) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Cid)
	w.str(2, m.Name)
	w.int32(3, int32(m.Type))
	w.int32(4, int32(m.Source))
	w.bool(5, m.Muted)
	w.uint32(6, m.Width)
	w.uint32(7, m.Height)
	w.bool(8, m.Simulcast)
	w.bool(9, m.DisableDtx)
	w.bool(10, m.DisableRed)
	return w.buf, nil
}

func (m *AddTrackRequest) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Cid = v
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Name = v
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Type = TrackKind(int32(v))
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, b)
			m.Source = TrackSource(int32(v))
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, b)
			m.Muted = v != 0
			return n, err
		case 6:
			v, n, err := consumeVarint(typ, b)
			m.Width = uint32(v)
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, b)
			m.Height = uint32(v)
			return n, err
		case 8:
			v, n, err := consumeVarint(typ, b)
			m.Simulcast = v != 0
			return n, err
		case 9:
			v, n, err := consumeVarint(typ, b)
			m.DisableDtx = v != 0
			return n, err
		case 10:
			v, n, err := consumeVarint(typ, b)
			m.DisableRed = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type MuteTrackRequest struct {
	Sid   string
	Muted bool
}

func (m *MuteTrackRequest) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Sid)
	w.bool(2, m.Muted)
	return w.buf, nil
}

func (m *MuteTrackRequest) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Sid = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Muted = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type UpdateSubscription struct {
	TrackSids []string
	Subscribe bool
}

func (m *UpdateSubscription) Marshal() ([]byte, error) {
	w := &writer{}
	w.strs(1, m.TrackSids)
	w.bool(2, m.Subscribe)
	return w.buf, nil
}

func (m *UpdateSubscription) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.TrackSids = append(m.TrackSids, v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Subscribe = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type UpdateTrackSettings struct {
	TrackSids []string
	Disabled  bool
	Quality   int32
}

func (m *UpdateTrackSettings) Marshal() ([]byte, error) {
	w := &writer{}
	w.strs(1, m.TrackSids)
	w.bool(2, m.Disabled)
	w.int32(3, m.Quality)
	return w.buf, nil
}

func (m *UpdateTrackSettings) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.TrackSids = append(m.TrackSids, v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Disabled = v != 0
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Quality = int32(v)
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type LeaveRequest struct {
	Reason int32
}

func (m *LeaveRequest) Marshal() ([]byte, error) {
	w := &writer{}
	w.int32(1, m.Reason)
	return w.buf, nil
}

func (m *LeaveRequest) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.Reason = int32(v)
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type UpdateParticipantMetadata struct {
	Metadata string
	Name     string
}

func (m *UpdateParticipantMetadata) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Metadata)
	w.str(2, m.Name)
	return w.buf, nil
}

func (m *UpdateParticipantMetadata) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Metadata = v
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Name = v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

// --- SignalRequest envelope --------------------------------------------------

type SignalRequest struct {
	Offer          *SessionDescription
	Answer         *SessionDescription
	Trickle        *TrickleRequest
	AddTrack       *AddTrackRequest
	Mute           *MuteTrackRequest
	Subscription   *UpdateSubscription
	TrackSetting   *UpdateTrackSettings
	Leave          *LeaveRequest
	Ping           *int64
	UpdateMetadata *UpdateParticipantMetadata
}

func (m *SignalRequest) Marshal() ([]byte, error) {
	w := &writer{}
	if err := w.message(1, m.Offer); err != nil {
		return nil, err
	}
	if err := w.message(2, m.Answer); err != nil {
		return nil, err
	}
	if err := w.message(3, m.Trickle); err != nil {
		return nil, err
	}
	if err := w.message(4, m.AddTrack); err != nil {
		return nil, err
	}
	if err := w.message(5, m.Mute); err != nil {
		return nil, err
	}
	if err := w.message(6, m.Subscription); err != nil {
		return nil, err
	}
	if err := w.message(7, m.TrackSetting); err != nil {
		return nil, err
	}
	if err := w.message(8, m.Leave); err != nil {
		return nil, err
	}
	if m.Ping != nil {
		w.int64(9, *m.Ping)
	}
	if err := w.message(10, m.UpdateMetadata); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func (m *SignalRequest) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Offer = &SessionDescription{}
				err = m.Offer.Unmarshal(v)
			}
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Answer = &SessionDescription{}
				err = m.Answer.Unmarshal(v)
			}
			return n, err
		case 3:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Trickle = &TrickleRequest{}
				err = m.Trickle.Unmarshal(v)
			}
			return n, err
		case 4:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.AddTrack = &AddTrackRequest{}
				err = m.AddTrack.Unmarshal(v)
			}
			return n, err
		case 5:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Mute = &MuteTrackRequest{}
				err = m.Mute.Unmarshal(v)
			}
			return n, err
		case 6:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Subscription = &UpdateSubscription{}
				err = m.Subscription.Unmarshal(v)
			}
			return n, err
		case 7:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.TrackSetting = &UpdateTrackSettings{}
				err = m.TrackSetting.Unmarshal(v)
			}
			return n, err
		case 8:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Leave = &LeaveRequest{}
				err = m.Leave.Unmarshal(v)
			}
			return n, err
		case 9:
			v, n, err := consumeVarint(typ, b)
			iv := int64(v)
			m.Ping = &iv
			return n, err
		case 10:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.UpdateMetadata = &UpdateParticipantMetadata{}
				err = m.UpdateMetadata.Unmarshal(v)
			}
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

// --- responses ---------------------------------------------------------------

type ICEServerInfo struct {
	Urls       []string
	Username   string
	Credential string
}

func (m *ICEServerInfo) Marshal() ([]byte, error) {
	w := &writer{}
	w.strs(1, m.Urls)
	w.str(2, m.Username)
	w.str(3, m.Credential)
	return w.buf, nil
}

func (m *ICEServerInfo) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Urls = append(m.Urls, v)
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Username = v
			return n, err
		case 3:
			v, n, err := consumeString(typ, b)
			m.Credential = v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type TrackInfo struct {
	Sid        string
	Name       string
	Type       TrackKind
	Source     TrackSource
	Simulcast  bool
	Width      uint32
	Height     uint32
	MimeType   string
	Muted      bool
}

func (m *TrackInfo) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Sid)
	w.str(2, m.Name)
	w.int32(3, int32(m.Type))
	w.int32(4, int32(m.Source))
	w.bool(5, m.Simulcast)
	w.uint32(6, m.Width)
	w.uint32(7, m.Height)
	w.str(8, m.MimeType)
	w.bool(9, m.Muted)
	return w.buf, nil
}

func (m *TrackInfo) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Sid = v
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Name = v
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Type = TrackKind(int32(v))
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, b)
			m.Source = TrackSource(int32(v))
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, b)
			m.Simulcast = v != 0
			return n, err
		case 6:
			v, n, err := consumeVarint(typ, b)
			m.Width = uint32(v)
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, b)
			m.Height = uint32(v)
			return n, err
		case 8:
			v, n, err := consumeString(typ, b)
			m.MimeType = v
			return n, err
		case 9:
			v, n, err := consumeVarint(typ, b)
			m.Muted = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type ParticipantInfo struct {
	Sid      string
	Identity string
	Name     string
	Metadata string
	State    ParticipantState
	Tracks   []*TrackInfo
	JoinedAt int64
}

func (m *ParticipantInfo) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Sid)
	w.str(2, m.Identity)
	w.str(3, m.Name)
	w.str(4, m.Metadata)
	w.int32(5, int32(m.State))
	for _, t := range m.Tracks {
		if err := w.message(6, t); err != nil {
			return nil, err
		}
	}
	w.int64(7, m.JoinedAt)
	return w.buf, nil
}

func (m *ParticipantInfo) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Sid = v
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Identity = v
			return n, err
		case 3:
			v, n, err := consumeString(typ, b)
			m.Name = v
			return n, err
		case 4:
			v, n, err := consumeString(typ, b)
			m.Metadata = v
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, b)
			m.State = ParticipantState(int32(v))
			return n, err
		case 6:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				t := &TrackInfo{}
				err = t.Unmarshal(v)
				m.Tracks = append(m.Tracks, t)
			}
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, b)
			m.JoinedAt = int64(v)
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type JoinResponse struct {
	RoomSid           string
	RoomName          string
	Participant       *ParticipantInfo
	OtherParticipants []*ParticipantInfo
	ServerVersion     string
	IceServers        []*ICEServerInfo
	SubscriberPrimary bool
}

func (m *JoinResponse) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.RoomSid)
	w.str(2, m.RoomName)
	if err := w.message(3, m.Participant); err != nil {
		return nil, err
	}
	for _, p := range m.OtherParticipants {
		if err := w.message(4, p); err != nil {
			return nil, err
		}
	}
	w.str(5, m.ServerVersion)
	for _, s := range m.IceServers {
		if err := w.message(6, s); err != nil {
			return nil, err
		}
	}
	w.bool(7, m.SubscriberPrimary)
	return w.buf, nil
}

func (m *JoinResponse) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.RoomSid = v
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.RoomName = v
			return n, err
		case 3:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Participant = &ParticipantInfo{}
				err = m.Participant.Unmarshal(v)
			}
			return n, err
		case 4:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				p := &ParticipantInfo{}
				err = p.Unmarshal(v)
				m.OtherParticipants = append(m.OtherParticipants, p)
			}
			return n, err
		case 5:
			v, n, err := consumeString(typ, b)
			m.ServerVersion = v
			return n, err
		case 6:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				s := &ICEServerInfo{}
				err = s.Unmarshal(v)
				m.IceServers = append(m.IceServers, s)
			}
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, b)
			m.SubscriberPrimary = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type ReconnectResponse struct {
	IceServers []*ICEServerInfo
}

func (m *ReconnectResponse) Marshal() ([]byte, error) {
	w := &writer{}
	for _, s := range m.IceServers {
		if err := w.message(1, s); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func (m *ReconnectResponse) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				s := &ICEServerInfo{}
				err = s.Unmarshal(v)
				m.IceServers = append(m.IceServers, s)
			}
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type ParticipantUpdate struct {
	Participants []*ParticipantInfo
}

func (m *ParticipantUpdate) Marshal() ([]byte, error) {
	w := &writer{}
	for _, p := range m.Participants {
		if err := w.message(1, p); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func (m *ParticipantUpdate) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				p := &ParticipantInfo{}
				err = p.Unmarshal(v)
				m.Participants = append(m.Participants, p)
			}
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type TrackPublishedResponse struct {
	Cid   string
	Track *TrackInfo
}

func (m *TrackPublishedResponse) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Cid)
	if err := w.message(2, m.Track); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func (m *TrackPublishedResponse) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Cid = v
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Track = &TrackInfo{}
				err = m.Track.Unmarshal(v)
			}
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type TrackUnpublishedResponse struct {
	TrackSid string
}

func (m *TrackUnpublishedResponse) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.TrackSid)
	return w.buf, nil
}

func (m *TrackUnpublishedResponse) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.TrackSid = v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type SpeakerInfo struct {
	Sid    string
	Level  float32
	Active bool
}

func (m *SpeakerInfo) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.Sid)
	w.float32(2, m.Level)
	w.bool(3, m.Active)
	return w.buf, nil
}

func (m *SpeakerInfo) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.Sid = v
			return n, err
		case 2:
			v, n, err := consumeFloat32(typ, b)
			m.Level = v
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Active = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type SpeakersChanged struct {
	Speakers []*SpeakerInfo
}

func (m *SpeakersChanged) Marshal() ([]byte, error) {
	w := &writer{}
	for _, s := range m.Speakers {
		if err := w.message(1, s); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func (m *SpeakersChanged) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				s := &SpeakerInfo{}
				err = s.Unmarshal(v)
				m.Speakers = append(m.Speakers, s)
			}
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type ConnectionQualityInfo struct {
	ParticipantSid string
	Quality        ConnectionQuality
}

func (m *ConnectionQualityInfo) Marshal() ([]byte, error) {
	w := &writer{}
	w.str(1, m.ParticipantSid)
	w.int32(2, int32(m.Quality))
	return w.buf, nil
}

func (m *ConnectionQualityInfo) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.ParticipantSid = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Quality = ConnectionQuality(int32(v))
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type ConnectionQualityUpdate struct {
	Updates []*ConnectionQualityInfo
}

func (m *ConnectionQualityUpdate) Marshal() ([]byte, error) {
	w := &writer{}
	for _, u := range m.Updates {
		if err := w.message(1, u); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func (m *ConnectionQualityUpdate) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				u := &ConnectionQualityInfo{}
				err = u.Unmarshal(v)
				m.Updates = append(m.Updates, u)
			}
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

type LeaveResponse struct {
	Reason       int32
	CanReconnect bool
}

func (m *LeaveResponse) Marshal() ([]byte, error) {
	w := &writer{}
	w.int32(1, m.Reason)
	w.bool(2, m.CanReconnect)
	return w.buf, nil
}

func (m *LeaveResponse) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.Reason = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.CanReconnect = v != 0
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

// SignalResponse is the server->client envelope.
type SignalResponse struct {
	Join              *JoinResponse
	Answer            *SessionDescription
	Offer             *SessionDescription
	Trickle           *TrickleRequest
	Update            *ParticipantUpdate
	TrackPublished    *TrackPublishedResponse
	Leave             *LeaveResponse
	SpeakersChanged   *SpeakersChanged
	ConnectionQuality *ConnectionQualityUpdate
	Reconnect         *ReconnectResponse
	Pong              *int64
	TrackUnpublished  *TrackUnpublishedResponse
	RefreshToken      *string
}

func (m *SignalResponse) Marshal() ([]byte, error) {
	w := &writer{}
	if err := w.message(1, m.Join); err != nil {
		return nil, err
	}
	if err := w.message(2, m.Answer); err != nil {
		return nil, err
	}
	if err := w.message(3, m.Offer); err != nil {
		return nil, err
	}
	if err := w.message(4, m.Trickle); err != nil {
		return nil, err
	}
	if err := w.message(5, m.Update); err != nil {
		return nil, err
	}
	if err := w.message(6, m.TrackPublished); err != nil {
		return nil, err
	}
	if err := w.message(7, m.Leave); err != nil {
		return nil, err
	}
	if err := w.message(8, m.SpeakersChanged); err != nil {
		return nil, err
	}
	if err := w.message(9, m.ConnectionQuality); err != nil {
		return nil, err
	}
	if err := w.message(10, m.Reconnect); err != nil {
		return nil, err
	}
	if m.Pong != nil {
		w.int64(11, *m.Pong)
	}
	if err := w.message(12, m.TrackUnpublished); err != nil {
		return nil, err
	}
	if m.RefreshToken != nil {
		w.str(13, *m.RefreshToken)
	}
	return w.buf, nil
}

func (m *SignalResponse) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Join = &JoinResponse{}
				err = m.Join.Unmarshal(v)
			}
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Answer = &SessionDescription{}
				err = m.Answer.Unmarshal(v)
			}
			return n, err
		case 3:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Offer = &SessionDescription{}
				err = m.Offer.Unmarshal(v)
			}
			return n, err
		case 4:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Trickle = &TrickleRequest{}
				err = m.Trickle.Unmarshal(v)
			}
			return n, err
		case 5:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Update = &ParticipantUpdate{}
				err = m.Update.Unmarshal(v)
			}
			return n, err
		case 6:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.TrackPublished = &TrackPublishedResponse{}
				err = m.TrackPublished.Unmarshal(v)
			}
			return n, err
		case 7:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Leave = &LeaveResponse{}
				err = m.Leave.Unmarshal(v)
			}
			return n, err
		case 8:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.SpeakersChanged = &SpeakersChanged{}
				err = m.SpeakersChanged.Unmarshal(v)
			}
			return n, err
		case 9:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.ConnectionQuality = &ConnectionQualityUpdate{}
				err = m.ConnectionQuality.Unmarshal(v)
			}
			return n, err
		case 10:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.Reconnect = &ReconnectResponse{}
				err = m.Reconnect.Unmarshal(v)
			}
			return n, err
		case 11:
			v, n, err := consumeVarint(typ, b)
			iv := int64(v)
			m.Pong = &iv
			return n, err
		case 12:
			v, n, err := consumeBytes(typ, b)
			if err == nil {
				m.TrackUnpublished = &TrackUnpublishedResponse{}
				err = m.TrackUnpublished.Unmarshal(v)
			}
			return n, err
		case 13:
			v, n, err := consumeString(typ, b)
			m.RefreshToken = &v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}

// --- data packet (§6) ---------------------------------------------------------

type DataPacket struct {
	Kind            DataPacketKind
	ParticipantSid  string
	Payload         []byte
	DestinationSids []string
	Topic           *string
}

func (m *DataPacket) Marshal() ([]byte, error) {
	w := &writer{}
	w.int32(1, int32(m.Kind))
	w.str(2, m.ParticipantSid)
	w.bytes(3, m.Payload)
	w.strs(4, m.DestinationSids)
	if m.Topic != nil {
		w.str(5, *m.Topic)
	}
	return w.buf, nil
}

func (m *DataPacket) Unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.Kind = DataPacketKind(int32(v))
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.ParticipantSid = v
			return n, err
		case 3:
			v, n, err := consumeBytes(typ, b)
			m.Payload = v
			return n, err
		case 4:
			v, n, err := consumeString(typ, b)
			m.DestinationSids = append(m.DestinationSids, v)
			return n, err
		case 5:
			v, n, err := consumeString(typ, b)
			m.Topic = &v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
}
