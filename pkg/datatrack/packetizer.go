package datatrack

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/e2ee"
	"github.com/livekit/client-sdk-go/pkg/logging"
)

// DefaultMTU matches the teacher's data-channel low-buffer budget; large
// enough that a single-packet frame is the overwhelmingly common case.
const DefaultMTU = 16000

// clockRate is the 90 kHz tick rate spec.md §4.E's Timestamp field runs at,
// matching original_source/livekit-datatrack/src/local/packetizer.rs's
// Clock<90_000>.
const clockRate = 90000

// PacketizerOptions configures a Packetizer.
type PacketizerOptions struct {
	// MTU bounds each packet's header+payload size. Zero selects DefaultMTU.
	MTU int
	// Hook, if non-nil, encrypts each frame before fragmentation. Nil
	// selects e2ee.Passthrough.
	Hook e2ee.Hook
}

// Packetizer fragments frames for one local track handle into a sequence of
// Packets, grounded on original_source/livekit-datatrack/src/local/packetizer.rs:
// a monotonic per-track sequence and frame number, with the frame marker
// derived from fragment index and count.
type Packetizer struct {
	trackHandle uint16
	mtu         int
	hook        e2ee.Hook

	sequence    uint16
	frameNumber uint16

	clockStart time.Time
	clockBase  uint32

	log *zap.SugaredLogger
}

// NewPacketizer creates a Packetizer for trackHandle. Its clock starts at a
// random offset, matching Clock::new(Timestamp::random()) in the original —
// a fresh track's timestamp shouldn't leak process start time.
func NewPacketizer(trackHandle uint16, opts PacketizerOptions) *Packetizer {
	mtu := opts.MTU
	if mtu == 0 {
		mtu = DefaultMTU
	}
	hook := opts.Hook
	if hook == nil {
		hook = e2ee.Passthrough
	}
	return &Packetizer{
		trackHandle: trackHandle,
		mtu:         mtu,
		hook:        hook,
		clockStart:  time.Now(),
		clockBase:   rand.Uint32(),
		log:         logging.Named("datatrack-packetizer"),
	}
}

// timestamp returns the current 90 kHz clock value: a random per-track base
// plus elapsed time since construction converted to clock ticks, wrapping
// naturally on uint32 overflow.
func (p *Packetizer) timestamp() uint32 {
	elapsed := time.Since(p.clockStart)
	ticks := uint32(elapsed.Nanoseconds() * clockRate / int64(time.Second))
	return p.clockBase + ticks
}

// Packetize encrypts payload via the configured E2EE hook, then splits the
// result into wire Packets carrying any extensions given in ext plus the
// hook's key index/IV when encryption is active, applied identically to
// every fragment of the frame. It returns lkerrors.ErrMtuTooShort if the
// configured MTU cannot fit even a bare header.
func (p *Packetizer) Packetize(frame []byte, ext Extensions) ([]Packet, error) {
	encrypted, err := p.hook.Encrypt(frame)
	if err != nil {
		return nil, err
	}
	payload := encrypted.Payload
	if p.hook != e2ee.Passthrough {
		ext.E2EE = &E2EEExtension{KeyIndex: encrypted.KeyIndex, IV: encrypted.IV}
	}

	headerLen := (Header{Extensions: ext}).encodedLen()
	maxPayload := p.mtu - headerLen
	if maxPayload <= 0 {
		return nil, ErrMtuTooShort
	}

	chunks := chunk(payload, maxPayload)
	frameNumber := p.frameNumber
	p.frameNumber++
	timestamp := p.timestamp()

	packets := make([]Packet, len(chunks))
	for i, c := range chunks {
		h := Header{
			Marker:      frameMarker(i, len(chunks)),
			TrackHandle: p.trackHandle,
			Sequence:    p.sequence,
			FrameNumber: frameNumber,
			Timestamp:   timestamp,
			Extensions:  ext,
		}
		p.sequence++
		packets[i] = Packet{Header: h, Payload: c}
	}
	return packets, nil
}

func frameMarker(index, count int) Marker {
	switch {
	case count <= 1:
		return MarkerSingle
	case index == 0:
		return MarkerStart
	case index == count-1:
		return MarkerFinal
	default:
		return MarkerInter
	}
}

func chunk(payload []byte, size int) [][]byte {
	if len(payload) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(payload) > 0 {
		n := size
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}
