package datatrack

import (
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/e2ee"
	"github.com/livekit/client-sdk-go/pkg/logging"
)

// maxBufferedPackets bounds a partial frame's pending-fragment map, matching
// original_source/livekit-datatrack/src/remote/depacketizer.rs's
// MAX_BUFFER_PACKETS: a frame whose fragments never converge is dropped
// rather than retained unboundedly.
const maxBufferedPackets = 128

type partialFrame struct {
	frameNumber   uint16
	startSequence uint16
	endSequence   *uint16
	extensions    Extensions
	payloads      map[uint16][]byte
}

// Frame is a fully reassembled application frame.
type Frame struct {
	TrackHandle uint16
	FrameNumber uint16
	Extensions  Extensions
	Payload     []byte
}

// Depacketizer reassembles one remote track's fragments into frames,
// grounded on depacketizer.rs's single-partial-frame state machine: at most
// one frame is ever in flight per track, and any Start/Single fragment
// discards whatever partial preceded it.
type Depacketizer struct {
	trackHandle uint16
	hook        e2ee.Hook
	partial     *partialFrame

	log *zap.SugaredLogger
}

// NewDepacketizer creates a Depacketizer for trackHandle. A nil hook selects
// e2ee.Passthrough.
func NewDepacketizer(trackHandle uint16, hook e2ee.Hook) *Depacketizer {
	if hook == nil {
		hook = e2ee.Passthrough
	}
	return &Depacketizer{
		trackHandle: trackHandle,
		hook:        hook,
		log:         logging.Named("datatrack-depacketizer"),
	}
}

// Push feeds one received Packet. It returns a reassembled, decrypted Frame
// once the packet completes a frame, or nil if more fragments are still
// pending or the frame failed to decrypt.
func (d *Depacketizer) Push(pkt Packet) *Frame {
	switch pkt.Header.Marker {
	case MarkerSingle:
		d.partial = nil
		return d.decrypt(pkt.Header.FrameNumber, pkt.Header.Extensions, pkt.Payload)
	case MarkerStart:
		d.partial = &partialFrame{
			frameNumber:   pkt.Header.FrameNumber,
			startSequence: pkt.Header.Sequence,
			extensions:    pkt.Header.Extensions,
			payloads:      map[uint16][]byte{pkt.Header.Sequence: pkt.Payload},
		}
		return nil
	case MarkerInter:
		d.pushToPartial(pkt, false)
		return d.finalizePartial()
	case MarkerFinal:
		d.pushToPartial(pkt, true)
		return d.finalizePartial()
	default:
		return nil
	}
}

func (d *Depacketizer) pushToPartial(pkt Packet, final bool) {
	p := d.partial
	if p == nil {
		return
	}
	if p.frameNumber != pkt.Header.FrameNumber {
		d.log.Debugw("dropping fragment for mismatched frame", "trackHandle", d.trackHandle)
		return
	}
	if len(p.payloads) >= maxBufferedPackets {
		d.log.Warnw("partial frame exceeded buffer cap, dropping", "trackHandle", d.trackHandle)
		d.partial = nil
		return
	}
	p.payloads[pkt.Header.Sequence] = pkt.Payload
	if final {
		seq := pkt.Header.Sequence
		p.endSequence = &seq
	}
}

// finalizePartial walks the partial's payload map from startSequence to
// endSequence by wrapping +1, concatenating payloads in order. Until the
// Final fragment and every fragment between Start and Final have arrived, it
// returns nil and keeps the partial, so fragments may arrive out of order
// within a frame; once the chain is complete the partial is cleared and the
// frame emitted.
func (d *Depacketizer) finalizePartial() *Frame {
	p := d.partial
	if p == nil || p.endSequence == nil {
		return nil
	}

	var out []byte
	seq := p.startSequence
	for {
		payload, ok := p.payloads[seq]
		if !ok {
			return nil
		}
		out = append(out, payload...)
		if seq == *p.endSequence {
			break
		}
		seq++
	}

	d.partial = nil
	return d.decrypt(p.frameNumber, p.extensions, out)
}

func (d *Depacketizer) decrypt(frameNumber uint16, ext Extensions, payload []byte) *Frame {
	var keyIndex uint8
	var iv [12]byte
	if ext.E2EE != nil {
		keyIndex = ext.E2EE.KeyIndex
		iv = ext.E2EE.IV
	}
	plaintext, err := d.hook.Decrypt(payload, keyIndex, iv)
	if err != nil {
		d.log.Warnw("dropping frame that failed to decrypt", "trackHandle", d.trackHandle, "err", err)
		return nil
	}
	return &Frame{
		TrackHandle: d.trackHandle,
		FrameNumber: frameNumber,
		Extensions:  ext,
		Payload:     plaintext,
	}
}
