// Package datatrack implements the data-track packet header, packetizer and
// depacketizer of spec.md §4.E/§6: application frames fragmented into
// bounded, versioned, extensible packets over a data channel.
package datatrack

import (
	"encoding/binary"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
)

// Marker identifies a packet's position within its frame.
type Marker uint8

const (
	MarkerSingle Marker = iota
	MarkerStart
	MarkerInter
	MarkerFinal
)

const (
	version0 = 0

	extTagE2EE          = 1
	extTagUserTimestamp = 2

	e2eeIVLen = 12
)

// E2EEExtension carries the per-packet frame-cryptor state (spec.md §6 tag 1).
type E2EEExtension struct {
	KeyIndex uint8
	IV       [e2eeIVLen]byte
}

// Extensions is the decoded set of TLV extensions carried by a header.
// Unknown tags are preserved only by length — their payload is dropped, per
// spec.md §6 ("unknown tags are skipped by length").
type Extensions struct {
	E2EE          *E2EEExtension
	UserTimestamp *uint64
}

func (e Extensions) isEmpty() bool {
	return e.E2EE == nil && e.UserTimestamp == nil
}

// Header is the fixed+extensible packet header of spec.md §6.
type Header struct {
	Marker      Marker
	TrackHandle uint16
	Sequence    uint16
	FrameNumber uint16
	Timestamp   uint32
	Extensions  Extensions
}

// encodedLen returns the encoded length of h, used to size packets against
// the configured MTU.
func (h Header) encodedLen() int {
	n := 12 // byte 0, reserved byte 1, trackHandle, sequence, frameNumber, timestamp
	if h.Extensions.isEmpty() {
		return n
	}
	n += 2 // extensionWords-1
	if h.Extensions.E2EE != nil {
		n += 4 + 16 // tag+len header + 13-byte value (keyIndex+IV), padded to word boundary (16 total)
	}
	if h.Extensions.UserTimestamp != nil {
		n += 4 + 8 // tag+len header + 8-byte value (already word aligned)
	}
	return n
}

func (h Header) encode() []byte {
	buf := make([]byte, h.encodedLen())

	buf[0] = byte(version0<<4) | byte(h.Marker)<<2
	if !h.Extensions.isEmpty() {
		buf[0] |= 1 << 1
	}
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], h.TrackHandle)
	binary.BigEndian.PutUint16(buf[4:6], h.Sequence)
	binary.BigEndian.PutUint16(buf[6:8], h.FrameNumber)
	binary.BigEndian.PutUint32(buf[8:12], h.Timestamp)

	if h.Extensions.isEmpty() {
		return buf
	}

	off := 12
	extWords := (h.encodedLen() - 14) / 4
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(extWords-1))
	off += 2

	if ext := h.Extensions.E2EE; ext != nil {
		binary.BigEndian.PutUint16(buf[off:off+2], extTagE2EE)
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(e2eeIVLen)) // length-1: keyIndex+iv is e2eeIVLen+1 bytes
		off += 4
		buf[off] = ext.KeyIndex
		copy(buf[off+1:off+1+e2eeIVLen], ext.IV[:])
		off += 1 + e2eeIVLen
		// pad to word boundary
		if pad := off % 4; pad != 0 {
			off += 4 - pad
		}
	}

	if ts := h.Extensions.UserTimestamp; ts != nil {
		binary.BigEndian.PutUint16(buf[off:off+2], extTagUserTimestamp)
		binary.BigEndian.PutUint16(buf[off+2:off+4], 8-1)
		off += 4
		binary.BigEndian.PutUint64(buf[off:off+8], *ts)
		off += 8
	}

	return buf
}

func decodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < 12 {
		return Header{}, 0, lkerrors.NewInvalidHeader(nil)
	}
	var h Header
	h.Marker = Marker((buf[0] >> 2) & 0x3)
	extPresent := (buf[0]>>1)&0x1 != 0
	h.TrackHandle = binary.BigEndian.Uint16(buf[2:4])
	h.Sequence = binary.BigEndian.Uint16(buf[4:6])
	h.FrameNumber = binary.BigEndian.Uint16(buf[6:8])
	h.Timestamp = binary.BigEndian.Uint32(buf[8:12])

	off := 12
	if !extPresent {
		return h, off, nil
	}

	if len(buf) < off+2 {
		return Header{}, 0, lkerrors.NewInvalidHeader(nil)
	}
	extWords := int(binary.BigEndian.Uint16(buf[off:off+2])) + 1
	off += 2
	extEnd := off + extWords*4
	if len(buf) < extEnd {
		return Header{}, 0, lkerrors.NewInvalidHeader(nil)
	}

	for off < extEnd {
		if extEnd-off < 4 {
			break
		}
		tag := binary.BigEndian.Uint16(buf[off : off+2])
		length := int(binary.BigEndian.Uint16(buf[off+2:off+4])) + 1
		off += 4
		if off+length > extEnd {
			break
		}
		switch tag {
		case extTagE2EE:
			if length >= 1+e2eeIVLen {
				e := &E2EEExtension{KeyIndex: buf[off]}
				copy(e.IV[:], buf[off+1:off+1+e2eeIVLen])
				h.Extensions.E2EE = e
			}
		case extTagUserTimestamp:
			if length >= 8 {
				v := binary.BigEndian.Uint64(buf[off : off+8])
				h.Extensions.UserTimestamp = &v
			}
		}
		// word-aligned advance
		off += length
		if pad := off % 4; pad != 0 {
			off += 4 - pad
		}
	}

	return h, extEnd, nil
}

// ErrMtuTooShort is returned when the configured MTU cannot fit a bare
// header, let alone any payload.
var ErrMtuTooShort = lkerrors.ErrMtuTooShort

// Packet is one fragment produced by the Packetizer and consumed by the
// Depacketizer.
type Packet struct {
	Header  Header
	Payload []byte
}

// Marshal serializes p as header||payload.
func (p Packet) Marshal() []byte {
	h := p.Header.encode()
	out := make([]byte, len(h)+len(p.Payload))
	copy(out, h)
	copy(out[len(h):], p.Payload)
	return out
}

// Unmarshal parses a wire packet produced by Marshal.
func Unmarshal(buf []byte) (Packet, error) {
	h, n, err := decodeHeader(buf)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Header: h, Payload: buf[n:]}, nil
}
