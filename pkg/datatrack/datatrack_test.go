package datatrack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinglePacketFrame(t *testing.T) {
	payload := bytes.Repeat([]byte{0xFA}, 16)
	p := NewPacketizer(42, PacketizerOptions{MTU: 16000})

	packets, err := p.Packetize(payload, Extensions{})
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.Equal(t, MarkerSingle, packets[0].Header.Marker)
	require.EqualValues(t, 0, packets[0].Header.Sequence)
	require.EqualValues(t, 0, packets[0].Header.FrameNumber)
	require.Len(t, packets[0].Payload, 16)

	d := NewDepacketizer(42, nil)
	frame := d.Push(packets[0])
	require.NotNil(t, frame)
	require.Equal(t, payload, frame.Payload)
}

func TestMultiPacketFrame(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20480)
	p := NewPacketizer(7, PacketizerOptions{MTU: 1024})

	packets, err := p.Packetize(payload, Extensions{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(packets), 20)

	require.Equal(t, MarkerStart, packets[0].Header.Marker)
	require.Equal(t, MarkerFinal, packets[len(packets)-1].Header.Marker)
	for i := 1; i < len(packets)-1; i++ {
		require.Equal(t, MarkerInter, packets[i].Header.Marker)
	}
	for i, pkt := range packets {
		require.EqualValues(t, i, pkt.Header.Sequence)
	}

	d := NewDepacketizer(7, nil)
	var frame *Frame
	for _, pkt := range packets {
		if f := d.Push(pkt); f != nil {
			frame = f
		}
	}
	require.NotNil(t, frame)
	require.Len(t, frame.Payload, 20480)
	require.Equal(t, byte(0xAB), frame.Payload[0])
	require.Equal(t, byte(0xAB), frame.Payload[len(frame.Payload)-1])
}

func TestReorderedFragments(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20480)
	p := NewPacketizer(7, PacketizerOptions{MTU: 1024})
	packets, err := p.Packetize(payload, Extensions{})
	require.NoError(t, err)

	d := NewDepacketizer(7, nil)

	start := packets[0]
	rest := packets[1:]
	reordered := make([]Packet, len(rest))
	for i, pkt := range rest {
		reordered[len(rest)-1-i] = pkt
	}

	var frame *Frame
	if f := d.Push(start); f != nil {
		frame = f
	}
	for _, pkt := range reordered {
		if f := d.Push(pkt); f != nil {
			frame = f
		}
	}

	require.NotNil(t, frame)
	require.Equal(t, payload, frame.Payload)
}

func TestInterruptedFrameDropsPartial(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20480)
	p := NewPacketizer(7, PacketizerOptions{MTU: 1024})
	packets, err := p.Packetize(payload, Extensions{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(packets), 4)

	d := NewDepacketizer(7, nil)
	require.Nil(t, d.Push(packets[0]))
	require.Nil(t, d.Push(packets[1]))
	require.Nil(t, d.Push(packets[2]))

	newStart := Packet{
		Header: Header{
			Marker:      MarkerStart,
			TrackHandle: 7,
			Sequence:    0,
			FrameNumber: packets[0].Header.FrameNumber + 1,
		},
		Payload: []byte{0x01},
	}
	require.Nil(t, d.Push(newStart))

	single := Packet{
		Header: Header{
			Marker:      MarkerSingle,
			TrackHandle: 7,
			FrameNumber: newStart.Header.FrameNumber,
		},
		Payload: []byte{0x02},
	}
	frame := d.Push(single)
	require.NotNil(t, frame)
	require.Equal(t, []byte{0x02}, frame.Payload)
}

func TestMtuTooShortReturnsError(t *testing.T) {
	p := NewPacketizer(1, PacketizerOptions{MTU: 12})
	_, err := p.Packetize([]byte{1, 2, 3}, Extensions{})
	require.ErrorIs(t, err, ErrMtuTooShort)
}

func TestDepacketizerDropsPartialAtBufferCap(t *testing.T) {
	d := NewDepacketizer(3, nil)

	start := Packet{Header: Header{Marker: MarkerStart, TrackHandle: 3, Sequence: 1, FrameNumber: 9}, Payload: []byte{0}}
	require.Nil(t, d.Push(start))

	for seq := uint16(2); seq < 2+maxBufferedPackets; seq++ {
		pkt := Packet{Header: Header{Marker: MarkerInter, TrackHandle: 3, Sequence: seq, FrameNumber: 9}, Payload: []byte{0}}
		d.Push(pkt)
	}
	require.Nil(t, d.partial, "partial frame should have been dropped once the buffer cap was exceeded")
}

func TestHeaderRoundTripWithExtensions(t *testing.T) {
	iv := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	ts := uint64(123456789)
	h := Header{
		Marker:      MarkerSingle,
		TrackHandle: 99,
		Sequence:    5,
		FrameNumber: 1,
		Extensions: Extensions{
			E2EE:          &E2EEExtension{KeyIndex: 2, IV: iv},
			UserTimestamp: &ts,
		},
	}
	pkt := Packet{Header: h, Payload: []byte("hello")}
	wire := pkt.Marshal()

	decoded, err := Unmarshal(wire)
	require.NoError(t, err)
	require.Equal(t, h.Marker, decoded.Header.Marker)
	require.Equal(t, h.TrackHandle, decoded.Header.TrackHandle)
	require.Equal(t, h.Sequence, decoded.Header.Sequence)
	require.Equal(t, h.FrameNumber, decoded.Header.FrameNumber)
	require.NotNil(t, decoded.Header.Extensions.E2EE)
	require.Equal(t, uint8(2), decoded.Header.Extensions.E2EE.KeyIndex)
	require.Equal(t, iv, decoded.Header.Extensions.E2EE.IV)
	require.NotNil(t, decoded.Header.Extensions.UserTimestamp)
	require.Equal(t, ts, *decoded.Header.Extensions.UserTimestamp)
	require.Equal(t, []byte("hello"), decoded.Payload)
}
