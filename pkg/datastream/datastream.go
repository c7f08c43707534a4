// Package datastream implements data streams (spec.md's SPEC_FULL.md
// supplement, grounded on original_source/livekit/src/room/data_stream/
// info.rs, data_stream/incoming/reader.rs and data_streams/mod.rs): a
// higher-level chunked transfer of a byte blob or growing text value over
// the data channel, addressed by topic and reassembled in order.
package datastream

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/proto"
	"github.com/livekit/client-sdk-go/pkg/rpc"
)

// Well-known topics the stream protocol is carried under, alongside a
// per-stream Info.Topic the application assigns for routing.
const (
	TopicHeader = "lk-stream-header"
	TopicChunk  = "lk-stream-chunk"
)

// Kind distinguishes a byte stream (arbitrary binary payload, e.g. a file)
// from a text stream (a UTF-8 value that may be revised chunk-by-chunk,
// e.g. a streamed LLM response).
type Kind int

const (
	KindByte Kind = iota
	KindText
)

// OperationType mirrors info.rs's OperationType, used by text streams to
// describe how a chunk relates to prior ones.
type OperationType int

const (
	OperationCreate OperationType = iota
	OperationUpdate
	OperationDelete
	OperationReaction
)

// Info describes one data stream, open or closed (info.rs's StreamInfo).
type Info struct {
	ID          string
	Topic       string
	Timestamp   time.Time
	TotalLength *uint64
	Attributes  map[string]string
	MimeType    string
	Kind        Kind

	// Byte-stream specific.
	Name string

	// Text-stream specific.
	OperationType     OperationType
	Version           int32
	ReplyToStreamID   string
	AttachedStreamIDs []string
	Generated         bool
}

// Progress reports how much of a stream has been received so far.
type Progress struct {
	BytesReceived uint64
	TotalLength   *uint64
}

type wireHeader struct {
	ID                string            `json:"id"`
	Topic             string            `json:"topic"`
	TimestampMs       int64             `json:"timestampMs"`
	TotalLength       *uint64           `json:"totalLength,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	MimeType          string            `json:"mimeType"`
	Kind              string            `json:"kind"`
	Name              string            `json:"name,omitempty"`
	OperationType     string            `json:"operationType,omitempty"`
	Version           int32             `json:"version,omitempty"`
	ReplyToStreamID   string            `json:"replyToStreamId,omitempty"`
	AttachedStreamIDs []string          `json:"attachedStreamIds,omitempty"`
	Generated         bool              `json:"generated,omitempty"`
}

type wireChunk struct {
	ID       string `json:"id"`
	Index    uint64 `json:"index"`
	Content  []byte `json:"content"`
	Complete bool   `json:"complete"`
	Version  int32  `json:"version"`
}

// Chunk is one ordered unit delivered to a reader.
type Chunk struct {
	Content  []byte
	Progress Progress
}

// ByteReader receives an incoming byte stream's chunks in order.
type ByteReader struct {
	Info Info
	ch   chan Chunk
}

// Chunks returns the reader's ordered chunk channel, closed when the
// stream completes.
func (r *ByteReader) Chunks() <-chan Chunk { return r.ch }

// ReadAll concatenates every chunk until the stream closes, or ctx is
// cancelled.
func (r *ByteReader) ReadAll(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	for {
		select {
		case chunk, ok := <-r.ch:
			if !ok {
				return buf.Bytes(), nil
			}
			buf.Write(chunk.Content)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TextReader receives an incoming text stream. Unlike ByteReader, each
// delivered value is the full text collected so far (data_streams/mod.rs's
// TextStreamChunk.collected) since text streams may be revised in place.
type TextReader struct {
	Info Info
	ch   chan string
}

func (r *TextReader) Updates() <-chan string { return r.ch }

// ReadAll waits for the stream to close and returns its final text value.
func (r *TextReader) ReadAll(ctx context.Context) (string, error) {
	var last string
	for {
		select {
		case text, ok := <-r.ch:
			if !ok {
				return last, nil
			}
			last = text
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

type incomingByte struct {
	info     Info
	ch       chan Chunk
	received uint64
}

type incomingText struct {
	info   Info
	ch     chan string
	chunks map[uint64]wireChunk
}

// Manager dispatches inbound stream-protocol DataPackets and exposes an
// outgoing Send* API built on the room's PublishData path.
type Manager struct {
	send rpc.Sender

	mu           sync.Mutex
	openByte     map[string]*incomingByte
	openText     map[string]*incomingText
	onByteOpened func(*ByteReader)
	onTextOpened func(*TextReader)

	log *zap.SugaredLogger
}

// New constructs a Manager. send publishes one encoded stream-protocol
// DataPacket to the given destinations (or the whole room if empty).
func New(send rpc.Sender) *Manager {
	return &Manager{
		send:     send,
		openByte: make(map[string]*incomingByte),
		openText: make(map[string]*incomingText),
		log:      logging.Named("datastream"),
	}
}

// OnByteStreamOpened registers the callback invoked whenever a new
// incoming byte stream's header arrives.
func (m *Manager) OnByteStreamOpened(cb func(*ByteReader)) {
	m.mu.Lock()
	m.onByteOpened = cb
	m.mu.Unlock()
}

// OnTextStreamOpened registers the callback invoked whenever a new
// incoming text stream's header arrives.
func (m *Manager) OnTextStreamOpened(cb func(*TextReader)) {
	m.mu.Lock()
	m.onTextOpened = cb
	m.mu.Unlock()
}

// HandleDataPacket inspects an inbound DataPacket's topic, dispatching
// stream-header and stream-chunk messages; packets on other topics are
// ignored.
func (m *Manager) HandleDataPacket(packet *proto.DataPacket) {
	if packet.Topic == nil {
		return
	}
	switch *packet.Topic {
	case TopicHeader:
		m.handleHeader(packet.Payload)
	case TopicChunk:
		m.handleChunk(packet.Payload)
	}
}

func (m *Manager) handleHeader(payload []byte) {
	var hdr wireHeader
	if err := json.Unmarshal(payload, &hdr); err != nil {
		m.log.Warnw("dropping unparseable stream header", err)
		return
	}
	info := Info{
		ID:                hdr.ID,
		Topic:             hdr.Topic,
		Timestamp:         time.UnixMilli(hdr.TimestampMs),
		TotalLength:       hdr.TotalLength,
		Attributes:        hdr.Attributes,
		MimeType:          hdr.MimeType,
		Name:              hdr.Name,
		Version:           hdr.Version,
		ReplyToStreamID:   hdr.ReplyToStreamID,
		AttachedStreamIDs: hdr.AttachedStreamIDs,
		Generated:         hdr.Generated,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch hdr.Kind {
	case "text":
		info.Kind = KindText
		info.OperationType = operationTypeFromWire(hdr.OperationType)
		reader := &TextReader{Info: info, ch: make(chan string, 8)}
		m.openText[hdr.ID] = &incomingText{info: info, ch: reader.ch, chunks: make(map[uint64]wireChunk)}
		if m.onTextOpened != nil {
			go m.onTextOpened(reader)
		}
	default:
		info.Kind = KindByte
		reader := &ByteReader{Info: info, ch: make(chan Chunk, 8)}
		m.openByte[hdr.ID] = &incomingByte{info: info, ch: reader.ch}
		if m.onByteOpened != nil {
			go m.onByteOpened(reader)
		}
	}
}

func (m *Manager) handleChunk(payload []byte) {
	var chunk wireChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		m.log.Warnw("dropping unparseable stream chunk", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.openByte[chunk.ID]; ok {
		m.deliverByteChunk(s, chunk)
		return
	}
	if s, ok := m.openText[chunk.ID]; ok {
		m.deliverTextChunk(s, chunk)
	}
}

func (m *Manager) deliverByteChunk(s *incomingByte, chunk wireChunk) {
	if chunk.Complete {
		close(s.ch)
		delete(m.openByte, s.info.ID)
		return
	}
	s.received += uint64(len(chunk.Content))
	select {
	case s.ch <- Chunk{Content: chunk.Content, Progress: Progress{BytesReceived: s.received, TotalLength: s.info.TotalLength}}:
	default:
		m.log.Warnw("dropping byte stream chunk, consumer too slow", nil)
	}
}

// deliverTextChunk applies data_streams/mod.rs's version-guarded, index-
// ordered reassembly: a chunk whose version is behind what's already
// recorded for its index is dropped, and the delivered value is always the
// full text collected so far.
func (m *Manager) deliverTextChunk(s *incomingText, chunk wireChunk) {
	if chunk.Complete {
		close(s.ch)
		delete(m.openText, s.info.ID)
		return
	}
	if existing, ok := s.chunks[chunk.Index]; ok && existing.Version > chunk.Version {
		return
	}
	s.chunks[chunk.Index] = chunk

	var collected bytes.Buffer
	for i := uint64(0); i <= chunk.Index; i++ {
		if c, ok := s.chunks[i]; ok {
			collected.Write(c.Content)
		}
	}
	select {
	case s.ch <- collected.String():
	default:
		m.log.Warnw("dropping text stream update, consumer too slow", nil)
	}
}

// SendByteStream publishes data as a single-chunk byte stream under topic,
// to destinationSids (or the whole room if empty).
func (m *Manager) SendByteStream(id, topic, name string, data []byte, destinationSids []string) error {
	total := uint64(len(data))
	if err := m.sendHeader(wireHeader{
		ID: id, Topic: topic, Kind: "byte", Name: name, TotalLength: &total,
	}, destinationSids); err != nil {
		return err
	}
	if err := m.sendChunk(wireChunk{ID: id, Index: 0, Content: data}, destinationSids); err != nil {
		return err
	}
	return m.sendChunk(wireChunk{ID: id, Complete: true}, destinationSids)
}

func (m *Manager) sendHeader(hdr wireHeader, destSids []string) error {
	encoded, err := json.Marshal(hdr)
	if err != nil {
		return lkerrors.NewInternalError("failed to encode stream header")
	}
	return m.send(encoded, proto.DataPacketReliable, destSids, TopicHeader)
}

func (m *Manager) sendChunk(chunk wireChunk, destSids []string) error {
	encoded, err := json.Marshal(chunk)
	if err != nil {
		return lkerrors.NewInternalError("failed to encode stream chunk")
	}
	return m.send(encoded, proto.DataPacketReliable, destSids, TopicChunk)
}

func operationTypeFromWire(s string) OperationType {
	switch s {
	case "update":
		return OperationUpdate
	case "delete":
		return OperationDelete
	case "reaction":
		return OperationReaction
	default:
		return OperationCreate
	}
}
