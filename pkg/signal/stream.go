// Package signal implements the signaling stream and client of spec.md §4.A
// and §4.B: a single websocket-framed full-duplex link to the server, and
// the reconnect-aware wrapper around it.
package signal

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// Protocol is the signaling protocol version sent on every connect.
const Protocol = 12

const sdkName = "go"

// EventKind distinguishes the three events a Stream ever emits.
type EventKind int

const (
	EventOpen EventKind = iota
	EventSignal
	EventClose
)

// Event is pushed to Stream.Events in order: exactly one Open, any number of
// Signal, then exactly one Close.
type Event struct {
	Kind    EventKind
	Message *proto.SignalResponse
	Err     error
}

// ConnectOptions mirrors the query parameters of spec.md §6.
type ConnectOptions struct {
	AutoSubscribe   bool
	AdaptiveStream  bool
	Reconnect       bool
	Sid             string
	ParticipantSid  string
}

type writeReq struct {
	req *proto.SignalRequest
	ack chan error
}

// Stream owns one websocket connection. It never reconnects itself; that
// policy lives entirely in Client and above (spec.md §4.A: "No reconnection
// logic lives here").
type Stream struct {
	conn      *websocket.Conn
	events    chan Event
	writes    chan writeReq
	closed    core.Fuse
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

// Dial opens the websocket to <url>/rtc with the query parameters of §6 and
// starts the read/write tasks. It does not wait for a JoinResponse; that
// handshake is the Client's responsibility.
func Dial(ctx context.Context, rawURL, token string, opts ConnectOptions) (*Stream, error) {
	u, err := buildURL(rawURL, token, opts)
	if err != nil {
		return nil, lkerrors.WrapUrlParse(err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, lkerrors.WrapWs(err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan Event, 64),
		writes: make(chan writeReq, 256),
		closed: core.NewFuse(),
		log:    logging.Named("signal-stream"),
	}

	s.events <- Event{Kind: EventOpen}

	go s.readLoop()
	go s.writeLoop()

	return s, nil
}

func buildURL(rawURL, token string, opts ConnectOptions) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = joinPath(u.Path, "rtc")

	q := u.Query()
	q.Set("access_token", token)
	q.Set("protocol", fmt.Sprintf("%d", Protocol))
	q.Set("sdk", sdkName)
	q.Set("auto_subscribe", boolStr(opts.AutoSubscribe))
	q.Set("adaptive_stream", boolStr(opts.AdaptiveStream))
	if opts.Reconnect {
		q.Set("reconnect", "1")
		q.Set("sid", opts.Sid)
		q.Set("participant_sid", opts.ParticipantSid)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func joinPath(base, suffix string) string {
	if base == "" {
		return "/" + suffix
	}
	if base[len(base)-1] == '/' {
		return base + suffix
	}
	return base + "/" + suffix
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Events returns the stream's event channel. Callers must keep draining it
// until EventClose.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Send serializes and writes one request, awaiting the actual frame write.
func (s *Stream) Send(req *proto.SignalRequest) error {
	if s.closed.IsBroken() {
		return lkerrors.WrapSend(fmt.Errorf("stream closed"))
	}
	ack := make(chan error, 1)
	select {
	case s.writes <- writeReq{req: req, ack: ack}:
	case <-s.closed.Watch():
		return lkerrors.WrapSend(fmt.Errorf("stream closed"))
	}
	select {
	case err := <-ack:
		return err
	case <-s.closed.Watch():
		return lkerrors.WrapSend(fmt.Errorf("stream closed"))
	}
}

// Close sends a normal-close frame and closes the connection. The read and
// write tasks exit on their own afterwards; Close does not wait for them.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnected by client"),
			time.Now().Add(time.Second),
		)
		_ = s.conn.Close()
		s.closed.Break()
	})
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.events <- Event{Kind: EventClose, Err: lkerrors.WrapWs(err)}
			s.Close()
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			msg := &proto.SignalResponse{}
			if err := msg.Unmarshal(payload); err != nil {
				s.log.Warnw("dropping unparseable signal frame", err)
				continue
			}
			s.events <- Event{Kind: EventSignal, Message: msg}
		case websocket.TextMessage:
			s.log.Warnw("ignoring text frame on signal stream", nil)
		case websocket.PingMessage:
			_ = s.conn.WriteControl(websocket.PongMessage, payload, time.Now().Add(5*time.Second))
		case websocket.CloseMessage:
			s.events <- Event{Kind: EventClose}
			return
		}
	}
}

func (s *Stream) writeLoop() {
	for {
		select {
		case wr := <-s.writes:
			payload, err := wr.req.Marshal()
			if err != nil {
				wr.ack <- lkerrors.WrapSend(err)
				continue
			}
			err = s.conn.WriteMessage(websocket.BinaryMessage, payload)
			wr.ack <- lkerrors.WrapSend(err)
			if err != nil {
				s.Close()
				return
			}
		case <-s.closed.Watch():
			return
		}
	}
}
