package signal

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// JoinResponseTimeout is spec.md's JOIN_RESPONSE_TIMEOUT.
const JoinResponseTimeout = 5 * time.Second

// Client wraps at most one live Stream, adding the first-connect handshake,
// resume/restart, and the reconnect-preserving outbound request queue
// (spec.md §4.B).
type Client struct {
	url   string
	token string

	mu     sync.Mutex
	stream *Stream
	queue  deque.Deque[*proto.SignalRequest]

	participantSid string
	roomSid        string

	log *zap.SugaredLogger

	// OnSignal is invoked for every non-handshake Signal event once a
	// stream is live. OnClose is invoked exactly once per stream loss.
	OnSignal func(*proto.SignalResponse)
	OnClose  func(error)
}

func NewClient(url, token string) *Client {
	return &Client{
		url:   url,
		token: token,
		log:   logging.Named("signal-client"),
	}
}

// Connect performs the first-connect handshake: opens a stream and awaits a
// JoinResponse within JoinResponseTimeout. A non-matching first Signal while
// waiting is logged and skipped, per spec.md §4.B.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) (*proto.JoinResponse, error) {
	opts.Reconnect = false
	stream, err := Dial(ctx, c.url, c.token, opts)
	if err != nil {
		return nil, err
	}

	join, err := awaitJoin(stream)
	if err != nil {
		stream.Close()
		return nil, err
	}

	c.mu.Lock()
	c.stream = stream
	c.participantSid = join.Participant.Sid
	c.roomSid = join.RoomSid
	c.mu.Unlock()

	go c.pump(stream)
	c.flushQueue()

	return join, nil
}

// Restart closes any existing stream and reopens one with reconnect=1 and
// the preserved participant sid, awaiting a ReconnectResponse.
func (c *Client) Restart(ctx context.Context, opts ConnectOptions) (*proto.ReconnectResponse, error) {
	c.mu.Lock()
	old := c.stream
	c.stream = nil
	sid := c.roomSid
	participantSid := c.participantSid
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	opts.Reconnect = true
	opts.Sid = sid
	opts.ParticipantSid = participantSid

	stream, err := Dial(ctx, c.url, c.token, opts)
	if err != nil {
		return nil, err
	}

	reconnect, err := awaitReconnect(stream)
	if err != nil {
		stream.Close()
		return nil, err
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	go c.pump(stream)
	c.flushQueue()

	return reconnect, nil
}

// awaitJoin drains stream events until a JoinResponse arrives, or
// JoinResponseTimeout elapses. A non-matching first Signal is logged and
// skipped (spec.md §4.B).
func awaitJoin(s *Stream) (*proto.JoinResponse, error) {
	timeout := time.NewTimer(JoinResponseTimeout)
	defer timeout.Stop()
	log := logging.Named("signal-client")
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return nil, lkerrors.NewTimeout("join")
			}
			switch ev.Kind {
			case EventOpen:
				continue
			case EventClose:
				return nil, lkerrors.WrapWs(ev.Err)
			case EventSignal:
				if ev.Message.Join != nil {
					return ev.Message.Join, nil
				}
				log.Warnw("skipping non-join signal while awaiting handshake", nil)
			}
		case <-timeout.C:
			return nil, lkerrors.NewTimeout("join")
		}
	}
}

// awaitReconnect is the restart-path analogue of awaitJoin.
func awaitReconnect(s *Stream) (*proto.ReconnectResponse, error) {
	timeout := time.NewTimer(JoinResponseTimeout)
	defer timeout.Stop()
	log := logging.Named("signal-client")
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return nil, lkerrors.NewTimeout("reconnect")
			}
			switch ev.Kind {
			case EventOpen:
				continue
			case EventClose:
				return nil, lkerrors.WrapWs(ev.Err)
			case EventSignal:
				if ev.Message.Reconnect != nil {
					return ev.Message.Reconnect, nil
				}
				log.Warnw("skipping non-reconnect signal while awaiting handshake", nil)
			}
		case <-timeout.C:
			return nil, lkerrors.NewTimeout("reconnect")
		}
	}
}

func (c *Client) pump(s *Stream) {
	for ev := range s.Events() {
		switch ev.Kind {
		case EventOpen:
			continue
		case EventSignal:
			if c.OnSignal != nil {
				c.OnSignal(ev.Message)
			}
		case EventClose:
			if c.OnClose != nil {
				c.OnClose(ev.Err)
			}
			return
		}
	}
}

// Send enqueues a request while no stream is live, else writes it directly.
func (c *Client) Send(req *proto.SignalRequest) error {
	c.mu.Lock()
	stream := c.stream
	if stream == nil {
		c.queue.PushBack(req)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return stream.Send(req)
}

// ClearQueue drops all pending outbound requests.
func (c *Client) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.Clear()
}

// flushQueue drains the FIFO onto the now-live stream before any newly
// arriving request is admitted.
func (c *Client) flushQueue() {
	c.mu.Lock()
	stream := c.stream
	var pending []*proto.SignalRequest
	for c.queue.Len() > 0 {
		pending = append(pending, c.queue.PopFront())
	}
	c.mu.Unlock()

	for _, req := range pending {
		if err := stream.Send(req); err != nil {
			c.log.Warnw("failed to flush queued signal request", err)
		}
	}
}

func (c *Client) ParticipantSid() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantSid
}

func (c *Client) Close() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}
