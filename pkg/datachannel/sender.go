// Package datachannel implements DataChannelSender (spec.md §4.D): a per-DC
// send worker with low-watermark backpressure.
package datachannel

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/logging"
)

// LowBufferThreshold is the bufferedAmount ceiling below which the sender
// keeps draining its queue eagerly.
const LowBufferThreshold = 1 << 16 // 64KB

// Sender owns one outbound data channel. Oldest-first in-order delivery is
// guaranteed: a single goroutine ever calls dc.Send.
type Sender struct {
	dc *webrtc.DataChannel

	mu     sync.Mutex
	queue  [][]byte
	closed bool

	wake chan struct{}
	done chan struct{}

	log *zap.SugaredLogger
}

// New wraps dc and starts its send worker. label is used only for logging.
func New(dc *webrtc.DataChannel, label string) *Sender {
	s := &Sender{
		dc:   dc,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  logging.Named("dc-sender:" + label),
	}
	dc.SetBufferedAmountLowThreshold(LowBufferThreshold)
	dc.OnBufferedAmountLow(func() {
		s.notify()
	})
	go s.run()
	return s
}

// Send enqueues payload for delivery. It never blocks the caller on network
// backpressure — that is this component's entire point.
func (s *Sender) Send(payload []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	s.queue = append(s.queue, payload)
	s.mu.Unlock()
	s.notify()
	return nil
}

// ReadyState passes through the underlying data channel's state, used by
// pkg/session's publisher warm-up to detect when a channel has opened.
func (s *Sender) ReadyState() webrtc.DataChannelState {
	return s.dc.ReadyState()
}

func (s *Sender) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sender) run() {
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.done:
			return
		}
	}
}

func (s *Sender) drain() {
	for {
		s.mu.Lock()
		if s.closed || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		if s.dc.BufferedAmount() > LowBufferThreshold {
			s.mu.Unlock()
			return
		}
		payload := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.dc.Send(payload); err != nil {
			s.log.Warnw("data channel send failed", err)
			return
		}
	}
}

// Close stops the worker; any remaining queued payloads are abandoned.
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Infow("dropping queued payloads on close", "count", dropped)
	}
	close(s.done)
}

type sendError string

func (e sendError) Error() string { return string(e) }

const errClosed = sendError("data channel sender closed")
