package engine

import (
	"context"
	"time"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/peer"
	"github.com/livekit/client-sdk-go/pkg/signal"
)

const (
	maxResumeAttempts  = 3
	resumeBackoffBase  = 300 * time.Millisecond
	resumeBackoffCap   = 10 * time.Second
	resumeIceTimeout   = 15 * time.Second
	resumePollInterval = 50 * time.Millisecond
	maxRestartAttempts = 3
	restartBackoffBase = 1 * time.Second
	restartBackoffCap  = 30 * time.Second
)

// onSessionDown is called either from a publisher/subscriber transport
// transitioning Failed, or from the signal client reporting closure during
// steady state. A call made while the engine is already resuming or
// restarting returns at once; otherwise it runs the resume/restart ladder of
// spec.md §4.G on the caller's goroutine and returns when the ladder ends.
func (e *Engine) onSessionDown(reason error) {
	if e.State() == StateResuming || e.State() == StateRestarting {
		return
	}
	e.resume(reason)
}

func (e *Engine) resume(reason error) {
	e.setState(StateResuming)
	e.emit(Event{Kind: EventResuming, Reason: reason})

	for attempt := 0; attempt < maxResumeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(resumeBackoffBase, resumeBackoffCap, attempt-1))
		}
		if e.tryResume() {
			e.setState(StateConnected)
			e.emit(Event{Kind: EventResumed})
			return
		}
	}

	e.restart(reason)
}

// tryResume reopens the signal websocket with reconnect=1, issues an ICE
// restart on both transports, and waits for both to reconnect.
func (e *Engine) tryResume() bool {
	e.mu.RLock()
	client := e.signalClient
	sess := e.sess
	e.mu.RUnlock()
	if client == nil || sess == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), resumeIceTimeout)
	defer cancel()

	_, err := client.Restart(ctx, signal.ConnectOptions{
		AutoSubscribe:  e.opts.AutoSubscribe,
		AdaptiveStream: e.opts.AdaptiveStream,
	})
	if err != nil {
		e.log.Warnw("resume: signal restart failed", err)
		return false
	}

	sess.Publisher().PrepareIceRestart()
	sess.Subscriber().PrepareIceRestart()
	if !sess.Subscriber().IsConnected() || sess.HasPublished() {
		if err := sess.Publisher().CreateAndSendOffer(peer.OfferOptions{IceRestart: true}); err != nil {
			e.log.Warnw("resume: publisher ice restart failed", err)
			return false
		}
	}

	deadline := time.Now().Add(resumeIceTimeout)
	for time.Now().Before(deadline) {
		if sess.Publisher().IsConnected() && sess.Subscriber().IsConnected() {
			return true
		}
		time.Sleep(resumePollInterval)
	}
	return false
}

// restart tears the session down entirely and reconnects from scratch,
// reusing the original URL and token, respecting an overall attempt budget.
func (e *Engine) restart(reason error) {
	e.setState(StateRestarting)
	e.emit(Event{Kind: EventRestarting, Reason: reason})

	e.mu.Lock()
	oldSess := e.sess
	oldClient := e.signalClient
	e.sess = nil
	e.signalClient = nil
	e.mu.Unlock()
	if oldSess != nil {
		oldSess.Close()
	}
	if oldClient != nil {
		oldClient.Close()
	}

	e.mu.Lock()
	e.restartAttempts++
	attempt := e.restartAttempts
	e.mu.Unlock()

	if attempt > maxRestartAttempts {
		e.setState(StateDisconnected)
		e.emit(Event{Kind: EventDisconnected, Reason: lkerrors.NewConnectionError("restart budget exhausted")})
		return
	}

	if attempt > 1 {
		time.Sleep(backoff(restartBackoffBase, restartBackoffCap, attempt-1))
	}

	ctx, cancel := context.WithTimeout(context.Background(), resumeIceTimeout)
	defer cancel()

	if _, err := e.Connect(ctx); err != nil {
		e.log.Warnw("restart attempt failed", err)
		e.restart(reason)
		return
	}

	e.mu.Lock()
	e.resumeAttempts = 0
	e.mu.Unlock()

	e.emit(Event{Kind: EventRestarted})
}

func backoff(base, cap time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
