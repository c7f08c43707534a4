// Package lkerrors implements the error taxonomy of the session engine:
// SignalError, EngineError, TrackError, RpcError and StreamError.
package lkerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// SignalError kinds.
type SignalErrorKind int

const (
	SignalErrWs SignalErrorKind = iota
	SignalErrUrlParse
	SignalErrProtoParse
	SignalErrTimeout
	SignalErrSend
)

type SignalError struct {
	Kind  SignalErrorKind
	What  string // populated for SignalErrTimeout
	Cause error
}

func (e *SignalError) Error() string {
	switch e.Kind {
	case SignalErrWs:
		return fmt.Sprintf("signal: websocket error: %v", e.Cause)
	case SignalErrUrlParse:
		return fmt.Sprintf("signal: url parse error: %v", e.Cause)
	case SignalErrProtoParse:
		return fmt.Sprintf("signal: protocol parse error: %v", e.Cause)
	case SignalErrTimeout:
		return fmt.Sprintf("signal: timeout waiting for %s", e.What)
	case SignalErrSend:
		return fmt.Sprintf("signal: send error: %v", e.Cause)
	default:
		return "signal: unknown error"
	}
}

func (e *SignalError) Unwrap() error { return e.Cause }

func NewTimeout(what string) error {
	return &SignalError{Kind: SignalErrTimeout, What: what}
}

func WrapWs(err error) error {
	if err == nil {
		return nil
	}
	return &SignalError{Kind: SignalErrWs, Cause: err}
}

func WrapUrlParse(err error) error {
	if err == nil {
		return nil
	}
	return &SignalError{Kind: SignalErrUrlParse, Cause: err}
}

func WrapProtoParse(err error) error {
	if err == nil {
		return nil
	}
	return &SignalError{Kind: SignalErrProtoParse, Cause: err}
}

func WrapSend(err error) error {
	if err == nil {
		return nil
	}
	return &SignalError{Kind: SignalErrSend, Cause: err}
}

// EngineError wraps the engine-level error kinds.
type EngineErrorKind int

const (
	EngineErrSignal EngineErrorKind = iota
	EngineErrRtc
	EngineErrParse
	EngineErrDecode
	EngineErrDataSend
	EngineErrConnection
	EngineErrInternal
)

type EngineError struct {
	Kind   EngineErrorKind
	Reason string
	Cause  error
}

func (e *EngineError) Error() string {
	switch e.Kind {
	case EngineErrSignal:
		return fmt.Sprintf("engine: signal error: %v", e.Cause)
	case EngineErrRtc:
		return fmt.Sprintf("engine: rtc error: %v", e.Cause)
	case EngineErrParse:
		return fmt.Sprintf("engine: sdp parse error: %v", e.Cause)
	case EngineErrDecode:
		return fmt.Sprintf("engine: proto decode error: %v", e.Cause)
	case EngineErrDataSend:
		return "engine: data send error"
	case EngineErrConnection:
		return fmt.Sprintf("engine: connection error: %s", e.Reason)
	case EngineErrInternal:
		return fmt.Sprintf("engine: internal error: %s", e.Reason)
	default:
		return "engine: unknown error"
	}
}

func (e *EngineError) Unwrap() error { return e.Cause }

func NewConnectionError(reason string) error {
	return &EngineError{Kind: EngineErrConnection, Reason: reason}
}

func NewInternalError(reason string) error {
	return &EngineError{Kind: EngineErrInternal, Reason: reason}
}

func WrapSignal(err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: EngineErrSignal, Cause: err}
}

func WrapRtc(err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: EngineErrRtc, Cause: err}
}

func WrapParse(err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: EngineErrParse, Cause: err}
}

func WrapDecode(err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: EngineErrDecode, Cause: err}
}

// TrackError.

type TrackError struct {
	Sid string
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track not found: %s", e.Sid)
}

func NewTrackNotFound(sid string) error {
	return &TrackError{Sid: sid}
}

// RpcError mirrors the caller/callee error codes of the RPC-over-data-channel
// surface (spec.md §7, wired by pkg/rpc).
type RpcErrorCode uint32

const (
	RpcUnsupportedMethod     RpcErrorCode = 1400
	RpcRecipientNotFound     RpcErrorCode = 1401
	RpcRequestPayloadTooBig  RpcErrorCode = 1402
	RpcUnsupportedServer     RpcErrorCode = 1403
	RpcUnsupportedVersion    RpcErrorCode = 1404
	RpcApplicationError      RpcErrorCode = 1500
	RpcConnectionTimeout     RpcErrorCode = 1501
	RpcResponseTimeout       RpcErrorCode = 1502
	RpcRecipientDisconnected RpcErrorCode = 1503
	RpcResponsePayloadTooBig RpcErrorCode = 1504
	RpcSendFailed            RpcErrorCode = 1505
)

type RpcError struct {
	Code    RpcErrorCode
	Message string
	Data    string
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func NewRpcError(code RpcErrorCode, message string) *RpcError {
	return &RpcError{Code: code, Message: message}
}

// StreamError covers the data-track packet codec (pkg/datatrack).
type StreamErrorKind int

const (
	StreamErrInvalidHeader StreamErrorKind = iota
	StreamErrIo
	StreamErrUtf8
	StreamErrMtuTooShort
)

type StreamError struct {
	Kind  StreamErrorKind
	Cause error
}

func (e *StreamError) Error() string {
	switch e.Kind {
	case StreamErrInvalidHeader:
		return fmt.Sprintf("stream: invalid header: %v", e.Cause)
	case StreamErrIo:
		return fmt.Sprintf("stream: io error: %v", e.Cause)
	case StreamErrUtf8:
		return fmt.Sprintf("stream: invalid utf8: %v", e.Cause)
	case StreamErrMtuTooShort:
		return "stream: mtu too short for header"
	default:
		return "stream: unknown error"
	}
}

func (e *StreamError) Unwrap() error { return e.Cause }

var ErrMtuTooShort = &StreamError{Kind: StreamErrMtuTooShort}

func NewInvalidHeader(cause error) error {
	return &StreamError{Kind: StreamErrInvalidHeader, Cause: cause}
}

// Wrap re-exports errors.Wrap so call sites only need this package.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
