// Package rpc implements RPC-over-data-channel, grounded on
// original_source/livekit/src/room/participant/rpc.rs and
// original_source/examples/rpc/src/main.rs: participants invoke a named
// method on another participant and await a single response, carried as
// DataPacket payloads on the reliable channel under well-known topics.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/logging"
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// Well-known data-packet topics the RPC protocol is carried under.
const (
	TopicRequest  = "lk-rpc-request"
	TopicResponse = "lk-rpc-response"
)

// MaxMessageBytes and MaxPayloadBytes mirror RpcError::MAX_MESSAGE_BYTES and
// rpc::MAX_PAYLOAD_BYTES.
const (
	MaxMessageBytes = 256
	MaxPayloadBytes = 15360
)

// DefaultResponseTimeout mirrors PerformRpcData's default.
const DefaultResponseTimeout = 15 * time.Second

// Sender publishes one data packet to the participants in destinationSids,
// or to the whole room if the list is empty. Implemented by the Room, which
// forwards to the engine once AttachDataSender has been called.
type Sender func(payload []byte, kind proto.DataPacketKind, destinationSids []string, topic string) error

// IdentityResolver maps a participant identity to its current sid, the form
// data packets are addressed by.
type IdentityResolver func(identity string) (sid string, ok bool)

// InvocationData is passed to a registered method handler for one incoming
// call (RpcInvocationData in rpc.rs).
type InvocationData struct {
	RequestID       string
	CallerIdentity  string
	Payload         string
	ResponseTimeout time.Duration
}

// Handler implements one registered RPC method. A returned error is, when
// it unwraps to an *lkerrors.RpcError, sent back verbatim; any other error
// is reported to the caller as RpcApplicationError.
type Handler func(ctx context.Context, data InvocationData) (string, error)

type wireRequest struct {
	ID                string `json:"id"`
	Method            string `json:"method"`
	Payload           string `json:"payload"`
	ResponseTimeoutMs int64  `json:"responseTimeoutMs"`
	CallerIdentity    string `json:"callerIdentity"`
}

type wireResponse struct {
	ID      string            `json:"id"`
	Payload *string           `json:"payload,omitempty"`
	Error   *wireResponseError `json:"error,omitempty"`
}

type wireResponseError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// Service implements the caller and callee sides of the RPC protocol for
// one local participant.
type Service struct {
	localIdentity string
	send          Sender
	resolve       IdentityResolver

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]chan wireResponse

	log *zap.SugaredLogger
}

// New constructs a Service for the local participant identified by
// localIdentity.
func New(localIdentity string, send Sender, resolve IdentityResolver) *Service {
	return &Service{
		localIdentity: localIdentity,
		send:          send,
		resolve:       resolve,
		handlers:      make(map[string]Handler),
		pending:       make(map[string]chan wireResponse),
		log:           logging.Named("rpc"),
	}
}

// RegisterMethod installs handler as the implementation of method. A second
// registration of the same name replaces the first.
func (s *Service) RegisterMethod(method string, handler Handler) {
	s.mu.Lock()
	s.handlers[method] = handler
	s.mu.Unlock()
}

// UnregisterMethod removes method's handler, if any.
func (s *Service) UnregisterMethod(method string) {
	s.mu.Lock()
	delete(s.handlers, method)
	s.mu.Unlock()
}

// PerformRpc calls method on destinationIdentity with payload, blocking
// until a response arrives or responseTimeout elapses. A responseTimeout of
// zero selects DefaultResponseTimeout.
func (s *Service) PerformRpc(ctx context.Context, destinationIdentity, method, payload string, responseTimeout time.Duration) (string, error) {
	if len(payload) > MaxPayloadBytes {
		return "", lkerrors.NewRpcError(lkerrors.RpcRequestPayloadTooBig, "request payload too large")
	}
	if responseTimeout <= 0 {
		responseTimeout = DefaultResponseTimeout
	}

	destSid, ok := s.resolve(destinationIdentity)
	if !ok {
		return "", lkerrors.NewRpcError(lkerrors.RpcRecipientNotFound, "recipient not found")
	}

	req := wireRequest{
		ID:                uuid.NewString(),
		Method:            method,
		Payload:           payload,
		ResponseTimeoutMs: responseTimeout.Milliseconds(),
		CallerIdentity:    s.localIdentity,
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return "", lkerrors.NewRpcError(lkerrors.RpcSendFailed, "failed to encode request")
	}

	ch := make(chan wireResponse, 1)
	s.mu.Lock()
	s.pending[req.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
	}()

	if err := s.send(encoded, proto.DataPacketReliable, []string{destSid}, TopicRequest); err != nil {
		return "", lkerrors.NewRpcError(lkerrors.RpcSendFailed, "failed to send request")
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return "", lkerrors.NewRpcError(lkerrors.RpcErrorCode(resp.Error.Code), resp.Error.Message)
		}
		if resp.Payload != nil {
			return *resp.Payload, nil
		}
		return "", nil
	case <-time.After(responseTimeout):
		return "", lkerrors.NewRpcError(lkerrors.RpcResponseTimeout, "response timeout")
	case <-ctx.Done():
		return "", lkerrors.NewRpcError(lkerrors.RpcResponseTimeout, "context cancelled")
	}
}

// HandleDataPacket inspects an inbound DataPacket's topic and dispatches it
// as either a request to a registered method or a response to a pending
// PerformRpc call. Packets on other topics are ignored.
func (s *Service) HandleDataPacket(packet *proto.DataPacket) {
	if packet.Topic == nil {
		return
	}
	switch *packet.Topic {
	case TopicRequest:
		s.handleRequest(packet)
	case TopicResponse:
		s.handleResponse(packet)
	}
}

func (s *Service) handleRequest(packet *proto.DataPacket) {
	var req wireRequest
	if err := json.Unmarshal(packet.Payload, &req); err != nil {
		s.log.Warnw("dropping unparseable rpc request", err)
		return
	}

	s.mu.Lock()
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		s.respondError(packet.ParticipantSid, req.ID, lkerrors.RpcUnsupportedMethod, "method not supported")
		return
	}

	timeout := time.Duration(req.ResponseTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := handler(ctx, InvocationData{
			RequestID:       req.ID,
			CallerIdentity:  req.CallerIdentity,
			Payload:         req.Payload,
			ResponseTimeout: timeout,
		})
		if err != nil {
			var rpcErr *lkerrors.RpcError
			if errors.As(err, &rpcErr) {
				s.respondError(packet.ParticipantSid, req.ID, rpcErr.Code, rpcErr.Message)
				return
			}
			s.respondError(packet.ParticipantSid, req.ID, lkerrors.RpcApplicationError, err.Error())
			return
		}
		s.respondPayload(packet.ParticipantSid, req.ID, result)
	}()
}

func (s *Service) handleResponse(packet *proto.DataPacket) {
	var resp wireResponse
	if err := json.Unmarshal(packet.Payload, &resp); err != nil {
		s.log.Warnw("dropping unparseable rpc response", err)
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

func (s *Service) respondPayload(destSid, requestID, payload string) {
	if len(payload) > MaxPayloadBytes {
		s.respondError(destSid, requestID, lkerrors.RpcResponsePayloadTooBig, "response payload too large")
		return
	}
	resp := wireResponse{ID: requestID, Payload: &payload}
	s.sendResponse(destSid, resp)
}

func (s *Service) respondError(destSid, requestID string, code lkerrors.RpcErrorCode, message string) {
	if len(message) > MaxMessageBytes {
		message = message[:MaxMessageBytes]
	}
	resp := wireResponse{ID: requestID, Error: &wireResponseError{Code: uint32(code), Message: message}}
	s.sendResponse(destSid, resp)
}

func (s *Service) sendResponse(destSid string, resp wireResponse) {
	encoded, err := json.Marshal(resp)
	if err != nil {
		s.log.Warnw("failed to encode rpc response", err)
		return
	}
	if err := s.send(encoded, proto.DataPacketReliable, []string{destSid}, TopicResponse); err != nil {
		s.log.Warnw("failed to send rpc response", err)
	}
}

