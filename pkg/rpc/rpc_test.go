package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/client-sdk-go/pkg/lkerrors"
	"github.com/livekit/client-sdk-go/pkg/proto"
)

// wire links two Services back to back as if they were opposite ends of a
// data-channel connection, synchronously delivering each send to the peer.
func wire(a, b *Service) {
	a.send = func(payload []byte, kind proto.DataPacketKind, dest []string, topic string) error {
		b.HandleDataPacket(&proto.DataPacket{Kind: kind, ParticipantSid: "PA_a", Payload: payload, Topic: &topic})
		return nil
	}
	b.send = func(payload []byte, kind proto.DataPacketKind, dest []string, topic string) error {
		a.HandleDataPacket(&proto.DataPacket{Kind: kind, ParticipantSid: "PA_b", Payload: payload, Topic: &topic})
		return nil
	}
}

func newPair() (*Service, *Service) {
	resolveB := func(identity string) (string, bool) {
		if identity == "callee" {
			return "PA_b", true
		}
		return "", false
	}
	resolveA := func(identity string) (string, bool) {
		if identity == "caller" {
			return "PA_a", true
		}
		return "", false
	}
	caller := New("caller", nil, resolveB)
	callee := New("callee", nil, resolveA)
	wire(caller, callee)
	return caller, callee
}

func TestPerformRpcReturnsHandlerResult(t *testing.T) {
	caller, callee := newPair()
	callee.RegisterMethod("greet", func(ctx context.Context, data InvocationData) (string, error) {
		require.Equal(t, "caller", data.CallerIdentity)
		return "hello " + data.Payload, nil
	})

	result, err := caller.PerformRpc(context.Background(), "callee", "greet", "world", time.Second)
	require.NoError(t, err)
	require.Equal(t, "hello world", result)
}

func TestPerformRpcUnsupportedMethod(t *testing.T) {
	caller, _ := newPair()

	_, err := caller.PerformRpc(context.Background(), "callee", "missing", "", time.Second)
	require.Error(t, err)
	var rpcErr *lkerrors.RpcError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, lkerrors.RpcUnsupportedMethod, rpcErr.Code)
}

func TestPerformRpcRecipientNotFound(t *testing.T) {
	caller, _ := newPair()

	_, err := caller.PerformRpc(context.Background(), "nobody", "greet", "", time.Second)
	require.Error(t, err)
	var rpcErr *lkerrors.RpcError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, lkerrors.RpcRecipientNotFound, rpcErr.Code)
}

func TestPerformRpcHandlerErrorPropagates(t *testing.T) {
	caller, callee := newPair()
	callee.RegisterMethod("fail", func(ctx context.Context, data InvocationData) (string, error) {
		return "", lkerrors.NewRpcError(lkerrors.RpcApplicationError, "boom")
	})

	_, err := caller.PerformRpc(context.Background(), "callee", "fail", "", time.Second)
	require.Error(t, err)
	var rpcErr *lkerrors.RpcError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, lkerrors.RpcApplicationError, rpcErr.Code)
	require.Equal(t, "boom", rpcErr.Message)
}

func TestPerformRpcTimesOutWithoutResponse(t *testing.T) {
	caller, callee := newPair()
	blocked := make(chan struct{})
	defer close(blocked)
	callee.RegisterMethod("slow", func(ctx context.Context, data InvocationData) (string, error) {
		<-blocked
		return "", nil
	})

	_, err := caller.PerformRpc(context.Background(), "callee", "slow", "", 20*time.Millisecond)
	require.Error(t, err)
	var rpcErr *lkerrors.RpcError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, lkerrors.RpcResponseTimeout, rpcErr.Code)
}

func TestPerformRpcRejectsOversizedPayload(t *testing.T) {
	caller, _ := newPair()
	oversized := make([]byte, MaxPayloadBytes+1)

	_, err := caller.PerformRpc(context.Background(), "callee", "greet", string(oversized), time.Second)
	require.Error(t, err)
	var rpcErr *lkerrors.RpcError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, lkerrors.RpcRequestPayloadTooBig, rpcErr.Code)
}
