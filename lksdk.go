// Package lksdk is the public entry point of the client SDK: it wires
// together pkg/engine (signaling, session, reconnection) and pkg/room
// (participant/track state, RPC, data streams) into a single Connect call.
package lksdk

import (
	"context"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/client-sdk-go/pkg/engine"
	"github.com/livekit/client-sdk-go/pkg/peer"
	"github.com/livekit/client-sdk-go/pkg/proto"
	"github.com/livekit/client-sdk-go/pkg/room"
)

// TokenMinter is the external collaborator that produces a join token for a
// room/identity pair. Token minting and verification are explicitly out of
// scope for this SDK (spec.md's non-goals); TokenMinter exists only so
// Connect has a seam for a caller-supplied implementation to plug into, and
// is never implemented here.
type TokenMinter interface {
	Mint(ctx context.Context, roomName, identity string) (string, error)
}

// ConnectOptions controls how a Room connects to the server.
type ConnectOptions struct {
	AutoSubscribe  bool
	AdaptiveStream bool

	// TokenMinter, if set, is used to obtain a join token when Connect is
	// called with an empty token.
	TokenMinter TokenMinter
	RoomName    string
	Identity    string
}

// DefaultConnectOptions matches the server's own defaults.
var DefaultConnectOptions = ConnectOptions{AutoSubscribe: true}

// Room is the SDK's top-level handle: a connected room plus the engine
// driving it. Use its embedded *room.Room for participant/track state, RPC,
// and data streams.
type Room struct {
	*room.Room

	engine *engine.Engine
}

// Connect dials url with token, performs the join handshake, and returns a
// connected Room. The returned Room's event stream (Events()) starts
// delivering events once the background pump goroutine is scheduled, which
// Connect starts before returning.
func Connect(ctx context.Context, url, token string, opts ConnectOptions) (*Room, error) {
	if token == "" && opts.TokenMinter != nil {
		minted, err := opts.TokenMinter.Mint(ctx, opts.RoomName, opts.Identity)
		if err != nil {
			return nil, err
		}
		token = minted
	}

	api, err := peer.NewAPI(webrtc.SettingEngine{})
	if err != nil {
		return nil, err
	}

	eng := engine.New(url, token, api, engine.ConnectOptions{
		AutoSubscribe:  opts.AutoSubscribe,
		AdaptiveStream: opts.AdaptiveStream,
	})

	join, err := eng.Connect(ctx)
	if err != nil {
		return nil, err
	}

	r := room.New(join, eng.SendSignal)
	r.AttachDataSender(func(payload []byte, kind proto.DataPacketKind, _ []string, _ string) error {
		return eng.PublishData(payload, kind)
	})

	go r.Run(eng.Events())

	return &Room{Room: r, engine: eng}, nil
}

// Disconnect tears down the engine (closing the session and signal
// connection) and stops the room's event pump.
func (r *Room) Disconnect() {
	r.engine.Close()
}
