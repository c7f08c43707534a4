package datastream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/client-sdk-go/pkg/proto"
)

// wireManagers links two Managers back to back, synchronously delivering
// each side's sends to the other, as if connected over a data channel.
func wireManagers(a, b *Manager) {
	a.send = func(payload []byte, kind proto.DataPacketKind, dest []string, topic string) error {
		b.HandleDataPacket(&proto.DataPacket{Kind: kind, Payload: payload, Topic: &topic})
		return nil
	}
}

func TestSendByteStreamDeliversFullPayload(t *testing.T) {
	sender := New(nil)
	receiver := New(nil)
	wireManagers(sender, receiver)

	opened := make(chan *ByteReader, 1)
	receiver.OnByteStreamOpened(func(r *ByteReader) { opened <- r })

	require.NoError(t, sender.SendByteStream("st_1", "greeting", "hello.txt", []byte("hello world"), nil))

	select {
	case reader := <-opened:
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		data, err := reader.ReadAll(ctx)
		require.NoError(t, err)
		require.Equal(t, "hello world", string(data))
		require.Equal(t, "greeting", reader.Info.Topic)
		require.Equal(t, "hello.txt", reader.Info.Name)
		require.NotNil(t, reader.Info.TotalLength)
		require.EqualValues(t, 11, *reader.Info.TotalLength)
	case <-time.After(time.Second):
		t.Fatal("stream never opened")
	}
}

func TestTextStreamReassemblyIgnoresStaleVersion(t *testing.T) {
	receiver := New(nil)
	opened := make(chan *TextReader, 1)
	receiver.OnTextStreamOpened(func(r *TextReader) { opened <- r })

	header := wireHeader{ID: "st_2", Topic: "caption", Kind: "text"}
	encoded, err := json.Marshal(header)
	require.NoError(t, err)
	topic := TopicHeader
	receiver.HandleDataPacket(&proto.DataPacket{Payload: encoded, Topic: &topic})

	reader := <-opened
	chunkTopic := TopicChunk

	send := func(index uint64, content string, version int32) {
		chunk := wireChunk{ID: "st_2", Index: index, Content: []byte(content), Version: version}
		encoded, err := json.Marshal(chunk)
		require.NoError(t, err)
		receiver.HandleDataPacket(&proto.DataPacket{Payload: encoded, Topic: &chunkTopic})
	}

	send(0, "hel", 1)
	require.Equal(t, "hel", <-reader.ch)

	send(0, "XXX", 0) // stale version at the same index must be ignored
	send(1, "lo", 1)
	require.Equal(t, "hello", <-reader.ch)

	done := wireChunk{ID: "st_2", Complete: true}
	encoded, err = json.Marshal(done)
	require.NoError(t, err)
	receiver.HandleDataPacket(&proto.DataPacket{Payload: encoded, Topic: &chunkTopic})

	_, ok := <-reader.ch
	require.False(t, ok)
}

func TestHandleDataPacketIgnoresOtherTopics(t *testing.T) {
	m := New(nil)
	topic := "unrelated"
	m.HandleDataPacket(&proto.DataPacket{Payload: []byte("ignored"), Topic: &topic})
	require.Empty(t, m.openByte)
	require.Empty(t, m.openText)
}
