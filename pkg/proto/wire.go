// Package proto implements the length-delimited wire envelopes of the
// signaling protocol (spec.md §6) directly on top of
// google.golang.org/protobuf/encoding/protowire, rather than through
// protoc-generated bindings: the message set is small and internal to this
// SDK, and protowire gives the same wire-compatible varint/length-delimited
// framing without a codegen step.
package proto

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is satisfied by every wire type in this package.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

type writer struct {
	buf []byte
}

func (w *writer) bool(num protowire.Number, v bool) {
	if !v {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, 1)
}

func (w *writer) int32(num protowire.Number, v int32) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(uint32(v)))
}

func (w *writer) uint32(num protowire.Number, v uint32) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

func (w *writer) int64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

func (w *writer) float32(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed32Type)
	w.buf = protowire.AppendFixed32(w.buf, math.Float32bits(v))
}

func (w *writer) str(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
}

func (w *writer) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
}

func (w *writer) strs(num protowire.Number, vs []string) {
	for _, v := range vs {
		w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
		w.buf = protowire.AppendString(w.buf, v)
	}
}

func (w *writer) message(num protowire.Number, m Message) error {
	if m == nil {
		return nil
	}
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, b)
	return nil
}

func (w *writer) messages(num protowire.Number, ms []Message) error {
	for _, m := range ms {
		if err := w.message(num, m); err != nil {
			return err
		}
	}
	return nil
}

// consumeFields walks a serialized message, invoking fn once per field with
// the raw remaining buffer positioned at the field's value; fn must return
// the number of bytes of b it consumed.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		n := protowire.ConsumeFieldValue(0, typ, b)
		return 0, n, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, n, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeFixed32(typ protowire.Type, b []byte) (uint32, int, error) {
	if typ != protowire.Fixed32Type {
		n := protowire.ConsumeFieldValue(0, typ, b)
		return 0, n, nil
	}
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, n, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		n := protowire.ConsumeFieldValue(0, typ, b)
		return nil, n, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n, protowire.ParseError(n)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n, nil
}

func consumeFloat32(typ protowire.Type, b []byte) (float32, int, error) {
	bits, n, err := consumeFixed32(typ, b)
	return math.Float32frombits(bits), n, err
}

func consumeString(typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := consumeBytes(typ, b)
	return string(v), n, err
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	return n, nil
}
