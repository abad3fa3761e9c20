package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns envelopes into frames and frames into packets.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary messages.
	Binary() bool
	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Packet, error)
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName resolves a codec from a query parameter value. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}

type jsonCodec struct{}

type jsonFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type jsonPacket struct {
	packetType string
	data       json.RawMessage
}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (jsonCodec) Decode(data []byte) (Packet, error) {
	var frame jsonFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPacket)
	}
	return &jsonPacket{packetType: frame.Type, data: frame.Data}, nil
}

func (p *jsonPacket) Type() string { return p.packetType }

func (p *jsonPacket) Bind(v any) error {
	if len(p.data) == 0 || bytes.Equal(p.data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(p.data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPacket, p.packetType, err)
	}
	return nil
}

// msgpack reuses the json struct tags so payload structs are declared once.
type msgpackCodec struct{}

type msgpackFrame struct {
	Type string             `json:"type"`
	Data msgpack.RawMessage `json:"data,omitempty"`
}

type msgpackPacket struct {
	packetType string
	data       msgpack.RawMessage
}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(data []byte) (Packet, error) {
	var frame msgpackFrame
	if err := unmarshalMsgpack(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPacket)
	}
	return &msgpackPacket{packetType: frame.Type, data: frame.Data}, nil
}

func (p *msgpackPacket) Type() string { return p.packetType }

func (p *msgpackPacket) Bind(v any) error {
	if len(p.data) == 0 {
		return nil
	}
	if err := unmarshalMsgpack(p.data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPacket, p.packetType, err)
	}
	return nil
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
