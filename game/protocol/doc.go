// Package protocol defines the wire envelope shared by every session-level
// and game-level packet, the type discriminators, and the codecs used by the
// connection gateway.
//
// Every frame is a tagged union:
//
//	{"type": "confirm_selection", "data": {"indices": [0, 1]}}
//
// Outbound packets are built as an Envelope and encoded by the connection's
// Codec. Inbound frames are decoded into a Packet whose payload is bound
// lazily, once the receiver knows which struct the type discriminator maps
// to. Two codecs are available: JSON (text frames, the default) and msgpack
// (binary frames), selected per connection.
package protocol
