package doubaotts

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ================== Protocol constants ==================

// MessageType is the 4-bit message type in the second header byte.
type MessageType byte

// MessageFlags is the 4-bit message-type-specific flag field.
type MessageFlags byte

// Serialization is the 4-bit payload serialization method.
type Serialization byte

// Compression is the 4-bit payload compression method.
type Compression byte

const (
	protocolVersionV1 byte = 0b0001
	headerSizeWords   byte = 0b0001
	headerLen              = 4

	MsgTypeFullClientRequest  MessageType = 0b0001
	MsgTypeFullServerResponse MessageType = 0b1001
	MsgTypeAudioOnlyResponse  MessageType = 0b1011
	MsgTypeErrorInformation   MessageType = 0b1111

	FlagNoSequence       MessageFlags = 0b0000
	FlagPositiveSequence MessageFlags = 0b0001
	FlagLastNoSequence   MessageFlags = 0b0010
	FlagNegativeSequence MessageFlags = 0b0011
	FlagWithEvent        MessageFlags = 0b0100

	SerializationNone Serialization = 0b0000
	SerializationJSON Serialization = 0b0001

	CompressionNone Compression = 0b0000
	CompressionGzip Compression = 0b0001
)

func (t MessageType) String() string {
	switch t {
	case MsgTypeFullClientRequest:
		return "FullClientRequest"
	case MsgTypeFullServerResponse:
		return "FullServerResponse"
	case MsgTypeAudioOnlyResponse:
		return "AudioOnlyResponse"
	case MsgTypeErrorInformation:
		return "ErrorInformation"
	default:
		return fmt.Sprintf("MessageType(%#x)", byte(t))
	}
}

// isServerResponse reports whether frames of this type carry an event-tagged
// optional section when FlagWithEvent is set.
func (t MessageType) isServerResponse() bool {
	return t == MsgTypeFullServerResponse || t == MsgTypeAudioOnlyResponse
}

// ================== Header ==================

// Header is the fixed 4-byte frame header.
//
// Layout:
//   - (4bits) version + (4bits) header_size
//   - (4bits) message_type + (4bits) message_type_flags
//   - (4bits) serialization + (4bits) compression
//   - (8bits) reserved
type Header struct {
	Version       byte
	Size          byte // in 4-byte words
	MessageType   MessageType
	Flags         MessageFlags
	Serialization Serialization
	Compression   Compression
	Reserved      byte
}

// EncodeHeader packs a version-1, single-word header.
func EncodeHeader(t MessageType, flags MessageFlags, s Serialization, c Compression) [headerLen]byte {
	return Header{
		Version:       protocolVersionV1,
		Size:          headerSizeWords,
		MessageType:   t,
		Flags:         flags,
		Serialization: s,
		Compression:   c,
	}.Bytes()
}

// Bytes returns the wire form of h.
func (h Header) Bytes() [headerLen]byte {
	return [headerLen]byte{
		h.Version<<4 | h.Size&0x0f,
		byte(h.MessageType)<<4 | byte(h.Flags)&0x0f,
		byte(h.Serialization)<<4 | byte(h.Compression)&0x0f,
		h.Reserved,
	}
}

// DecodeHeader is the inverse of Header.Bytes.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < headerLen {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrMalformedFrame, headerLen, len(b))
	}
	return Header{
		Version:       b[0] >> 4,
		Size:          b[0] & 0x0f,
		MessageType:   MessageType(b[1] >> 4),
		Flags:         MessageFlags(b[1] & 0x0f),
		Serialization: Serialization(b[2] >> 4),
		Compression:   Compression(b[2] & 0x0f),
		Reserved:      b[3],
	}, nil
}

// end returns the offset just past the header in b. Header words beyond the
// fixed four bytes are skipped.
func (h Header) end(b []byte) (int, error) {
	off := int(h.Size) * 4
	if off < headerLen || off > len(b) {
		return 0, fmt.Errorf("%w: header size %d words", ErrMalformedFrame, h.Size)
	}
	return off, nil
}

// ================== Optional section ==================

// Optional is the outbound optional section. Zero-valued fields are omitted
// from the wire rather than zero-filled.
type Optional struct {
	Event     Event
	SessionID string
	Sequence  *int32
}

// Bytes encodes event, session id and sequence, in that order.
func (o Optional) Bytes() []byte {
	var buf bytes.Buffer
	if o.Event != EventNone {
		writeInt32(&buf, int32(o.Event))
	}
	if o.SessionID != "" {
		writeString(&buf, o.SessionID)
	}
	if o.Sequence != nil {
		writeInt32(&buf, *o.Sequence)
	}
	return buf.Bytes()
}

// ================== Frame ==================

// Frame is one outbound message: header, optional section and payload.
type Frame struct {
	Header   Header
	Optional Optional
	Payload  []byte
}

// Bytes assembles header ‖ optional ‖ payload length ‖ payload.
func (f *Frame) Bytes() []byte {
	h := f.Header.Bytes()
	var buf bytes.Buffer
	buf.Grow(headerLen + 8 + len(f.Optional.SessionID) + 4 + len(f.Payload))
	buf.Write(h[:])
	buf.Write(f.Optional.Bytes())
	writeInt32(&buf, int32(len(f.Payload)))
	buf.Write(f.Payload)
	return buf.Bytes()
}

// ParseFrame decodes a client-originated frame. It is the inverse of
// Frame.Bytes for the frames built by this package, and is what a server (or a
// test double) uses to read requests.
func ParseFrame(b []byte) (*Frame, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	f := &Frame{Header: h}
	off, err := h.end(b)
	if err != nil {
		return nil, err
	}

	if h.Flags == FlagWithEvent {
		var ev int32
		if ev, off, err = readInt32(b, off); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		f.Optional.Event = Event(ev)
		if f.Optional.Event.sessionScoped() {
			if f.Optional.SessionID, off, err = readString(b, off); err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
		}
	}

	if f.Payload, _, err = readPayload(b, off); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return f, nil
}

// ================== Primitives ==================

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt32(buf, int32(len(s)))
	buf.WriteString(s)
}

func writeBytes(buf *bytes.Buffer, p []byte) {
	writeInt32(buf, int32(len(p)))
	buf.Write(p)
}

func readInt32(b []byte, off int) (int32, int, error) {
	if off < 0 || len(b)-off < 4 {
		return 0, off, fmt.Errorf("%w: need 4 bytes at offset %d, have %d", ErrMalformedFrame, off, max(len(b)-off, 0))
	}
	return int32(binary.BigEndian.Uint32(b[off:])), off + 4, nil
}

// readPayload reads a length-prefixed byte field starting at off and returns
// the content and the offset just past it.
func readPayload(b []byte, off int) ([]byte, int, error) {
	n, off, err := readInt32(b, off)
	if err != nil {
		return nil, off, err
	}
	if n < 0 || int(n) > len(b)-off {
		return nil, off, fmt.Errorf("%w: declared length %d exceeds remaining %d bytes", ErrMalformedFrame, n, len(b)-off)
	}
	end := off + int(n)
	return b[off:end:end], end, nil
}

// readString is readPayload for UTF-8 content.
func readString(b []byte, off int) (string, int, error) {
	p, off, err := readPayload(b, off)
	if err != nil {
		return "", off, err
	}
	return string(p), off, nil
}
