package frame

import (
	"encoding/binary"
	"fmt"
)

// Header is a parsed frame header. Protocol v1/v2 use a 1-byte stream id
// (range 0..127); v3+ use a signed 2-byte stream id, with negative values
// reserved for server-pushed events.
type Header struct {
	Version     ProtocolVersion
	IsResponse  bool
	Flags       Byte
	StreamID    int16
	OpCode      OpCode
	BodyLength  Int
}

// versionByte packs IsResponse into the header's high bit, per the wire
// layout: 0x0V for a request, 0x8V for a response, version V in the low
// 7 bits.
func (h Header) versionByte() byte {
	b := byte(h.Version)
	if h.IsResponse {
		b |= 0x80
	}
	return b
}

// WriteTo appends h's encoding to buf and returns the result. BodyLength
// is written as whatever value h carries; callers fill it in after the
// body is known.
func (h Header) WriteTo(buf []byte) []byte {
	buf = append(buf, h.versionByte(), h.Flags)

	if h.Version.StreamIDBytes() == 1 {
		buf = append(buf, byte(h.StreamID))
	} else {
		var sid [2]byte
		binary.BigEndian.PutUint16(sid[:], uint16(h.StreamID))
		buf = append(buf, sid[:]...)
	}

	buf = append(buf, byte(h.OpCode))

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(h.BodyLength))
	return append(buf, length[:]...)
}

// ParseHeader decodes a header from the front of buf, returning the
// header and the number of bytes consumed. The caller must already know
// which protocol version is in use for v1/v2 vs v3+ framing to be decoded
// correctly — this package negotiates that during the handshake, before
// any other frame is parsed.
func ParseHeader(buf []byte, negotiated ProtocolVersion) (Header, int, error) {
	size := negotiated.HeaderSize()
	if len(buf) < size {
		return Header{}, 0, fmt.Errorf("header: expected %d bytes, got %d", size, len(buf))
	}

	vByte := buf[0]
	h := Header{
		IsResponse: vByte&0x80 != 0,
		Version:    ProtocolVersion(vByte &^ 0x80),
		Flags:      buf[1],
	}

	off := 2
	if h.Version.StreamIDBytes() == 1 {
		h.StreamID = int16(int8(buf[off]))
		off++
	} else {
		h.StreamID = int16(binary.BigEndian.Uint16(buf[off:]))
		off += 2
	}

	h.OpCode = OpCode(buf[off])
	off++

	h.BodyLength = int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4

	return h, off, nil
}
