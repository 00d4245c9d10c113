package frame

import "fmt"

// EncodeFrame builds the full wire representation of one frame: header
// plus (optionally compressed) body. The header's flags and body length
// are filled in here, not by the caller.
func EncodeFrame(version ProtocolVersion, isResponse bool, streamID int16, opcode OpCode, body []byte, compression Compression, tracing bool) ([]byte, error) {
	flags := Byte(0)
	if compression != NoCompression {
		var err error
		body, err = CompressBody(body, compression)
		if err != nil {
			return nil, err
		}
		flags |= FlagCompression
	}
	if tracing {
		flags |= FlagTracing
	}

	h := Header{
		Version:    version,
		IsResponse: isResponse,
		Flags:      flags,
		StreamID:   streamID,
		OpCode:     opcode,
		BodyLength: int32(len(body)),
	}
	out := h.WriteTo(make([]byte, 0, version.HeaderSize()+len(body)))
	return append(out, body...), nil
}

// DecodedFrame is a fully parsed, decompressed frame ready for body
// parsing by the response package.
type DecodedFrame struct {
	Header Header
	Body   []byte
}

// DecodeFrame parses one frame from the front of buf, returning the
// frame and the number of bytes consumed. buf must contain at least a
// full header; callers read the header first to learn BodyLength and
// buffer until the full frame is available before calling this.
func DecodeFrame(buf []byte, version ProtocolVersion, compression Compression) (DecodedFrame, int, error) {
	h, hdrLen, err := ParseHeader(buf, version)
	if err != nil {
		return DecodedFrame{}, 0, err
	}
	total := hdrLen + int(h.BodyLength)
	if len(buf) < total {
		return DecodedFrame{}, 0, fmt.Errorf("frame: incomplete body, need %d bytes, have %d", total, len(buf))
	}
	body := buf[hdrLen:total]

	if h.Flags&FlagCompression != 0 {
		body, err = DecompressBody(body, compression)
		if err != nil {
			return DecodedFrame{}, 0, err
		}
	}

	return DecodedFrame{Header: h, Body: body}, total, nil
}
