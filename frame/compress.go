package frame

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// CompressBody compresses a frame body for the given algorithm, prefixed
// per the protocol with the uncompressed length as a 4-byte big-endian
// integer (LZ4) or left bare (Snappy carries its own length).
func CompressBody(body []byte, algo Compression) ([]byte, error) {
	switch algo {
	case NoCompression:
		return body, nil
	case Lz4:
		compressed := make([]byte, lz4.CompressBlockBound(len(body)))
		var c lz4.Compressor
		n, err := c.CompressBlock(body, compressed)
		if err != nil {
			return nil, fmt.Errorf("frame: lz4 compress: %w", err)
		}
		out := AppendInt(nil, int32(len(body)))
		return append(out, compressed[:n]...), nil
	case Snappy:
		// s2's block encoder reads and writes the snappy block format
		// when given EncodeSnappy, so frames stay compatible with
		// servers that only understand Snappy.
		return s2.EncodeSnappy(nil, body), nil
	default:
		return nil, fmt.Errorf("frame: unknown compression %q", algo)
	}
}

// DecompressBody reverses CompressBody.
func DecompressBody(body []byte, algo Compression) ([]byte, error) {
	switch algo {
	case NoCompression:
		return body, nil
	case Lz4:
		if len(body) < 4 {
			return nil, fmt.Errorf("frame: lz4 body too short for length prefix")
		}
		b := NewBuffer(body)
		uncompressedLen := int(b.ReadInt())
		out := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(b.Remaining(), out)
		if err != nil {
			return nil, fmt.Errorf("frame: lz4 decompress: %w", err)
		}
		return out[:n], nil
	case Snappy:
		out, err := s2.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("frame: snappy decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("frame: unknown compression %q", algo)
	}
}
