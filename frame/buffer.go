package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
)

// Buffer wraps a byte slice with a read cursor and bounds-checked decode
// primitives for the wire's fixed-width and length-prefixed encodings. A
// zero Buffer with Bytes set is ready to read from offset 0.
type Buffer struct {
	Bytes []byte
	off   int
	err   error
}

func NewBuffer(b []byte) *Buffer { return &Buffer{Bytes: b} }

// Err returns the first decode error encountered, if any. Once set, every
// further read returns zero values without touching the cursor, so a
// caller can chain a sequence of reads and check Err once at the end.
func (b *Buffer) Err() error { return b.err }

func (b *Buffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Buffer) need(n int) bool {
	if b.err != nil {
		return false
	}
	if b.off+n > len(b.Bytes) || n < 0 {
		b.fail(fmt.Errorf("buffer: need %d bytes at offset %d, have %d", n, b.off, len(b.Bytes)))
		return false
	}
	return true
}

func (b *Buffer) Remaining() []byte { return b.Bytes[b.off:] }
func (b *Buffer) Len() int          { return len(b.Bytes) - b.off }

func (b *Buffer) ReadByte() Byte {
	if !b.need(1) {
		return 0
	}
	v := b.Bytes[b.off]
	b.off++
	return v
}

func (b *Buffer) ReadShort() Short {
	if !b.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(b.Bytes[b.off:])
	b.off += 2
	return v
}

func (b *Buffer) ReadInt() Int {
	if !b.need(4) {
		return 0
	}
	v := int32(binary.BigEndian.Uint32(b.Bytes[b.off:]))
	b.off += 4
	return v
}

func (b *Buffer) ReadLong() Long {
	if !b.need(8) {
		return 0
	}
	v := int64(binary.BigEndian.Uint64(b.Bytes[b.off:]))
	b.off += 8
	return v
}

func (b *Buffer) ReadFloat() float32 {
	return math.Float32frombits(uint32(b.ReadInt()))
}

func (b *Buffer) ReadDouble() float64 {
	return math.Float64frombits(uint64(b.ReadLong()))
}

// ReadBytes reads a [int32 length][bytes] field. A negative length (-1)
// is the wire's encoding for a null value, returned here as a nil slice.
func (b *Buffer) ReadBytes() Bytes {
	n := b.ReadInt()
	if b.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	if !b.need(int(n)) {
		return nil
	}
	v := b.Bytes[b.off : b.off+int(n)]
	b.off += int(n)
	return v
}

// ReadShortBytes reads a [uint16 length][bytes] field, used by string-ish
// wire fields that can't be null.
func (b *Buffer) ReadShortBytes() Bytes {
	n := b.ReadShort()
	if b.err != nil {
		return nil
	}
	if !b.need(int(n)) {
		return nil
	}
	v := b.Bytes[b.off : b.off+int(n)]
	b.off += int(n)
	return v
}

func (b *Buffer) ReadString() string    { return string(b.ReadShortBytes()) }
func (b *Buffer) ReadLongString() string { return string(b.ReadBytes()) }

func (b *Buffer) ReadStringList() []string {
	n := b.ReadShort()
	out := make([]string, 0, n)
	for i := Short(0); i < n; i++ {
		out = append(out, b.ReadString())
	}
	return out
}

func (b *Buffer) ReadStringMap() map[string]string {
	n := b.ReadShort()
	out := make(map[string]string, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		out[k] = b.ReadString()
	}
	return out
}

func (b *Buffer) ReadStringMultimap() map[string][]string {
	n := b.ReadShort()
	out := make(map[string][]string, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		out[k] = b.ReadStringList()
	}
	return out
}

// ReadInet reads a [byte length][address][int32 port] field (4 or 16
// byte address).
func (b *Buffer) ReadInet() (ip []byte, port int32) {
	n := b.ReadByte()
	if !b.need(int(n)) {
		return nil, 0
	}
	ip = append([]byte(nil), b.Bytes[b.off:b.off+int(n)]...)
	b.off += int(n)
	port = b.ReadInt()
	return
}

// Append primitives mirror the Read side for the request-writing path.

func AppendByte(buf []byte, v Byte) []byte { return append(buf, v) }

func AppendShort(buf []byte, v Short) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func AppendInt(buf []byte, v Int) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func AppendLong(buf []byte, v Long) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func AppendFloat(buf []byte, v float32) []byte {
	return AppendInt(buf, int32(math.Float32bits(v)))
}

func AppendDouble(buf []byte, v float64) []byte {
	return AppendLong(buf, int64(math.Float64bits(v)))
}

// AppendBytes writes a [int32 length][bytes] field; a nil slice is
// encoded as length -1.
func AppendBytes(buf []byte, v Bytes) []byte {
	if v == nil {
		return AppendInt(buf, -1)
	}
	buf = AppendInt(buf, int32(len(v)))
	return append(buf, v...)
}

func AppendShortBytes(buf []byte, v Bytes) []byte {
	buf = AppendShort(buf, uint16(len(v)))
	return append(buf, v...)
}

func AppendString(buf []byte, v string) []byte {
	return AppendShortBytes(buf, []byte(v))
}

func AppendLongString(buf []byte, v string) []byte {
	return AppendBytes(buf, []byte(v))
}

func AppendStringList(buf []byte, v []string) []byte {
	buf = AppendShort(buf, uint16(len(v)))
	for _, s := range v {
		buf = AppendString(buf, s)
	}
	return buf
}

func AppendStringMap(buf []byte, v map[string]string) []byte {
	buf = AppendShort(buf, uint16(len(v)))
	for k, val := range v {
		buf = AppendString(buf, k)
		buf = AppendString(buf, val)
	}
	return buf
}

// FormatInet renders an address/port pair read via ReadInet for logging.
func FormatInet(ip []byte, port int32) string {
	return fmt.Sprintf("%s:%d", net.IP(ip).String(), port)
}
