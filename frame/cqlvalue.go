package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/google/uuid"
)

// CqlValue pairs a wire value with the type descriptor it was read under
// (or will be written under). Value is nil for CQL NULL; IsUnset marks the
// protocol's UNSET bind-variable encoding (≥v4 only), which tells the
// server to leave the existing value alone rather than overwrite it.
type CqlValue struct {
	Type    Option
	Value   Bytes
	IsUnset bool
}

// Unset returns the protocol's UNSET bind-variable marker for the given
// type. Only valid for protocol v4 and up; callers on older connections
// must substitute a real value or drop the column from the statement.
func Unset(t Option) CqlValue {
	return CqlValue{Type: t, IsUnset: true}
}

func (v CqlValue) IsNull() bool { return !v.IsUnset && v.Value == nil }

func option(id OptionID) Option { return Option{ID: id} }

// --- constructors -----------------------------------------------------

func CqlFromBoolean(v bool) CqlValue {
	b := byte(0)
	if v {
		b = 1
	}
	return CqlValue{Type: option(BooleanID), Value: Bytes{b}}
}

func CqlFromInt8(v int8) CqlValue {
	return CqlValue{Type: option(TinyIntID), Value: Bytes{byte(v)}}
}

func CqlFromInt16(v int16) CqlValue {
	return CqlValue{Type: option(SmallIntID), Value: AppendShort(nil, uint16(v))}
}

func CqlFromInt32(v int32) CqlValue {
	return CqlValue{Type: option(IntID), Value: AppendInt(nil, v)}
}

func CqlFromInt64(v int64) CqlValue {
	return CqlValue{Type: option(BigIntID), Value: AppendLong(nil, v)}
}

func CqlFromCounter(v int64) CqlValue {
	return CqlValue{Type: option(CounterID), Value: AppendLong(nil, v)}
}

func CqlFromFloat32(v float32) CqlValue {
	return CqlValue{Type: option(FloatID), Value: AppendFloat(nil, v)}
}

func CqlFromFloat64(v float64) CqlValue {
	return CqlValue{Type: option(DoubleID), Value: AppendDouble(nil, v)}
}

func CqlFromText(v string) CqlValue {
	return CqlValue{Type: option(VarcharID), Value: []byte(v)}
}

func CqlFromASCII(v string) CqlValue {
	return CqlValue{Type: option(ASCIIID), Value: []byte(v)}
}

func CqlFromBlob(v []byte) CqlValue {
	return CqlValue{Type: option(BlobID), Value: append(Bytes(nil), v...)}
}

func CqlFromUUID(v uuid.UUID) CqlValue {
	b := v[:]
	return CqlValue{Type: option(UUIDID), Value: append(Bytes(nil), b...)}
}

func CqlFromTimeUUID(v uuid.UUID) CqlValue {
	b := v[:]
	return CqlValue{Type: option(TimeUUIDID), Value: append(Bytes(nil), b...)}
}

func CqlFromIP(v net.IP) CqlValue {
	ip4 := v.To4()
	if ip4 != nil {
		return CqlValue{Type: option(InetID), Value: append(Bytes(nil), ip4...)}
	}
	ip16 := v.To16()
	return CqlValue{Type: option(InetID), Value: append(Bytes(nil), ip16...)}
}

// --- accessors ----------------------------------------------------------

func (v CqlValue) AsBoolean() (bool, error) {
	if len(v.Value) != 1 {
		return false, fmt.Errorf("cql: boolean expects 1 byte, got %d", len(v.Value))
	}
	return v.Value[0] != 0, nil
}

func (v CqlValue) AsInt8() (int8, error) {
	if len(v.Value) != 1 {
		return 0, fmt.Errorf("cql: tinyint expects 1 byte, got %d", len(v.Value))
	}
	return int8(v.Value[0]), nil
}

func (v CqlValue) AsInt16() (int16, error) {
	if len(v.Value) != 2 {
		return 0, fmt.Errorf("cql: smallint expects 2 bytes, got %d", len(v.Value))
	}
	return int16(binary.BigEndian.Uint16(v.Value)), nil
}

func (v CqlValue) AsInt32() (int32, error) {
	if len(v.Value) != 4 {
		return 0, fmt.Errorf("cql: int expects 4 bytes, got %d", len(v.Value))
	}
	return int32(binary.BigEndian.Uint32(v.Value)), nil
}

func (v CqlValue) AsInt64() (int64, error) {
	if len(v.Value) != 8 {
		return 0, fmt.Errorf("cql: bigint expects 8 bytes, got %d", len(v.Value))
	}
	return int64(binary.BigEndian.Uint64(v.Value)), nil
}

func (v CqlValue) AsFloat32() (float32, error) {
	n, err := v.AsInt32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(n)), nil
}

func (v CqlValue) AsFloat64() (float64, error) {
	n, err := v.AsInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(n)), nil
}

func (v CqlValue) AsText() (string, error) {
	return string(v.Value), nil
}

func (v CqlValue) AsBlob() ([]byte, error) {
	return append([]byte(nil), v.Value...), nil
}

func (v CqlValue) AsUUID() (uuid.UUID, error) {
	if len(v.Value) != 16 {
		return uuid.UUID{}, fmt.Errorf("cql: uuid expects 16 bytes, got %d", len(v.Value))
	}
	var u uuid.UUID
	copy(u[:], v.Value)
	return u, nil
}

func (v CqlValue) AsIP() (net.IP, error) {
	switch len(v.Value) {
	case 4, 16:
		return append(net.IP(nil), v.Value...), nil
	default:
		return nil, fmt.Errorf("cql: inet expects 4 or 16 bytes, got %d", len(v.Value))
	}
}
