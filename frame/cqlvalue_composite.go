package frame

import (
	"fmt"
	"math/big"
	"time"
)

// --- varint / decimal ---------------------------------------------------

// CqlFromVarint encodes an arbitrary-precision integer as a two's
// complement big-endian byte string, the CQL varint wire format.
func CqlFromVarint(v *big.Int) CqlValue {
	return CqlValue{Type: option(VarintID), Value: bigIntToTwosComplement(v)}
}

func (v CqlValue) AsVarint() (*big.Int, error) {
	if v.Type.ID != VarintID && v.Type.ID != DecimalID {
		return nil, fmt.Errorf("cql: %s is not a varint", v.Type)
	}
	return twosComplementToBigInt(v.Value), nil
}

// CqlFromDecimal encodes an arbitrary-precision decimal as CQL's
// [int32 scale][varint unscaled value] pair.
func CqlFromDecimal(unscaled *big.Int, scale int32) CqlValue {
	buf := AppendInt(nil, scale)
	buf = append(buf, bigIntToTwosComplement(unscaled)...)
	return CqlValue{Type: option(DecimalID), Value: buf}
}

func (v CqlValue) AsDecimal() (unscaled *big.Int, scale int32, err error) {
	if len(v.Value) < 4 {
		return nil, 0, fmt.Errorf("cql: decimal expects at least 4 bytes, got %d", len(v.Value))
	}
	b := NewBuffer(v.Value)
	scale = b.ReadInt()
	unscaled = twosComplementToBigInt(b.Remaining())
	return unscaled, scale, nil
}

func bigIntToTwosComplement(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if len(b) == 0 || b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	// Two's complement negative: invert magnitude bits of (|v|-1).
	abs := new(big.Int).Neg(v)
	abs.Sub(abs, big.NewInt(1))
	b := abs.Bytes()
	nbytes := len(b)
	if nbytes == 0 {
		nbytes = 1
	}
	out := make([]byte, nbytes)
	copy(out[nbytes-len(b):], b)
	for i := range out {
		out[i] = ^out[i]
	}
	if out[0]&0x80 == 0 {
		out = append([]byte{0xFF}, out...)
	}
	return out
}

func twosComplementToBigInt(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	if b[0]&0x80 == 0 {
		return new(big.Int).SetBytes(b)
	}
	inv := make([]byte, len(b))
	for i, by := range b {
		inv[i] = ^by
	}
	mag := new(big.Int).SetBytes(inv)
	mag.Add(mag, big.NewInt(1))
	return mag.Neg(mag)
}

// --- date / time / timestamp / duration ---------------------------------

const epochDayOffset = int64(1) << 31

// CqlFromTimestamp encodes a point in time as milliseconds since the
// Unix epoch, signed 64-bit.
func CqlFromTimestamp(t time.Time) CqlValue {
	ms := t.UnixNano() / int64(time.Millisecond)
	return CqlValue{Type: option(TimestampID), Value: AppendLong(nil, ms)}
}

func (v CqlValue) AsTimestamp() (time.Time, error) {
	ms, err := v.AsInt64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// CqlFromDate encodes a calendar date as an unsigned 32-bit day offset
// from 2^31 (1970-01-01 falls exactly on the midpoint).
func CqlFromDate(t time.Time) CqlValue {
	days := t.UTC().Truncate(24*time.Hour).Unix() / int64((24 * time.Hour).Seconds())
	u := uint32(days + epochDayOffset)
	return CqlValue{Type: option(DateID), Value: AppendInt(nil, int32(u))}
}

func (v CqlValue) AsDate() (time.Time, error) {
	n, err := v.AsInt32()
	if err != nil {
		return time.Time{}, err
	}
	days := int64(uint32(n)) - epochDayOffset
	return time.Unix(days*86400, 0).UTC(), nil
}

const nanosPerDay = 24 * 60 * 60 * int64(time.Second)

// CqlFromTime encodes a time-of-day as nanoseconds since midnight,
// range [0, 86399999999999].
func CqlFromTime(d time.Duration) (CqlValue, error) {
	ns := int64(d)
	if ns < 0 || ns >= nanosPerDay {
		return CqlValue{}, fmt.Errorf("cql: time out of range [0, %d): %d", nanosPerDay, ns)
	}
	return CqlValue{Type: option(TimeID), Value: AppendLong(nil, ns)}, nil
}

func (v CqlValue) AsTime() (time.Duration, error) {
	ns, err := v.AsInt64()
	if err != nil {
		return 0, err
	}
	if ns < 0 || ns >= nanosPerDay {
		return 0, fmt.Errorf("cql: time out of range [0, %d): %d", nanosPerDay, ns)
	}
	return time.Duration(ns), nil
}

// CqlFromDuration encodes CQL's month/day/nanosecond triple using VInt
// for each component.
func CqlFromDuration(d Duration) (CqlValue, error) {
	if err := d.validate(); err != nil {
		return CqlValue{}, err
	}
	buf := appendVInt(nil, int64(d.Months))
	buf = appendVInt(buf, int64(d.Days))
	buf = appendVInt(buf, d.Nanoseconds)
	return CqlValue{Type: option(DurationID), Value: buf}, nil
}

func (v CqlValue) AsDuration() (Duration, error) {
	months, n1, err := decodeVInt(v.Value)
	if err != nil {
		return Duration{}, err
	}
	days, n2, err := decodeVInt(v.Value[n1:])
	if err != nil {
		return Duration{}, err
	}
	nanos, _, err := decodeVInt(v.Value[n1+n2:])
	if err != nil {
		return Duration{}, err
	}
	d := Duration{Months: int32(months), Days: int32(days), Nanoseconds: nanos}
	return d, d.validate()
}

// --- collections ----------------------------------------------------------

// collectionCountWidth is 4 bytes (int32) for protocol ≥3, 2 bytes
// (uint16) on v1/v2. Composite codecs take the negotiated version so
// callers never have to special-case old clusters by hand.
func collectionCountWidth(version ProtocolVersion) int {
	if version.SupportsNamedValues() {
		return 4
	}
	return 2
}

func appendCollectionCount(buf []byte, n int, version ProtocolVersion) []byte {
	if collectionCountWidth(version) == 4 {
		return AppendInt(buf, int32(n))
	}
	return AppendShort(buf, uint16(n))
}

func readCollectionCount(b *Buffer, version ProtocolVersion) int {
	if collectionCountWidth(version) == 4 {
		return int(b.ReadInt())
	}
	return int(b.ReadShort())
}

// ErrNullInCollection is returned by the collection constructors when
// asked to encode a null element or map value; the protocol has no way
// to represent one inside a List/Set/Map payload.
var ErrNullInCollection = fmt.Errorf("cql: null element in collection")

// CqlFromList encodes a homogeneous list of already-encoded elements.
// Each element's CqlValue.Value is written as a length-prefixed blob;
// elements must all share elemType.
func CqlFromList(elemType Option, elems []CqlValue, version ProtocolVersion) (CqlValue, error) {
	buf := appendCollectionCount(nil, len(elems), version)
	for _, e := range elems {
		if e.IsNull() {
			return CqlValue{}, ErrNullInCollection
		}
		buf = AppendBytes(buf, e.Value)
	}
	return CqlValue{Type: Option{ID: ListID, List: &ListOption{Element: elemType}}, Value: buf}, nil
}

func (v CqlValue) AsList(version ProtocolVersion) ([]CqlValue, error) {
	if v.Type.List == nil {
		return nil, fmt.Errorf("cql: %s is not a list", v.Type)
	}
	b := NewBuffer(v.Value)
	n := readCollectionCount(b, version)
	out := make([]CqlValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, CqlValue{Type: v.Type.List.Element, Value: b.ReadBytes()})
	}
	return out, b.Err()
}

func CqlFromSet(elemType Option, elems []CqlValue, version ProtocolVersion) (CqlValue, error) {
	lst, err := CqlFromList(elemType, elems, version)
	if err != nil {
		return CqlValue{}, err
	}
	return CqlValue{Type: Option{ID: SetID, Set: &SetOption{Element: elemType}}, Value: lst.Value}, nil
}

func (v CqlValue) AsSet(version ProtocolVersion) ([]CqlValue, error) {
	if v.Type.Set == nil {
		return nil, fmt.Errorf("cql: %s is not a set", v.Type)
	}
	as := CqlValue{Type: Option{ID: ListID, List: &ListOption{Element: v.Type.Set.Element}}, Value: v.Value}
	return as.AsList(version)
}

// MapEntry is one key/value pair of an encoded map, in wire order.
type MapEntry struct {
	Key   CqlValue
	Value CqlValue
}

func CqlFromMap(keyType, valueType Option, entries []MapEntry, version ProtocolVersion) (CqlValue, error) {
	buf := appendCollectionCount(nil, len(entries), version)
	for _, e := range entries {
		if e.Key.IsNull() || e.Value.IsNull() {
			return CqlValue{}, ErrNullInCollection
		}
		buf = AppendBytes(buf, e.Key.Value)
		buf = AppendBytes(buf, e.Value.Value)
	}
	return CqlValue{Type: Option{ID: MapID, Map: &MapOption{Key: keyType, Value: valueType}}, Value: buf}, nil
}

func (v CqlValue) AsMap(version ProtocolVersion) ([]MapEntry, error) {
	if v.Type.Map == nil {
		return nil, fmt.Errorf("cql: %s is not a map", v.Type)
	}
	b := NewBuffer(v.Value)
	n := readCollectionCount(b, version)
	out := make([]MapEntry, 0, n)
	for i := 0; i < n; i++ {
		k := CqlValue{Type: v.Type.Map.Key, Value: b.ReadBytes()}
		val := CqlValue{Type: v.Type.Map.Value, Value: b.ReadBytes()}
		out = append(out, MapEntry{Key: k, Value: val})
	}
	return out, b.Err()
}

// --- tuple ----------------------------------------------------------------

// CqlFromTuple encodes a fixed-arity heterogeneous tuple. Tuples have no
// count prefix on the wire — arity comes entirely from TupleOption.
func CqlFromTuple(types []Option, elems []CqlValue) CqlValue {
	var buf []byte
	for _, e := range elems {
		buf = AppendBytes(buf, e.Value)
	}
	return CqlValue{Type: Option{ID: TupleID, Tuple: &TupleOption{ValueTypes: types}}, Value: buf}
}

func (v CqlValue) AsTuple() ([]CqlValue, error) {
	if v.Type.Tuple == nil {
		return nil, fmt.Errorf("cql: %s is not a tuple", v.Type)
	}
	b := NewBuffer(v.Value)
	out := make([]CqlValue, 0, len(v.Type.Tuple.ValueTypes))
	for _, t := range v.Type.Tuple.ValueTypes {
		out = append(out, CqlValue{Type: t, Value: b.ReadBytes()})
	}
	return out, b.Err()
}

// --- user-defined type ----------------------------------------------------

// CqlFromUDT encodes a user-defined type's fields in declaration order,
// matching udt.FieldNames/FieldTypes positionally. Trailing fields may be
// omitted (the server backfills missing trailing fields as NULL on read,
// for UDTs altered to add columns); fields must not be reordered.
func CqlFromUDT(udt *UDTOption, fields []CqlValue) CqlValue {
	var buf []byte
	for _, f := range fields {
		buf = AppendBytes(buf, f.Value)
	}
	return CqlValue{Type: Option{ID: UDTID, UDT: udt}, Value: buf}
}

func (v CqlValue) AsUDT() ([]CqlValue, error) {
	if v.Type.UDT == nil {
		return nil, fmt.Errorf("cql: %s is not a udt", v.Type)
	}
	b := NewBuffer(v.Value)
	out := make([]CqlValue, 0, len(v.Type.UDT.FieldTypes))
	for _, t := range v.Type.UDT.FieldTypes {
		if b.Len() == 0 {
			out = append(out, CqlValue{Type: t, Value: nil})
			continue
		}
		out = append(out, CqlValue{Type: t, Value: b.ReadBytes()})
	}
	return out, b.Err()
}

// UDTField looks up a decoded UDT's value by field name, returning false
// if the name isn't one of udt's declared fields.
func UDTField(udt *UDTOption, values []CqlValue, name string) (CqlValue, bool) {
	for i, n := range udt.FieldNames {
		if n == name && i < len(values) {
			return values[i], true
		}
	}
	return CqlValue{}, false
}

// --- vector -----------------------------------------------------------

// CqlFromVector encodes a fixed-dimension vector. Unlike List/Set,
// vectors carry no element count on the wire — the dimension is fixed by
// the column's type and every element's encoded width is therefore also
// fixed, so elements are simply concatenated.
func CqlFromVector(elemType Option, elems []CqlValue) (CqlValue, error) {
	var buf []byte
	for _, e := range elems {
		buf = append(buf, e.Value...)
	}
	opt := Option{ID: VectorID, Vector: &VectorOption{Element: elemType, Dimensions: len(elems)}}
	return CqlValue{Type: opt, Value: buf}, nil
}

func (v CqlValue) AsVector() ([]CqlValue, error) {
	if v.Type.Vector == nil {
		return nil, fmt.Errorf("cql: %s is not a vector", v.Type)
	}
	width := fixedWidth(v.Type.Vector.Element)
	if width <= 0 {
		return nil, fmt.Errorf("cql: vector of %s has no fixed element width", v.Type.Vector.Element)
	}
	if len(v.Value)%width != 0 {
		return nil, fmt.Errorf("cql: vector payload length %d not a multiple of element width %d", len(v.Value), width)
	}
	n := len(v.Value) / width
	out := make([]CqlValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, CqlValue{Type: v.Type.Vector.Element, Value: v.Value[i*width : (i+1)*width]})
	}
	return out, nil
}

// fixedWidth returns the on-wire byte width of a type whose encoded size
// never varies, or 0 if the type's size is value-dependent (text, blob,
// collections, ...) and therefore can't be packed into a vector.
func fixedWidth(t Option) int {
	switch t.ID {
	case BooleanID, TinyIntID:
		return 1
	case SmallIntID:
		return 2
	case IntID, FloatID, DateID:
		return 4
	case BigIntID, CounterID, DoubleID, TimeID, TimestampID:
		return 8
	case UUIDID, TimeUUIDID:
		return 16
	default:
		return 0
	}
}
