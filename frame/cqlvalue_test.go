package frame

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexBytes(t *testing.T, v []byte, want string) {
	t.Helper()
	assert.Equal(t, want, formatHex(v))
}

func formatHex(b []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*3)
	for i, c := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[c>>4], digits[c&0xF])
	}
	return string(out)
}

func TestByteStablePrimitives(t *testing.T) {
	hexBytes(t, CqlFromFloat64(1.0).Value, "3F F0 00 00 00 00 00 00")
	hexBytes(t, CqlFromFloat64(2.2).Value, "40 01 99 99 99 99 99 9A")
	hexBytes(t, CqlFromFloat32(-1.0).Value, "BF 80 00 00")
	hexBytes(t, CqlFromText("abc").Value, "61 62 63")
	hexBytes(t, CqlFromInt8(-1).Value, "FF")
	hexBytes(t, CqlFromInt8(127).Value, "7F")
}

func TestDecodeTimestamp(t *testing.T) {
	v := CqlValue{Type: option(TimestampID), Value: []byte{0x00, 0x00, 0x01, 0x50, 0x87, 0xB1, 0xFC, 0x00}}
	ts, err := v.AsTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1445385600000), ts.UnixMilli())
	assert.Equal(t, "2015-10-21T00:00:00Z", ts.Format(time.RFC3339))
}

func TestInetV4RoundTrip(t *testing.T) {
	v := CqlFromIP(net.ParseIP("1.1.5.255"))
	hexBytes(t, v.Value, "01 01 05 FF")
	back, err := v.AsIP()
	require.NoError(t, err)
	assert.True(t, back.Equal(net.ParseIP("1.1.5.255")))
}

func TestMapEncoding(t *testing.T) {
	entries := []MapEntry{
		{Key: CqlFromText("key1"), Value: CqlFromInt32(1)},
		{Key: CqlFromText("key2"), Value: CqlFromInt32(2)},
	}
	v, err := CqlFromMap(option(VarcharID), option(IntID), entries, ProtocolV3)
	require.NoError(t, err)
	hexBytes(t, v.Value,
		"00 00 00 02 "+
			"00 00 00 04 6B 65 79 31 00 00 00 04 00 00 00 01 "+
			"00 00 00 04 6B 65 79 32 00 00 00 04 00 00 00 02")
}

func TestTinyIntBoundaries(t *testing.T) {
	v, err := CqlFromInt8(-1).AsInt8()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), v)

	v2, err := CqlFromInt8(127).AsInt8()
	require.NoError(t, err)
	assert.Equal(t, int8(127), v2)
}

func TestNullInCollectionFails(t *testing.T) {
	elems := []CqlValue{CqlFromText("a"), {Type: option(VarcharID)}, CqlFromText("b")}
	_, err := CqlFromList(option(VarcharID), elems, ProtocolV4)
	assert.ErrorIs(t, err, ErrNullInCollection)

	entries := []MapEntry{
		{Key: CqlFromText("k1"), Value: CqlFromText("v")},
		{Key: CqlFromText("k2"), Value: CqlValue{Type: option(VarcharID)}},
	}
	_, err = CqlFromMap(option(VarcharID), option(VarcharID), entries, ProtocolV4)
	assert.ErrorIs(t, err, ErrNullInCollection)
}

func TestListRoundTrip(t *testing.T) {
	elems := []CqlValue{CqlFromText("a"), CqlFromText("b"), CqlFromText("c")}
	v, err := CqlFromList(option(VarcharID), elems, ProtocolV4)
	require.NoError(t, err)

	back, err := v.AsList(ProtocolV4)
	require.NoError(t, err)
	require.Len(t, back, 3)
	for i, e := range back {
		s, err := e.AsText()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}[i], s)
	}
}
