package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVIntRoundTrip(t *testing.T) {
	cases := []int64{
		0, 1, -1, 63, -64, 64, -65,
		1 << 20, -(1 << 20), 1 << 40, -(1 << 40),
		1 << 62, -(1 << 62), 1<<63 - 1, -(1 << 63),
	}

	for _, v := range cases {
		buf := appendVInt(nil, v)
		got, n, err := decodeVInt(buf)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, len(buf), n, "value %d", v)
		assert.Equal(t, v, got, "value %d", v)
	}
}

func TestVIntZeroIsOneByte(t *testing.T) {
	buf := appendVInt(nil, 0)
	assert.Len(t, buf, 1)
	assert.Equal(t, byte(0), buf[0])
}

func TestVIntAppendInPlace(t *testing.T) {
	buf := []byte{0xAA, 0xBB}
	out := appendVInt(buf, 5)
	assert.Equal(t, []byte{0xAA, 0xBB}, buf[:2])
	got, _, err := decodeVInt(out[2:])
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestVIntShortBufferErrors(t *testing.T) {
	buf := appendVInt(nil, 1<<40)
	_, _, err := decodeVInt(buf[:1])
	assert.Error(t, err)

	_, _, err = decodeVInt(nil)
	assert.Error(t, err)
}
