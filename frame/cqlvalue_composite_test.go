package frame

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalConversion(t *testing.T) {
	unscaled, ok := new(big.Int).SetString("79228162514264337593543950335", 10)
	require.True(t, ok)

	v := CqlFromDecimal(unscaled, 0)
	gotUnscaled, gotScale, err := v.AsDecimal()
	require.NoError(t, err)
	assert.Equal(t, int32(0), gotScale)
	assert.Equal(t, unscaled.String(), gotUnscaled.String())

	v27 := CqlFromDecimal(unscaled, 27)
	_, scale27, err := v27.AsDecimal()
	require.NoError(t, err)
	assert.Equal(t, int32(27), scale27)
}

func TestVarintRoundTrip(t *testing.T) {
	cases := []string{
		"0", "1", "-1", "127", "-128", "128", "-129",
		"79228162514264337593543950335",
		"-79228162514264337593543950335",
	}
	for _, c := range cases {
		n, ok := new(big.Int).SetString(c, 10)
		require.True(t, ok, c)
		v := CqlFromVarint(n)
		back, err := v.AsVarint()
		require.NoError(t, err, c)
		assert.Equal(t, c, back.String())
	}
}

func TestDateBoundaries(t *testing.T) {
	dates := []time.Time{
		time.Date(0, 3, 12, 0, 0, 0, 0, time.UTC),
		time.Date(-10, 2, 4, 0, 0, 0, 0, time.UTC),
		time.Date(5881580, 7, 11, 0, 0, 0, 0, time.UTC),
		time.Date(-5877641, 6, 23, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		v := CqlFromDate(d)
		back, err := v.AsDate()
		require.NoError(t, err)
		assert.Equal(t, d.Year(), back.Year(), d.String())
		assert.Equal(t, d.Month(), back.Month(), d.String())
		assert.Equal(t, d.Day(), back.Day(), d.String())
	}
}

func TestTimeBoundaries(t *testing.T) {
	v, err := CqlFromTime(0)
	require.NoError(t, err)
	back, err := v.AsTime()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), back)

	maxTime := time.Duration(nanosPerDay - 1)
	v2, err := CqlFromTime(maxTime)
	require.NoError(t, err)
	back2, err := v2.AsTime()
	require.NoError(t, err)
	assert.Equal(t, maxTime, back2)

	_, err = CqlFromTime(time.Duration(nanosPerDay))
	assert.Error(t, err)
	_, err = CqlFromTime(-1)
	assert.Error(t, err)
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration{Months: 1, Days: 2, Nanoseconds: 3}
	v, err := CqlFromDuration(d)
	require.NoError(t, err)
	back, err := v.AsDuration()
	require.NoError(t, err)
	assert.Equal(t, d, back)

	_, err = CqlFromDuration(Duration{Months: 1, Days: -1})
	assert.Error(t, err)
}

func TestTupleRoundTrip(t *testing.T) {
	types := []Option{option(VarcharID), option(IntID)}
	v := CqlFromTuple(types, []CqlValue{CqlFromText("x"), CqlFromInt32(42)})
	back, err := v.AsTuple()
	require.NoError(t, err)
	require.Len(t, back, 2)
	s, _ := back[0].AsText()
	n, _ := back[1].AsInt32()
	assert.Equal(t, "x", s)
	assert.Equal(t, int32(42), n)
}

func TestUDTRoundTripWithTrailingAlter(t *testing.T) {
	udt := &UDTOption{
		Keyspace:   "ks",
		Name:       "address",
		FieldNames: []string{"street", "city", "zip"},
		FieldTypes: []Option{option(VarcharID), option(VarcharID), option(VarcharID)},
	}
	// Encoded before the "zip" column was added.
	v := CqlFromUDT(udt, []CqlValue{CqlFromText("Main St"), CqlFromText("Metropolis")})
	back, err := v.AsUDT()
	require.NoError(t, err)
	require.Len(t, back, 3)
	zip, ok := UDTField(udt, back, "zip")
	require.True(t, ok)
	assert.True(t, zip.IsNull())
}

func TestVectorRoundTrip(t *testing.T) {
	elems := []CqlValue{CqlFromFloat32(1.0), CqlFromFloat32(2.0), CqlFromFloat32(3.0)}
	v, err := CqlFromVector(option(FloatID), elems)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Type.Vector.Dimensions)

	back, err := v.AsVector()
	require.NoError(t, err)
	require.Len(t, back, 3)
	for i, e := range back {
		f, err := e.AsFloat32()
		require.NoError(t, err)
		assert.Equal(t, float32(i+1), f)
	}
}
