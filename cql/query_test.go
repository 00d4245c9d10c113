package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nativecql/coredriver/frame"
)

func TestStatementBindPositional(t *testing.T) {
	stmt := NewStatement("SELECT * FROM t WHERE k = ?").Bind(frame.CqlValue{Value: frame.Bytes{1}})
	assert.False(t, stmt.Named)
	assert.Len(t, stmt.Values, 1)
}

func TestStatementBindNamed(t *testing.T) {
	stmt := NewStatement("SELECT * FROM t WHERE k = :k").
		BindNamed([]string{"k"}, []frame.CqlValue{{Value: frame.Bytes{1}}})
	assert.True(t, stmt.Named)
	assert.Equal(t, []string{"k"}, stmt.Names)
}

func TestStatementWithConsistencySetsHasFlag(t *testing.T) {
	stmt := NewStatement("SELECT 1").WithConsistency(frame.LOCALQUORUM)
	assert.True(t, stmt.HasConsistency)
	assert.Equal(t, frame.LOCALQUORUM, stmt.Consistency)
}

func TestStatementWithSerialConsistencySetsHasFlag(t *testing.T) {
	stmt := NewStatement("SELECT 1").WithSerialConsistency(frame.SERIAL)
	assert.True(t, stmt.HasSerialConsistency)
	assert.Equal(t, frame.SERIAL, stmt.SerialConsistency)
}

func TestStatementSetPagingState(t *testing.T) {
	stmt := NewStatement("SELECT 1").SetPagingState(frame.Bytes{0x01, 0x02})
	assert.Equal(t, frame.Bytes{0x01, 0x02}, stmt.PagingState)
}

func TestStatementCloneIsIndependent(t *testing.T) {
	stmt := NewStatement("SELECT 1").WithPageSize(100)
	clone := stmt.clone()
	clone.PageSize = 5000

	assert.Equal(t, int32(100), stmt.PageSize)
	assert.Equal(t, int32(5000), clone.PageSize)
}

func TestNewBoundStatementCarriesPrepared(t *testing.T) {
	p := testStatement(1)
	stmt := NewBoundStatement(p)
	assert.Same(t, p, stmt.Prepared)
}

func TestIterNextDrainsSinglePage(t *testing.T) {
	it := &Iter{
		page: &ResultSet{
			Rows:         []frame.Row{{frame.CqlValue{Value: frame.Bytes{1}}}, {frame.CqlValue{Value: frame.Bytes{2}}}},
			HasMorePages: false,
		},
	}

	row, ok := it.Next(nil)
	assert.True(t, ok)
	assert.Equal(t, frame.Bytes{1}, row[0].Value)

	row, ok = it.Next(nil)
	assert.True(t, ok)
	assert.Equal(t, frame.Bytes{2}, row[0].Value)

	_, ok = it.Next(nil)
	assert.False(t, ok)
	assert.NoError(t, it.Err())
}

func TestIterNextStopsOnEmptyFinalPage(t *testing.T) {
	it := &Iter{page: &ResultSet{HasMorePages: false}}

	_, ok := it.Next(nil)
	assert.False(t, ok)
	assert.NoError(t, it.Err())
}
