package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nativecql/coredriver/frame"
	"github.com/nativecql/coredriver/frame/request"
)

func TestBatchAddSimpleAppendsQueryEntry(t *testing.T) {
	b := NewBatch(request.LoggedBatch).AddSimple("INSERT INTO t (k) VALUES (?)", frame.CqlValue{Value: frame.Bytes{1}})

	entry := b.Entries[0]
	assert.Equal(t, request.BatchStatementQuery, entry.Kind)
	assert.Equal(t, "INSERT INTO t (k) VALUES (?)", entry.Query)
	assert.Len(t, entry.Values, 1)
}

func TestBatchAddBoundAppendsPreparedEntry(t *testing.T) {
	p := testStatement(7)
	b := NewBatch(request.UnloggedBatch).AddBound(p, frame.CqlValue{Value: frame.Bytes{9}})

	entry := b.Entries[0]
	assert.Equal(t, request.BatchStatementPrepared, entry.Kind)
	assert.Equal(t, p.ID, entry.ID)
	assert.Len(t, entry.Values, 1)
}

func TestBatchWithConsistencySetsHasFlag(t *testing.T) {
	b := NewBatch(request.LoggedBatch).WithConsistency(frame.QUORUM)
	assert.True(t, b.HasConsistency)
	assert.Equal(t, frame.QUORUM, b.Consistency)
}

func TestBatchMixesSimpleAndBoundEntries(t *testing.T) {
	p := testStatement(1)
	b := NewBatch(request.LoggedBatch).
		AddSimple("INSERT INTO t (k) VALUES (1)").
		AddBound(p, frame.CqlValue{Value: frame.Bytes{2}})

	assert.Len(t, b.Entries, 2)
	assert.Equal(t, request.BatchStatementQuery, b.Entries[0].Kind)
	assert.Equal(t, request.BatchStatementPrepared, b.Entries[1].Kind)
}

func TestBatchSetIdempotentAndRoutingKey(t *testing.T) {
	b := NewBatch(request.LoggedBatch).SetIdempotent(true).SetRoutingKey([]byte("pk"))
	assert.True(t, b.Idempotent)
	assert.Equal(t, []byte("pk"), b.RoutingKey)
}
