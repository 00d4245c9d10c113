package cql

import (
	"github.com/nativecql/coredriver/frame"
	"github.com/nativecql/coredriver/frame/request"
)

// Batch groups several statements the server applies as one atomic (as
// seen by one coordinator) unit. Unlike Statement, a batch entry can mix
// bare CQL and prepared statements freely.
type Batch struct {
	Kind    request.BatchKind
	Entries []request.BatchEntry

	Consistency          frame.Consistency
	HasConsistency       bool
	SerialConsistency    frame.Consistency
	HasSerialConsistency bool
	Timestamp            int64
	HasTimestamp         bool

	Idempotent bool
	RoutingKey []byte
}

func NewBatch(kind request.BatchKind) *Batch {
	return &Batch{Kind: kind}
}

func (b *Batch) AddSimple(cql string, values ...frame.CqlValue) *Batch {
	bound := make([]request.BoundValue, len(values))
	for i, v := range values {
		bound[i] = request.BoundValue{Value: v}
	}
	b.Entries = append(b.Entries, request.BatchEntry{Kind: request.BatchStatementQuery, Query: cql, Values: bound})
	return b
}

func (b *Batch) AddBound(p *PreparedStatement, values ...frame.CqlValue) *Batch {
	bound := make([]request.BoundValue, len(values))
	for i, v := range values {
		bound[i] = request.BoundValue{Value: v}
	}
	b.Entries = append(b.Entries, request.BatchEntry{Kind: request.BatchStatementPrepared, ID: p.ID, Values: bound})
	return b
}

func (b *Batch) WithConsistency(c frame.Consistency) *Batch {
	b.Consistency = c
	b.HasConsistency = true
	return b
}

func (b *Batch) SetIdempotent(idempotent bool) *Batch {
	b.Idempotent = idempotent
	return b
}

func (b *Batch) SetRoutingKey(key []byte) *Batch {
	b.RoutingKey = key
	return b
}
