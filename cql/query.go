package cql

import (
	"context"

	"github.com/nativecql/coredriver/frame"
)

// Statement is one request to execute: either a bare CQL string or a
// bound prepared statement, plus the per-call overrides a caller can
// layer on top of the session's defaults.
type Statement struct {
	CQL      string
	Prepared *PreparedStatement

	Values []frame.CqlValue
	Names  []string
	Named  bool

	Consistency          frame.Consistency
	HasConsistency       bool
	SerialConsistency    frame.Consistency
	HasSerialConsistency bool

	PageSize    int32
	PagingState frame.Bytes

	Timestamp    int64
	HasTimestamp bool

	Idempotent bool
	RoutingKey []byte
}

// NewStatement builds an unprepared (simple) statement.
func NewStatement(cql string) *Statement {
	return &Statement{CQL: cql}
}

// NewBoundStatement builds a statement against an already-prepared
// statement; only Prepared is set.
func NewBoundStatement(p *PreparedStatement) *Statement {
	return &Statement{Prepared: p}
}

func (s *Statement) Bind(values ...frame.CqlValue) *Statement {
	s.Values = values
	s.Named = false
	return s
}

func (s *Statement) BindNamed(names []string, values []frame.CqlValue) *Statement {
	s.Names = names
	s.Values = values
	s.Named = true
	return s
}

func (s *Statement) WithConsistency(c frame.Consistency) *Statement {
	s.Consistency = c
	s.HasConsistency = true
	return s
}

func (s *Statement) WithSerialConsistency(c frame.Consistency) *Statement {
	s.SerialConsistency = c
	s.HasSerialConsistency = true
	return s
}

func (s *Statement) WithPageSize(n int32) *Statement {
	s.PageSize = n
	return s
}

// SetPagingState resumes a previously started query from a paging token
// a caller saved off an earlier ResultSet — manual paging, as opposed to
// the automatic paging Iter performs.
func (s *Statement) SetPagingState(state frame.Bytes) *Statement {
	s.PagingState = state
	return s
}

func (s *Statement) SetIdempotent(idempotent bool) *Statement {
	s.Idempotent = idempotent
	return s
}

func (s *Statement) SetRoutingKey(key []byte) *Statement {
	s.RoutingKey = key
	return s
}

func (s *Statement) clone() *Statement {
	c := *s
	return &c
}

// ResultSet is one page of rows, along with the token needed to fetch
// the next page if HasMorePages is true.
type ResultSet struct {
	Columns      []frame.ColumnSpec
	Rows         []frame.Row
	HasMorePages bool
	PagingState  frame.Bytes
}

// Iter drives automatic multi-page iteration over a Statement: each call
// to Next that exhausts the current page transparently fetches the next
// one using the paging state the server handed back, until the server
// reports no more pages.
type Iter struct {
	session *Session
	stmt    *Statement
	page    *ResultSet
	idx     int
	err     error
}

// Iter starts (but does not yet execute) automatic paging over stmt.
func (s *Session) Iter(stmt *Statement) *Iter {
	return &Iter{session: s, stmt: stmt.clone()}
}

// Next returns the next row, fetching additional pages as needed. It
// returns ok == false once the result set is exhausted or an error
// occurred; call Err afterward to distinguish the two.
func (it *Iter) Next(ctx context.Context) (frame.Row, bool) {
	for {
		if it.page != nil && it.idx < len(it.page.Rows) {
			row := it.page.Rows[it.idx]
			it.idx++
			return row, true
		}
		if it.page != nil && !it.page.HasMorePages {
			return nil, false
		}
		if it.page != nil {
			it.stmt.PagingState = it.page.PagingState
		}
		page, err := it.session.Execute(ctx, it.stmt)
		if err != nil {
			it.err = err
			return nil, false
		}
		it.page = page
		it.idx = 0
		if len(page.Rows) == 0 && !page.HasMorePages {
			return nil, false
		}
	}
}

func (it *Iter) Err() error { return it.err }
