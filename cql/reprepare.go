package cql

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/nativecql/coredriver/frame"
	"github.com/nativecql/coredriver/frame/request"
	"github.com/nativecql/coredriver/frame/response"
	"github.com/nativecql/coredriver/transport"
)

// reprepareCoordinator issues PREPARE against hosts that already have an
// open connection, on behalf of a statement that's known-good on at
// least one host already. It never opens a new connection to do this:
// a host with no live connection simply doesn't get the statement
// reprepared on it yet, and will get it the ordinary way (lazily, on
// first EXECUTE against it) once it does.
type reprepareCoordinator struct {
	cluster     *transport.Cluster
	sem         chan struct{}
	protocolVer frame.ProtocolVersion
	logger      transport.Logger
}

func newReprepareCoordinator(cluster *transport.Cluster, concurrency int, protocolVer frame.ProtocolVersion, logger transport.Logger) *reprepareCoordinator {
	if logger == nil {
		logger = transport.NopLogger{}
	}
	return &reprepareCoordinator{
		cluster:     cluster,
		sem:         make(chan struct{}, concurrency),
		protocolVer: protocolVer,
		logger:      logger,
	}
}

// reprepareAll fans PREPARE out, bounded by the coordinator's
// concurrency limit, to every host other than originHost that currently
// has at least one open connection. Per-host failures are logged and do
// not fail the call: a host that can't be reprepared right now will
// reprepare lazily on its own first EXECUTE of this statement.
func (r *reprepareCoordinator) reprepareAll(ctx context.Context, stmt *PreparedStatement, originHost string) {
	var wg sync.WaitGroup
	for addr, pool := range r.cluster.AllPools() {
		if addr == originHost || pool.Len() == 0 {
			continue
		}
		wg.Add(1)
		r.sem <- struct{}{}
		go func(addr string, pool *transport.Pool) {
			defer wg.Done()
			defer func() { <-r.sem }()
			if err := r.reprepareOnPool(ctx, stmt, pool); err != nil {
				r.logger.Warnf("cql: reprepare on %s failed: %v", addr, err)
			}
		}(addr, pool)
	}
	wg.Wait()
}

// reprepareOnHost reprepares stmt synchronously on addr and throws on
// failure. This is the call site the request pipeline uses when a
// single host it was executing against reports UNPREPARED: the pipeline
// needs to know definitively whether the reprepare succeeded before it
// retries EXECUTE on that same host.
func (r *reprepareCoordinator) reprepareOnHost(ctx context.Context, stmt *PreparedStatement, addr string) error {
	pool := r.cluster.PoolFor(addr)
	if pool == nil {
		return fmt.Errorf("cql: reprepare: no pool for host %s", addr)
	}
	return r.reprepareOnPool(ctx, stmt, pool)
}

func (r *reprepareCoordinator) reprepareOnPool(ctx context.Context, stmt *PreparedStatement, pool *transport.Pool) error {
	conn, err := pool.Borrow(-1)
	if err != nil {
		return err
	}

	df, err := conn.Send(ctx, request.Prepare{Query: stmt.CQL, Keyspace: stmt.Keyspace})
	if err != nil {
		return err
	}
	if df.Header.OpCode == frame.OpError {
		return frame.ParseError(frame.NewBuffer(df.Body))
	}
	if df.Header.OpCode != frame.OpResult {
		return fmt.Errorf("cql: reprepare: unexpected opcode 0x%02x", df.Header.OpCode)
	}

	result, err := response.ParseResult(frame.NewBuffer(df.Body), r.protocolVer)
	if err != nil {
		return err
	}
	if result.Prepared == nil {
		return fmt.Errorf("cql: reprepare: RESULT was not Prepared")
	}
	if !bytes.Equal(result.Prepared.QueryID, stmt.ID) {
		return &PreparedStatementIdMismatchError{Expected: stmt.ID, Received: result.Prepared.QueryID}
	}

	stmt.rotate(result.Prepared.ResultMetadata)
	return nil
}
