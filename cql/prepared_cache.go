package cql

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nativecql/coredriver/frame"
)

// PreparedStatement is a cached PREPARE outcome: the queryId and
// bind-variable metadata the server returned, plus a result-metadata
// slot that gets replaced wholesale whenever a later EXECUTE reports a
// metadata change (schema change observed mid-cache-lifetime) so that
// concurrent readers of ResultMetadata never see a torn value.
type PreparedStatement struct {
	CQL      string
	Keyspace string // keyspaceOverride, if one was given; otherwise the session's keyspace at prepare time

	ID           frame.Bytes
	BindMetadata frame.PreparedMetadata

	resultMetadata atomic.Pointer[frame.ResultMetadata]
}

func newPreparedStatement(cql, keyspace string, id frame.Bytes, bindMD frame.PreparedMetadata, resultMD frame.ResultMetadata) *PreparedStatement {
	p := &PreparedStatement{CQL: cql, Keyspace: keyspace, ID: id, BindMetadata: bindMD}
	p.resultMetadata.Store(&resultMD)
	return p
}

// ResultMetadata returns the statement's current column metadata. It is
// safe to call concurrently with rotate.
func (p *PreparedStatement) ResultMetadata() frame.ResultMetadata {
	return *p.resultMetadata.Load()
}

// rotate atomically replaces the cached result metadata, used both when
// a reprepare on another host returns fresher metadata and when a RESULT
// mid-page reports metadata_changed.
func (p *PreparedStatement) rotate(md frame.ResultMetadata) {
	p.resultMetadata.Store(&md)
}

// preparedCacheKey identifies a prepared statement the way §4.5 defines
// cache identity: keyspace (the override, if any, else the session's
// current keyspace) plus CQL text. Two distinct Session instances never
// share a cache, since each owns its own *preparedCache — so session
// identity doesn't need to be part of the key itself.
type preparedCacheKey struct {
	keyspace string
	cql      string
}

// preparedCall is a single in-flight PREPARE shared by every caller
// racing on the same key. Its result is filled in exactly once, by the
// caller that created it, and is only ever read by others after done is
// closed.
type preparedCall struct {
	done chan struct{}
	stmt *PreparedStatement
	err  error
}

// preparedCache caches prepared statements per session, with
// single-flight preparation so that concurrent Session.Prepare calls for
// the same (keyspace, CQL) issue one PREPARE fan-out, not one per caller.
// A failed preparation is never cached: the next caller gets to try
// again.
type preparedCache struct {
	mu       sync.Mutex
	lru      *lru.Cache[preparedCacheKey, *PreparedStatement]
	inFlight map[preparedCacheKey]*preparedCall
}

func newPreparedCache(size int) *preparedCache {
	c, err := lru.New[preparedCacheKey, *PreparedStatement](size)
	if err != nil {
		// lru.New only fails for size <= 0, which DefaultSessionConfig
		// never produces.
		panic(err)
	}
	return &preparedCache{
		lru:      c,
		inFlight: make(map[preparedCacheKey]*preparedCall),
	}
}

func (c *preparedCache) get(key preparedCacheKey) (*PreparedStatement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

// getOrPrepare returns the cached statement for key, or runs prepare once
// on behalf of every concurrent caller racing for the same key. Callers
// that arrive while a prepare is in flight never run prepare themselves,
// even if that in-flight attempt ultimately fails: they share its
// outcome, so a failure is observed by every racer exactly as it
// happened, and only a caller arriving strictly after the failed attempt
// completed retries.
func (c *preparedCache) getOrPrepare(
	ctx context.Context,
	key preparedCacheKey,
	prepare func(context.Context) (*PreparedStatement, error),
) (*PreparedStatement, error) {
	c.mu.Lock()
	if stmt, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return stmt, nil
	}
	if call, ok := c.inFlight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.stmt, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &preparedCall{done: make(chan struct{})}
	c.inFlight[key] = call
	c.mu.Unlock()

	call.stmt, call.err = prepare(ctx)

	c.mu.Lock()
	delete(c.inFlight, key)
	if call.err == nil {
		c.lru.Add(key, call.stmt)
	}
	c.mu.Unlock()
	close(call.done)

	return call.stmt, call.err
}

// invalidate drops a cache entry so the next caller prepares from
// scratch. The session's UNPREPARED handling does not call it; that path
// reprepares the cached statement on the host instead.
func (c *preparedCache) invalidate(key preparedCacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}
