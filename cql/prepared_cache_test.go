package cql

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nativecql/coredriver/frame"
)

func testStatement(id byte) *PreparedStatement {
	return newPreparedStatement("SELECT 1", "ks", frame.Bytes{id}, frame.PreparedMetadata{}, frame.ResultMetadata{})
}

func TestPreparedCacheHit(t *testing.T) {
	c := newPreparedCache(8)
	key := preparedCacheKey{keyspace: "ks", cql: "SELECT 1"}
	want := testStatement(1)
	c.lru.Add(key, want)

	var calls int32
	got, err := c.getOrPrepare(context.Background(), key, func(context.Context) (*PreparedStatement, error) {
		atomic.AddInt32(&calls, 1)
		return testStatement(2), nil
	})

	require.NoError(t, err)
	assert.EqualValues(t, 0, calls, "cached entry must not trigger prepare")
	assert.Same(t, want, got)
}

func TestPreparedCacheSingleFlight(t *testing.T) {
	c := newPreparedCache(8)
	key := preparedCacheKey{keyspace: "ks", cql: "SELECT 1"}

	var calls int32
	release := make(chan struct{})
	prepare := func(context.Context) (*PreparedStatement, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return testStatement(1), nil
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := c.getOrPrepare(context.Background(), key, prepare)
			errs[i] = err
		}(i)
	}

	// Give every goroutine a chance to either become the preparer or queue
	// up as a waiter before letting the single in-flight prepare finish.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls, "only one PREPARE should have been issued")
	for _, err := range errs {
		assert.NoError(t, err)
	}

	_, ok := c.get(key)
	assert.True(t, ok, "a successful prepare must be cached")
}

func TestPreparedCacheFirstFailureThenSuccess(t *testing.T) {
	c := newPreparedCache(8)
	key := preparedCacheKey{keyspace: "ks", cql: "SELECT 1"}
	boom := errors.New("boom")

	var calls int32
	release := make(chan struct{})
	failingPrepare := func(context.Context) (*PreparedStatement, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, boom
	}

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := c.getOrPrepare(context.Background(), key, failingPrepare)
			errs[i] = err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls, "exactly one PREPARE should run for the failing round")
	for _, err := range errs {
		assert.ErrorIs(t, err, boom, "every waiter must observe the same failure")
	}

	_, ok := c.get(key)
	assert.False(t, ok, "a failed prepare must not be cached")

	// A caller arriving after the failed round completed retries from
	// scratch and can succeed.
	_, err := c.getOrPrepare(context.Background(), key, func(context.Context) (*PreparedStatement, error) {
		return testStatement(1), nil
	})
	require.NoError(t, err)
	_, ok = c.get(key)
	assert.True(t, ok)
}

func TestPreparedCacheKeyIndependence(t *testing.T) {
	c := newPreparedCache(8)
	keyA := preparedCacheKey{keyspace: "ks1", cql: "SELECT 1"}
	keyB := preparedCacheKey{keyspace: "ks2", cql: "SELECT 1"}

	var calls int32
	prepare := func(context.Context) (*PreparedStatement, error) {
		atomic.AddInt32(&calls, 1)
		return testStatement(1), nil
	}

	_, err := c.getOrPrepare(context.Background(), keyA, prepare)
	require.NoError(t, err)
	_, err = c.getOrPrepare(context.Background(), keyB, prepare)
	require.NoError(t, err)

	assert.EqualValues(t, 2, calls, "different keyspaces must not share a cache entry")
}

func TestPreparedCacheInvalidate(t *testing.T) {
	c := newPreparedCache(8)
	key := preparedCacheKey{keyspace: "ks", cql: "SELECT 1"}
	c.lru.Add(key, testStatement(1))

	c.invalidate(key)

	_, ok := c.get(key)
	assert.False(t, ok)
}

func TestPreparedStatementResultMetadataRotate(t *testing.T) {
	stmt := testStatement(1)
	original := stmt.ResultMetadata()
	assert.Empty(t, original.ResultMetadataID)

	rotated := frame.ResultMetadata{ResultMetadataID: frame.Bytes{0xAA}}
	stmt.rotate(rotated)

	assert.Equal(t, frame.Bytes{0xAA}, stmt.ResultMetadata().ResultMetadataID)
}
