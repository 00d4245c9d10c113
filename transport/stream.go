package transport

import (
	"fmt"
	"sync"

	"github.com/nativecql/coredriver/frame"
)

// streamState is where one stream id sits in its lifecycle: free for
// reuse, carrying a live request, or orphaned by a client-side timeout
// and awaiting the late response to discard.
type streamState int

const (
	streamFree streamState = iota
	streamInFlight
	streamOrphaned
)

// pendingResponse is delivered to whatever goroutine is waiting on a
// stream id's response, or dropped if the stream was orphaned.
type pendingResponse struct {
	frame frame.DecodedFrame
	err   error
}

// streamTable allocates and tracks the native protocol's stream ids for
// one connection: 128 ids for protocol v1/v2, 32,768 for v3+. At most
// one outstanding request may occupy an id at a time.
type streamTable struct {
	mu      sync.Mutex
	state   []streamState
	waiters []chan pendingResponse
	free    []int16
}

func maxStreams(version frame.ProtocolVersion) int {
	if version < frame.ProtocolV3 {
		return 128
	}
	return 32768
}

func newStreamTable(version frame.ProtocolVersion) *streamTable {
	n := maxStreams(version)
	t := &streamTable{
		state:   make([]streamState, n),
		waiters: make([]chan pendingResponse, n),
		free:    make([]int16, n),
	}
	for i := 0; i < n; i++ {
		t.free[i] = int16(i)
	}
	return t
}

// Acquire reserves the next free stream id and returns a channel its
// response (or a send/connection error) will be delivered on.
func (t *streamTable) Acquire() (int16, chan pendingResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.free) == 0 {
		return 0, nil, fmt.Errorf("transport: no free stream ids")
	}
	id := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.state[id] = streamInFlight
	ch := make(chan pendingResponse, 1)
	t.waiters[id] = ch
	return id, ch, nil
}

// Deliver routes a response to the waiter registered for id, if any.
// A response for an orphaned or already-freed id is silently dropped,
// per the protocol's no-ordering-guarantee-across-streams contract.
func (t *streamTable) Deliver(id int16, f frame.DecodedFrame, err error) {
	t.mu.Lock()
	ch := t.waiters[id]
	inFlight := t.state[id] == streamInFlight
	if inFlight || t.state[id] == streamOrphaned {
		t.waiters[id] = nil
		t.state[id] = streamFree
		t.free = append(t.free, id)
	}
	t.mu.Unlock()

	if inFlight && ch != nil {
		ch <- pendingResponse{frame: f, err: err}
	}
}

// Orphan marks id as timed out: its id is not returned to the free list
// until the late response (if any) arrives and is discarded by Deliver,
// which is why Orphan does not enqueue anything on ch.
func (t *streamTable) Orphan(id int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state[id] == streamInFlight {
		t.state[id] = streamOrphaned
	}
}

// DeliverOrphaned finalizes an orphaned id once its late response has
// been drained, returning the id to the free pool.
func (t *streamTable) DeliverOrphaned(id int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state[id] == streamOrphaned {
		t.waiters[id] = nil
		t.state[id] = streamFree
		t.free = append(t.free, id)
	}
}

// FailAll delivers ConnectionClosed to every still-waiting stream, used
// when the connection itself is torn down.
func (t *streamTable) FailAll(err error) {
	t.mu.Lock()
	var chans []chan pendingResponse
	for id, st := range t.state {
		if st == streamInFlight && t.waiters[id] != nil {
			chans = append(chans, t.waiters[id])
			t.waiters[id] = nil
		}
	}
	t.mu.Unlock()

	for _, ch := range chans {
		ch <- pendingResponse{err: err}
	}
}
