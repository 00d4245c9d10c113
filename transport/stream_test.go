package transport

import (
	"testing"

	"github.com/nativecql/coredriver/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTableAcquireDeliver(t *testing.T) {
	st := newStreamTable(frame.ProtocolV4)
	id, ch, err := st.Acquire()
	require.NoError(t, err)

	go st.Deliver(id, frame.DecodedFrame{Header: frame.Header{StreamID: id}}, nil)

	pr := <-ch
	assert.NoError(t, pr.err)
	assert.Equal(t, id, pr.frame.Header.StreamID)
}

func TestStreamTableOrphanThenLateDeliver(t *testing.T) {
	st := newStreamTable(frame.ProtocolV4)
	id, _, err := st.Acquire()
	require.NoError(t, err)

	st.Orphan(id)
	// A late response for an orphaned id must not be delivered anywhere
	// (no panic, no block) and the id must not yet be reusable.
	st.Deliver(id, frame.DecodedFrame{}, nil)
	st.DeliverOrphaned(id)

	id2, _, err := st.Acquire()
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestStreamTableExhaustion(t *testing.T) {
	st := newStreamTable(frame.ProtocolV1)
	n := maxStreams(frame.ProtocolV1)
	for i := 0; i < n; i++ {
		_, _, err := st.Acquire()
		require.NoError(t, err)
	}
	_, _, err := st.Acquire()
	assert.Error(t, err)
}

func TestStreamTableFailAll(t *testing.T) {
	st := newStreamTable(frame.ProtocolV4)
	_, ch1, _ := st.Acquire()
	_, ch2, _ := st.Acquire()

	st.FailAll(assert.AnError)

	for _, ch := range []chan pendingResponse{ch1, ch2} {
		pr := <-ch
		assert.ErrorIs(t, pr.err, assert.AnError)
	}
}
