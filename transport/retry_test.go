package transport

import (
	"testing"

	"github.com/nativecql/coredriver/frame"
	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicyReadTimeout(t *testing.T) {
	p := NewDefaultRetryPolicy()
	err := &frame.ReadTimeoutError{Received: 2, BlockFor: 2, DataPresent: true}
	assert.Equal(t, RetrySameHost, p.OnReadTimeout(err, true, 0))

	err2 := &frame.ReadTimeoutError{Received: 1, BlockFor: 2, DataPresent: false}
	assert.Equal(t, RetryRethrow, p.OnReadTimeout(err2, true, 0))

	assert.Equal(t, RetryRethrow, p.OnReadTimeout(err, true, 5))
}

func TestDefaultRetryPolicyWriteTimeoutRequiresIdempotent(t *testing.T) {
	p := NewDefaultRetryPolicy()
	err := &frame.WriteTimeoutError{WriteType: "BATCH_LOG"}
	assert.Equal(t, RetrySameHost, p.OnWriteTimeout(err, true, 0))
	assert.Equal(t, RetryRethrow, p.OnWriteTimeout(err, false, 0))
}

func TestDefaultRetryPolicyUnavailableRetriesNextHost(t *testing.T) {
	p := NewDefaultRetryPolicy()
	err := &frame.UnavailableError{}
	assert.Equal(t, RetryNextHost, p.OnUnavailable(err, true, 0))
	assert.Equal(t, RetryRethrow, p.OnUnavailable(err, true, 1))
}

func TestExponentialReconnectionSchedule(t *testing.T) {
	s := NewExponentialReconnectionSchedule(100, 1000)
	assert.Equal(t, int64(100), s.NextDelayMs())
	assert.Equal(t, int64(200), s.NextDelayMs())
	assert.Equal(t, int64(400), s.NextDelayMs())
	assert.Equal(t, int64(800), s.NextDelayMs())
	assert.Equal(t, int64(1000), s.NextDelayMs())
}
