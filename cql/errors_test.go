package cql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nativecql/coredriver/frame"
)

func TestNoHostAvailableErrorMessageListsHostsInOrder(t *testing.T) {
	err := &NoHostAvailableError{
		TriedHosts: map[string]error{
			"10.0.0.1": errors.New("connection refused"),
			"10.0.0.2": errors.New("timeout"),
		},
		Order: []string{"10.0.0.1", "10.0.0.2"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "10.0.0.1: connection refused")
	assert.Contains(t, msg, "10.0.0.2: timeout")
}

func TestPreparedStatementIdMismatchErrorMessage(t *testing.T) {
	err := &PreparedStatementIdMismatchError{
		Expected: frame.Bytes{0x01},
		Received: frame.Bytes{0x02},
	}
	assert.Contains(t, err.Error(), "02")
	assert.Contains(t, err.Error(), "01")
}

func TestUnsupportedProtocolVersionErrorMessage(t *testing.T) {
	err := &UnsupportedProtocolVersionError{
		Negotiated: frame.ProtocolVersion(2),
		Minimum:    frame.ProtocolVersion(3),
	}
	assert.NotEmpty(t, err.Error())
}
