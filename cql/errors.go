package cql

import (
	"fmt"
	"strings"

	"github.com/nativecql/coredriver/frame"
)

// NoHostAvailableError is returned when the request pipeline exhausts
// its query plan without a host returning a usable response.
// TriedHosts records the last error observed from each host attempted,
// in the order the pipeline moved on from them.
type NoHostAvailableError struct {
	TriedHosts map[string]error
	Order      []string
}

func (e *NoHostAvailableError) Error() string {
	var b strings.Builder
	b.WriteString("cql: no host available, tried: ")
	for i, h := range e.Order {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", h, e.TriedHosts[h])
	}
	return b.String()
}

// PreparedStatementIdMismatchError is a fail-fast signal that a
// reprepare on a host returned a different queryId than the one
// originally cached — the statement text and the schema it was parsed
// against have diverged in a way the cache can't silently paper over.
type PreparedStatementIdMismatchError struct {
	Expected frame.Bytes
	Received frame.Bytes
}

func (e *PreparedStatementIdMismatchError) Error() string {
	return fmt.Sprintf("cql: reprepare returned queryId %x, expected %x", e.Received, e.Expected)
}

// UnsupportedProtocolVersionError signals the negotiated version is
// below the minimum this driver supports; the host should be marked
// DOWN rather than retried at a lower version.
type UnsupportedProtocolVersionError struct {
	Negotiated frame.ProtocolVersion
	Minimum    frame.ProtocolVersion
}

func (e *UnsupportedProtocolVersionError) Error() string {
	return fmt.Sprintf("cql: negotiated protocol %s below minimum supported %s", e.Negotiated, e.Minimum)
}
