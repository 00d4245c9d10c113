// Package response parses native protocol response bodies into typed
// Go values. Parsing never retries or reinterprets a malformed body —
// per the codec's contract, that is always a deterministic failure.
package response

import (
	"fmt"

	"github.com/nativecql/coredriver/frame"
)

// Ready is the handshake's final success response; it carries no body.
type Ready struct{}

// Authenticate names the SASL mechanism the server requires.
type Authenticate struct {
	Authenticator string
}

// AuthChallenge/AuthSuccess carry SASL round-trip bytes.
type AuthChallenge struct{ Token frame.Bytes }
type AuthSuccess struct{ Token frame.Bytes }

// Supported carries the server's advertised options, including Scylla's
// shard-aware extension fields when present.
type Supported struct {
	Options map[string][]string
}

func (s Supported) first(key string) (string, bool) {
	v, ok := s.Options[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// ShardingInfo reports Scylla's per-connection sharding extension, or
// ok=false when the server is a plain Cassandra node.
func (s Supported) ShardingInfo() (nrShards int, shardAwarePort, shardAwarePortSSL int, ok bool) {
	nr, hasNR := s.first("SCYLLA_NR_SHARDS")
	port, hasPort := s.first("SCYLLA_SHARD_AWARE_PORT")
	if !hasNR || !hasPort {
		return 0, 0, 0, false
	}
	var n, p int
	if _, err := fmt.Sscanf(nr, "%d", &n); err != nil {
		return 0, 0, 0, false
	}
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return 0, 0, 0, false
	}
	sslPort := 0
	if s, ok := s.first("SCYLLA_SHARD_AWARE_PORT_SSL"); ok {
		fmt.Sscanf(s, "%d", &sslPort)
	}
	return n, p, sslPort, true
}

// Event holds a pushed SCHEMA_CHANGE/STATUS_CHANGE/TOPOLOGY_CHANGE
// EVENT body.
type Event struct {
	Type    string
	Details map[string]string
}

func ParseReady(*frame.Buffer) (Ready, error)             { return Ready{}, nil }
func ParseAuthSuccess(b *frame.Buffer) (AuthSuccess, error) {
	return AuthSuccess{Token: b.ReadBytes()}, b.Err()
}
func ParseAuthChallenge(b *frame.Buffer) (AuthChallenge, error) {
	return AuthChallenge{Token: b.ReadBytes()}, b.Err()
}
func ParseAuthenticate(b *frame.Buffer) (Authenticate, error) {
	return Authenticate{Authenticator: b.ReadString()}, b.Err()
}

func ParseSupported(b *frame.Buffer) (Supported, error) {
	return Supported{Options: b.ReadStringMultimap()}, b.Err()
}
