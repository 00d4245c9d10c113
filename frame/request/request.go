// Package request builds native protocol request bodies. Each type
// knows how to serialize itself for a given protocol version; callers
// wrap the result in a frame.Header and hand it to the transport layer.
package request

import (
	"github.com/nativecql/coredriver/frame"
)

// Request is anything that can append its body onto buf for the given
// negotiated protocol version.
type Request interface {
	OpCode() frame.OpCode
	Encode(buf []byte, version frame.ProtocolVersion) []byte
}

// Startup is the first request on a fresh connection: CQL version plus
// optional compression algorithm.
type Startup struct {
	CQLVersion  string
	Compression frame.Compression
}

func (Startup) OpCode() frame.OpCode { return frame.OpStartup }

func (s Startup) Encode(buf []byte, _ frame.ProtocolVersion) []byte {
	opts := map[string]string{"CQL_VERSION": s.CQLVersion}
	if s.Compression != frame.NoCompression {
		opts["COMPRESSION"] = string(s.Compression)
	}
	return frame.AppendStringMap(buf, opts)
}

// Options requests the server's SUPPORTED response; it has no body.
type Options struct{}

func (Options) OpCode() frame.OpCode                               { return frame.OpOptions }
func (Options) Encode(buf []byte, _ frame.ProtocolVersion) []byte { return buf }

// AuthResponse carries one round of SASL response bytes.
type AuthResponse struct {
	Token []byte
}

func (AuthResponse) OpCode() frame.OpCode { return frame.OpAuthResponse }

func (a AuthResponse) Encode(buf []byte, _ frame.ProtocolVersion) []byte {
	return frame.AppendBytes(buf, a.Token)
}

// Register subscribes the connection to server-pushed events
// (TOPOLOGY_CHANGE, STATUS_CHANGE, SCHEMA_CHANGE).
type Register struct {
	EventTypes []string
}

func (Register) OpCode() frame.OpCode { return frame.OpRegister }

func (r Register) Encode(buf []byte, _ frame.ProtocolVersion) []byte {
	return frame.AppendStringList(buf, r.EventTypes)
}

// Prepare asks the server to parse and cache a CQL statement, returning
// its queryId and bind-variable/result metadata.
type Prepare struct {
	Query            string
	Keyspace         string // v5+: per-request keyspace override
	SkipMetadata     bool
}

func (Prepare) OpCode() frame.OpCode { return frame.OpPrepare }

func (p Prepare) Encode(buf []byte, version frame.ProtocolVersion) []byte {
	buf = frame.AppendLongString(buf, p.Query)
	if version.SupportsKeyspaceInRequest() {
		var flags frame.Int
		if p.Keyspace != "" {
			flags |= prepareFlagWithKeyspace
		}
		buf = frame.AppendInt(buf, flags)
		if p.Keyspace != "" {
			buf = frame.AppendString(buf, p.Keyspace)
		}
	}
	return buf
}

const prepareFlagWithKeyspace frame.Int = 0x01
