package request

import "github.com/nativecql/coredriver/frame"

// Query parameter flag bits, shared by QUERY, EXECUTE and BATCH-per-statement
// encoding.
const (
	flagValues            frame.Int = 0x0001
	flagSkipMetadata      frame.Int = 0x0002
	flagPageSize          frame.Int = 0x0004
	flagWithPagingState   frame.Int = 0x0008
	flagWithSerialCL      frame.Int = 0x0010
	flagWithDefaultTS     frame.Int = 0x0020
	flagNamesForValues    frame.Int = 0x0040
	flagWithKeyspace      frame.Int = 0x0080
	flagWithNowInSeconds  frame.Int = 0x0200
)

// BoundValue is one positional or named bind variable.
type BoundValue struct {
	Name  string // empty unless Named is set on the surrounding Params
	Value frame.CqlValue
}

// Params is the consistency/flags/values/paging block shared by QUERY
// and EXECUTE bodies (§4.2).
type Params struct {
	Consistency       frame.Consistency
	Values            []BoundValue
	Named             bool
	SkipMetadata      bool
	PageSize          int32 // 0 means "no paging requested"
	PagingState       frame.Bytes
	SerialConsistency frame.Consistency
	HasSerialCL       bool
	Timestamp         int64
	HasTimestamp      bool
	Keyspace          string
	NowInSeconds      int32
	HasNowInSeconds   bool
}

func (p Params) flags(version frame.ProtocolVersion) frame.Int {
	var f frame.Int
	if len(p.Values) > 0 {
		f |= flagValues
	}
	if p.SkipMetadata {
		f |= flagSkipMetadata
	}
	if p.PageSize > 0 {
		f |= flagPageSize
	}
	if p.PagingState != nil {
		f |= flagWithPagingState
	}
	if p.HasSerialCL {
		f |= flagWithSerialCL
	}
	if p.HasTimestamp {
		f |= flagWithDefaultTS
	}
	if p.Named {
		f |= flagNamesForValues
	}
	if version.SupportsKeyspaceInRequest() {
		if p.Keyspace != "" {
			f |= flagWithKeyspace
		}
		if p.HasNowInSeconds {
			f |= flagWithNowInSeconds
		}
	}
	return f
}

// encode appends consistency, flags and every conditional field in wire
// order onto buf.
func (p Params) encode(buf []byte, version frame.ProtocolVersion) []byte {
	buf = frame.AppendShort(buf, uint16(p.Consistency))

	f := p.flags(version)
	if version.SupportsKeyspaceInRequest() {
		buf = frame.AppendInt(buf, f)
	} else {
		buf = append(buf, byte(f))
	}

	if f&flagValues != 0 {
		buf = frame.AppendShort(buf, uint16(len(p.Values)))
		for _, v := range p.Values {
			if p.Named {
				buf = frame.AppendString(buf, v.Name)
			}
			buf = encodeBoundValue(buf, v.Value)
		}
	}
	if f&flagPageSize != 0 {
		buf = frame.AppendInt(buf, p.PageSize)
	}
	if f&flagWithPagingState != 0 {
		buf = frame.AppendBytes(buf, p.PagingState)
	}
	if f&flagWithSerialCL != 0 {
		buf = frame.AppendShort(buf, uint16(p.SerialConsistency))
	}
	if f&flagWithDefaultTS != 0 {
		buf = frame.AppendLong(buf, p.Timestamp)
	}
	if f&flagWithKeyspace != 0 {
		buf = frame.AppendString(buf, p.Keyspace)
	}
	if f&flagWithNowInSeconds != 0 {
		buf = frame.AppendInt(buf, p.NowInSeconds)
	}
	return buf
}

// encodeBoundValue writes a single bind variable: a 4-byte length
// (-1 for null, -2 for unset on protocol ≥4) followed by its bytes.
func encodeBoundValue(buf []byte, v frame.CqlValue) []byte {
	if v.IsUnset {
		return frame.AppendInt(buf, -2)
	}
	return frame.AppendBytes(buf, v.Value)
}

// Query is a non-prepared CQL statement request.
type Query struct {
	CQL    string
	Params Params
}

func (Query) OpCode() frame.OpCode { return frame.OpQuery }

func (q Query) Encode(buf []byte, version frame.ProtocolVersion) []byte {
	buf = frame.AppendLongString(buf, q.CQL)
	return q.Params.encode(buf, version)
}

// Execute runs a previously prepared statement by id.
type Execute struct {
	QueryID          frame.Bytes
	ResultMetadataID frame.Bytes // protocol ≥5
	Params           Params
}

func (Execute) OpCode() frame.OpCode { return frame.OpExecute }

func (e Execute) Encode(buf []byte, version frame.ProtocolVersion) []byte {
	buf = frame.AppendShortBytes(buf, e.QueryID)
	if version.SupportsResultMetadataID() {
		buf = frame.AppendShortBytes(buf, e.ResultMetadataID)
	}
	return e.Params.encode(buf, version)
}
