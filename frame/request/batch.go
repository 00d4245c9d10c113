package request

import "github.com/nativecql/coredriver/frame"

// BatchKind selects the server's batch-log behavior.
type BatchKind frame.Byte

const (
	LoggedBatch   BatchKind = 0
	UnloggedBatch BatchKind = 1
	CounterBatch  BatchKind = 2
)

// BatchStatementKind distinguishes a raw CQL string statement from one
// referencing an already-prepared queryId within a batch entry.
type BatchStatementKind frame.Byte

const (
	BatchStatementQuery   BatchStatementKind = 0
	BatchStatementPrepared BatchStatementKind = 1
)

// BatchEntry is one statement within a BATCH request.
type BatchEntry struct {
	Kind   BatchStatementKind
	Query  string      // set when Kind == BatchStatementQuery
	ID     frame.Bytes // set when Kind == BatchStatementPrepared
	Values []BoundValue
	Named  bool
}

func (e BatchEntry) encode(buf []byte) []byte {
	buf = append(buf, byte(e.Kind))
	if e.Kind == BatchStatementQuery {
		buf = frame.AppendLongString(buf, e.Query)
	} else {
		buf = frame.AppendShortBytes(buf, e.ID)
	}
	buf = frame.AppendShort(buf, uint16(len(e.Values)))
	for _, v := range e.Values {
		if e.Named {
			buf = frame.AppendString(buf, v.Name)
		}
		buf = encodeBoundValue(buf, v.Value)
	}
	return buf
}

// Batch is an atomic (as seen by one coordinator) set of statements.
type Batch struct {
	Kind              BatchKind
	Entries           []BatchEntry
	Consistency       frame.Consistency
	SerialConsistency frame.Consistency
	HasSerialCL       bool
	Timestamp         int64
	HasTimestamp      bool
	Keyspace          string
}

func (Batch) OpCode() frame.OpCode { return frame.OpBatch }

const (
	batchFlagWithSerialCL  frame.Int = 0x0010
	batchFlagWithTimestamp frame.Int = 0x0020
	batchFlagWithKeyspace  frame.Int = 0x0080
)

func (b Batch) Encode(buf []byte, version frame.ProtocolVersion) []byte {
	buf = append(buf, byte(b.Kind))
	buf = frame.AppendShort(buf, uint16(len(b.Entries)))
	for _, e := range b.Entries {
		buf = e.encode(buf)
	}
	buf = frame.AppendShort(buf, uint16(b.Consistency))

	var f frame.Int
	if b.HasSerialCL {
		f |= batchFlagWithSerialCL
	}
	if b.HasTimestamp {
		f |= batchFlagWithTimestamp
	}
	if version.SupportsKeyspaceInRequest() && b.Keyspace != "" {
		f |= batchFlagWithKeyspace
	}

	if version.SupportsKeyspaceInRequest() {
		buf = frame.AppendInt(buf, f)
	} else {
		buf = append(buf, byte(f))
	}
	if f&batchFlagWithSerialCL != 0 {
		buf = frame.AppendShort(buf, uint16(b.SerialConsistency))
	}
	if f&batchFlagWithTimestamp != 0 {
		buf = frame.AppendLong(buf, b.Timestamp)
	}
	if f&batchFlagWithKeyspace != 0 {
		buf = frame.AppendString(buf, b.Keyspace)
	}
	return buf
}
