// Package frame implements the Cassandra/Scylla native protocol's wire
// codec: frame headers, opcodes, the CQL value type system, and the
// request/response bodies built on top of them (see the request and
// response subpackages). It has no knowledge of sockets, pools, or
// clusters — those live in the transport package, one layer up.
package frame

import "fmt"

// Basic wire-level aliases, named the way the protocol spec names them
// rather than reusing Go's own numeric type names everywhere.
type (
	Byte  = byte
	Short = uint16
	Int   = int32
	Long  = int64
	Bytes = []byte
)

// ProtocolVersion is the native protocol version a connection negotiated,
// 1 through 5. Every encoding in this package that differs by version
// takes one as a parameter.
type ProtocolVersion byte

const (
	ProtocolV1 ProtocolVersion = 1
	ProtocolV2 ProtocolVersion = 2
	ProtocolV3 ProtocolVersion = 3
	ProtocolV4 ProtocolVersion = 4
	ProtocolV5 ProtocolVersion = 5
)

func (v ProtocolVersion) SupportsNamedValues() bool       { return v >= ProtocolV3 }
func (v ProtocolVersion) SupportsUnset() bool             { return v >= ProtocolV4 }
func (v ProtocolVersion) SupportsKeyspaceInRequest() bool { return v >= ProtocolV5 }
func (v ProtocolVersion) SupportsResultMetadataID() bool  { return v >= ProtocolV5 }
func (v ProtocolVersion) SupportsContinuousPaging() bool  { return v >= ProtocolV5 }

// StreamIDBytes is the width of the header's stream-id field: 1 byte for
// v1/v2, 2 bytes (signed) for v3 and up.
func (v ProtocolVersion) StreamIDBytes() int {
	if v < ProtocolV3 {
		return 1
	}
	return 2
}

// HeaderSize is the fixed header length for this version: 8 bytes for
// v1/v2, 9 bytes for v3+.
func (v ProtocolVersion) HeaderSize() int {
	return 4 + v.StreamIDBytes() + 4
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("v%d", byte(v))
}

// Consistency is the CQL consistency level, a 2-byte enum on the wire.
type Consistency Short

const (
	ANY         Consistency = 0x0000
	ONE         Consistency = 0x0001
	TWO         Consistency = 0x0002
	THREE       Consistency = 0x0003
	QUORUM      Consistency = 0x0004
	ALL         Consistency = 0x0005
	LOCALQUORUM Consistency = 0x0006
	EACHQUORUM  Consistency = 0x0007
	SERIAL      Consistency = 0x0008
	LOCALSERIAL Consistency = 0x0009
	LOCALONE    Consistency = 0x000A
)

var consistencyStrings = map[Consistency]string{
	ANY: "ANY", ONE: "ONE", TWO: "TWO", THREE: "THREE", QUORUM: "QUORUM",
	ALL: "ALL", LOCALQUORUM: "LOCAL_QUORUM", EACHQUORUM: "EACH_QUORUM",
	SERIAL: "SERIAL", LOCALSERIAL: "LOCAL_SERIAL", LOCALONE: "LOCAL_ONE",
}

func (c Consistency) String() string {
	if s, ok := consistencyStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("Consistency(0x%04x)", uint16(c))
}

// Compression names a frame-body compression algorithm, negotiated via
// STARTUP's "COMPRESSION" option after the server advertises support for
// it in SUPPORTED.
type Compression string

const (
	NoCompression Compression = ""
	Lz4           Compression = "lz4"
	Snappy        Compression = "snappy"
)

// OpCode identifies a frame's request or response kind.
type OpCode Byte

const (
	OpError         OpCode = 0x00
	OpStartup       OpCode = 0x01
	OpReady         OpCode = 0x02
	OpAuthenticate  OpCode = 0x03
	OpOptions       OpCode = 0x05
	OpSupported     OpCode = 0x06
	OpQuery         OpCode = 0x07
	OpResult        OpCode = 0x08
	OpPrepare       OpCode = 0x09
	OpExecute       OpCode = 0x0A
	OpRegister      OpCode = 0x0B
	OpEvent         OpCode = 0x0C
	OpBatch         OpCode = 0x0D
	OpAuthChallenge OpCode = 0x0E
	OpAuthResponse  OpCode = 0x0F
	OpAuthSuccess   OpCode = 0x10
)

// HeaderFlags are the bits of the header's flags byte.
const (
	FlagCompression  Byte = 0x01
	FlagTracing      Byte = 0x02
	FlagCustomPayload Byte = 0x04
	FlagWarning      Byte = 0x08
	FlagUseBeta      Byte = 0x10
)

// OptionID identifies a CQL value type on the wire, independent of any
// particular value.
type OptionID Short

const (
	CustomID    OptionID = 0x0000
	ASCIIID     OptionID = 0x0001
	BigIntID    OptionID = 0x0002
	BlobID      OptionID = 0x0003
	BooleanID   OptionID = 0x0004
	CounterID   OptionID = 0x0005
	DecimalID   OptionID = 0x0006
	DoubleID    OptionID = 0x0007
	FloatID     OptionID = 0x0008
	IntID       OptionID = 0x0009
	TimestampID OptionID = 0x000B
	UUIDID      OptionID = 0x000C
	VarcharID   OptionID = 0x000D
	VarintID    OptionID = 0x000E
	TimeUUIDID  OptionID = 0x000F
	InetID      OptionID = 0x0010
	DateID      OptionID = 0x0011
	TimeID      OptionID = 0x0012
	SmallIntID  OptionID = 0x0013
	TinyIntID   OptionID = 0x0014
	DurationID  OptionID = 0x0015
	ListID      OptionID = 0x0020
	MapID       OptionID = 0x0021
	SetID       OptionID = 0x0022
	UDTID       OptionID = 0x0030
	TupleID     OptionID = 0x0031
	// VectorID is not part of the original Cassandra native protocol
	// revisions this driver otherwise targets; it follows the CQL vector
	// search extension's wire id, carried as a Custom type whose class
	// name the server reports as "org.apache.cassandra.db.marshal.VectorType".
	VectorID OptionID = 0x0032
)

// CustomOption names a server-side custom type by its Java class name.
type CustomOption struct {
	Name string
}

// ListOption, SetOption describe a homogeneous collection's element type.
type ListOption struct{ Element Option }
type SetOption struct{ Element Option }

// MapOption describes a map's key and value types.
type MapOption struct {
	Key   Option
	Value Option
}

// UDTOption describes a user-defined type: keyspace, name, and its fields
// in declaration order. Unlike the server's own internal representation,
// both FieldNames and FieldTypes are exported here — this package is the
// only place a UDTOption is constructed, by code in this module, so there
// is no reason to hide them behind accessors.
type UDTOption struct {
	Keyspace   string
	Name       string
	FieldNames []string
	FieldTypes []Option
}

// TupleOption describes a tuple's element types in declared order.
type TupleOption struct {
	ValueTypes []Option
}

// VectorOption describes a fixed-dimension vector of a single element
// type, per the CQL vector search extension.
type VectorOption struct {
	Element    Option
	Dimensions int
}

// Option is a tagged value-type descriptor: ID selects which of the
// pointer fields, if any, is populated.
type Option struct {
	ID     OptionID
	Custom *CustomOption
	List   *ListOption
	Set    *SetOption
	Map    *MapOption
	UDT    *UDTOption
	Tuple  *TupleOption
	Vector *VectorOption
}

func (o Option) String() string {
	return fmt.Sprintf("Option(0x%04x)", uint16(o.ID))
}

// OptionList is a flat sequence of Options, used by EXECUTE's bind
// variable metadata.
type OptionList []Option

// ColumnSpec is one column's full descriptor: keyspace, table, name and
// type, as carried in RESULT/Rows metadata.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     Option
}

// ResultMetadata is the row shape for a RESULT response: an ordered
// column list plus, on protocol ≥5, an opaque id that changes whenever
// the shape does (e.g. after an ALTER TABLE).
type ResultMetadata struct {
	Columns          []ColumnSpec
	PagingState      Bytes
	ResultMetadataID Bytes
}

// PreparedMetadata is a prepared statement's bind-variable shape, plus
// the partition-key column indexes the server computed for routing.
type PreparedMetadata struct {
	Columns     []ColumnSpec
	PkIndexes   []Short
	GlobalTable string
}

// Row is one result row: column values positionally aligned with the
// owning ResultMetadata.
type Row []CqlValue

// Duration is CQL's duration type: months and days are calendar units,
// nanoseconds is the sub-day remainder; all three are independently
// signed but must share the same sign when non-zero.
type Duration struct {
	Months      int32
	Days        int32
	Nanoseconds int64
}

func (d Duration) validate() error {
	neg := func(x int64) int { // -1, 0, or 1
		switch {
		case x < 0:
			return -1
		case x > 0:
			return 1
		default:
			return 0
		}
	}
	signs := []int{neg(int64(d.Months)), neg(int64(d.Days)), neg(d.Nanoseconds)}
	sign := 0
	for _, s := range signs {
		if s == 0 {
			continue
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return fmt.Errorf("duration components must share a sign: %+v", d)
		}
	}
	return nil
}
