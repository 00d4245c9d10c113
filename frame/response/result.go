package response

import (
	"fmt"

	"github.com/nativecql/coredriver/frame"
)

// ResultKind is RESULT's first field, selecting which variant follows.
type ResultKind frame.Int

const (
	ResultVoid         ResultKind = 0x0001
	ResultRows         ResultKind = 0x0002
	ResultSetKeyspace  ResultKind = 0x0003
	ResultPrepared     ResultKind = 0x0004
	ResultSchemaChange ResultKind = 0x0005
)

const (
	metaFlagGlobalTablesSpec frame.Int = 0x0001
	metaFlagHasMorePages     frame.Int = 0x0002
	metaFlagNoMetadata       frame.Int = 0x0004
	metaFlagMetadataChanged  frame.Int = 0x0008
)

// Result is the parsed RESULT body; exactly one of the typed fields is
// populated, selected by Kind.
type Result struct {
	Kind         ResultKind
	Void         *VoidResult
	Rows         *RowsResult
	SetKeyspace  *SetKeyspaceResult
	Prepared     *PreparedResult
	SchemaChange *SchemaChangeResult
}

type VoidResult struct{}

type RowsResult struct {
	Metadata frame.ResultMetadata
	Rows     []frame.Row
}

type SetKeyspaceResult struct {
	Keyspace string
}

type PreparedResult struct {
	QueryID          frame.Bytes
	ResultMetadataID frame.Bytes
	BindMetadata     frame.PreparedMetadata
	ResultMetadata    frame.ResultMetadata
}

type SchemaChangeResult struct {
	ChangeType string
	Target     string
	Keyspace   string
	Name       string
	Arguments  []string
}

func readColumnSpecs(b *frame.Buffer, version frame.ProtocolVersion, flags frame.Int) ([]frame.ColumnSpec, error) {
	count := int(b.ReadInt())
	global := flags&metaFlagGlobalTablesSpec != 0
	var gks, gtbl string
	if global {
		gks = b.ReadString()
		gtbl = b.ReadString()
	}
	cols := make([]frame.ColumnSpec, 0, count)
	for i := 0; i < count; i++ {
		cs := frame.ColumnSpec{Keyspace: gks, Table: gtbl}
		if !global {
			cs.Keyspace = b.ReadString()
			cs.Table = b.ReadString()
		}
		cs.Name = b.ReadString()
		typ, err := readOption(b)
		if err != nil {
			return nil, err
		}
		cs.Type = typ
		cols = append(cols, cs)
	}
	return cols, b.Err()
}

func readResultMetadata(b *frame.Buffer, version frame.ProtocolVersion) (frame.ResultMetadata, error) {
	flags := b.ReadInt()
	var md frame.ResultMetadata

	if version.SupportsResultMetadataID() && flags&metaFlagMetadataChanged != 0 {
		md.ResultMetadataID = b.ReadShortBytes()
	}

	if flags&metaFlagHasMorePages != 0 {
		md.PagingState = b.ReadBytes()
	}
	if flags&metaFlagNoMetadata != 0 {
		return md, b.Err()
	}
	cols, err := readColumnSpecs(b, version, flags)
	if err != nil {
		return md, err
	}
	md.Columns = cols
	return md, b.Err()
}

func readRow(b *frame.Buffer, cols []frame.ColumnSpec) frame.Row {
	row := make(frame.Row, len(cols))
	for i, c := range cols {
		row[i] = frame.CqlValue{Type: c.Type, Value: b.ReadBytes()}
	}
	return row
}

// ParseResult decodes a full RESULT body.
func ParseResult(b *frame.Buffer, version frame.ProtocolVersion) (Result, error) {
	kind := ResultKind(b.ReadInt())
	r := Result{Kind: kind}

	switch kind {
	case ResultVoid:
		r.Void = &VoidResult{}

	case ResultSetKeyspace:
		r.SetKeyspace = &SetKeyspaceResult{Keyspace: b.ReadString()}

	case ResultRows:
		md, err := readResultMetadata(b, version)
		if err != nil {
			return r, err
		}
		n := int(b.ReadInt())
		rows := make([]frame.Row, 0, n)
		for i := 0; i < n; i++ {
			rows = append(rows, readRow(b, md.Columns))
		}
		r.Rows = &RowsResult{Metadata: md, Rows: rows}

	case ResultPrepared:
		p := &PreparedResult{}
		p.QueryID = b.ReadShortBytes()
		if version.SupportsResultMetadataID() {
			p.ResultMetadataID = b.ReadShortBytes()
		}
		bindFlags := b.ReadInt()
		count := int(b.ReadInt())
		pkIndexCount := int(b.ReadInt())
		pkIdx := make([]frame.Short, 0, pkIndexCount)
		for i := 0; i < pkIndexCount; i++ {
			pkIdx = append(pkIdx, b.ReadShort())
		}
		global := bindFlags&metaFlagGlobalTablesSpec != 0
		var gks, gtbl string
		if global {
			gks = b.ReadString()
			gtbl = b.ReadString()
		}
		cols := make([]frame.ColumnSpec, 0, count)
		for i := 0; i < count; i++ {
			cs := frame.ColumnSpec{Keyspace: gks, Table: gtbl}
			if !global {
				cs.Keyspace = b.ReadString()
				cs.Table = b.ReadString()
			}
			cs.Name = b.ReadString()
			typ, err := readOption(b)
			if err != nil {
				return r, err
			}
			cs.Type = typ
			cols = append(cols, cs)
		}
		p.BindMetadata = frame.PreparedMetadata{Columns: cols, PkIndexes: pkIdx, GlobalTable: gtbl}
		resultMD, err := readResultMetadata(b, version)
		if err != nil {
			return r, err
		}
		p.ResultMetadata = resultMD
		r.Prepared = p

	case ResultSchemaChange:
		sc := &SchemaChangeResult{
			ChangeType: b.ReadString(),
			Target:     b.ReadString(),
		}
		switch sc.Target {
		case "KEYSPACE":
			sc.Keyspace = b.ReadString()
		case "TABLE", "TYPE":
			sc.Keyspace = b.ReadString()
			sc.Name = b.ReadString()
		case "FUNCTION", "AGGREGATE":
			sc.Keyspace = b.ReadString()
			sc.Name = b.ReadString()
			sc.Arguments = b.ReadStringList()
		}
		r.SchemaChange = sc

	default:
		return r, fmt.Errorf("response: unknown result kind 0x%04x", uint32(kind))
	}

	if err := b.Err(); err != nil {
		return r, err
	}
	if b.Len() != 0 {
		return r, fmt.Errorf("response: %d unconsumed trailing bytes in RESULT body", b.Len())
	}
	return r, nil
}

// readOption decodes a type descriptor (Option) from the wire.
func readOption(b *frame.Buffer) (frame.Option, error) {
	id := frame.OptionID(b.ReadShort())
	opt := frame.Option{ID: id}

	switch id {
	case frame.CustomID:
		opt.Custom = &frame.CustomOption{Name: b.ReadString()}
		if opt.Custom.Name == "org.apache.cassandra.db.marshal.VectorType" {
			// CQL vector extension reuses the CUSTOM id on the wire for
			// older servers; the modern encoding uses VectorID directly,
			// handled below. Left as a CustomOption here so callers can
			// still recognize it by class name.
		}
	case frame.ListID:
		elem, err := readOption(b)
		if err != nil {
			return opt, err
		}
		opt.List = &frame.ListOption{Element: elem}
	case frame.SetID:
		elem, err := readOption(b)
		if err != nil {
			return opt, err
		}
		opt.Set = &frame.SetOption{Element: elem}
	case frame.MapID:
		k, err := readOption(b)
		if err != nil {
			return opt, err
		}
		v, err := readOption(b)
		if err != nil {
			return opt, err
		}
		opt.Map = &frame.MapOption{Key: k, Value: v}
	case frame.UDTID:
		ks := b.ReadString()
		name := b.ReadString()
		n := int(b.ReadShort())
		names := make([]string, 0, n)
		types := make([]frame.Option, 0, n)
		for i := 0; i < n; i++ {
			names = append(names, b.ReadString())
			t, err := readOption(b)
			if err != nil {
				return opt, err
			}
			types = append(types, t)
		}
		opt.UDT = &frame.UDTOption{Keyspace: ks, Name: name, FieldNames: names, FieldTypes: types}
	case frame.TupleID:
		n := int(b.ReadShort())
		types := make([]frame.Option, 0, n)
		for i := 0; i < n; i++ {
			t, err := readOption(b)
			if err != nil {
				return opt, err
			}
			types = append(types, t)
		}
		opt.Tuple = &frame.TupleOption{ValueTypes: types}
	case frame.VectorID:
		elem, err := readOption(b)
		if err != nil {
			return opt, err
		}
		dims := int(b.ReadShort())
		opt.Vector = &frame.VectorOption{Element: elem, Dimensions: dims}
	}
	return opt, b.Err()
}
