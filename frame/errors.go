package frame

import "fmt"

// ErrorCode is the 4-byte error code carried by an ERROR response body.
type ErrorCode Int

const (
	ErrServerError          ErrorCode = 0x0000
	ErrProtocolError        ErrorCode = 0x000A
	ErrAuthenticationError  ErrorCode = 0x0100
	ErrUnavailable          ErrorCode = 0x1000
	ErrOverloaded           ErrorCode = 0x1001
	ErrIsBootstrapping      ErrorCode = 0x1002
	ErrTruncateError        ErrorCode = 0x1003
	ErrWriteTimeout         ErrorCode = 0x1100
	ErrReadTimeout          ErrorCode = 0x1200
	ErrReadFailure          ErrorCode = 0x1300
	ErrFuncFailure          ErrorCode = 0x1400
	ErrWriteFailure         ErrorCode = 0x1500
	ErrCDCWriteFailure      ErrorCode = 0x1600
	ErrSyntaxError          ErrorCode = 0x2000
	ErrUnauthorized         ErrorCode = 0x2100
	ErrInvalid              ErrorCode = 0x2200
	ErrConfigError          ErrorCode = 0x2300
	ErrAlreadyExists        ErrorCode = 0x2400
	ErrUnprepared           ErrorCode = 0x2500
)

// CodedError is a server-reported error with its native protocol error
// code attached, so retry policies can dispatch on code rather than
// parsing error strings.
type CodedError struct {
	Code    ErrorCode
	Message string
}

func (e *CodedError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func (c ErrorCode) String() string {
	switch c {
	case ErrServerError:
		return "server_error"
	case ErrProtocolError:
		return "protocol_error"
	case ErrAuthenticationError:
		return "authentication_error"
	case ErrUnavailable:
		return "unavailable"
	case ErrOverloaded:
		return "overloaded"
	case ErrIsBootstrapping:
		return "is_bootstrapping"
	case ErrTruncateError:
		return "truncate_error"
	case ErrWriteTimeout:
		return "write_timeout"
	case ErrReadTimeout:
		return "read_timeout"
	case ErrReadFailure:
		return "read_failure"
	case ErrFuncFailure:
		return "function_failure"
	case ErrWriteFailure:
		return "write_failure"
	case ErrCDCWriteFailure:
		return "cdc_write_failure"
	case ErrSyntaxError:
		return "syntax_error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalid:
		return "invalid"
	case ErrConfigError:
		return "config_error"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrUnprepared:
		return "unprepared"
	default:
		return fmt.Sprintf("error(0x%04x)", uint32(c))
	}
}

// UnavailableError reports that not enough replicas were alive to
// satisfy the requested consistency level at coordination time.
type UnavailableError struct {
	CodedError
	Consistency      Consistency
	RequiredReplicas int32
	AliveReplicas    int32
}

// WriteTimeoutError reports a coordinator-side write timeout, with the
// write's sub-kind (SIMPLE/BATCH/BATCH_LOG/UNLOGGED_BATCH/CAS/VIEW/CDC).
type WriteTimeoutError struct {
	CodedError
	Consistency     Consistency
	Received        int32
	BlockFor        int32
	WriteType       string
}

// ReadTimeoutError reports a coordinator-side read timeout.
type ReadTimeoutError struct {
	CodedError
	Consistency  Consistency
	Received     int32
	BlockFor     int32
	DataPresent  bool
}

// WriteFailureError and ReadFailureError report that replicas explicitly
// NACKed the request, as opposed to simply timing out.
type WriteFailureError struct {
	CodedError
	Consistency Consistency
	Received    int32
	BlockFor    int32
	NumFailures int32
	WriteType   string
}

type ReadFailureError struct {
	CodedError
	Consistency Consistency
	Received    int32
	BlockFor    int32
	NumFailures int32
	DataPresent bool
}

// FuncFailureError reports a user-defined-function execution error.
type FuncFailureError struct {
	CodedError
	Keyspace string
	Function string
	ArgTypes []string
}

// AlreadyExistsError reports CREATE KEYSPACE/TABLE against an existing
// target.
type AlreadyExistsError struct {
	CodedError
	Keyspace string
	Table    string
}

// UnpreparedError carries the prepared statement id the server no
// longer recognizes; the request pipeline reacts to this by repreparing
// and retrying once on the same host.
type UnpreparedError struct {
	CodedError
	UnknownID Bytes
}

// IsBootstrappingError, OverloadedError, TruncateError, CDCWriteFailureError
// carry no fields beyond the common CodedError.
type IsBootstrappingError struct{ CodedError }
type OverloadedError struct{ CodedError }
type TruncateError struct{ CodedError }
type CDCWriteFailureError struct{ CodedError }
type ConfigError struct{ CodedError }
type SyntaxError struct{ CodedError }
type UnauthorizedError struct{ CodedError }
type InvalidError struct{ CodedError }
type AuthenticationError struct{ CodedError }
type ProtocolError struct{ CodedError }
type ServerError struct{ CodedError }

// ParseError decodes an ERROR response body into the typed error its
// code names, falling back to a bare CodedError for unrecognized codes.
func ParseError(b *Buffer) error {
	code := ErrorCode(b.ReadInt())
	msg := b.ReadString()
	base := CodedError{Code: code, Message: msg}

	switch code {
	case ErrUnavailable:
		return &UnavailableError{
			CodedError:       base,
			Consistency:      Consistency(b.ReadShort()),
			RequiredReplicas: b.ReadInt(),
			AliveReplicas:    b.ReadInt(),
		}
	case ErrWriteTimeout:
		return &WriteTimeoutError{
			CodedError:  base,
			Consistency: Consistency(b.ReadShort()),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			WriteType:   b.ReadString(),
		}
	case ErrReadTimeout:
		return &ReadTimeoutError{
			CodedError:  base,
			Consistency: Consistency(b.ReadShort()),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			DataPresent: b.ReadByte() != 0,
		}
	case ErrWriteFailure:
		e := &WriteFailureError{
			CodedError:  base,
			Consistency: Consistency(b.ReadShort()),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			NumFailures: b.ReadInt(),
		}
		e.WriteType = b.ReadString()
		return e
	case ErrReadFailure:
		e := &ReadFailureError{
			CodedError:  base,
			Consistency: Consistency(b.ReadShort()),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			NumFailures: b.ReadInt(),
		}
		e.DataPresent = b.ReadByte() != 0
		return e
	case ErrFuncFailure:
		return &FuncFailureError{
			CodedError: base,
			Keyspace:   b.ReadString(),
			Function:   b.ReadString(),
			ArgTypes:   b.ReadStringList(),
		}
	case ErrAlreadyExists:
		return &AlreadyExistsError{
			CodedError: base,
			Keyspace:   b.ReadString(),
			Table:      b.ReadString(),
		}
	case ErrUnprepared:
		return &UnpreparedError{
			CodedError: base,
			UnknownID:  b.ReadShortBytes(),
		}
	case ErrIsBootstrapping:
		return &IsBootstrappingError{base}
	case ErrOverloaded:
		return &OverloadedError{base}
	case ErrTruncateError:
		return &TruncateError{base}
	case ErrCDCWriteFailure:
		return &CDCWriteFailureError{base}
	case ErrConfigError:
		return &ConfigError{base}
	case ErrSyntaxError:
		return &SyntaxError{base}
	case ErrUnauthorized:
		return &UnauthorizedError{base}
	case ErrInvalid:
		return &InvalidError{base}
	case ErrAuthenticationError:
		return &AuthenticationError{base}
	case ErrProtocolError:
		return &ProtocolError{base}
	default:
		return &ServerError{base}
	}
}
