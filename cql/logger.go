package cql

import "github.com/nativecql/coredriver/transport"

// Logger is the structured logging sink for events this package
// observes above the connection layer: cache misses, reprepare
// recovery, statement execution failures. It is an alias of
// transport.Logger so a single logger instance can be handed to both a
// Session and the pools/connections it owns.
type Logger = transport.Logger

type NopLogger = transport.NopLogger
type ZapLogger = transport.ZapLogger

var NewZapLogger = transport.NewZapLogger
